// Package prompt turns a persona, a stored transcript and a new user message
// into a model request.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"salyqbot/internal/llm"
)

//go:embed persona.txt
var defaultPersona string

const defaultImageMIME = "image/jpeg"

// LoadPersona reads the persona from path, or returns the built-in one when path is empty.
func LoadPersona(path string) (string, error) {
	if path == "" {
		return defaultPersona, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read persona %s: %w", path, err)
	}
	persona := strings.TrimSpace(string(data))
	if persona == "" {
		return "", fmt.Errorf("persona file %s is empty", path)
	}
	return persona, nil
}

type Assembler struct {
	persona string
}

func New(persona string) *Assembler {
	return &Assembler{persona: persona}
}

// Build assembles the request parts: the image first when present, then a
// single instruction block when text is non-empty. It does not validate; with
// neither input the parts list is empty.
func (a *Assembler) Build(history, text string, img *llm.Image) llm.Request {
	parts := []llm.Part{}
	if img != nil {
		mime := img.MIMEType
		if mime == "" {
			mime = defaultImageMIME
		}
		parts = append(parts, llm.Part{InlineData: &llm.InlineData{
			MIMEType: mime,
			Data:     llm.EncodeImage(img.Data),
		}})
	}
	if text != "" {
		parts = append(parts, llm.Part{Text: a.instruction(history, text)})
	}
	return llm.Request{Contents: []llm.Content{{Parts: parts}}}
}

func (a *Assembler) instruction(history, text string) string {
	return "System: " + a.persona + "\nUser History: " + history + "\nUser Question: " + text
}
