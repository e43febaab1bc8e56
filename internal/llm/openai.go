package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient serves the same Request through any OpenAI-compatible chat
// completions endpoint (OpenAI, OpenRouter, local gateways).
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *OpenAIClient) Query(ctx context.Context, req Request) (string, error) {
	var parts []openai.ChatMessagePart
	for _, content := range req.Contents {
		for _, p := range content.Parts {
			switch {
			case p.InlineData != nil:
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:" + p.InlineData.MIMEType + ";base64," + p.InlineData.Data,
					},
				})
			case p.Text != "":
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			}
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Failure{Kind: KindMalformedResponse, Err: errors.New("no choices")}
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", &Failure{Kind: KindMalformedResponse, Err: errors.New("empty completion")}
	}
	return text, nil
}

func classifyOpenAIError(err error) *Failure {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &Failure{Kind: KindUpstream, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &Failure{Kind: KindUpstream, StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error(), Err: err}
	}
	return &Failure{Kind: KindTransport, Err: err}
}

// EncodeImage returns the base64 form used in inline_data parts.
func EncodeImage(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
