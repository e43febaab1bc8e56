package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GeminiClient calls the generateContent REST endpoint directly.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewGemini(apiKey, baseURL, model string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) endpoint() string {
	q := url.Values{}
	q.Set("key", c.apiKey)
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?%s", c.baseURL, c.model, q.Encode())
}

// Query sends one generateContent call. It makes a single attempt.
func (c *GeminiClient) Query(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", &Failure{Kind: KindTransport, Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", &Failure{Kind: KindTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Failure{Kind: KindTransport, Err: redactKey(err, c.apiKey)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Failure{Kind: KindTransport, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Failure{Kind: KindUpstream, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return extractText(body)
}

func extractText(body []byte) (string, error) {
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &Failure{Kind: KindMalformedResponse, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if len(parsed.Candidates) == 0 {
		return "", &Failure{Kind: KindMalformedResponse, Err: errors.New("no candidates")}
	}
	content := parsed.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", &Failure{Kind: KindMalformedResponse, Err: errors.New("first candidate has no parts")}
	}
	if content.Parts[0].Text == nil || strings.TrimSpace(*content.Parts[0].Text) == "" {
		return "", &Failure{Kind: KindMalformedResponse, Err: errors.New("first part has no text")}
	}
	return *content.Parts[0].Text, nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// redactKey strips the API key that net/http embeds in *url.Error messages.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), key, "REDACTED"), err: err}
}
