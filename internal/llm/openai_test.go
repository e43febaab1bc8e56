package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAIQuery_SendsMultiContent(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hello!"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	c := NewOpenAI("test-key", server.URL+"/v1", "gpt-test", 2*time.Second)
	req := Request{Contents: []Content{{Parts: []Part{
		{InlineData: &InlineData{MIMEType: "image/png", Data: "AAAA"}},
		{Text: "what is this?"},
	}}}}
	out, err := c.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if out != "Hello!" {
		t.Fatalf("unexpected content %q", out)
	}
	if got.Model != "gpt-test" || len(got.Messages) != 1 {
		t.Fatalf("unexpected request: %+v", got)
	}
	parts := got.Messages[0].Content
	if len(parts) != 2 || parts[0].Type != "image_url" || parts[1].Type != "text" {
		t.Fatalf("unexpected parts: %+v", parts)
	}
	if parts[0].ImageURL == nil || parts[0].ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Fatalf("unexpected image url: %+v", parts[0].ImageURL)
	}
}

func TestOpenAIQuery_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited","type":"requests"}}`)
	}))
	defer server.Close()

	c := NewOpenAI("k", server.URL+"/v1", "m", 2*time.Second)
	_, err := c.Query(context.Background(), Request{Contents: []Content{{Parts: []Part{{Text: "hi"}}}}})
	var f *Failure
	if !errors.As(err, &f) || f.Kind != KindUpstream || f.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("want upstream 429, got %v", err)
	}
	if !strings.Contains(f.Error(), "429") {
		t.Fatalf("status missing from rendering: %q", f.Error())
	}
}

func TestOpenAIQuery_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","choices":[]}`)
	}))
	defer server.Close()

	c := NewOpenAI("k", server.URL+"/v1", "m", 2*time.Second)
	_, err := c.Query(context.Background(), Request{Contents: []Content{{Parts: []Part{{Text: "hi"}}}}})
	var f *Failure
	if !errors.As(err, &f) || f.Kind != KindMalformedResponse {
		t.Fatalf("want malformed failure, got %v", err)
	}
}

func TestOpenAIQuery_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`)
	}))
	defer server.Close()

	c := NewOpenAI("k", server.URL+"/v1", "m", 2*time.Second)
	_, err := c.Query(context.Background(), Request{Contents: []Content{{Parts: []Part{{Text: "hi"}}}}})
	var f *Failure
	if !errors.As(err, &f) || f.Kind != KindMalformedResponse {
		t.Fatalf("want malformed failure, got %v", err)
	}
}

func TestOpenAIQuery_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewOpenAI("k", url+"/v1", "m", time.Second)
	_, err := c.Query(context.Background(), Request{Contents: []Content{{Parts: []Part{{Text: "hi"}}}}})
	var f *Failure
	if !errors.As(err, &f) || f.Kind != KindTransport {
		t.Fatalf("want transport failure, got %v", err)
	}
}
