package llm

import (
	"context"
	"errors"
	"fmt"
)

// Image is a single inline image attached to a query.
type Image struct {
	MIMEType string
	Data     []byte
}

// InlineData, Part, Content and Request mirror the generateContent wire format.
type InlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type Part struct {
	InlineData *InlineData `json:"inline_data,omitempty"`
	Text       string      `json:"text,omitempty"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type Request struct {
	Contents []Content `json:"contents"`
}

// Client answers a single assembled request. The returned error is always a *Failure.
type Client interface {
	Query(ctx context.Context, req Request) (string, error)
}

type FailureKind string

const (
	KindTransport         FailureKind = "transport"
	KindUpstream          FailureKind = "upstream"
	KindMalformedResponse FailureKind = "malformed_response"
)

// Failure is the typed outcome of an unsuccessful query.
type Failure struct {
	Kind FailureKind
	// StatusCode and Body are set for KindUpstream.
	StatusCode int
	Body       string
	Err        error
}

// Error renders the failure in the form shown to users.
func (f *Failure) Error() string {
	switch f.Kind {
	case KindUpstream:
		return fmt.Sprintf("ERROR %d: %s", f.StatusCode, f.Body)
	case KindMalformedResponse:
		return fmt.Sprintf("ERROR: malformed response: %v", f.Err)
	default:
		return fmt.Sprintf("ERROR: transport: %v", f.Err)
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a *Failure from err. Errors that are not failures are
// reported as transport failures so callers always get a kind.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: KindTransport, Err: err}
}
