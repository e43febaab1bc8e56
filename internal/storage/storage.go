package storage

import "time"

// Event is one answered message: what the user sent and what the bot replied.
// FailureKind is empty when the model produced the reply and holds the
// failure kind when the reply is an error text.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	UserID            int64     `json:"user_id"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	HasImage          bool      `json:"has_image,omitempty"`
	FailureKind       string    `json:"failure_kind,omitempty"`
}

// Recorder abstracts persistence of interaction events.
// LoadInteractions returns events in chronological order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
