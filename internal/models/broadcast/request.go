package models

import "fmt"

const (
	MaxTitleLength = 100
	MaxBodyLength  = 500
)

// NotificationRequest is the human-authored content of a broadcast.
type NotificationRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ValidationError reports a rejected title or body before any dispatch happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate enforces the title and body bounds. It returns a *ValidationError
// so callers can map it to a client error.
func (n NotificationRequest) Validate() error {
	if n.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(n.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", MaxTitleLength)}
	}
	if n.Body == "" {
		return &ValidationError{Field: "body", Reason: "must not be empty"}
	}
	if len(n.Body) > MaxBodyLength {
		return &ValidationError{Field: "body", Reason: fmt.Sprintf("must be at most %d characters", MaxBodyLength)}
	}
	return nil
}
