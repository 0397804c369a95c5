package models

import (
	"fmt"
	"strings"
)

// AskRequest is a question submitted by a user.
type AskRequest struct {
	Query string `json:"query"`
	// Mode overrides the configured composition mode ("direct" or "augmented") when set.
	Mode string `json:"mode,omitempty"`
}

// Validate trims the query and rejects empty queries or unknown modes.
func (q *AskRequest) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	q.Mode = strings.ToLower(strings.TrimSpace(q.Mode))
	switch q.Mode {
	case "", "direct", "augmented":
		return nil
	default:
		return fmt.Errorf("unknown mode %q (supported: direct, augmented)", q.Mode)
	}
}
