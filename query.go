package atrium

import (
	"fmt"
	"strings"
)

// StreamQuery is an immutable question submitted to the assistant.
type StreamQuery struct {
	Question       string
	ContextRef     string // URL of the course material the question refers to; empty = none
	ConversationID string // continues an existing conversation when set
}

// Validate checks universal constraints on StreamQuery.
func (q StreamQuery) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("question must not be empty: %w", ErrValidation)
	}
	return nil
}
