// Package atrium holds the domain types and collaborator interfaces for the
// Atrium platform client. Implementations live in subpackages: assistant
// (streaming query client), api (authenticated request executor), auth
// (credential refresh), entitlement (subscription status).
package atrium

import "strings"

// EventKind identifies the semantic type of a stream event.
type EventKind string

const (
	// EventMetadata carries a JSON payload with the conversation ID the
	// caller must retain to continue the conversation.
	EventMetadata EventKind = "metadata"

	// EventAnswer carries an incremental text fragment. Concatenating
	// fragments in arrival order reconstructs the full answer.
	EventAnswer EventKind = "answer"

	// EventStatus carries out-of-band information. A payload containing
	// "error" signals a server-side failure embedded in a 200 response.
	EventStatus EventKind = "status"

	// EventComplete marks the end of a successful answer.
	EventComplete EventKind = "complete"
)

// EventMeta is the parsed payload of a metadata event.
type EventMeta struct {
	ChatID string `json:"chat_id"`
}

// Event is one frame of the assistant stream. Events are immutable and
// delivered to the sink exactly once, in arrival order.
type Event struct {
	Kind    EventKind
	Payload string

	// Meta is the parsed metadata payload. Nil unless Kind is
	// EventMetadata and the payload parsed as JSON; a payload that fails
	// to parse still produces an event, with Meta left nil.
	Meta *EventMeta
}

// IndicatesFailure reports whether a status event signals a server-side
// failure embedded in an otherwise successful response.
func (e Event) IndicatesFailure() bool {
	return e.Kind == EventStatus && strings.Contains(strings.ToLower(e.Payload), "error")
}
