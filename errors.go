package atrium

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a query or request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrNoCredential indicates a request path was used before sign-in.
	ErrNoCredential = errors.New("no credential")
)

// AuthError indicates the credential could not be refreshed, or that a
// request was still unauthorized after a successful refresh. Terminal: the
// session is invalidated and the user must sign in again.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteError is any non-2xx response other than the retried 401 and the
// entitlement-required status. Surfaced once to the caller for display.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote: HTTP %d: %s", e.Status, e.Body)
}

// EntitlementError is the payment/entitlement-required signal (HTTP 402).
// Callers branch on it to route to the paywall flow instead of showing a
// generic failure.
type EntitlementError struct {
	Body string
}

func (e *EntitlementError) Error() string {
	return "entitlement required: " + e.Body
}

// NetworkError is a transport-level failure. Never auto-retried beyond the
// single 401 refresh-and-replay path.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports a stream frame the parser could not interpret.
// Non-fatal for metadata payloads; elsewhere the offending line is logged
// and skipped rather than crashing the stream.
type ProtocolError struct {
	Line string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %q: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("protocol: %q", e.Line)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
