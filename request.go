package atrium

import (
	"context"
	"net/url"
)

// RequestSpec describes one non-streaming authenticated REST request.
// The body, when non-nil, is marshaled as JSON.
type RequestSpec struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is the successful (2xx) outcome of an executed request.
type Response struct {
	Status int
	Body   []byte
}

// Executor issues a single authenticated request with the shared
// refresh-and-retry policy: a 401 on the first attempt triggers one
// single-flight credential refresh and exactly one replay. Failures are
// classified per the error taxonomy in errors.go; the entitlement-required
// status surfaces as *EntitlementError so callers can route to the paywall
// flow.
type Executor interface {
	Execute(ctx context.Context, spec RequestSpec) (Response, error)
}
