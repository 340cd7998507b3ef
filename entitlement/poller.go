// Package entitlement checks the user's subscription status against the
// billing endpoint.
package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumlabs/atrium"
)

const statusPath = "/billing/entitlement"

// Status is the subscription state reported by the billing endpoint.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusNone     Status = "none"
)

// Entitled reports whether the status grants access to gated content.
func (s Status) Entitled() bool {
	return s == StatusActive || s == StatusTrialing
}

// ErrNotEntitled indicates the poll budget ran out without the
// subscription becoming active.
var ErrNotEntitled = errors.New("entitlement: not active")

type statusResponse struct {
	Status Status `json:"status"`
}

// Poller polls the entitlement endpoint a fixed number of times at a fixed
// interval, typically right after a purchase while the backend confirms
// it. This is the only bounded retry loop in the client; the streaming
// path never retries beyond its single 401 replay.
type Poller struct {
	exec     atrium.Executor
	attempts int
	interval time.Duration
	log      zerolog.Logger
}

// NewPoller creates a Poller that gives up after attempts polls spaced
// interval apart.
func NewPoller(exec atrium.Executor, attempts int, interval time.Duration, log zerolog.Logger) *Poller {
	return &Poller{exec: exec, attempts: attempts, interval: interval, log: log}
}

// Check fetches the entitlement status once. A 402 from the backend is
// reported as StatusNone rather than an error: for this endpoint it is an
// answer, not a failure.
func (p *Poller) Check(ctx context.Context) (Status, error) {
	resp, err := p.exec.Execute(ctx, atrium.RequestSpec{
		Method: http.MethodGet,
		Path:   statusPath,
	})
	if err != nil {
		var ee *atrium.EntitlementError
		if errors.As(err, &ee) {
			return StatusNone, nil
		}
		return "", err
	}

	var sr statusResponse
	if err := json.Unmarshal(resp.Body, &sr); err != nil {
		return "", fmt.Errorf("entitlement: parse status: %w", err)
	}
	return sr.Status, nil
}

// Wait polls until the subscription is entitled or the attempt budget runs
// out, returning the last observed status either way. Failures other than
// the entitlement signal stop the loop immediately.
func (p *Poller) Wait(ctx context.Context) (Status, error) {
	last := StatusNone
	for i := 0; i < p.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(p.interval):
			}
		}

		st, err := p.Check(ctx)
		if err != nil {
			return last, err
		}
		last = st
		if st.Entitled() {
			return st, nil
		}
		p.log.Debug().Int("attempt", i+1).Str("status", string(st)).Msg("entitlement not active yet")
	}
	return last, ErrNotEntitled
}
