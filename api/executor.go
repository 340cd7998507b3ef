// Package api implements [atrium.Executor]: single non-streaming REST
// requests against the platform backend, wrapped with the shared
// refresh-and-retry policy. Every simple endpoint (catalog, billing,
// account) goes through this one path.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/atriumlabs/atrium"
)

// Interface compliance check.
var _ atrium.Executor = (*Executor)(nil)

// Executor issues one authenticated request at a time. The only automatic
// retry is the single refresh-and-replay on 401; whatever status the replay
// returns is final.
type Executor struct {
	client    *http.Client
	baseURL   string
	store     atrium.CredentialStore
	refresher atrium.Refresher
	timeout   time.Duration
	log       zerolog.Logger
}

// Option configures an [Executor].
type Option func(*Executor)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Executor) { e.client = hc }
}

// WithTimeout bounds each attempt. Zero leaves only the transport layer's
// own defaults.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// New creates an Executor for the given base URL. The refresher must be
// the same single-flight refresher used by the stream transport.
func New(baseURL string, store atrium.CredentialStore, refresher atrium.Refresher, opts ...Option) *Executor {
	e := &Executor{
		client:    http.DefaultClient,
		baseURL:   baseURL,
		store:     store,
		refresher: refresher,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute issues spec with the current access token attached. A 401 on the
// first attempt triggers the shared single-flight refresh and exactly one
// replay with the new token; a second 401 surfaces as *atrium.AuthError.
func (e *Executor) Execute(ctx context.Context, spec atrium.RequestSpec) (atrium.Response, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cred, ok := e.store.Credential()
	if !ok {
		return atrium.Response{}, &atrium.AuthError{Reason: "not signed in", Err: atrium.ErrNoCredential}
	}

	resp, err := e.attempt(ctx, spec, cred.AccessToken)
	if err != nil {
		return atrium.Response{}, err
	}
	if resp.Status != http.StatusUnauthorized {
		return classify(resp)
	}

	e.log.Debug().Str("path", spec.Path).Msg("request unauthorized, refreshing credential")
	cred, err = e.refresher.Refresh(ctx)
	if err != nil {
		return atrium.Response{}, err
	}

	resp, err = e.attempt(ctx, spec, cred.AccessToken)
	if err != nil {
		return atrium.Response{}, err
	}
	if resp.Status == http.StatusUnauthorized {
		return atrium.Response{}, &atrium.AuthError{Reason: "unauthorized after refresh"}
	}
	return classify(resp)
}

// attempt performs one HTTP round trip and reads the full body.
func (e *Executor) attempt(ctx context.Context, spec atrium.RequestSpec, token string) (atrium.Response, error) {
	var body io.Reader
	if spec.Body != nil {
		payload, err := json.Marshal(spec.Body)
		if err != nil {
			return atrium.Response{}, fmt.Errorf("api: marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	u := e.baseURL + spec.Path
	if len(spec.Query) > 0 {
		u += "?" + spec.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, u, body)
	if err != nil {
		return atrium.Response{}, fmt.Errorf("api: %w", err)
	}
	if spec.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := e.client.Do(req)
	if err != nil {
		return atrium.Response{}, &atrium.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return atrium.Response{}, &atrium.NetworkError{Err: err}
	}

	return atrium.Response{Status: resp.StatusCode, Body: raw}, nil
}

// classify maps a non-2xx response to the error taxonomy. 402 is the
// entitlement-required signal and gets its own type so callers can route
// to the paywall flow.
func classify(resp atrium.Response) (atrium.Response, error) {
	switch {
	case resp.Status == http.StatusPaymentRequired:
		return atrium.Response{}, &atrium.EntitlementError{Body: string(resp.Body)}
	case resp.Status < 200 || resp.Status > 299:
		return atrium.Response{}, &atrium.RemoteError{Status: resp.Status, Body: string(resp.Body)}
	}
	return resp, nil
}
