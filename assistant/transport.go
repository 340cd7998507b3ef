package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/atriumlabs/atrium"
)

// State is the lifecycle state of a Transport's most recent session.
type State int

const (
	StateIdle       State = iota // no session started yet
	StateConnecting              // request sent, response headers not yet seen
	StateStreaming               // receiving event frames
	StateCompleted               // stream closed normally
	StateCancelled               // Cancel() tore the session down
	StateFailed                  // terminal error surfaced through onError
)

// Interface compliance check.
var _ atrium.Streamer = (*Transport)(nil)

// Transport implements [atrium.Streamer] against the ask endpoint. It owns
// at most one live session; each Start allocates a fresh session with a
// generation number, and late callbacks from a superseded session check
// their generation and no-op if stale.
//
// An expired credential is recovered transparently: when the server answers
// the stream request with 401, the shared single-flight refresher runs once
// and the same query is re-sent with the fresh credential. The unauthorized
// status is only ever the first thing the server returns, before any event,
// so the retry never replays or duplicates dispatched events.
//
// Sinks are invoked sequentially from the session's goroutine. Cancel
// blocks until an in-flight sink call returns, so it must not be called
// from inside a sink.
type Transport struct {
	client    *http.Client
	baseURL   string
	store     atrium.CredentialStore
	refresher atrium.Refresher
	timeout   time.Duration
	log       zerolog.Logger

	mu     sync.Mutex // guards gen, cancel, state
	gen    uint64
	cancel context.CancelFunc
	state  State

	sinkMu sync.Mutex // held while a sink callback runs
}

// Option configures a [Transport].
type Option func(*Transport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(t *Transport) { t.client = hc }
}

// WithTimeout bounds the whole stream, connection establishment included.
// Zero leaves only the transport layer's own defaults.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Transport) { t.log = log }
}

// New creates a Transport for the given base URL. The refresher must be the
// same single-flight refresher used by the non-streaming executor so that
// concurrent 401 recoveries share one refresh call.
func New(baseURL string, store atrium.CredentialStore, refresher atrium.Refresher, opts ...Option) *Transport {
	t := &Transport{
		client:    http.DefaultClient,
		baseURL:   baseURL,
		store:     store,
		refresher: refresher,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start opens a stream for q and returns immediately. Events arrive
// through onEvent in arrival order; onError receives at most one terminal
// error and is not called on normal completion or cancellation. Starting
// while a session is live supersedes it.
func (t *Transport) Start(ctx context.Context, q atrium.StreamQuery, onEvent func(atrium.Event), onError func(error)) {
	if err := q.Validate(); err != nil {
		onError(err)
		return
	}

	var cancel context.CancelFunc
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	t.mu.Lock()
	t.gen++
	gen := t.gen
	if t.cancel != nil {
		t.cancel() // supersede: tear down the previous session
	}
	t.cancel = cancel
	t.state = StateConnecting
	t.mu.Unlock()

	go t.run(ctx, gen, q, onEvent, onError, false)
}

// Cancel tears down the live session, if any. After Cancel returns, no
// further onEvent or onError call is made for that session, even if its
// bytes are still in flight. Cancel while idle or already terminal is a
// no-op.
func (t *Transport) Cancel() {
	t.mu.Lock()
	if t.cancel == nil {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.cancel()
	t.cancel = nil
	t.state = StateCancelled
	t.mu.Unlock()

	// Barrier: wait out any sink call already past its generation check.
	t.sinkMu.Lock()
	defer t.sinkMu.Unlock()
}

// State reports the lifecycle state of the most recent session.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) run(ctx context.Context, gen uint64, q atrium.StreamQuery, onEvent func(atrium.Event), onError func(error), retried bool) {
	cred, ok := t.store.Credential()
	if !ok {
		t.fail(gen, onError, &atrium.AuthError{Reason: "not signed in", Err: atrium.ErrNoCredential})
		return
	}

	resp, err := t.connect(ctx, q, cred.AccessToken)
	if err != nil {
		if ctx.Err() != nil {
			return // cancelled or superseded
		}
		t.fail(gen, onError, &atrium.NetworkError{Err: err})
		return
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		readBody(resp.Body)
		if retried {
			t.fail(gen, onError, &atrium.AuthError{Reason: "unauthorized after refresh"})
			return
		}
		t.log.Debug().Msg("stream unauthorized, refreshing credential")
		if _, err := t.refresher.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			t.fail(gen, onError, err)
			return
		}
		// Same query, same generation: transparent to the caller.
		t.run(ctx, gen, q, onEvent, onError, true)
		return

	case resp.StatusCode == http.StatusPaymentRequired:
		t.fail(gen, onError, &atrium.EntitlementError{Body: readBody(resp.Body)})
		return

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		t.fail(gen, onError, &atrium.RemoteError{Status: resp.StatusCode, Body: readBody(resp.Body)})
		return
	}

	t.setState(gen, StateStreaming)
	t.consume(ctx, gen, resp.Body, onEvent, onError)
}

func (t *Transport) connect(ctx context.Context, q atrium.StreamQuery, token string) (*http.Response, error) {
	payload, err := json.Marshal(askRequest{
		Question: q.Question,
		FileURL:  q.ContextRef,
		ChatID:   q.ConversationID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+askPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-Id", uuid.NewString())

	return t.client.Do(req)
}

// consume drains the response body through a session-scoped parser,
// dispatching each finalized event in order.
func (t *Transport) consume(ctx context.Context, gen uint64, body io.ReadCloser, onEvent func(atrium.Event), onError func(error)) {
	defer body.Close()

	parser := NewParser(t.log)
	buf := make([]byte, readBufSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, evt := range parser.Feed(buf[:n]) {
				if !t.dispatch(gen, onEvent, evt) {
					return
				}
			}
		}
		switch {
		case err == io.EOF:
			// The final event may be terminated by end of stream rather
			// than a blank line.
			if evt, ok := parser.Flush(); ok {
				if !t.dispatch(gen, onEvent, evt) {
					return
				}
			}
			t.complete(gen)
			return
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			t.fail(gen, onError, &atrium.NetworkError{Err: err})
			return
		}
	}
}

// dispatch delivers evt to the sink if gen is still the live session.
// Reports whether the session should keep running.
func (t *Transport) dispatch(gen uint64, onEvent func(atrium.Event), evt atrium.Event) bool {
	t.sinkMu.Lock()
	defer t.sinkMu.Unlock()
	if !t.live(gen) {
		return false
	}
	onEvent(evt)
	return true
}

// fail marks the session Failed and surfaces err, unless superseded.
func (t *Transport) fail(gen uint64, onError func(error), err error) {
	t.sinkMu.Lock()
	defer t.sinkMu.Unlock()

	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		return
	}
	t.state = StateFailed
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.mu.Unlock()

	t.log.Debug().Err(err).Msg("stream failed")
	onError(err)
}

// complete marks the session Completed, unless superseded.
func (t *Transport) complete(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return
	}
	t.state = StateCompleted
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *Transport) setState(gen uint64, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen == gen {
		t.state = s
	}
}

func (t *Transport) live(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen == gen
}

// readBody reads and closes a response body, for error reporting. Bounded
// so a misbehaving server cannot balloon an error message.
func readBody(rc io.ReadCloser) string {
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, 1<<20))
	if err != nil {
		return ""
	}
	return string(b)
}
