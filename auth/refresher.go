package auth

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/atriumlabs/atrium"
)

// Interface compliance check.
var _ atrium.Refresher = (*Refresher)(nil)

// TokenSource is the refresh endpoint dependency of [Refresher].
// *Client implements it.
type TokenSource interface {
	Refresh(ctx context.Context, refreshToken string) (atrium.Credential, error)
}

// Refresher coordinates credential refresh across every caller in the
// process. It is single-flight: concurrent callers, whether from the
// request executor or the stream transport, share one refresh call and its
// single outcome. The server invalidates a refresh token on use, so
// presenting the same stale token twice would sign the user out.
//
// On refresh failure the store is cleared and the session-invalidated hook
// fires exactly once, regardless of how many callers were waiting.
type Refresher struct {
	store  atrium.CredentialStore
	source TokenSource
	hooks  atrium.SessionHooks
	log    zerolog.Logger
	group  singleflight.Group
}

// RefresherOption configures a [Refresher].
type RefresherOption func(*Refresher)

// WithSessionHooks sets the collaborator notified when a refresh fails.
func WithSessionHooks(hooks atrium.SessionHooks) RefresherOption {
	return func(r *Refresher) { r.hooks = hooks }
}

// WithRefresherLogger sets the diagnostic logger.
func WithRefresherLogger(log zerolog.Logger) RefresherOption {
	return func(r *Refresher) { r.log = log }
}

// NewRefresher creates a Refresher over the given store and token source.
func NewRefresher(store atrium.CredentialStore, source TokenSource, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:  store,
		source: source,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Refresh returns a fresh credential, joining an in-flight refresh if one
// exists. A caller whose context expires stops waiting, but the refresh
// itself keeps running so the other waiters still get its outcome.
func (r *Refresher) Refresh(ctx context.Context) (atrium.Credential, error) {
	ch := r.group.DoChan("refresh", func() (any, error) {
		return r.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return atrium.Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return atrium.Credential{}, res.Err
		}
		return res.Val.(atrium.Credential), nil
	}
}

func (r *Refresher) refresh(ctx context.Context) (atrium.Credential, error) {
	cur, ok := r.store.Credential()
	if !ok || cur.RefreshToken == "" {
		r.invalidate()
		return atrium.Credential{}, &atrium.AuthError{Reason: "no refresh token", Err: atrium.ErrNoCredential}
	}

	cred, err := r.source.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		r.log.Warn().Err(err).Msg("credential refresh failed")
		r.invalidate()
		return atrium.Credential{}, &atrium.AuthError{Reason: "refresh failed", Err: err}
	}

	r.store.SetCredential(cred)
	r.log.Debug().Time("expires_at", cred.ExpiresAt).Msg("credential refreshed")
	return cred, nil
}

// invalidate clears the stored credential and signals forced sign-out.
// Runs inside the single-flight call, so it fires once per failed refresh.
func (r *Refresher) invalidate() {
	r.store.Clear()
	if r.hooks != nil {
		r.hooks.SessionInvalidated()
	}
}
