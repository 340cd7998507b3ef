// Package mock provides test doubles for atrium interfaces using function
// fields.
package mock

import (
	"context"

	"github.com/atriumlabs/atrium"
)

// Interface compliance checks.
var (
	_ atrium.CredentialStore = (*CredentialStore)(nil)
	_ atrium.Refresher       = (*Refresher)(nil)
	_ atrium.SessionHooks    = (*SessionHooks)(nil)
	_ atrium.Executor        = (*Executor)(nil)
)

// CredentialStore is a test double for atrium.CredentialStore.
// CredentialFn panics when nil to catch missing setup; SetCredentialFn and
// ClearFn are nil-safe no-ops because most tests never write.
type CredentialStore struct {
	CredentialFn    func() (atrium.Credential, bool)
	SetCredentialFn func(atrium.Credential)
	ClearFn         func()
}

// Credential delegates to CredentialFn.
func (s *CredentialStore) Credential() (atrium.Credential, bool) {
	return s.CredentialFn()
}

// SetCredential delegates to SetCredentialFn when set.
func (s *CredentialStore) SetCredential(cred atrium.Credential) {
	if s.SetCredentialFn != nil {
		s.SetCredentialFn(cred)
	}
}

// Clear delegates to ClearFn when set.
func (s *CredentialStore) Clear() {
	if s.ClearFn != nil {
		s.ClearFn()
	}
}

// Refresher is a test double for atrium.Refresher.
// Set RefreshFn before calling Refresh.
type Refresher struct {
	RefreshFn func(ctx context.Context) (atrium.Credential, error)
}

// Refresh delegates to RefreshFn.
func (r *Refresher) Refresh(ctx context.Context) (atrium.Credential, error) {
	return r.RefreshFn(ctx)
}

// SessionHooks is a test double for atrium.SessionHooks.
// SessionInvalidatedFn is nil-safe.
type SessionHooks struct {
	SessionInvalidatedFn func()
}

// SessionInvalidated delegates to SessionInvalidatedFn when set.
func (h *SessionHooks) SessionInvalidated() {
	if h.SessionInvalidatedFn != nil {
		h.SessionInvalidatedFn()
	}
}

// Executor is a test double for atrium.Executor.
// Set ExecuteFn before calling Execute.
type Executor struct {
	ExecuteFn func(ctx context.Context, spec atrium.RequestSpec) (atrium.Response, error)
}

// Execute delegates to ExecuteFn.
func (e *Executor) Execute(ctx context.Context, spec atrium.RequestSpec) (atrium.Response, error) {
	return e.ExecuteFn(ctx, spec)
}
