package atrium

import (
	"context"
	"time"
)

// Credential is the current access/refresh token pair. Mutated only by a
// successful refresh or sign-in; read by both request paths.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// CredentialStore holds the current credential. It is owned by the
// authentication subsystem; implementations must be safe for concurrent use.
type CredentialStore interface {
	// Credential returns the current credential. The second return value
	// is false when the user is not signed in.
	Credential() (Credential, bool)

	// SetCredential replaces the current credential.
	SetCredential(Credential)

	// Clear removes the current credential.
	Clear()
}

// Refresher exchanges the current refresh token for a fresh credential.
//
// Implementations must be single-flight: when N callers discover an expired
// credential concurrently, exactly one refresh call is issued and all N
// share its single outcome. Most refresh-token schemes invalidate the old
// token on use, so parallel refreshes from the same stale token would let
// only one succeed and spuriously sign out the user on the others.
type Refresher interface {
	Refresh(ctx context.Context) (Credential, error)
}

// SessionHooks receives session lifecycle signals from the request paths.
type SessionHooks interface {
	// SessionInvalidated is called at most once per failed refresh. The
	// authentication collaborator uses it to force sign-out.
	SessionInvalidated()
}
