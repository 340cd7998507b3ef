// Package auth implements credential acquisition for the platform: the
// sign-in and refresh endpoints, the process-wide single-flight
// [Refresher], and two [atrium.CredentialStore] implementations, one
// in-memory and one persisted to disk for the CLI.
package auth

const (
	signInPath  = "/auth/sign-in"
	refreshPath = "/auth/refresh"
)

// tokenResponse is the JSON payload returned by both token endpoints.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // lifetime in seconds
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
