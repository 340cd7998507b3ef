package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumlabs/atrium"
)

// Client calls the token endpoints. Neither endpoint takes an access
// token, so Client sits below the authenticated request paths and cannot
// recurse into them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a token endpoint client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SignIn exchanges an email/password pair for a credential.
func (c *Client) SignIn(ctx context.Context, email, password string) (atrium.Credential, error) {
	return c.token(ctx, signInPath, signInRequest{Email: email, Password: password})
}

// Refresh exchanges the current refresh token for a fresh credential.
// Callers should go through [Refresher] rather than calling this directly;
// refresh must be single-flight process-wide.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (atrium.Credential, error) {
	return c.token(ctx, refreshPath, refreshRequest{RefreshToken: refreshToken})
}

func (c *Client) token(ctx context.Context, path string, body any) (atrium.Credential, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return atrium.Credential{}, fmt.Errorf("auth: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return atrium.Credential{}, fmt.Errorf("auth: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return atrium.Credential{}, &atrium.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return atrium.Credential{}, &atrium.NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return atrium.Credential{}, &atrium.RemoteError{Status: resp.StatusCode, Body: string(raw)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return atrium.Credential{}, fmt.Errorf("auth: parse token response: %w", err)
	}

	return atrium.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}, nil
}
