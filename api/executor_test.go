package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumlabs/atrium"
	"github.com/atriumlabs/atrium/api"
	"github.com/atriumlabs/atrium/auth"
	"github.com/atriumlabs/atrium/mock"
)

func storeWith(token string) *auth.MemStore {
	st := &auth.MemStore{}
	st.SetCredential(atrium.Credential{
		AccessToken:  token,
		RefreshToken: "r-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	return st
}

func failRefresh() *mock.Refresher {
	return &mock.Refresher{
		RefreshFn: func(context.Context) (atrium.Credential, error) {
			return atrium.Credential{}, fmt.Errorf("unexpected refresh")
		},
	}
}

// tokenSourceFunc adapts a function to auth.TokenSource.
type tokenSourceFunc func(ctx context.Context, refreshToken string) (atrium.Credential, error)

func (f tokenSourceFunc) Refresh(ctx context.Context, refreshToken string) (atrium.Credential, error) {
	return f(ctx, refreshToken)
}

func TestExecutor_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/courses/42/notes", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["text"])

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"n-1"}`)
	}))
	t.Cleanup(srv.Close)

	exec := api.New(srv.URL, storeWith("tok-1"), failRefresh())
	resp, err := exec.Execute(context.Background(), atrium.RequestSpec{
		Method: http.MethodPost,
		Path:   "/courses/42/notes",
		Body:   map[string]string{"text": "hello"},
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.JSONEq(t, `{"id":"n-1"}`, string(resp.Body))
}

func TestExecutor_RefreshAndReplay(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	t.Cleanup(srv.Close)

	store := storeWith("stale")
	var refreshes atomic.Int32
	refresher := &mock.Refresher{
		RefreshFn: func(context.Context) (atrium.Credential, error) {
			refreshes.Add(1)
			cred := atrium.Credential{AccessToken: "fresh", RefreshToken: "r-2", ExpiresAt: time.Now().Add(time.Hour)}
			store.SetCredential(cred)
			return cred, nil
		},
	}

	exec := api.New(srv.URL, store, refresher)
	resp, err := exec.Execute(context.Background(), atrium.RequestSpec{Method: http.MethodGet, Path: "/me"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestExecutor_SecondUnauthorizedIsFinal(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	store := storeWith("stale")
	refresher := &mock.Refresher{
		RefreshFn: func(context.Context) (atrium.Credential, error) {
			cred := atrium.Credential{AccessToken: "fresh", RefreshToken: "r-2", ExpiresAt: time.Now().Add(time.Hour)}
			store.SetCredential(cred)
			return cred, nil
		},
	}

	exec := api.New(srv.URL, store, refresher)
	_, err := exec.Execute(context.Background(), atrium.RequestSpec{Method: http.MethodGet, Path: "/me"})

	var ae *atrium.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, int32(2), attempts.Load(), "the replay's 401 is final, no third attempt")
}

func TestExecutor_RefreshFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	store := storeWith("stale")
	var invalidated atomic.Int32
	refresher := auth.NewRefresher(store,
		tokenSourceFunc(func(context.Context, string) (atrium.Credential, error) {
			return atrium.Credential{}, &atrium.RemoteError{Status: http.StatusUnauthorized, Body: "revoked"}
		}),
		auth.WithSessionHooks(&mock.SessionHooks{
			SessionInvalidatedFn: func() { invalidated.Add(1) },
		}),
	)

	exec := api.New(srv.URL, store, refresher)
	_, err := exec.Execute(context.Background(), atrium.RequestSpec{Method: http.MethodGet, Path: "/me"})

	var ae *atrium.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, int32(1), invalidated.Load())
}

func TestExecutor_EntitlementRequired(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"reason":"trial ended"}`)
	}))
	t.Cleanup(srv.Close)

	exec := api.New(srv.URL, storeWith("tok-1"), failRefresh())
	_, err := exec.Execute(context.Background(), atrium.RequestSpec{Method: http.MethodGet, Path: "/library"})

	var ee *atrium.EntitlementError
	require.ErrorAs(t, err, &ee)
	assert.JSONEq(t, `{"reason":"trial ended"}`, ee.Body)
}

func TestExecutor_RemoteError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	exec := api.New(srv.URL, storeWith("tok-1"), failRefresh())
	_, err := exec.Execute(context.Background(), atrium.RequestSpec{Method: http.MethodGet, Path: "/nope"})

	var re *atrium.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.Status)
}

func TestExecutor_NetworkError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	exec := api.New(srv.URL, storeWith("tok-1"), failRefresh())
	_, err := exec.Execute(context.Background(), atrium.RequestSpec{Method: http.MethodGet, Path: "/me"})

	var ne *atrium.NetworkError
	require.ErrorAs(t, err, &ne)
}

func TestExecutor_NotSignedIn(t *testing.T) {
	t.Parallel()
	store := &mock.CredentialStore{
		CredentialFn: func() (atrium.Credential, bool) { return atrium.Credential{}, false },
	}
	exec := api.New("http://localhost:0", store, failRefresh())
	_, err := exec.Execute(context.Background(), atrium.RequestSpec{Method: http.MethodGet, Path: "/me"})

	require.ErrorIs(t, err, atrium.ErrNoCredential)
}

func TestExecutor_QueryParameters(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "calculus", r.URL.Query().Get("subject"))
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	exec := api.New(srv.URL, storeWith("tok-1"), failRefresh())
	spec := atrium.RequestSpec{Method: http.MethodGet, Path: "/courses"}
	spec.Query = map[string][]string{"subject": {"calculus"}}
	_, err := exec.Execute(context.Background(), spec)

	require.NoError(t, err)
}

func TestExecutor_SingleFlightRefresh(t *testing.T) {
	t.Parallel()

	const callers = 8

	// The server answers 401 for the stale token; all401 closes once every
	// caller has seen its 401, which keeps the refresh blocked until the
	// whole group is waiting on it.
	var stale401s atomic.Int32
	all401 := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			if stale401s.Add(1) == callers {
				close(all401)
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	t.Cleanup(srv.Close)

	store := storeWith("stale")
	var refreshes atomic.Int32
	refresher := auth.NewRefresher(store,
		tokenSourceFunc(func(ctx context.Context, refreshToken string) (atrium.Credential, error) {
			refreshes.Add(1)
			assert.Equal(t, "r-1", refreshToken)
			<-all401
			// Grace period for the last caller to get from its 401
			// response to joining the flight.
			time.Sleep(50 * time.Millisecond)
			return atrium.Credential{AccessToken: "fresh", RefreshToken: "r-2", ExpiresAt: time.Now().Add(time.Hour)}, nil
		}),
	)

	exec := api.New(srv.URL, store, refresher)

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = exec.Execute(context.Background(), atrium.RequestSpec{Method: http.MethodGet, Path: "/me"})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoErrorf(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), refreshes.Load(), "refresh must be single-flight")
}
