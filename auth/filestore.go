package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atriumlabs/atrium"
)

// envelope is the v1 wire format for a persisted credential.
type envelope struct {
	Version      int       `json:"version"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Interface compliance check.
var _ atrium.CredentialStore = (*FileStore)(nil)

// FileStore is a CredentialStore persisted to a JSON file, so a credential
// survives between CLI invocations. Reads are served from memory; every
// update is written through to disk atomically.
type FileStore struct {
	path string

	mu   sync.RWMutex
	cred atrium.Credential
	ok   bool
}

// NewFileStore opens a credential store backed by path, loading the
// persisted credential if one exists. A missing file is an empty store,
// not an error.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal credential file: %w", err)
	}
	if env.Version != 1 {
		return nil, fmt.Errorf("unsupported credential file version: %d", env.Version)
	}

	fs.cred = atrium.Credential{
		AccessToken:  env.AccessToken,
		RefreshToken: env.RefreshToken,
		ExpiresAt:    env.ExpiresAt,
	}
	fs.ok = true
	return fs, nil
}

// Credential returns the current credential, if any.
func (fs *FileStore) Credential() (atrium.Credential, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.cred, fs.ok
}

// SetCredential replaces the stored credential and writes it through to
// disk. The write is atomic so a crash never leaves a torn file.
func (fs *FileStore) SetCredential(cred atrium.Credential) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.cred = cred
	fs.ok = true
	fs.save(cred)
}

// Clear discards the credential and removes the file.
func (fs *FileStore) Clear() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.cred = atrium.Credential{}
	fs.ok = false
	os.Remove(fs.path)
}

// save persists cred; callers hold fs.mu. Persistence failures are not
// surfaced because the in-memory store stays authoritative for the
// session; the worst case is signing in again next run.
func (fs *FileStore) save(cred atrium.Credential) {
	data, err := json.MarshalIndent(envelope{
		Version:      1,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt,
	}, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return
	}
	os.Rename(tmp, fs.path)
}
