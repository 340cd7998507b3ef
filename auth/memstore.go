package auth

import (
	"sync"

	"github.com/atriumlabs/atrium"
)

// Interface compliance check.
var _ atrium.CredentialStore = (*MemStore)(nil)

// MemStore is an in-memory [atrium.CredentialStore]. Safe for concurrent
// use. The zero value is empty and ready to use.
type MemStore struct {
	mu   sync.RWMutex
	cred atrium.Credential
	set  bool
}

// Credential returns the current credential, if one is set.
func (s *MemStore) Credential() (atrium.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.set
}

// SetCredential replaces the current credential.
func (s *MemStore) SetCredential(cred atrium.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.set = true
}

// Clear removes the current credential.
func (s *MemStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = atrium.Credential{}
	s.set = false
}
