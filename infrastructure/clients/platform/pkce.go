package platform

import (
	"context"
	"sync"
	"time"
)

// VerifierTTL bounds how long a PKCE verifier waits for its callback.
const VerifierTTL = 10 * time.Minute

// VerifierStore keeps PKCE code verifiers between the authorization redirect
// and the callback. Take removes the entry; a second Take reports false.
type VerifierStore interface {
	Save(ctx context.Context, state, verifier string) error
	Take(ctx context.Context, state string) (string, bool, error)
}

type verifierEntry struct {
	verifier string
	expires  time.Time
}

// MemoryVerifierStore is a process local VerifierStore. Entries older than
// VerifierTTL are dropped on access.
type MemoryVerifierStore struct {
	mu      sync.Mutex
	entries map[string]verifierEntry
	now     func() time.Time
}

func NewMemoryVerifierStore() *MemoryVerifierStore {
	return &MemoryVerifierStore{entries: make(map[string]verifierEntry), now: time.Now}
}

// sharedVerifiers backs adapters built without an explicit store, so the
// redirect and the callback see the same verifier inside one process.
var sharedVerifiers = NewMemoryVerifierStore()

func (s *MemoryVerifierStore) Save(_ context.Context, state, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = verifierEntry{verifier: verifier, expires: now.Add(VerifierTTL)}
	return nil
}

func (s *MemoryVerifierStore) Take(_ context.Context, state string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[state]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, state)
	if s.now().After(e.expires) {
		return "", false, nil
	}
	return e.verifier, true, nil
}
