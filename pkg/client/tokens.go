package client

import "sync"

// TokenStore maps component ids to their security tokens.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]string)}
}

// Get returns the token of id.
func (s *TokenStore) Get(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[id]
	return tok, ok
}

// Set stores or overwrites the token of id.
func (s *TokenStore) Set(id, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[id] = token
}

// Delete evicts the token of id.
func (s *TokenStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
}

// Snapshot returns a copy of the store.
func (s *TokenStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.tokens))
	for k, v := range s.tokens {
		out[k] = v
	}
	return out
}

// Len returns the number of stored tokens.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
