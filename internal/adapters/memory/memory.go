package memory

// Package memory provides in-memory implementations of the SSO stores for
// development mode and unit tests. Expiry is checked on read; TakeOnce holds
// the store mutex across the read-and-delete, so consumption is at-most-once
// even under concurrent redemption attempts.

import (
	"context"
	"sync"
	"time"

	"github.com/wikimesh/ssohub/internal/domain/sso"
	"github.com/wikimesh/ssohub/internal/ports"
)

type tokenEntry struct {
	payload   sso.TokenPayload
	expiresAt time.Time
}

// TokenStore is the in-memory one-shot token store.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]tokenEntry
}

// NewTokenStore creates an empty in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]tokenEntry)}
}

var _ ports.TokenStore = (*TokenStore)(nil)

func tokenKey(purpose, id string) string { return purpose + ":" + id }

func (s *TokenStore) Put(_ context.Context, purpose string, payload sso.TokenPayload, ttl time.Duration) (string, error) {
	id := sso.NewTokenID()
	if ttl <= 0 {
		return id, nil
	}

	cloned := make(sso.TokenPayload, len(payload))
	for k, v := range payload {
		cloned[k] = v
	}

	s.mu.Lock()
	s.tokens[tokenKey(purpose, id)] = tokenEntry{payload: cloned, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return id, nil
}

func (s *TokenStore) TakeOnce(_ context.Context, id, purpose string) (sso.TokenPayload, error) {
	key := tokenKey(purpose, id)

	s.mu.Lock()
	entry, ok := s.tokens[key]
	if ok {
		delete(s.tokens, key)
	}
	s.mu.Unlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ports.ErrNotFound
	}
	return entry.payload, nil
}

func (s *TokenStore) Reissue(_ context.Context, id, purpose string, payload sso.TokenPayload, ttl time.Duration) error {
	cloned := make(sso.TokenPayload, len(payload))
	for k, v := range payload {
		cloned[k] = v
	}

	s.mu.Lock()
	s.tokens[tokenKey(purpose, id)] = tokenEntry{payload: cloned, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// CentralSessionStore is the in-memory central session store.
type CentralSessionStore struct {
	mu       sync.Mutex
	sessions map[string]sso.CentralSession
}

// NewCentralSessionStore creates an empty in-memory central session store.
func NewCentralSessionStore() *CentralSessionStore {
	return &CentralSessionStore{sessions: make(map[string]sso.CentralSession)}
}

var _ ports.CentralSessionStore = (*CentralSessionStore)(nil)

func (s *CentralSessionStore) Save(_ context.Context, sess sso.CentralSession) error {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return nil
}

func (s *CentralSessionStore) Get(_ context.Context, id string) (sso.CentralSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok || time.Now().After(sess.ExpiresAt) {
		return sso.CentralSession{}, ports.ErrNotFound
	}
	return sess, nil
}

func (s *CentralSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// LocalSessionStore is the in-memory local session store.
type LocalSessionStore struct {
	mu       sync.Mutex
	sessions map[string]sso.LocalSession
}

// NewLocalSessionStore creates an empty in-memory local session store.
func NewLocalSessionStore() *LocalSessionStore {
	return &LocalSessionStore{sessions: make(map[string]sso.LocalSession)}
}

var _ ports.LocalSessionStore = (*LocalSessionStore)(nil)

func localKey(wikiID, id string) string { return wikiID + ":" + id }

func (s *LocalSessionStore) Save(_ context.Context, sess sso.LocalSession) error {
	s.mu.Lock()
	s.sessions[localKey(sess.WikiID, sess.ID)] = sess
	s.mu.Unlock()
	return nil
}

func (s *LocalSessionStore) Get(_ context.Context, wikiID, id string) (sso.LocalSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[localKey(wikiID, id)]
	s.mu.Unlock()

	if !ok || time.Now().After(sess.ExpiresAt) {
		return sso.LocalSession{}, ports.ErrNotFound
	}
	return sess, nil
}

func (s *LocalSessionStore) Delete(_ context.Context, wikiID, id string) error {
	s.mu.Lock()
	delete(s.sessions, localKey(wikiID, id))
	s.mu.Unlock()
	return nil
}
