package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wikimesh/ssohub/internal/domain/sso"
	"github.com/wikimesh/ssohub/internal/ports"
)

// SessionMutation batches local-session writes for one request. All mutations
// apply to an in-memory draft; Commit persists the draft exactly once, so a
// request either lands all of its session changes or none of them. A failed
// step that never commits leaves the stored session untouched.
type SessionMutation struct {
	store     ports.LocalSessionStore
	draft     sso.LocalSession
	committed bool
}

// BeginMutation starts a mutation over sess. The draft deep-copies the data
// bag so abandoned mutations cannot alias the caller's session.
func BeginMutation(store ports.LocalSessionStore, sess sso.LocalSession) *SessionMutation {
	draft := sess
	draft.Data = make(map[string]string, len(sess.Data))
	for k, v := range sess.Data {
		draft.Data[k] = v
	}
	return &SessionMutation{store: store, draft: draft}
}

// SetUser promotes the draft to a full session for the given user.
func (m *SessionMutation) SetUser(name string, id int64) {
	m.draft.UserName = name
	m.draft.UserID = id
}

// SetRememberUser records the persisted-login preference.
func (m *SessionMutation) SetRememberUser(remember bool) {
	m.draft.Remember = remember
}

// SetExpiry extends the draft's lifetime.
func (m *SessionMutation) SetExpiry(t time.Time) {
	m.draft.ExpiresAt = t
}

// SetData stashes a request-scoped value in the draft's data bag.
func (m *SessionMutation) SetData(key, value string) {
	m.draft.Data[key] = value
}

// DeleteData removes a value from the draft's data bag.
func (m *SessionMutation) DeleteData(key string) {
	delete(m.draft.Data, key)
}

// Session returns the current draft.
func (m *SessionMutation) Session() sso.LocalSession {
	return m.draft
}

// Commit persists the draft. It must be called at most once.
func (m *SessionMutation) Commit(ctx context.Context) error {
	if m.committed {
		return errors.New("session mutation already committed")
	}
	m.committed = true
	return m.store.Save(ctx, m.draft)
}

// newLocalSession creates a fresh anonymous session for a wiki.
func newLocalSession(wikiID string, ttl time.Duration) sso.LocalSession {
	return sso.LocalSession{
		ID:        uuid.NewString(),
		WikiID:    wikiID,
		Data:      make(map[string]string),
		ExpiresAt: time.Now().Add(ttl),
	}
}

// newCentralSession creates a stub central session for a pending identity.
func newCentralSession(pendingName string, userID int64, ttl time.Duration) sso.CentralSession {
	return sso.CentralSession{
		ID:          uuid.NewString(),
		PendingName: pendingName,
		UserID:      userID,
		ExpiresAt:   time.Now().Add(ttl),
	}
}

// encodeLoginAttempt serializes a login attempt for the session data bag.
func encodeLoginAttempt(a sso.LoginAttempt) string {
	data, err := json.Marshal(a)
	if err != nil {
		// LoginAttempt is a flat struct of strings and a bool; this cannot
		// fail at runtime.
		panic(err)
	}
	return string(data)
}

// decodeLoginAttempt parses a stashed login attempt. Absent or malformed
// attempts report false.
func decodeLoginAttempt(s string) (sso.LoginAttempt, bool) {
	if s == "" {
		return sso.LoginAttempt{}, false
	}
	var a sso.LoginAttempt
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return sso.LoginAttempt{}, false
	}
	return a, true
}
