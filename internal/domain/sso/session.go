package sso

// Package sso contains domain-level types for the cross-domain single-sign-on
// handshake. It is pure and free of transport/storage concerns.

import "time"

// CentralSession is the authoritative cross-origin session record, keyed by an
// opaque ID carried in the central-domain session cookie and referenced by value
// from local-wiki sessions.
//
// A record is either a stub (PendingName set, UserName unset) created by
// login-start before the browser has proven it owns the login attempt, or full
// (UserName set) once validated. A stub must never be treated as authenticating
// evidence.
type CentralSession struct {
	ID          string    `json:"id"`
	PendingName string    `json:"pending_name,omitempty"`
	UserName    string    `json:"user_name,omitempty"`
	UserID      int64     `json:"user_id,omitempty"`
	Remember    bool      `json:"remember"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsStub reports whether the session names a pending identity that has not been
// validated yet.
func (s CentralSession) IsStub() bool {
	return s.PendingName != "" && s.UserName == ""
}

// IsAuthenticated reports whether the session carries a validated identity.
// Stubs are never authenticated.
func (s CentralSession) IsAuthenticated() bool {
	return s.UserName != ""
}

// Promote turns a stub into a full session for the given user. Promoting an
// already-full session for the same name is a no-op.
func (s *CentralSession) Promote(userName string, userID int64) {
	s.UserName = userName
	s.UserID = userID
	s.PendingName = ""
}

// LocalSession is the per-wiki session record, keyed by (WikiID, ID) from the
// wiki's own session cookie. An anonymous local session acts as the stub that
// carries handshake state (token IDs, login attempts) between redirect hops.
type LocalSession struct {
	ID        string            `json:"id"`
	WikiID    string            `json:"wiki_id"`
	UserName  string            `json:"user_name,omitempty"`
	UserID    int64             `json:"user_id,omitempty"`
	Remember  bool              `json:"remember"`
	Data      map[string]string `json:"data,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// IsAnonymous reports whether no user is bound to the session.
func (s LocalSession) IsAnonymous() bool { return s.UserName == "" }

// GetData returns the value stashed under key, or "" if absent.
func (s LocalSession) GetData(key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[key]
}

// Session data keys used by the handshake. The createSession token ID travels
// only inside the local session, never in a redirect URL.
const (
	DataKeyAutologinToken = "centralautologin:token"
	DataKeyLoginAttempt   = "centrallogin:attempt"
	DataKeyEdgeLoginDue   = "centralauth:edge-login-due"
)

// LoginAttempt is the interactive login state stashed in the local session by
// BeginInteractiveLogin. Only the browser that performed the original login
// holds the matching Secret, which is what the completion step compares against
// the token's secret to defeat session fixation.
type LoginAttempt struct {
	Secret    string `json:"secret"`
	ReturnURL string `json:"return_url"`
	Remember  bool   `json:"remember"`
}
