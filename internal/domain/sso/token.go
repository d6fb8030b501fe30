package sso

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
)

// Token purposes. A token is only redeemable for the purpose it was minted
// under; purposes partition the store keyspace so a token leaked from one step
// cannot be replayed into another.
const (
	// PurposeCheckLoggedIn binds the central user ID issued by checkLoggedIn
	// for consumption by createSession on the local wiki.
	PurposeCheckLoggedIn = "centralautologin-token"
	// PurposeValidateSession is the second autologin token, created by
	// createSession and enriched in place by validateSession. Its ID travels
	// only inside the local session.
	PurposeValidateSession = "centralautologin-session"
	// PurposeLoginStart is minted by the interactive login form for
	// consumption by login-start on the central login wiki.
	PurposeLoginStart = "centrallogin-token"
	// PurposeLoginComplete carries {sessionId, secret} from login-start back
	// to the wiki where the login form was submitted.
	PurposeLoginComplete = "centrallogin-complete"
	// PurposeReturnURL parks a long return URL server-side so redirect chains
	// stay short; referenced by the returnUrlToken query parameter.
	PurposeReturnURL = "centralautologin-returnurl"
)

// TokenPayload is the opaque bag of small values a token binds. Values are
// strings on the wire; typed accessors cover the few non-string fields.
type TokenPayload map[string]string

// Payload field names shared between issuing and consuming steps.
const (
	PayloadUserID    = "centralUserId"
	PayloadUserName  = "userName"
	PayloadWikiID    = "wikiId"
	PayloadAuthToken = "authToken"
	PayloadRemember  = "remember"
	PayloadSessionID = "sessionId"
	PayloadSecret    = "secret"
	PayloadReturnURL = "returnUrl"
)

// Int64 returns the field parsed as int64, or 0 if absent or malformed.
func (p TokenPayload) Int64(key string) int64 {
	v, err := strconv.ParseInt(p[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// SetInt64 stores an int64 field.
func (p TokenPayload) SetInt64(key string, v int64) {
	p[key] = strconv.FormatInt(v, 10)
}

// Bool returns the field parsed as bool, false if absent or malformed.
func (p TokenPayload) Bool(key string) bool {
	v, err := strconv.ParseBool(p[key])
	if err != nil {
		return false
	}
	return v
}

// SetBool stores a bool field.
func (p TokenPayload) SetBool(key string, v bool) {
	p[key] = strconv.FormatBool(v)
}

const tokenIDBytes = 16 // 128 bits of entropy

// NewTokenID returns a fresh high-entropy token identifier.
func NewTokenID() string {
	return randomHex(tokenIDBytes)
}

// NewLoginSecret returns the per-attempt secret minted by the login form.
func NewLoginSecret() string {
	return randomHex(tokenIDBytes)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	// rand.Read never fails on supported platforms; it panics internally
	// otherwise, which is the right outcome for a security token source.
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
