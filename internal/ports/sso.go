package ports

// Package ports defines interfaces (hexagonal ports) for the SSO handshake.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	"github.com/wikimesh/ssohub/internal/domain/sso"
)

// ErrNotFound is returned by stores when a key is absent, expired, or already
// consumed. Callers must not distinguish those cases; the handshake fails
// closed identically for all of them.
var ErrNotFound = errors.New("not found")

// TokenStore passes small single-use payloads between HTTP round-trips that
// may land on different origins.
type TokenStore interface {
	// Put stores payload under a fresh high-entropy ID scoped to purpose and
	// returns the ID.
	Put(ctx context.Context, purpose string, payload sso.TokenPayload, ttl time.Duration) (string, error)

	// TakeOnce atomically reads and deletes. It never returns the same
	// payload twice for one ID; absent or already-consumed tokens yield
	// ErrNotFound.
	TakeOnce(ctx context.Context, id, purpose string) (sso.TokenPayload, error)

	// Reissue writes payload back under an existing ID, restarting the TTL.
	// Used by validateSession to enrich the token createSession minted
	// without a new ID ever appearing in a redirect URL.
	Reissue(ctx context.Context, id, purpose string, payload sso.TokenPayload, ttl time.Duration) error
}

// CentralSessionStore persists the authoritative cross-origin session records.
type CentralSessionStore interface {
	Save(ctx context.Context, sess sso.CentralSession) error
	Get(ctx context.Context, id string) (sso.CentralSession, error)
	Delete(ctx context.Context, id string) error
}

// LocalSessionStore persists per-wiki sessions, keyed by (wikiID, sessionID).
type LocalSessionStore interface {
	Save(ctx context.Context, sess sso.LocalSession) error
	Get(ctx context.Context, wikiID, id string) (sso.LocalSession, error)
	Delete(ctx context.Context, wikiID, id string) error
}

// UserDirectory resolves identities and validates presented credentials. The
// directory is an external collaborator; this port is the only surface the
// handshake relies on.
type UserDirectory interface {
	// Lookup resolves a user by name from the fastest available read.
	// Absent users yield ErrNotFound.
	Lookup(ctx context.Context, name string) (sso.User, error)

	// LookupPrimary resolves from the authoritative primary, bypassing
	// replicas. Used for the single bounded retry when replication lag hides
	// a freshly created account.
	LookupPrimary(ctx context.Context, name string) (sso.User, error)

	// IsAttached reports whether the global account is attached to the wiki.
	IsAttached(ctx context.Context, name, wikiID string) (bool, error)

	// GetAuthToken returns the account's current auth token.
	GetAuthToken(ctx context.Context, name string) (string, error)

	// AuthenticateWithToken verifies a presented auth token against the
	// account. A false return is a protocol failure, not an error.
	AuthenticateWithToken(ctx context.Context, name, token string) (bool, error)
}

// MetricsSink receives handshake telemetry. The nil-safe no-op implementation
// lives in the statsd package.
type MetricsSink interface {
	Count(name string, value int64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}
