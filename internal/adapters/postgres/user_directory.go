// Package postgres implements the user directory port over PostgreSQL. Reads
// go to the replica pool; LookupPrimary bypasses it for the bounded
// replication-lag retry during central-login start.
package postgres

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"

	apperrors "github.com/wikimesh/ssohub/internal/errors"

	"github.com/wikimesh/ssohub/internal/domain/sso"
	"github.com/wikimesh/ssohub/internal/ports"
)

// UserDirectory resolves global accounts and their wiki attachments.
type UserDirectory struct {
	replica *sql.DB
	primary *sql.DB
}

// NewUserDirectory creates a directory over a replica and a primary pool.
// Passing the same handle twice is valid when no replica is deployed.
func NewUserDirectory(replica, primary *sql.DB) *UserDirectory {
	return &UserDirectory{replica: replica, primary: primary}
}

var _ ports.UserDirectory = (*UserDirectory)(nil)

const lookupQuery = `
	SELECT id, name, locked, hidden
	FROM global_users
	WHERE name = $1`

func (d *UserDirectory) lookup(ctx context.Context, db *sql.DB, name string) (sso.User, error) {
	var u sso.User
	err := db.QueryRowContext(ctx, lookupQuery, name).Scan(&u.ID, &u.Name, &u.Locked, &u.Hidden)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sso.User{}, ports.ErrNotFound
		}
		return sso.User{}, apperrors.MapDBError(err)
	}
	return u, nil
}

// Lookup resolves a user from the replica.
func (d *UserDirectory) Lookup(ctx context.Context, name string) (sso.User, error) {
	return d.lookup(ctx, d.replica, name)
}

// LookupPrimary resolves a user from the authoritative primary.
func (d *UserDirectory) LookupPrimary(ctx context.Context, name string) (sso.User, error) {
	return d.lookup(ctx, d.primary, name)
}

// IsAttached reports whether the global account is attached to the wiki.
func (d *UserDirectory) IsAttached(ctx context.Context, name, wikiID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM wiki_attachments a
			JOIN global_users u ON u.id = a.user_id
			WHERE u.name = $1 AND a.wiki_id = $2
		)`

	var attached bool
	if err := d.replica.QueryRowContext(ctx, q, name, wikiID).Scan(&attached); err != nil {
		return false, apperrors.MapDBError(err)
	}
	return attached, nil
}

// GetAuthToken returns the account's current auth token.
func (d *UserDirectory) GetAuthToken(ctx context.Context, name string) (string, error) {
	const q = `SELECT auth_token FROM global_users WHERE name = $1`

	var token string
	if err := d.replica.QueryRowContext(ctx, q, name).Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ports.ErrNotFound
		}
		return "", apperrors.MapDBError(err)
	}
	return token, nil
}

// AuthenticateWithToken verifies a presented auth token. Locked and hidden
// accounts never authenticate regardless of the token.
func (d *UserDirectory) AuthenticateWithToken(ctx context.Context, name, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	user, err := d.Lookup(ctx, name)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !user.CanAuthenticate() {
		return false, nil
	}

	stored, err := d.GetAuthToken(ctx, name)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}
