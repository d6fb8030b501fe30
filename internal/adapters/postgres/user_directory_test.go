package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikimesh/ssohub/internal/ports"
	"github.com/wikimesh/ssohub/internal/testutil"
)

func seedUser(t *testing.T, db *sql.DB, name, token string, locked, hidden bool) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO global_users (name, auth_token, locked, hidden)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		name, token, locked, hidden,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func attach(t *testing.T, db *sql.DB, userID int64, wikiID string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO wiki_attachments (user_id, wiki_id) VALUES ($1, $2)`,
		userID, wikiID,
	)
	require.NoError(t, err)
}

func TestUserDirectory_Lookup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dir := NewUserDirectory(db, db)
	ctx := context.Background()

	id := seedUser(t, db, "Alice", "tok-a", false, false)

	user, err := dir.Lookup(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "Alice", user.Name)
	assert.True(t, user.CanAuthenticate())

	// Primary reads go through the same schema.
	user, err = dir.LookupPrimary(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	_, err = dir.Lookup(ctx, "Nobody")
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}

func TestUserDirectory_IsAttached(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dir := NewUserDirectory(db, db)
	ctx := context.Background()

	id := seedUser(t, db, "Bob", "tok-b", false, false)
	attach(t, db, id, "alphawiki")

	attached, err := dir.IsAttached(ctx, "Bob", "alphawiki")
	require.NoError(t, err)
	assert.True(t, attached)

	attached, err = dir.IsAttached(ctx, "Bob", "betawiki")
	require.NoError(t, err)
	assert.False(t, attached)

	attached, err = dir.IsAttached(ctx, "Nobody", "alphawiki")
	require.NoError(t, err)
	assert.False(t, attached)
}

func TestUserDirectory_AuthenticateWithToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dir := NewUserDirectory(db, db)
	ctx := context.Background()

	seedUser(t, db, "Alice", "tok-a", false, false)
	seedUser(t, db, "Locked", "tok-l", true, false)
	seedUser(t, db, "Hidden", "tok-h", false, true)

	ok, err := dir.AuthenticateWithToken(ctx, "Alice", "tok-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dir.AuthenticateWithToken(ctx, "Alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = dir.AuthenticateWithToken(ctx, "Alice", "")
	require.NoError(t, err)
	assert.False(t, ok, "an empty token never matches, even an empty stored one")

	// Locked and hidden accounts fail even with the right token.
	ok, err = dir.AuthenticateWithToken(ctx, "Locked", "tok-l")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = dir.AuthenticateWithToken(ctx, "Hidden", "tok-h")
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown users are indistinguishable from a wrong token.
	ok, err = dir.AuthenticateWithToken(ctx, "Nobody", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserDirectory_GetAuthToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dir := NewUserDirectory(db, db)
	ctx := context.Background()

	seedUser(t, db, "Alice", "tok-a", false, false)

	token, err := dir.GetAuthToken(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "tok-a", token)

	_, err = dir.GetAuthToken(ctx, "Nobody")
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}
