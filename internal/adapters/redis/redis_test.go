package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikimesh/ssohub/internal/domain/sso"
	"github.com/wikimesh/ssohub/internal/ports"
	"github.com/wikimesh/ssohub/internal/testutil"
)

func TestTokenStore_Integration_TakeOnce(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewTokenStore(client)
	ctx := context.Background()

	payload := sso.TokenPayload{sso.PayloadUserName: "Alice"}
	payload.SetInt64(sso.PayloadUserID, 7)

	id, err := store.Put(ctx, sso.PurposeCheckLoggedIn, payload, time.Minute)
	require.NoError(t, err)
	require.Len(t, id, 32)

	got, err := store.TakeOnce(ctx, id, sso.PurposeCheckLoggedIn)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got[sso.PayloadUserName])
	assert.Equal(t, int64(7), got.Int64(sso.PayloadUserID))

	_, err = store.TakeOnce(ctx, id, sso.PurposeCheckLoggedIn)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestTokenStore_Integration_ConcurrentRedemption(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewTokenStore(client)
	ctx := context.Background()

	const attempts = 16
	id, err := store.Put(ctx, sso.PurposeValidateSession, sso.TokenPayload{"k": "v"}, time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, takeErr := store.TakeOnce(ctx, id, sso.PurposeValidateSession)
			results <- takeErr
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for takeErr := range results {
		if takeErr == nil {
			won++
		}
	}
	assert.Equal(t, 1, won, "GETDEL must admit exactly one winner")
}

func TestTokenStore_Integration_PurposeIsolation(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewTokenStore(client)
	ctx := context.Background()

	id, err := store.Put(ctx, sso.PurposeLoginStart, sso.TokenPayload{"k": "v"}, time.Minute)
	require.NoError(t, err)

	_, err = store.TakeOnce(ctx, id, sso.PurposeLoginComplete)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = store.TakeOnce(ctx, id, sso.PurposeLoginStart)
	assert.NoError(t, err)
}

func TestTokenStore_Integration_Reissue(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewTokenStore(client)
	ctx := context.Background()

	id, err := store.Put(ctx, sso.PurposeValidateSession, sso.TokenPayload{"stage": "initial"}, time.Minute)
	require.NoError(t, err)

	enriched := sso.TokenPayload{"stage": "enriched", sso.PayloadAuthToken: "secret"}
	require.NoError(t, store.Reissue(ctx, id, sso.PurposeValidateSession, enriched, time.Minute))

	got, err := store.TakeOnce(ctx, id, sso.PurposeValidateSession)
	require.NoError(t, err)
	assert.Equal(t, "enriched", got["stage"])
	assert.Equal(t, "secret", got[sso.PayloadAuthToken])
}

func TestCentralSessionStore_Integration_RoundTrip(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewCentralSessionStore(client)
	ctx := context.Background()

	sess := sso.CentralSession{
		ID:        sso.NewTokenID(),
		UserName:  "Alice",
		UserID:    7,
		Remember:  true,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.UserName)
	assert.True(t, got.Remember)

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestCentralSessionStore_Integration_ExpiredRejected(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewCentralSessionStore(client)
	ctx := context.Background()

	sess := sso.CentralSession{
		ID:        sso.NewTokenID(),
		UserName:  "Alice",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	// Save refuses or the record lands already expired; Get must fail either way.
	_ = store.Save(ctx, sess)
	_, err := store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestLocalSessionStore_Integration_WikiScoping(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewLocalSessionStore(client)
	ctx := context.Background()

	sess := sso.LocalSession{
		ID:        sso.NewTokenID(),
		WikiID:    "alphawiki",
		UserName:  "Alice",
		Data:      map[string]string{sso.DataKeyAutologinToken: "tok"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, sess))

	_, err := store.Get(ctx, "betawiki", sess.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	got, err := store.Get(ctx, "alphawiki", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.GetData(sso.DataKeyAutologinToken))
}
