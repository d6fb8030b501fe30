package redis

// Package redis provides Redis-based adapters for the SSO handshake stores.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wikimesh/ssohub/internal/domain/sso"
	"github.com/wikimesh/ssohub/internal/ports"
)

// TokenStore is the Redis-backed one-shot token store. Consumption uses GETDEL
// so read-and-delete is a single atomic operation; two racing TakeOnce calls
// for the same ID can never both receive the payload.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
}

// NewTokenStore creates a Redis-backed token store.
func NewTokenStore(client redis.UniversalClient) *TokenStore {
	return &TokenStore{client: client, prefix: "ssotoken:"}
}

var _ ports.TokenStore = (*TokenStore)(nil)

func (s *TokenStore) key(purpose, id string) string {
	return s.prefix + purpose + ":" + id
}

// Put stores payload under a fresh token ID scoped to purpose.
func (s *TokenStore) Put(ctx context.Context, purpose string, payload sso.TokenPayload, ttl time.Duration) (string, error) {
	if purpose == "" {
		return "", errors.New("purpose cannot be empty")
	}

	id := sso.NewTokenID()
	if ttl <= 0 {
		// Born expired. Returning the ID without a store write keeps the
		// consuming step on the ordinary lost-session path.
		return id, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal token payload: %w", err)
	}

	if err := s.client.Set(ctx, s.key(purpose, id), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set: %w", err)
	}
	return id, nil
}

// TakeOnce atomically reads and deletes the token.
func (s *TokenStore) TakeOnce(ctx context.Context, id, purpose string) (sso.TokenPayload, error) {
	if id == "" || purpose == "" {
		return nil, ports.ErrNotFound
	}

	data, err := s.client.GetDel(ctx, s.key(purpose, id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("redis getdel: %w", err)
	}

	var payload sso.TokenPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal token payload: %w", err)
	}
	return payload, nil
}

// Reissue writes payload back under an existing ID, restarting the TTL.
func (s *TokenStore) Reissue(ctx context.Context, id, purpose string, payload sso.TokenPayload, ttl time.Duration) error {
	if id == "" || purpose == "" {
		return errors.New("id and purpose cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal token payload: %w", err)
	}
	return s.client.Set(ctx, s.key(purpose, id), data, ttl).Err()
}
