package redis

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

// CentralSessionStore persists the authoritative cross-origin session records.
// TTL semantics follow the record's ExpiresAt.
type CentralSessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewCentralSessionStore creates a Redis-backed central session store.
func NewCentralSessionStore(client redis.UniversalClient) *CentralSessionStore {
	return &CentralSessionStore{client: client, prefix: "centralsession:"}
}

var _ ports.CentralSessionStore = (*CentralSessionStore)(nil)

func (s *CentralSessionStore) Save(ctx context.Context, sess sso.CentralSession) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	return s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err()
}

func (s *CentralSessionStore) Get(ctx context.Context, id string) (sso.CentralSession, error) {
	if id == "" {
		return sso.CentralSession{}, ports.ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sso.CentralSession{}, ports.ErrNotFound
		}
		return sso.CentralSession{}, fmt.Errorf("redis get: %w", err)
	}

	var sess sso.CentralSession
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return sso.CentralSession{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	// Double-check expiration (Redis TTL should handle this, but be defensive)
	if time.Now().After(sess.ExpiresAt) {
		if deleteErr := s.Delete(ctx, id); deleteErr != nil {
			return sso.CentralSession{}, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return sso.CentralSession{}, ports.ErrNotFound
	}

	return sess, nil
}

func (s *CentralSessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil // Nothing to delete
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}
