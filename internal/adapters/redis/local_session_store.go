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

// LocalSessionStore persists per-wiki sessions. Keys are scoped by wiki ID so
// session IDs from one origin can never resolve on another.
type LocalSessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewLocalSessionStore creates a Redis-backed local session store.
func NewLocalSessionStore(client redis.UniversalClient) *LocalSessionStore {
	return &LocalSessionStore{client: client, prefix: "localsession:"}
}

var _ ports.LocalSessionStore = (*LocalSessionStore)(nil)

func (s *LocalSessionStore) key(wikiID, id string) string {
	return s.prefix + wikiID + ":" + id
}

func (s *LocalSessionStore) Save(ctx context.Context, sess sso.LocalSession) error {
	if sess.ID == "" || sess.WikiID == "" {
		return errors.New("session ID and wiki ID cannot be empty")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	return s.client.Set(ctx, s.key(sess.WikiID, sess.ID), data, ttl).Err()
}

func (s *LocalSessionStore) Get(ctx context.Context, wikiID, id string) (sso.LocalSession, error) {
	if wikiID == "" || id == "" {
		return sso.LocalSession{}, ports.ErrNotFound
	}

	data, err := s.client.Get(ctx, s.key(wikiID, id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sso.LocalSession{}, ports.ErrNotFound
		}
		return sso.LocalSession{}, fmt.Errorf("redis get: %w", err)
	}

	var sess sso.LocalSession
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return sso.LocalSession{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	if time.Now().After(sess.ExpiresAt) {
		if deleteErr := s.Delete(ctx, wikiID, id); deleteErr != nil {
			return sso.LocalSession{}, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return sso.LocalSession{}, ports.ErrNotFound
	}

	return sess, nil
}

func (s *LocalSessionStore) Delete(ctx context.Context, wikiID, id string) error {
	if wikiID == "" || id == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(wikiID, id)).Err()
}
