package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sarathi/internal/roadtest"
	"sarathi/pkg/platform/sentinel"
)

const sessionKeyPrefix = "otp:"

// sessionRetention keeps the record around past its logical expiry so a late
// verification attempt reads an expired session instead of nothing.
const sessionRetention = time.Hour

// RedisSessionStore holds one-time code sessions in Redis. The logical
// expiry travels in the value; the physical TTL only bounds retention.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

type sessionRecord struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *RedisSessionStore) Put(ctx context.Context, identityToken string, session roadtest.Session) error {
	payload, err := json.Marshal(sessionRecord{Code: session.Code, ExpiresAt: session.ExpiresAt})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt) + sessionRetention
	if err := s.client.Set(ctx, sessionKeyPrefix+identityToken, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, identityToken string) (*roadtest.Session, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+identityToken).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &roadtest.Session{Code: record.Code, ExpiresAt: record.ExpiresAt}, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, identityToken string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+identityToken).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
