package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clocklayer/internal/signup/models"
	id "clocklayer/pkg/domain"
	"clocklayer/pkg/platform/sentinel"
)

const (
	// Redis key prefix for wizard sessions
	sessionKeyPrefix = "signup:session:"
)

// RedisStore keeps wizard sessions in Redis with the session's own expiry as
// the key TTL, so a reload on any instance resumes the wizard.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func New(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Save(ctx context.Context, session *models.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.client.Del(ctx, sessionKeyPrefix+session.ID.String()).Err()
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode signup session: %w", err)
	}
	return s.client.Set(ctx, sessionKeyPrefix+session.ID.String(), raw, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode signup session: %w", err)
	}
	return &session, nil
}
