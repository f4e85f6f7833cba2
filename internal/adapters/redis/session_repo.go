package redis

// Package redis provides Redis-backed session and client-binding repositories.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

var _ ports.SessionRepository = (*SessionRepository)(nil)

// SessionRepository stores issued sessions in Redis.
// Key TTLs follow the session's ExpiresAt.
type SessionRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewSessionRepository creates a Redis-backed session repository.
func NewSessionRepository(client redis.UniversalClient) *SessionRepository {
	return NewSessionRepositoryWithPrefix(client, "session:")
}

// NewSessionRepositoryWithPrefix creates a session repository with a custom key prefix.
func NewSessionRepositoryWithPrefix(client redis.UniversalClient, prefix string) *SessionRepository {
	return &SessionRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *SessionRepository) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *SessionRepository) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ports.ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ports.ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal(data, &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	// Redis TTL normally removes these first.
	if sess.Expired(s.now()) {
		if deleteErr := s.Delete(ctx, id); deleteErr != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return domainauth.Session{}, ports.ErrNotFound
	}

	return sess, nil
}

func (s *SessionRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}
