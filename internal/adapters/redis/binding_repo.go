package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/grant-portal/internal/ports"
)

var _ ports.ClientBindingRepository = (*BindingRepository)(nil)

// BindingRepository maps browser client IDs to their current session ID.
type BindingRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewBindingRepository creates a Redis-backed client binding repository.
func NewBindingRepository(client redis.UniversalClient) *BindingRepository {
	return NewBindingRepositoryWithPrefix(client, "client:")
}

// NewBindingRepositoryWithPrefix creates a binding repository with a custom key prefix.
func NewBindingRepositoryWithPrefix(client redis.UniversalClient, prefix string) *BindingRepository {
	return &BindingRepository{client: client, prefix: prefix}
}

// Bind points clientID at sessionID until ttl elapses.
func (r *BindingRepository) Bind(ctx context.Context, clientID, sessionID string, ttl time.Duration) error {
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("binding TTL must be positive")
	}
	if err := r.client.Set(ctx, r.prefix+clientID, sessionID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set binding: %w", err)
	}
	return nil
}

// Lookup returns the bound session ID or ports.ErrNotFound.
func (r *BindingRepository) Lookup(ctx context.Context, clientID string) (string, error) {
	if clientID == "" {
		return "", ports.ErrNotFound
	}
	id, err := r.client.Get(ctx, r.prefix+clientID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrNotFound
		}
		return "", fmt.Errorf("redis get binding: %w", err)
	}
	return id, nil
}

// Unbind removes the client's binding. Missing bindings are not an error.
func (r *BindingRepository) Unbind(ctx context.Context, clientID string) error {
	if clientID == "" {
		return nil
	}
	return r.client.Del(ctx, r.prefix+clientID).Err()
}
