package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/sportstyle/store/internal/domain/checkout"
)

const attemptKeyPrefix = "checkout:attempt:"

var _ checkout.AttemptStore = (*RedisAttemptStore)(nil)

// RedisAttemptStore implements checkout.AttemptStore on Redis, so in-flight
// checkouts survive process restarts and are shared across replicas. Expiry
// is delegated to Redis key TTLs.
type RedisAttemptStore struct {
	client *redis.Client
}

// NewRedisAttemptStore creates a store using the given Redis client.
func NewRedisAttemptStore(client *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{client: client}
}

// Put stores the attempt under the user's key with a TTL matching its
// ExpiresAt. An already expired attempt is not stored.
func (s *RedisAttemptStore) Put(ctx context.Context, a *checkout.Attempt) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling attempt: %w", err)
	}

	ttl := time.Until(a.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, a.UserID)
	}

	if err := s.client.Set(ctx, attemptKeyPrefix+a.UserID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("storing attempt for %q: %w", a.UserID, err)
	}
	return nil
}

// Get returns the user's active attempt or checkout.ErrNoActiveCheckout.
func (s *RedisAttemptStore) Get(ctx context.Context, userID string) (*checkout.Attempt, error) {
	payload, err := s.client.Get(ctx, attemptKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, checkout.ErrNoActiveCheckout
		}
		return nil, fmt.Errorf("getting attempt for %q: %w", userID, err)
	}

	var a checkout.Attempt
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("unmarshaling attempt: %w", err)
	}
	return &a, nil
}

// Delete removes the user's attempt. Deleting an absent attempt is a no-op.
func (s *RedisAttemptStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, attemptKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("deleting attempt for %q: %w", userID, err)
	}
	return nil
}
