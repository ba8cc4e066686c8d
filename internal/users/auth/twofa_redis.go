// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/minhvu/sesame/internal/platform/apperr"
)

// RedisTwoFACodeStore implements [TwoFACodeStore] using Redis.
//
// Redis expirations enforce the code TTL, so pending attempts vanish on their
// own and the store needs no sweeper.
type RedisTwoFACodeStore struct {
	client *redis.Client
}

// NewRedisTwoFACodeStore creates a new Redis-backed 2FA code store.
func NewRedisTwoFACodeStore(client *redis.Client) *RedisTwoFACodeStore {
	return &RedisTwoFACodeStore{client: client}
}

/*
AddCode stores the code for the email+attempt pair with a TTL.

Parameters:
  - ctx: context.Context
  - email: string
  - attemptID: uuid.UUID
  - code: string
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (store *RedisTwoFACodeStore) AddCode(ctx context.Context, email string, attemptID uuid.UUID, code string, ttl time.Duration) error {
	key := twoFAKey(email, attemptID)

	if err := store.client.Set(ctx, key, code, ttl).Err(); err != nil {
		return fmt.Errorf("redis_2fa_code_set_failed: %w", err)
	}
	return nil
}

/*
GetCode retrieves the code for the email+attempt pair.

Description: Returns apperr.NotFound if the attempt is absent or expired.

Returns:
  - string: The stored code
  - error: apperr.NotFound or connectivity errors
*/
func (store *RedisTwoFACodeStore) GetCode(ctx context.Context, email string, attemptID uuid.UUID) (string, error) {
	key := twoFAKey(email, attemptID)

	code, err := store.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Login attempt")
		}
		return "", fmt.Errorf("redis_2fa_code_get_failed: %w", err)
	}

	return code, nil
}

/*
RemoveCode deletes the entry. Removing an absent entry is not an error.

Returns:
  - error: Deletion failures
*/
func (store *RedisTwoFACodeStore) RemoveCode(ctx context.Context, email string, attemptID uuid.UUID) error {
	key := twoFAKey(email, attemptID)

	if err := store.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis_2fa_code_delete_failed: %w", err)
	}
	return nil
}

// twoFAKey builds the Redis key for an email+attempt pair.
func twoFAKey(email string, attemptID uuid.UUID) string {
	return fmt.Sprintf("auth:2fa_code:%s:%s", email, attemptID)
}
