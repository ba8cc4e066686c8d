// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minhvu/sesame/internal/platform/apperr"
)

// MemoryTwoFACodeStore implements [TwoFACodeStore] with an in-process map.
//
// Expiry is checked lazily on read; entries for abandoned attempts linger
// until the same email+attempt pair is touched again, which is acceptable for
// the single-process deployments this store targets.
type MemoryTwoFACodeStore struct {
	mu      sync.Mutex
	byKey   map[string]pendingCode
	nowFunc func() time.Time
}

type pendingCode struct {
	code      string
	expiresAt time.Time
}

// NewMemoryTwoFACodeStore creates an empty in-memory 2FA code store.
func NewMemoryTwoFACodeStore() *MemoryTwoFACodeStore {
	return &MemoryTwoFACodeStore{
		byKey:   make(map[string]pendingCode),
		nowFunc: time.Now,
	}
}

// AddCode stores the code for the email+attempt pair with a TTL.
func (store *MemoryTwoFACodeStore) AddCode(_ context.Context, email string, attemptID uuid.UUID, code string, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.byKey[codeKey(email, attemptID)] = pendingCode{
		code:      code,
		expiresAt: store.nowFunc().Add(ttl),
	}
	return nil
}

// GetCode returns the stored code, treating expired entries as absent.
func (store *MemoryTwoFACodeStore) GetCode(_ context.Context, email string, attemptID uuid.UUID) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	key := codeKey(email, attemptID)
	pending, exists := store.byKey[key]
	if !exists {
		return "", apperr.NotFound("Login attempt")
	}
	if !pending.expiresAt.After(store.nowFunc()) {
		delete(store.byKey, key)
		return "", apperr.NotFound("Login attempt")
	}

	return pending.code, nil
}

// RemoveCode deletes the entry. Removing an absent entry is not an error.
func (store *MemoryTwoFACodeStore) RemoveCode(_ context.Context, email string, attemptID uuid.UUID) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.byKey, codeKey(email, attemptID))
	return nil
}

// codeKey builds the map key for an email+attempt pair.
func codeKey(email string, attemptID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", email, attemptID)
}
