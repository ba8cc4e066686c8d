// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minhvu/sesame/internal/platform/sec"
)

// MemoryRefreshStore implements [RefreshStore] with an in-process map and a
// revoked-session set.
//
// # Concurrency
//
// A single writer lock spans Rotate's whole read-check-write sequence, which
// makes rotation trivially linearizable: of two concurrent rotations of the
// same plaintext, exactly one marks the record used and the other observes
// reuse.
type MemoryRefreshStore struct {
	mu sync.RWMutex

	// byHash holds every live record keyed by token hash.
	byHash map[Hash]*RefreshRecord

	// revokedSessions is the authoritative revocation flag per session.
	revokedSessions map[uuid.UUID]struct{}
}

// NewMemoryRefreshStore creates an empty in-memory refresh store.
func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{
		byHash:          make(map[Hash]*RefreshRecord),
		revokedSessions: make(map[uuid.UUID]struct{}),
	}
}

/*
InsertInitial stores a new record, rejecting token-hash collisions.

Parameters:
  - ctx: context.Context (unused; the store never blocks)
  - record: RefreshRecord

Returns:
  - error: ErrInternal on duplicate TokenHash
*/
func (store *MemoryRefreshStore) InsertInitial(_ context.Context, record RefreshRecord) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, exists := store.byHash[record.TokenHash]; exists {
		return ErrInternal
	}

	stored := record
	store.byHash[record.TokenHash] = &stored
	return nil
}

/*
Rotate consumes presentedPlain and links its successor, per the contract in
[RefreshStore].

Returns:
  - RefreshRecord: consumed old record
  - RefreshRecord: inserted successor
  - error: ErrNotFoundOrExpired, ErrRevoked, ErrReuseDetected, ErrInternal
*/
func (store *MemoryRefreshStore) Rotate(_ context.Context, presentedPlain, newPlain string, now time.Time, ttl time.Duration, hashKey [32]byte) (RefreshRecord, RefreshRecord, error) {
	oldHash := Hash(sec.HashRefreshToken(hashKey, presentedPlain))
	newHash := Hash(sec.HashRefreshToken(hashKey, newPlain))

	store.mu.Lock()
	defer store.mu.Unlock()

	old, exists := store.byHash[oldHash]
	if !exists {
		return RefreshRecord{}, RefreshRecord{}, ErrNotFoundOrExpired
	}

	// Expiry is strict: a record presented exactly at ExpiresAt is gone.
	if !old.ExpiresAt.After(now) {
		return RefreshRecord{}, RefreshRecord{}, ErrNotFoundOrExpired
	}

	if old.RevokedAt != nil || store.sessionRevokedLocked(old.SessionID) {
		return RefreshRecord{}, RefreshRecord{}, ErrRevoked
	}

	// Reuse: someone presented an already-consumed refresh token. Revoke the
	// entire session before reporting it.
	if old.IsUsed() {
		store.revokeSessionLocked(old.SessionID, now)
		return RefreshRecord{}, RefreshRecord{}, ErrReuseDetected
	}

	// Guard against a successor that would be born dead (clock skew).
	if ttl <= 0 {
		return RefreshRecord{}, RefreshRecord{}, ErrNotFoundOrExpired
	}

	// Consume the old record and link the successor under the same lock, so
	// the used/replaced flags are visible before the new token is usable.
	usedAt := now
	replacedBy := newHash
	old.UsedAt = &usedAt
	old.ReplacedByHash = &replacedBy

	parent := oldHash
	successor := RefreshRecord{
		TokenHash:  newHash,
		UserID:     old.UserID,
		SessionID:  old.SessionID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		ParentHash: &parent,
	}

	if _, exists := store.byHash[newHash]; exists {
		return RefreshRecord{}, RefreshRecord{}, ErrInternal
	}
	store.byHash[newHash] = &successor

	return *old, successor, nil
}

/*
RevokeSession marks the session revoked and stamps RevokedAt on its records.

Idempotent: repeated calls leave the same observable state as one.
*/
func (store *MemoryRefreshStore) RevokeSession(_ context.Context, sessionID uuid.UUID, now time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.revokeSessionLocked(sessionID, now)
	return nil
}

// IsSessionRevoked reports the session's revocation flag.
func (store *MemoryRefreshStore) IsSessionRevoked(_ context.Context, sessionID uuid.UUID) (bool, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return store.sessionRevokedLocked(sessionID), nil
}

// revokeSessionLocked flips the session flag and stamps its records.
// Caller must hold the write lock.
func (store *MemoryRefreshStore) revokeSessionLocked(sessionID uuid.UUID, now time.Time) {
	store.revokedSessions[sessionID] = struct{}{}

	for _, record := range store.byHash {
		if record.SessionID == sessionID && record.RevokedAt == nil {
			revokedAt := now
			record.RevokedAt = &revokedAt
		}
	}
}

// sessionRevokedLocked reads the session flag. Caller must hold a lock.
func (store *MemoryRefreshStore) sessionRevokedLocked(sessionID uuid.UUID) bool {
	_, revoked := store.revokedSessions[sessionID]
	return revoked
}
