// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/sesame/internal/platform/sec"
	"github.com/minhvu/sesame/internal/token"
)

var testHashKey = [32]byte{1, 2, 3}

// seedRecord inserts an initial record for plaintext and returns it.
func seedRecord(t *testing.T, store token.RefreshStore, plain, userID string, now time.Time, ttl time.Duration) token.RefreshRecord {
	t.Helper()

	record := token.RefreshRecord{
		TokenHash: token.Hash(sec.HashRefreshToken(testHashKey, plain)),
		UserID:    userID,
		SessionID: uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	require.NoError(t, store.InsertInitial(context.Background(), record))
	return record
}

/*
TestMemoryStore_RotateHappyPath walks one successful rotation and checks the
linkage between the consumed record and its successor.
*/
func TestMemoryStore_RotateHappyPath(t *testing.T) {
	store := token.NewMemoryRefreshStore()
	now := time.Now()

	seeded := seedRecord(t, store, "old-plain", "user-1", now, time.Hour)

	old, successor, err := store.Rotate(context.Background(), "old-plain", "new-plain", now.Add(time.Minute), time.Hour, testHashKey)
	require.NoError(t, err)

	// The consumed record is stamped and linked forward.
	require.NotNil(t, old.UsedAt)
	require.NotNil(t, old.ReplacedByHash)
	assert.Equal(t, successor.TokenHash, *old.ReplacedByHash)

	// The successor inherits identity and links backward.
	assert.Equal(t, seeded.UserID, successor.UserID)
	assert.Equal(t, seeded.SessionID, successor.SessionID)
	require.NotNil(t, successor.ParentHash)
	assert.Equal(t, seeded.TokenHash, *successor.ParentHash)
	assert.Nil(t, successor.UsedAt)
	assert.Nil(t, successor.RevokedAt)
}

/*
TestMemoryStore_RotateUnknownToken verifies unknown plaintexts fail with the
not-found sentinel.
*/
func TestMemoryStore_RotateUnknownToken(t *testing.T) {
	store := token.NewMemoryRefreshStore()

	_, _, err := store.Rotate(context.Background(), "never-issued", "new-plain", time.Now(), time.Hour, testHashKey)
	assert.ErrorIs(t, err, token.ErrNotFoundOrExpired)
}

/*
TestMemoryStore_RotateExpiry verifies strict expiry: presenting a record at
exactly ExpiresAt already fails.
*/
func TestMemoryStore_RotateExpiry(t *testing.T) {
	store := token.NewMemoryRefreshStore()
	now := time.Now()
	seeded := seedRecord(t, store, "old-plain", "user-1", now, time.Hour)

	// One nanosecond before expiry still rotates.
	_, _, err := store.Rotate(context.Background(), "old-plain", "new-plain", seeded.ExpiresAt.Add(-time.Nanosecond), time.Hour, testHashKey)
	require.NoError(t, err)

	// A fresh store, presented exactly at the boundary, rejects.
	store = token.NewMemoryRefreshStore()
	seeded = seedRecord(t, store, "old-plain", "user-1", now, time.Hour)

	_, _, err = store.Rotate(context.Background(), "old-plain", "new-plain", seeded.ExpiresAt, time.Hour, testHashKey)
	assert.ErrorIs(t, err, token.ErrNotFoundOrExpired)
}

/*
TestMemoryStore_ReuseRevokesSession verifies the core security property:
rotating an already-used token revokes the ENTIRE session, including the
live successor, before the reuse error is returned.
*/
func TestMemoryStore_ReuseRevokesSession(t *testing.T) {
	store := token.NewMemoryRefreshStore()
	ctx := context.Background()
	now := time.Now()

	seeded := seedRecord(t, store, "stolen-plain", "user-1", now, time.Hour)

	// Legitimate rotation consumes the token.
	_, _, err := store.Rotate(ctx, "stolen-plain", "fresh-plain", now, time.Hour, testHashKey)
	require.NoError(t, err)

	// Attacker replays the consumed token.
	_, _, err = store.Rotate(ctx, "stolen-plain", "attacker-plain", now, time.Hour, testHashKey)
	assert.ErrorIs(t, err, token.ErrReuseDetected)

	// Session is flagged...
	revoked, err := store.IsSessionRevoked(ctx, seeded.SessionID)
	require.NoError(t, err)
	assert.True(t, revoked)

	// ...and the legitimate successor is dead too.
	_, _, err = store.Rotate(ctx, "fresh-plain", "whatever", now, time.Hour, testHashKey)
	assert.ErrorIs(t, err, token.ErrRevoked)
}

/*
TestMemoryStore_RevokedSessionBlocksRotation verifies a fresh, unused token
cannot rotate once its session is revoked.
*/
func TestMemoryStore_RevokedSessionBlocksRotation(t *testing.T) {
	store := token.NewMemoryRefreshStore()
	ctx := context.Background()
	now := time.Now()

	seeded := seedRecord(t, store, "old-plain", "user-1", now, time.Hour)
	require.NoError(t, store.RevokeSession(ctx, seeded.SessionID, now))

	_, _, err := store.Rotate(ctx, "old-plain", "new-plain", now, time.Hour, testHashKey)
	assert.ErrorIs(t, err, token.ErrRevoked)
}

/*
TestMemoryStore_RevokeSessionIdempotent verifies repeated revocations leave
the same observable state.
*/
func TestMemoryStore_RevokeSessionIdempotent(t *testing.T) {
	store := token.NewMemoryRefreshStore()
	ctx := context.Background()
	sessionID := uuid.New()

	require.NoError(t, store.RevokeSession(ctx, sessionID, time.Now()))
	require.NoError(t, store.RevokeSession(ctx, sessionID, time.Now()))

	revoked, err := store.IsSessionRevoked(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

/*
TestMemoryStore_ZeroTTL verifies a rotation that would create an already-dead
successor is refused.
*/
func TestMemoryStore_ZeroTTL(t *testing.T) {
	store := token.NewMemoryRefreshStore()
	now := time.Now()
	seedRecord(t, store, "old-plain", "user-1", now, time.Hour)

	_, _, err := store.Rotate(context.Background(), "old-plain", "new-plain", now, 0, testHashKey)
	assert.ErrorIs(t, err, token.ErrNotFoundOrExpired)
}

/*
TestMemoryStore_ConcurrentRotation races many rotations of the same plaintext
and requires exactly one winner; every loser must observe reuse.
*/
func TestMemoryStore_ConcurrentRotation(t *testing.T) {
	store := token.NewMemoryRefreshStore()
	ctx := context.Background()
	now := time.Now()

	seedRecord(t, store, "contended-plain", "user-1", now, time.Hour)

	const goroutines = 16
	var wg sync.WaitGroup
	results := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			newPlain := "successor-" + string(rune('a'+n))
			_, _, err := store.Rotate(ctx, "contended-plain", newPlain, now, time.Hour, testHashKey)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	successes, reuses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case err == token.ErrReuseDetected || err == token.ErrRevoked:
			reuses++
		default:
			t.Fatalf("unexpected rotation error: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one rotation may win")
	assert.Equal(t, goroutines-1, reuses)
}

/*
TestMemoryStore_InsertDuplicate verifies hash collisions on insert are
reported as internal errors.
*/
func TestMemoryStore_InsertDuplicate(t *testing.T) {
	store := token.NewMemoryRefreshStore()
	now := time.Now()

	record := token.RefreshRecord{
		TokenHash: token.Hash(sec.HashRefreshToken(testHashKey, "plain")),
		UserID:    "user-1",
		SessionID: uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	require.NoError(t, store.InsertInitial(context.Background(), record))
	assert.ErrorIs(t, store.InsertInitial(context.Background(), record), token.ErrInternal)
}
