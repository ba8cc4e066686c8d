// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/minhvu/sesame/internal/platform/sec"
)

// # Key Layout
//
// refresh_token:<hex-of-32-bytes>  -> hash with the record's fields
// revoked_session:<uuid>           -> "1" sentinel with a bounded TTL

const (
	refreshKeyPrefix        = "refresh_token:"
	revokedSessionKeyPrefix = "revoked_session:"

	// revokedSessionTTL bounds how long a revocation sentinel outlives its
	// session. It must exceed the refresh TTL so no live refresh token can
	// outlast the flag; 30 days gives a comfortable margin over typical
	// refresh lifetimes.
	revokedSessionTTL = 30 * 24 * time.Hour
)

// Hash field names for persisted records.
const (
	fieldTokenHash      = "token_hash"
	fieldUserID         = "user_id"
	fieldSessionID      = "session_id"
	fieldCreatedAt      = "created_at"
	fieldExpiresAt      = "expires_at"
	fieldParentHash     = "parent_hash"
	fieldReplacedByHash = "replaced_by_hash"
	fieldUsedAt         = "used_at"
	fieldRevokedAt      = "revoked_at"
)

// RedisRefreshStore implements [RefreshStore] on a remote Redis instance.
//
// # Atomicity
//
// Redis has no multi-key transaction spanning our read-check-write sequence,
// so Rotate persists the mutated old record BEFORE inserting the successor.
// A crash between the two writes leaves a durable used record with a dangling
// ReplacedByHash pointer — subsequent rotations of the same plaintext then
// correctly observe reuse, and the client recovers by logging in again.
type RedisRefreshStore struct {
	client *redis.Client
}

// NewRedisRefreshStore creates a Redis-backed refresh store.
func NewRedisRefreshStore(client *redis.Client) *RedisRefreshStore {
	return &RedisRefreshStore{client: client}
}

/*
InsertInitial stores a new record as a Redis hash with a TTL derived from its
ExpiresAt.

Returns:
  - error: ErrInternal on duplicate key or connectivity failure
*/
func (store *RedisRefreshStore) InsertInitial(ctx context.Context, record RefreshRecord) error {
	key := refreshKey(record.TokenHash)

	exists, err := store.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis_refresh_exists_failed: %w", ErrInternal)
	}
	if exists > 0 {
		return ErrInternal
	}

	return store.writeRecord(ctx, &record, record.ExpiresAt.Sub(record.CreatedAt))
}

/*
Rotate consumes presentedPlain and links its successor, per the contract in
[RefreshStore].

The old record's update is persisted first so that rapid or concurrent reuse
attempts observe the used/replaced flags before the new token is stored.
*/
func (store *RedisRefreshStore) Rotate(ctx context.Context, presentedPlain, newPlain string, now time.Time, ttl time.Duration, hashKey [32]byte) (RefreshRecord, RefreshRecord, error) {
	oldHash := Hash(sec.HashRefreshToken(hashKey, presentedPlain))
	newHash := Hash(sec.HashRefreshToken(hashKey, newPlain))

	old, err := store.readRecord(ctx, oldHash)
	if err != nil {
		return RefreshRecord{}, RefreshRecord{}, err
	}
	if old == nil {
		return RefreshRecord{}, RefreshRecord{}, ErrNotFoundOrExpired
	}

	// Expiry is strict: a record presented exactly at ExpiresAt is gone.
	if !old.ExpiresAt.After(now) {
		return RefreshRecord{}, RefreshRecord{}, ErrNotFoundOrExpired
	}

	sessionRevoked, err := store.IsSessionRevoked(ctx, old.SessionID)
	if err != nil {
		return RefreshRecord{}, RefreshRecord{}, err
	}
	if old.RevokedAt != nil || sessionRevoked {
		return RefreshRecord{}, RefreshRecord{}, ErrRevoked
	}

	// Reuse: revoke the whole session before reporting it.
	if old.IsUsed() {
		_ = store.RevokeSession(ctx, old.SessionID, now)
		return RefreshRecord{}, RefreshRecord{}, ErrReuseDetected
	}

	// Clock-skew guard: never persist a record that is already expired.
	remaining := old.ExpiresAt.Sub(now)
	if remaining <= 0 || ttl <= 0 {
		return RefreshRecord{}, RefreshRecord{}, ErrNotFoundOrExpired
	}

	usedAt := now
	replacedBy := newHash
	old.UsedAt = &usedAt
	old.ReplacedByHash = &replacedBy

	// Persist the consumed old record first (ordering-first atomicity).
	if err := store.writeRecord(ctx, old, remaining); err != nil {
		return RefreshRecord{}, RefreshRecord{}, err
	}

	parent := oldHash
	successor := RefreshRecord{
		TokenHash:  newHash,
		UserID:     old.UserID,
		SessionID:  old.SessionID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		ParentHash: &parent,
	}

	if err := store.writeRecord(ctx, &successor, ttl); err != nil {
		return RefreshRecord{}, RefreshRecord{}, err
	}

	return *old, successor, nil
}

/*
RevokeSession writes the revocation sentinel for the session. Idempotent.

The per-record RevokedAt stamps are a best-effort concern of the map-backed
store; here the sentinel alone is authoritative and outlives every possible
refresh token via its bounded TTL.
*/
func (store *RedisRefreshStore) RevokeSession(ctx context.Context, sessionID uuid.UUID, _ time.Time) error {
	key := revokedSessionKeyPrefix + sessionID.String()

	if err := store.client.Set(ctx, key, "1", revokedSessionTTL).Err(); err != nil {
		return fmt.Errorf("redis_revoke_session_failed: %w", ErrInternal)
	}
	return nil
}

// IsSessionRevoked checks the revocation sentinel.
func (store *RedisRefreshStore) IsSessionRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	key := revokedSessionKeyPrefix + sessionID.String()

	exists, err := store.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis_revoked_check_failed: %w", ErrInternal)
	}
	return exists > 0, nil
}

// # Record Serialization

// refreshKey builds the storage key for a token hash.
func refreshKey(hash Hash) string {
	return refreshKeyPrefix + hash.Hex()
}

// writeRecord persists a record as a Redis hash and bounds its lifetime.
// TTLs are clamped to >=1s because Redis rejects non-positive expirations.
func (store *RedisRefreshStore) writeRecord(ctx context.Context, record *RefreshRecord, ttl time.Duration) error {
	key := refreshKey(record.TokenHash)

	fields := map[string]any{
		fieldTokenHash: record.TokenHash.Hex(),
		fieldUserID:    record.UserID,
		fieldSessionID: record.SessionID.String(),
		fieldCreatedAt: record.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldExpiresAt: record.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}

	// Optional fields are written only when set; absence means nil.
	if record.ParentHash != nil {
		fields[fieldParentHash] = record.ParentHash.Hex()
	}
	if record.ReplacedByHash != nil {
		fields[fieldReplacedByHash] = record.ReplacedByHash.Hex()
	}
	if record.UsedAt != nil {
		fields[fieldUsedAt] = record.UsedAt.UTC().Format(time.RFC3339Nano)
	}
	if record.RevokedAt != nil {
		fields[fieldRevokedAt] = record.RevokedAt.UTC().Format(time.RFC3339Nano)
	}

	if err := store.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis_refresh_write_failed: %w", ErrInternal)
	}

	if ttl < time.Second {
		ttl = time.Second
	}
	if err := store.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis_refresh_expire_failed: %w", ErrInternal)
	}

	return nil
}

// readRecord loads a record by token hash. A missing key and an empty hash
// are both reported as "not found" (nil record, nil error).
func (store *RedisRefreshStore) readRecord(ctx context.Context, hash Hash) (*RefreshRecord, error) {
	fields, err := store.client.HGetAll(ctx, refreshKey(hash)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_refresh_read_failed: %w", ErrInternal)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	record, err := recordFromFields(fields)
	if err != nil {
		return nil, fmt.Errorf("redis_refresh_decode_failed: %w", ErrInternal)
	}
	return record, nil
}

// recordFromFields reconstructs a record from its hash-field form.
func recordFromFields(fields map[string]string) (*RefreshRecord, error) {
	tokenHash, err := HashFromHex(fields[fieldTokenHash])
	if err != nil {
		return nil, err
	}

	sessionID, err := uuid.Parse(fields[fieldSessionID])
	if err != nil {
		return nil, err
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, err
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields[fieldExpiresAt])
	if err != nil {
		return nil, err
	}

	record := &RefreshRecord{
		TokenHash: tokenHash,
		UserID:    fields[fieldUserID],
		SessionID: sessionID,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}

	if raw, ok := fields[fieldParentHash]; ok && raw != "" {
		parent, err := HashFromHex(raw)
		if err != nil {
			return nil, err
		}
		record.ParentHash = &parent
	}
	if raw, ok := fields[fieldReplacedByHash]; ok && raw != "" {
		replacedBy, err := HashFromHex(raw)
		if err != nil {
			return nil, err
		}
		record.ReplacedByHash = &replacedBy
	}
	if raw, ok := fields[fieldUsedAt]; ok && raw != "" {
		usedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		record.UsedAt = &usedAt
	}
	if raw, ok := fields[fieldRevokedAt]; ok && raw != "" {
		revokedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		record.RevokedAt = &revokedAt
	}

	return record, nil
}
