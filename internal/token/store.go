// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// # Refresh Store Contract

// RefreshStore defines the data access contract for refresh-token records
// and session revocation state.
//
// # Implementations
//
//   - [MemoryRefreshStore]: in-process map + set behind a single writer lock.
//   - [RedisRefreshStore]: remote key-value store with per-record expirations.
//   - [PostgresRefreshStore]: relational store using row locks for rotation.
//
// All implementations must satisfy the same contract: Rotate is linearizable
// with respect to other Rotate and RevokeSession calls on the same session or
// token hash, so that no two successful rotations ever consume the same
// presented plaintext.
type RefreshStore interface {

	/*
		InsertInitial stores a brand-new record for a session's first refresh token.

		Parameters:
		  - ctx: context.Context
		  - record: RefreshRecord (no parent)

		Returns:
		  - error: ErrInternal if a record with the same TokenHash already exists,
		    or on storage failure
	*/
	InsertInitial(ctx context.Context, record RefreshRecord) error

	/*
		Rotate atomically consumes the presented refresh token and links its successor.

		Description: Hashes both plaintexts, loads the old record, and walks the
		rotation state machine: missing or expired records fail with
		ErrNotFoundOrExpired; revoked records or sessions fail with ErrRevoked;
		an already-used record triggers reuse handling — the ENTIRE session is
		revoked before ErrReuseDetected is returned. Otherwise the old record is
		marked used/replaced and persisted before (or atomically with) the new
		record becoming usable, so a concurrent second rotation of the same
		plaintext observes reuse, not success.

		Parameters:
		  - ctx: context.Context
		  - presentedPlain: string (the client-presented opaque token)
		  - newPlain: string (the successor's opaque plaintext)
		  - now: time.Time
		  - ttl: time.Duration (lifetime of the successor record)
		  - hashKey: [32]byte (keyed-hash secret)

		Returns:
		  - RefreshRecord: the consumed record (UsedAt/ReplacedByHash set)
		  - RefreshRecord: the freshly inserted successor
		  - error: ErrNotFoundOrExpired, ErrRevoked, ErrReuseDetected, or ErrInternal
	*/
	Rotate(ctx context.Context, presentedPlain, newPlain string, now time.Time, ttl time.Duration, hashKey [32]byte) (RefreshRecord, RefreshRecord, error)

	/*
		RevokeSession marks the session as revoked. Idempotent.

		Records belonging to the session receive RevokedAt on a best-effort
		basis; the session-level flag is authoritative.

		Parameters:
		  - ctx: context.Context
		  - sessionID: uuid.UUID
		  - now: time.Time

		Returns:
		  - error: ErrInternal on storage failure
	*/
	RevokeSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error

	/*
		IsSessionRevoked reports whether the session has been revoked.

		This runs on every access-token validation, so implementations keep it
		a constant-time-ish lookup.

		Parameters:
		  - ctx: context.Context
		  - sessionID: uuid.UUID

		Returns:
		  - bool: true if revoked
		  - error: ErrInternal on storage failure
	*/
	IsSessionRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error)
}
