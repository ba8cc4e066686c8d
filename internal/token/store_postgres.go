// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhvu/sesame/internal/platform/sec"
)

// PostgresRefreshStore implements [RefreshStore] on PostgreSQL using pgx.
//
// # Atomicity
//
// Rotate runs inside a single transaction and takes a row lock on the
// presented record (SELECT ... FOR UPDATE), so two concurrent rotations of
// the same plaintext serialize at the database: exactly one commits the
// used/replaced update, the other then observes a used record and reports
// reuse.
type PostgresRefreshStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRefreshStore creates a PostgreSQL-backed refresh store.
func NewPostgresRefreshStore(pool *pgxpool.Pool) *PostgresRefreshStore {
	return &PostgresRefreshStore{pool: pool}
}

/*
EnsureSchema creates the backing tables when they do not exist yet.

Description: The engine owns exactly two tables — one for refresh-token
records keyed by token hash, one for revoked-session flags. Hashes are stored
as lowercase hex strings.

Parameters:
  - ctx: context.Context

Returns:
  - error: DDL execution failures
*/
func (store *PostgresRefreshStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			token_hash       TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			session_id       UUID NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL,
			expires_at       TIMESTAMPTZ NOT NULL,
			parent_hash      TEXT,
			replaced_by_hash TEXT,
			used_at          TIMESTAMPTZ,
			revoked_at       TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS refresh_tokens_session_idx
			ON refresh_tokens (session_id);
		CREATE TABLE IF NOT EXISTS revoked_sessions (
			session_id UUID PRIMARY KEY,
			revoked_at TIMESTAMPTZ NOT NULL
		);`

	if _, err := store.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres_refresh_store_ensure_schema_failed: %w", err)
	}
	return nil
}

/*
InsertInitial stores a new record for a session's first refresh token.

Returns:
  - error: ErrInternal on duplicate hash or execution failure
*/
func (store *PostgresRefreshStore) InsertInitial(ctx context.Context, record RefreshRecord) error {
	const query = `
		INSERT INTO refresh_tokens (
			token_hash, user_id, session_id, created_at, expires_at,
			parent_hash, replaced_by_hash, used_at, revoked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := store.pool.Exec(ctx, query,
		record.TokenHash.Hex(),
		record.UserID,
		record.SessionID,
		record.CreatedAt,
		record.ExpiresAt,
		hexOrNil(record.ParentHash),
		hexOrNil(record.ReplacedByHash),
		record.UsedAt,
		record.RevokedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_refresh_store_insert_failed: %w", ErrInternal)
	}
	return nil
}

/*
Rotate consumes presentedPlain and links its successor, per the contract in
[RefreshStore].

The presented row is locked FOR UPDATE for the duration of the transaction;
both the old-record update and the successor insert commit together.
*/
func (store *PostgresRefreshStore) Rotate(ctx context.Context, presentedPlain, newPlain string, now time.Time, ttl time.Duration, hashKey [32]byte) (RefreshRecord, RefreshRecord, error) {
	oldHash := Hash(sec.HashRefreshToken(hashKey, presentedPlain))
	newHash := Hash(sec.HashRefreshToken(hashKey, newPlain))

	tx, err := store.pool.Begin(ctx)
	if err != nil {
		return RefreshRecord{}, RefreshRecord{}, fmt.Errorf("postgres_refresh_store_begin_failed: %w", ErrInternal)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := lockRecord(ctx, tx, oldHash)
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

	sessionRevoked, err := sessionRevokedTx(ctx, tx, old.SessionID)
	if err != nil {
		return RefreshRecord{}, RefreshRecord{}, err
	}
	if old.RevokedAt != nil || sessionRevoked {
		return RefreshRecord{}, RefreshRecord{}, ErrRevoked
	}

	// Reuse: revoke the whole session, commit that, then report.
	if old.IsUsed() {
		if err := revokeSessionTx(ctx, tx, old.SessionID, now); err != nil {
			return RefreshRecord{}, RefreshRecord{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return RefreshRecord{}, RefreshRecord{}, fmt.Errorf("postgres_refresh_store_commit_failed: %w", ErrInternal)
		}
		return RefreshRecord{}, RefreshRecord{}, ErrReuseDetected
	}

	if ttl <= 0 {
		return RefreshRecord{}, RefreshRecord{}, ErrNotFoundOrExpired
	}

	usedAt := now
	replacedBy := newHash
	old.UsedAt = &usedAt
	old.ReplacedByHash = &replacedBy

	const consumeQuery = `
		UPDATE refresh_tokens
		SET used_at = $2, replaced_by_hash = $3
		WHERE token_hash = $1`
	if _, err := tx.Exec(ctx, consumeQuery, oldHash.Hex(), usedAt, replacedBy.Hex()); err != nil {
		return RefreshRecord{}, RefreshRecord{}, fmt.Errorf("postgres_refresh_store_consume_failed: %w", ErrInternal)
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

	const insertQuery = `
		INSERT INTO refresh_tokens (
			token_hash, user_id, session_id, created_at, expires_at, parent_hash
		) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insertQuery,
		successor.TokenHash.Hex(),
		successor.UserID,
		successor.SessionID,
		successor.CreatedAt,
		successor.ExpiresAt,
		parent.Hex(),
	); err != nil {
		return RefreshRecord{}, RefreshRecord{}, fmt.Errorf("postgres_refresh_store_insert_successor_failed: %w", ErrInternal)
	}

	if err := tx.Commit(ctx); err != nil {
		return RefreshRecord{}, RefreshRecord{}, fmt.Errorf("postgres_refresh_store_commit_failed: %w", ErrInternal)
	}

	return *old, successor, nil
}

/*
RevokeSession flags the session and stamps its records. Idempotent.
*/
func (store *PostgresRefreshStore) RevokeSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	tx, err := store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres_refresh_store_begin_failed: %w", ErrInternal)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := revokeSessionTx(ctx, tx, sessionID, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres_refresh_store_commit_failed: %w", ErrInternal)
	}
	return nil
}

// IsSessionRevoked checks the revoked_sessions flag table.
func (store *PostgresRefreshStore) IsSessionRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	const query = "SELECT EXISTS (SELECT 1 FROM revoked_sessions WHERE session_id = $1)"

	var revoked bool
	if err := store.pool.QueryRow(ctx, query, sessionID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("postgres_refresh_store_revoked_check_failed: %w", ErrInternal)
	}
	return revoked, nil
}

// # Transaction Helpers

// lockRecord loads and row-locks a record by token hash. A missing row is
// reported as (nil, nil).
func lockRecord(ctx context.Context, tx pgx.Tx, hash Hash) (*RefreshRecord, error) {
	const query = `
		SELECT token_hash, user_id, session_id, created_at, expires_at,
		       parent_hash, replaced_by_hash, used_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE`

	var (
		record        RefreshRecord
		tokenHashHex  string
		parentHex     *string
		replacedByHex *string
	)
	err := tx.QueryRow(ctx, query, hash.Hex()).Scan(
		&tokenHashHex,
		&record.UserID,
		&record.SessionID,
		&record.CreatedAt,
		&record.ExpiresAt,
		&parentHex,
		&replacedByHex,
		&record.UsedAt,
		&record.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_refresh_store_lock_failed: %w", ErrInternal)
	}

	record.TokenHash, err = HashFromHex(tokenHashHex)
	if err != nil {
		return nil, fmt.Errorf("postgres_refresh_store_decode_failed: %w", ErrInternal)
	}
	if parentHex != nil {
		parent, err := HashFromHex(*parentHex)
		if err != nil {
			return nil, fmt.Errorf("postgres_refresh_store_decode_failed: %w", ErrInternal)
		}
		record.ParentHash = &parent
	}
	if replacedByHex != nil {
		replacedBy, err := HashFromHex(*replacedByHex)
		if err != nil {
			return nil, fmt.Errorf("postgres_refresh_store_decode_failed: %w", ErrInternal)
		}
		record.ReplacedByHash = &replacedBy
	}

	return &record, nil
}

// revokeSessionTx inserts the session flag and stamps its records inside tx.
func revokeSessionTx(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, now time.Time) error {
	const flagQuery = `
		INSERT INTO revoked_sessions (session_id, revoked_at)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO NOTHING`
	if _, err := tx.Exec(ctx, flagQuery, sessionID, now); err != nil {
		return fmt.Errorf("postgres_refresh_store_revoke_failed: %w", ErrInternal)
	}

	const stampQuery = `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE session_id = $1 AND revoked_at IS NULL`
	if _, err := tx.Exec(ctx, stampQuery, sessionID, now); err != nil {
		return fmt.Errorf("postgres_refresh_store_stamp_failed: %w", ErrInternal)
	}

	return nil
}

// sessionRevokedTx checks the flag table inside tx.
func sessionRevokedTx(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID) (bool, error) {
	const query = "SELECT EXISTS (SELECT 1 FROM revoked_sessions WHERE session_id = $1)"

	var revoked bool
	if err := tx.QueryRow(ctx, query, sessionID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("postgres_refresh_store_revoked_check_failed: %w", ErrInternal)
	}
	return revoked, nil
}

// hexOrNil converts an optional hash to its nullable hex form.
func hexOrNil(hash *Hash) *string {
	if hash == nil {
		return nil
	}
	hex := hash.Hex()
	return &hex
}
