// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// # Core Value Types

// Hash is the keyed 32-byte digest of an opaque refresh token.
//
// It is the only form in which refresh tokens are ever persisted; the
// plaintext lives exclusively in the client's cookie jar.
type Hash [32]byte

// Hex returns the lowercase hex encoding of the hash, used for store keys.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// HashFromHex parses a 64-character hex string back into a [Hash].
func HashFromHex(value string) (Hash, error) {
	var out Hash

	raw, err := hex.DecodeString(value)
	if err != nil {
		return out, fmt.Errorf("token_hash_decode_failed: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("token_hash_wrong_length: got %d bytes", len(raw))
	}

	copy(out[:], raw)
	return out, nil
}

// # Refresh Record

// RefreshRecord is the persisted state of a single refresh token.
//
// # Lifecycle
//
// A record is created by the initial session issuance (no parent) or by a
// rotation (with parent). It is mutated only by a successful rotation
// (UsedAt + ReplacedByHash set atomically) and by session revocation
// (RevokedAt set). Records self-expire at ExpiresAt.
type RefreshRecord struct {
	// TokenHash is the keyed hash of the opaque token; the primary key.
	TokenHash Hash

	UserID    string
	SessionID uuid.UUID

	CreatedAt time.Time
	ExpiresAt time.Time

	// ParentHash links to the predecessor in the rotation chain.
	// Nil only for the initial record of a session.
	ParentHash *Hash

	// ReplacedByHash is set when this record has been rotated away.
	ReplacedByHash *Hash

	// UsedAt is set atomically with ReplacedByHash when rotation succeeds.
	UsedAt *time.Time

	// RevokedAt is set when the session is revoked.
	RevokedAt *time.Time
}

// IsUsed reports whether this record has already been consumed by a rotation.
func (record *RefreshRecord) IsUsed() bool {
	return record.UsedAt != nil || record.ReplacedByHash != nil
}

// # Issued Tokens

// IssuedTokens is the credential triple returned to the route layer after a
// successful issuance or rotation.
type IssuedTokens struct {
	UserID    string
	SessionID uuid.UUID

	// AccessToken is the signed JWS compact serialization.
	AccessToken string

	// RefreshToken is the opaque base64 plaintext. It is handed to the
	// caller exactly once and never stored.
	RefreshToken string
}
