// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// OpaqueTokenBytes is the entropy carried by every refresh-token plaintext.
const OpaqueTokenBytes = 32

// HashRefreshToken computes the keyed 32-byte digest of an opaque refresh token.
//
// # Why keyed?
//
// A plain digest would let anyone who obtains a store dump precompute token
// hashes offline. Keying the hash with a secret that is deliberately distinct
// from the JWT signing keys means compromise of one does not enable
// pre-imaging the other.
func HashRefreshToken(key [32]byte, token string) [32]byte {

	// blake2b.New256 with a key runs BLAKE2b in keyed (MAC) mode.
	hasher, err := blake2b.New256(key[:])
	if err != nil {
		// Only reachable with a key longer than 64 bytes; ours is fixed at 32.
		panic("sec: blake2b keyed init failed: " + err.Error())
	}

	_, _ = hasher.Write([]byte(token))

	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out
}

// NewOpaqueToken generates a fresh refresh-token plaintext: 32
// cryptographically random bytes, standard base64.
//
// The plaintext is returned to the caller exactly once and never persisted;
// stores only ever see its keyed hash.
func NewOpaqueToken() (string, error) {
	raw := make([]byte, OpaqueTokenBytes)

	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("sec: opaque token entropy failed: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}
