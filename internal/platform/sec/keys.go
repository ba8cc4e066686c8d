// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

/*
Package sec provides the cryptographic primitives for the token engine.

It isolates security-sensitive code (key selection, keyed hashing, random
token generation) from the domain logic in internal/token.

Architecture:

  - KeyStore: immutable kid -> HS256 secret map with one active signing key.
  - HashRefreshToken: keyed BLAKE2b-256 digest of opaque refresh tokens.
  - NewOpaqueToken: cryptographically random refresh plaintext generator.

Both the key set and the refresh-hash key are read-only after construction,
so every function here is safe for unsynchronized concurrent use.
*/
package sec

import (
	"errors"
	"fmt"
)

// MinSecretLen is the minimum accepted HS256 secret length in bytes.
//
// Anything shorter than the HMAC block-derived 32 bytes materially weakens
// the signature and is rejected at construction time.
const MinSecretLen = 32

// SigningKey pairs a key identifier with its HS256 secret.
type SigningKey struct {
	KID    string
	Secret []byte
}

// KeyStore holds the accepted HS256 keys and designates the active one.
//
// # Rolling Keys
//
// Signing always uses the active kid; verification accepts any known kid.
// Adding a key makes it available for verification immediately; switching
// the active kid makes new tokens sign with it; removing a key invalidates
// all outstanding tokens under it. Rotation happens by constructing a new
// KeyStore — the store itself is immutable.
type KeyStore struct {
	activeKID string
	keys      map[string][]byte
}

/*
NewKeyStore constructs a validated, immutable [KeyStore].

Parameters:
  - keys: []SigningKey (kid + secret pairs)
  - activeKID: string (must be present in keys)

Returns:
  - *KeyStore: Ready-to-use key store
  - error: Validation failures (empty set, duplicate kid, short secret,
    unknown active kid)
*/
func NewKeyStore(keys []SigningKey, activeKID string) (*KeyStore, error) {

	// An empty key set can neither sign nor verify anything.
	if len(keys) == 0 {
		return nil, errors.New("sec: empty JWT key set")
	}

	byKID := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if _, exists := byKID[key.KID]; exists {
			return nil, fmt.Errorf("sec: duplicate kid %q", key.KID)
		}
		if len(key.Secret) < MinSecretLen {
			return nil, fmt.Errorf("sec: secret for kid %q is shorter than %d bytes", key.KID, MinSecretLen)
		}
		byKID[key.KID] = key.Secret
	}

	// The active kid must be able to sign.
	if _, exists := byKID[activeKID]; !exists {
		return nil, fmt.Errorf("sec: active kid %q not present in key set", activeKID)
	}

	return &KeyStore{activeKID: activeKID, keys: byKID}, nil
}

// SigningKey returns the active secret and its kid.
//
// It always succeeds after construction; the constructor guarantees the
// active kid exists in the set.
func (store *KeyStore) SigningKey() (secret []byte, kid string) {
	return store.keys[store.activeKID], store.activeKID
}

// VerificationKey returns the secret for the requested kid.
//
// An empty kid selects the active key. The second return value is false when
// the kid is unknown.
func (store *KeyStore) VerificationKey(kid string) ([]byte, bool) {
	if kid == "" {
		kid = store.activeKID
	}
	secret, exists := store.keys[kid]
	return secret, exists
}

// ActiveKID returns the identifier of the current signing key.
func (store *KeyStore) ActiveKID() string {
	return store.activeKID
}
