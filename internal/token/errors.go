// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token

import "errors"

// # Refresh Errors
//
// Storage-layer failures are folded into ErrInternal before they leave the
// store; the remaining three are semantically distinguishable so the service
// can apply its security policy. The route layer deliberately collapses them
// into a single client-facing 401 to avoid leaking whether a token was once
// valid.

var (
	// ErrNotFoundOrExpired covers both unknown token hashes and records past
	// their ExpiresAt. The two cases are never distinguished on the wire.
	ErrNotFoundOrExpired = errors.New("refresh token not found or expired")

	// ErrRevoked means the session was already revoked when the rotation arrived.
	ErrRevoked = errors.New("session revoked")

	// ErrReuseDetected means an already-rotated refresh token was presented.
	// It is returned only after the entire session has been revoked.
	ErrReuseDetected = errors.New("refresh token reuse detected")

	// ErrInternal wraps any storage-layer failure.
	ErrInternal = errors.New("refresh store internal error")
)

// # Access Errors

var (
	// ErrInvalidToken covers malformed tokens, bad signatures, wrong
	// iss/aud/exp claims, and unparsable session identifiers.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrBadKey means the token header carries an unknown key id.
	ErrBadKey = errors.New("unknown signing key id")

	// ErrRevokedSession means the token verified but its session is revoked.
	ErrRevokedSession = errors.New("access token session revoked")
)
