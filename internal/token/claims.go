// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the payload embedded inside an access JWT.
//
// # Why a session claim?
//
// The sid claim stays constant across an entire rotation chain, so a single
// revocation check invalidates every outstanding access token of the session
// without tracking individual jti values.
type AccessClaims struct {
	jwt.RegisteredClaims

	// SessionID is the session identifier (UUID string), constant across
	// the rotation chain.
	SessionID string `json:"sid"`
}

// UserID returns the subject claim (the opaque user identifier).
func (claims *AccessClaims) UserID() string {
	return claims.Subject
}

// ParsedSessionID parses the sid claim into a [uuid.UUID].
func (claims *AccessClaims) ParsedSessionID() (uuid.UUID, error) {
	return uuid.Parse(claims.SessionID)
}
