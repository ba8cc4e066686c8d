// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

/*
Package auth implements the login flow that feeds the token engine.

It validates credentials and, for accounts that require it, runs an emailed
two-factor step before asking the token service for an initial session.

Architecture:

  - Service: Orchestrates login, 2FA issuance, and 2FA verification.
  - Ports: UserStore, TwoFACodeStore, and EmailClient are consumed as
    interfaces; user persistence and mail delivery live outside this service.
  - Tokens: Session creation is delegated entirely to [token.Service].

The package never sees password hashes or mailbox internals; it only talks to
its ports.
*/
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// # Ports

// User is the slice of account state the login flow needs.
type User struct {
	// ID is the opaque user identifier that becomes the JWT sub claim.
	ID string

	Email string

	// RequiresTwoFA gates the emailed-code step on login.
	RequiresTwoFA bool
}

// UserStore validates credentials and resolves accounts.
//
// Implementations own password storage and verification; this service only
// learns whether the pair was acceptable.
type UserStore interface {

	// ValidateUser checks the email/password pair and returns the account.
	// A failed check returns an error; the service never learns why.
	ValidateUser(ctx context.Context, email, password string) (*User, error)

	// GetUser resolves an account by email.
	GetUser(ctx context.Context, email string) (*User, error)
}

// TwoFACodeStore holds pending login codes keyed by email + attempt id.
//
// Codes expire on their own after the provided TTL.
type TwoFACodeStore interface {
	AddCode(ctx context.Context, email string, attemptID uuid.UUID, code string, ttl time.Duration) error

	// GetCode returns the stored code, or an error when the attempt is
	// unknown or expired.
	GetCode(ctx context.Context, email string, attemptID uuid.UUID) (string, error)

	RemoveCode(ctx context.Context, email string, attemptID uuid.UUID) error
}

// EmailClient delivers the 2FA code to the account's mailbox.
type EmailClient interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}
