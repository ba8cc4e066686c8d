// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/minhvu/sesame/internal/platform/apperr"
	"github.com/minhvu/sesame/internal/platform/constants"
	"github.com/minhvu/sesame/internal/token"
)

// # Service

// Service implements the login and two-factor use cases.
//
// It never creates tokens itself; session issuance is delegated to the
// injected [token.Service] once identity is established.
type Service struct {
	users  UserStore
	codes  TwoFACodeStore
	email  EmailClient
	tokens *token.Service
}

// NewService constructs a new [Service] with its ports and the token engine.
func NewService(users UserStore, codes TwoFACodeStore, email EmailClient, tokens *token.Service) *Service {
	return &Service{
		users:  users,
		codes:  codes,
		email:  email,
		tokens: tokens,
	}
}

// # Login Flow

// LoginInput holds the credentials presented at login.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is either an issued session or a pending 2FA challenge.
type LoginResult struct {
	// TwoFARequired signals that the caller must complete the 2FA step.
	TwoFARequired bool

	// AttemptID identifies the pending 2FA attempt. Zero unless TwoFARequired.
	AttemptID uuid.UUID

	// Issued holds the new session's tokens. Empty when TwoFARequired.
	Issued token.IssuedTokens
}

/*
Login validates credentials and either issues a session or starts a 2FA attempt.

Description: Credential verification happens behind the [UserStore] port.
For accounts with 2FA enabled, a fresh attempt id and a short-lived numeric
code are generated, stored, and emailed; no session exists until the code is
verified.

Parameters:
  - ctx: context.Context
  - input: LoginInput

Returns:
  - LoginResult: Issued session or pending challenge
  - error: apperr.Unauthorized for bad credentials, storage/mail failures
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	user, err := service.users.ValidateUser(ctx, input.Email, input.Password)
	if err != nil {
		return LoginResult{}, apperr.Unauthorized("Invalid credentials")
	}

	if !user.RequiresTwoFA {
		issued, err := service.tokens.IssueInitialSession(ctx, user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Issued: issued}, nil
	}

	// 2FA path: generate attempt + code, store, deliver.
	attemptID := uuid.New()
	code, err := newNumericCode(constants.TwoFACodeDigits)
	if err != nil {
		return LoginResult{}, err
	}

	if err := service.codes.AddCode(ctx, user.Email, attemptID, code, constants.TwoFACodeTTL); err != nil {
		return LoginResult{}, err
	}

	body := fmt.Sprintf("Your login code is %s. It expires in %s.", code, constants.TwoFACodeTTL)
	if err := service.email.SendEmail(ctx, user.Email, "Your login code", body); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{TwoFARequired: true, AttemptID: attemptID}, nil
}

/*
Verify2FA completes a pending login attempt and issues the session.

Description: The stored code is compared in constant time and consumed on
success. Unknown attempts, expired codes, and mismatches all collapse into
the same 401 so the endpoint cannot be used as an oracle.

Parameters:
  - ctx: context.Context
  - email: string
  - attemptID: uuid.UUID
  - code: string

Returns:
  - token.IssuedTokens: The new session's tokens
  - error: apperr.Unauthorized or downstream failures
*/
func (service *Service) Verify2FA(ctx context.Context, email string, attemptID uuid.UUID, code string) (token.IssuedTokens, error) {
	stored, err := service.codes.GetCode(ctx, email, attemptID)
	if err != nil {
		return token.IssuedTokens{}, apperr.Unauthorized("Invalid code or attempt")
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return token.IssuedTokens{}, apperr.Unauthorized("Invalid code or attempt")
	}

	// Consume the code before issuing so it can never be redeemed twice.
	if err := service.codes.RemoveCode(ctx, email, attemptID); err != nil {
		return token.IssuedTokens{}, err
	}

	user, err := service.users.GetUser(ctx, email)
	if err != nil {
		return token.IssuedTokens{}, apperr.Unauthorized("Invalid code or attempt")
	}

	return service.tokens.IssueInitialSession(ctx, user.ID)
}

// newNumericCode generates a uniformly random code of the given digit count.
func newNumericCode(digits int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("auth: 2fa code entropy failed: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}
