// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

/*
Package token implements the session and token lifecycle engine.

It issues short-lived HS256 access JWTs paired with opaque single-use refresh
tokens, rotates refresh tokens atomically, detects refresh-token reuse, and
propagates session revocation into access-token validation.

Architecture:

  - Service: orchestrates issuance, rotation, validation, and logout.
  - RefreshStore: pluggable persistence (memory, Redis, PostgreSQL).
  - Handler: chi route layer translating the engine into HTTP + cookies.

The engine never persists refresh-token plaintext; stores only ever see the
keyed BLAKE2b digest computed in internal/platform/sec.
*/
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/minhvu/sesame/internal/platform/config"
	"github.com/minhvu/sesame/internal/platform/sec"
	"github.com/minhvu/sesame/pkg/uuidv7"
)

// accessLeeway absorbs clock skew between issuer and validator when checking
// exp and iat.
const accessLeeway = 30 * time.Second

// # Token Service

// Service issues, rotates, and validates the token pair for user sessions.
//
// All methods are safe for concurrent use; the service itself holds no
// mutable state beyond the injected store.
type Service struct {
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	hashKey    [32]byte

	keys  *sec.KeyStore
	store RefreshStore

	// now is injectable for deterministic tests.
	now func() time.Time
}

/*
NewService wires the token engine together.

Parameters:
  - cfg: *config.Config (claim values, TTLs, refresh-hash key)
  - keys: *sec.KeyStore (HS256 signing/verification keys)
  - store: RefreshStore (refresh-token persistence)

Returns:
  - *Service: Ready-to-use token service
*/
func NewService(cfg *config.Config, keys *sec.KeyStore, store RefreshStore) *Service {
	return &Service{
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
		hashKey:    cfg.RefreshHashKey,
		keys:       keys,
		store:      store,
		now:        time.Now,
	}
}

/*
IssueInitialSession starts a brand-new session for an authenticated user.

Description: Mints a fresh session id, generates the first opaque refresh
token, persists its record, and signs the matching access JWT. Called after
credential verification succeeds; the engine itself never checks passwords.

Parameters:
  - ctx: context.Context
  - userID: string (opaque user identifier, becomes the sub claim)

Returns:
  - IssuedTokens: access JWT + refresh plaintext + session id
  - error: ErrInternal on store or entropy failure
*/
func (service *Service) IssueInitialSession(ctx context.Context, userID string) (IssuedTokens, error) {
	now := service.now()
	sessionID := uuid.New()

	refreshPlain, err := sec.NewOpaqueToken()
	if err != nil {
		return IssuedTokens{}, fmt.Errorf("token_issue_entropy_failed: %w", ErrInternal)
	}

	record := RefreshRecord{
		TokenHash: Hash(sec.HashRefreshToken(service.hashKey, refreshPlain)),
		UserID:    userID,
		SessionID: sessionID,
		CreatedAt: now,
		ExpiresAt: now.Add(service.refreshTTL),
	}

	if err := service.store.InsertInitial(ctx, record); err != nil {
		return IssuedTokens{}, err
	}

	accessToken, err := service.signAccess(userID, sessionID, now)
	if err != nil {
		return IssuedTokens{}, err
	}

	return IssuedTokens{
		UserID:       userID,
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshPlain,
	}, nil
}

/*
Refresh rotates the presented refresh token and signs a new access JWT.

Description: Generates the successor plaintext up front, then delegates the
single-use state machine to the store. On success the new token pair belongs
to the same user and session as the consumed record.

Parameters:
  - ctx: context.Context
  - presentedPlain: string (the client's current refresh token)

Returns:
  - IssuedTokens: new access JWT + new refresh plaintext
  - error: ErrNotFoundOrExpired, ErrRevoked, ErrReuseDetected, ErrInternal
*/
func (service *Service) Refresh(ctx context.Context, presentedPlain string) (IssuedTokens, error) {
	now := service.now()

	newPlain, err := sec.NewOpaqueToken()
	if err != nil {
		return IssuedTokens{}, fmt.Errorf("token_refresh_entropy_failed: %w", ErrInternal)
	}

	_, successor, err := service.store.Rotate(ctx, presentedPlain, newPlain, now, service.refreshTTL, service.hashKey)
	if err != nil {
		return IssuedTokens{}, err
	}

	accessToken, err := service.signAccess(successor.UserID, successor.SessionID, now)
	if err != nil {
		return IssuedTokens{}, err
	}

	return IssuedTokens{
		UserID:       successor.UserID,
		SessionID:    successor.SessionID,
		AccessToken:  accessToken,
		RefreshToken: newPlain,
	}, nil
}

/*
ValidateAccess verifies an access JWT end to end.

Description: Parses and verifies the compact JWS (HS256 only, kid-based key
selection, iss/aud exact match, exp with leeway), then checks the sid claim
against the session revocation flag. A store failure during the revocation
check fails OPEN: availability of every authenticated endpoint must not hinge
on the revocation store being reachable, and the token still expires on its
own within the access TTL.

Parameters:
  - ctx: context.Context
  - tokenString: string (compact JWS)

Returns:
  - *AccessClaims: verified claims
  - error: ErrBadKey, ErrInvalidToken, or ErrRevokedSession
*/
func (service *Service) ValidateAccess(ctx context.Context, tokenString string) (*AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(service.issuer),
		jwt.WithAudience(service.audience),
		jwt.WithLeeway(accessLeeway),
		jwt.WithExpirationRequired(),
	)

	claims := &AccessClaims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(parsed *jwt.Token) (any, error) {
		kid, _ := parsed.Header["kid"].(string)
		secret, known := service.keys.VerificationKey(kid)
		if !known {
			return nil, ErrBadKey
		}
		return secret, nil
	})
	if err != nil {
		// The parser wraps keyfunc errors; surface the kid failure distinctly.
		if errors.Is(err, ErrBadKey) {
			return nil, ErrBadKey
		}
		return nil, ErrInvalidToken
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	revoked, err := service.store.IsSessionRevoked(ctx, sessionID)
	if err == nil && revoked {
		return nil, ErrRevokedSession
	}

	return claims, nil
}

/*
LogoutSession revokes the session server-side. Idempotent.

Outstanding refresh tokens of the session become unusable immediately;
outstanding access tokens fail validation from the next revocation check on.
*/
func (service *Service) LogoutSession(ctx context.Context, sessionID uuid.UUID) error {
	return service.store.RevokeSession(ctx, sessionID, service.now())
}

// # Signing

// signAccess builds and signs the access JWT with the active key.
func (service *Service) signAccess(userID string, sessionID uuid.UUID, now time.Time) (string, error) {
	secret, kid := service.keys.SigningKey()

	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			Audience:  jwt.ClaimStrings{service.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(service.accessTTL)),
			ID:        uuidv7.New(),
		},
		SessionID: sessionID.String(),
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	unsigned.Header["kid"] = kid

	signed, err := unsigned.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token_sign_failed: %w", ErrInternal)
	}
	return signed, nil
}
