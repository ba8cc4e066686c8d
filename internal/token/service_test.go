// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/sesame/internal/platform/config"
	"github.com/minhvu/sesame/internal/platform/sec"
)

// newTestService builds a service over the in-memory store with an injectable
// clock and two known signing keys, k1 active.
func newTestService(t *testing.T) (*Service, *MemoryRefreshStore, *time.Time) {
	t.Helper()

	keys, err := sec.NewKeyStore([]sec.SigningKey{
		{KID: "k1", Secret: make([]byte, 32)},
		{KID: "k2", Secret: append(make([]byte, 31), 1)},
	}, "k1")
	require.NoError(t, err)

	cfg := &config.Config{
		JWTIssuer:         "sesame",
		JWTAudience:       "sesame-clients",
		AccessTTLSeconds:  900,
		RefreshTTLSeconds: 86400,
		RefreshHashKey:    [32]byte{7},
	}

	store := NewMemoryRefreshStore()
	service := NewService(cfg, keys, store)

	// The jwt parser checks exp against the real wall clock, so the injected
	// clock starts at real now and tests shift it relative to that.
	clock := time.Now().UTC()
	service.now = func() time.Time { return clock }

	return service, store, &clock
}

/*
TestService_IssueAndValidate verifies the issue-validate roundtrip and the
claim set of a freshly signed access token.
*/
func TestService_IssueAndValidate(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := service.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, "user-42", issued.UserID)
	assert.NotEmpty(t, issued.AccessToken)
	assert.NotEmpty(t, issued.RefreshToken)

	claims, err := service.ValidateAccess(ctx, issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID())
	assert.Equal(t, issued.SessionID.String(), claims.SessionID)
	assert.NotEmpty(t, claims.ID, "jti must be populated")

	parsedSession, err := claims.ParsedSessionID()
	require.NoError(t, err)
	assert.Equal(t, issued.SessionID, parsedSession)
}

/*
TestService_RefreshChain rotates through a chain of refresh tokens and checks
identity is preserved while every plaintext is single-use.
*/
func TestService_RefreshChain(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := service.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)

	current := issued
	seen := map[string]struct{}{issued.RefreshToken: {}}

	for i := 0; i < 5; i++ {
		next, err := service.Refresh(ctx, current.RefreshToken)
		require.NoError(t, err, "rotation %d", i)

		assert.Equal(t, issued.UserID, next.UserID)
		assert.Equal(t, issued.SessionID, next.SessionID)

		_, dup := seen[next.RefreshToken]
		assert.False(t, dup, "refresh plaintext must never repeat")
		seen[next.RefreshToken] = struct{}{}

		current = next
	}
}

/*
TestService_ReuseKillsSession replays a consumed refresh token and checks the
whole session dies: the newest refresh token stops working and outstanding
access tokens fail validation.
*/
func TestService_ReuseKillsSession(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := service.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)

	rotated, err := service.Refresh(ctx, issued.RefreshToken)
	require.NoError(t, err)

	// Replay of the consumed token.
	_, err = service.Refresh(ctx, issued.RefreshToken)
	assert.ErrorIs(t, err, ErrReuseDetected)

	// The legitimate successor is collateral damage.
	_, err = service.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, ErrRevoked)

	// So is the still-unexpired access token.
	_, err = service.ValidateAccess(ctx, rotated.AccessToken)
	assert.ErrorIs(t, err, ErrRevokedSession)
}

/*
TestService_Logout revokes via logout and checks both token kinds die.
*/
func TestService_Logout(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := service.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)

	require.NoError(t, service.LogoutSession(ctx, issued.SessionID))

	_, err = service.ValidateAccess(ctx, issued.AccessToken)
	assert.ErrorIs(t, err, ErrRevokedSession)

	_, err = service.Refresh(ctx, issued.RefreshToken)
	assert.ErrorIs(t, err, ErrRevoked)
}

/*
TestService_TamperedToken flips one signature byte and expects rejection.
*/
func TestService_TamperedToken(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	issued, err := service.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)

	tampered := []byte(issued.AccessToken)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = service.ValidateAccess(ctx, string(tampered))
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Garbage input fails the same way.
	_, err = service.ValidateAccess(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

/*
TestService_UnknownKID signs a token under a kid the verifier has never seen
and expects the distinct bad-key error.
*/
func TestService_UnknownKID(t *testing.T) {
	service, _, _ := newTestService(t)
	now := service.now()

	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			Issuer:    "sesame",
			Audience:  jwt.ClaimStrings{"sesame-clients"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		SessionID: "11111111-2222-4333-8444-555555555555",
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	unsigned.Header["kid"] = "retired-kid"
	signed, err := unsigned.SignedString(make([]byte, 32))
	require.NoError(t, err)

	_, err = service.ValidateAccess(context.Background(), signed)
	assert.ErrorIs(t, err, ErrBadKey)
}

/*
TestService_KeyRotation issues under k1, switches the active kid to k2, and
checks old tokens still verify by kid while new tokens carry k2.
*/
func TestService_KeyRotation(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	oldToken, err := service.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)

	// Roll the active kid; the key set itself is unchanged.
	rolled, err := sec.NewKeyStore([]sec.SigningKey{
		{KID: "k1", Secret: make([]byte, 32)},
		{KID: "k2", Secret: append(make([]byte, 31), 1)},
	}, "k2")
	require.NoError(t, err)
	service.keys = rolled

	// Token signed under k1 still validates via its kid header.
	_, err = service.ValidateAccess(ctx, oldToken.AccessToken)
	require.NoError(t, err)

	// New issuance carries the new kid.
	newToken, err := service.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(newToken.AccessToken, &AccessClaims{})
	require.NoError(t, err)
	assert.Equal(t, "k2", parsed.Header["kid"])

	_, err = service.ValidateAccess(ctx, newToken.AccessToken)
	require.NoError(t, err)
}

/*
TestService_ExpiredAccessToken advances the clock beyond TTL+leeway and
expects validation to reject the token.
*/
func TestService_ExpiredAccessToken(t *testing.T) {
	service, _, clock := newTestService(t)
	ctx := context.Background()

	issued, err := service.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)

	// Within TTL: fine. (ValidateAccess uses the real wall clock inside the
	// jwt parser only through the claims' absolute timestamps, so we verify
	// with the real clock while the token is genuinely fresh.)
	_, err = service.ValidateAccess(ctx, issued.AccessToken)
	require.NoError(t, err)

	// Back-date issuance far enough that exp+leeway is already in the past.
	*clock = time.Now().Add(-2 * time.Hour)
	stale, err := service.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)

	_, err = service.ValidateAccess(ctx, stale.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

/*
TestService_WrongAudience verifies tokens minted for another audience or
issuer are rejected even with a valid signature.
*/
func TestService_WrongAudience(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	foreign := *service
	foreign.audience = "someone-else"

	issued, err := foreign.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)

	_, err = service.ValidateAccess(ctx, issued.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

/*
TestService_ExpiredRefreshToken advances the clock past the refresh TTL and
expects rotation to report not-found-or-expired.
*/
func TestService_ExpiredRefreshToken(t *testing.T) {
	service, _, clock := newTestService(t)
	ctx := context.Background()

	issued, err := service.IssueInitialSession(ctx, "user-42")
	require.NoError(t, err)

	*clock = clock.Add(service.refreshTTL + time.Second)

	_, err = service.Refresh(ctx, issued.RefreshToken)
	assert.ErrorIs(t, err, ErrNotFoundOrExpired)
}
