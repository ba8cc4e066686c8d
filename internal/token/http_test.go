// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/sesame/internal/platform/config"
	"github.com/minhvu/sesame/internal/platform/constants"
	"github.com/minhvu/sesame/internal/platform/sec"
	"github.com/minhvu/sesame/internal/token"
)

// newTestHandler wires a full handler over the in-memory store and returns
// the service alongside so tests can mint sessions directly.
func newTestHandler(t *testing.T) (*token.Handler, *token.Service) {
	t.Helper()

	keys, err := sec.NewKeyStore([]sec.SigningKey{
		{KID: "k1", Secret: make([]byte, 32)},
	}, "k1")
	require.NoError(t, err)

	cfg := &config.Config{
		JWTIssuer:         "sesame",
		JWTAudience:       "sesame-clients",
		AccessTTLSeconds:  900,
		RefreshTTLSeconds: 86400,
		RefreshHashKey:    [32]byte{7},
		AccessCookieName:  "access",
		RefreshCookieName: "refresh",
	}

	service := token.NewService(cfg, keys, token.NewMemoryRefreshStore())
	return token.NewHandler(service, cfg), service
}

// issueSession mints a session straight through the service.
func issueSession(t *testing.T, service *token.Service) token.IssuedTokens {
	t.Helper()

	issued, err := service.IssueInitialSession(context.Background(), "user-42")
	require.NoError(t, err)
	return issued
}

// cookieByName finds a Set-Cookie entry in a recorded response.
func cookieByName(t *testing.T, recorder *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()

	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

// decodeData unwraps the success envelope's data object.
func decodeData(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	return envelope.Data
}

/*
TestHandler_RefreshToken_HappyPath rotates via HTTP and checks the response
body plus the policy of both re-issued cookies.
*/
func TestHandler_RefreshToken_HappyPath(t *testing.T) {
	handler, service := newTestHandler(t)
	issued := issueSession(t, service)

	request := httptest.NewRequest(http.MethodPost, constants.PathRefreshToken, nil)
	request.AddCookie(&http.Cookie{Name: "refresh", Value: issued.RefreshToken})
	recorder := httptest.NewRecorder()

	handler.Routes().ServeHTTP(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)

	data := decodeData(t, recorder)
	assert.Equal(t, "user-42", data[constants.FieldUserID])
	assert.Equal(t, "Bearer", data[constants.FieldTokenType])
	assert.Equal(t, float64(900), data[constants.FieldExpiresIn])
	assert.NotEmpty(t, data[constants.FieldAccessToken])

	access := cookieByName(t, recorder, "access")
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, 900, access.MaxAge)

	refresh := cookieByName(t, recorder, "refresh")
	assert.Equal(t, constants.PathRefreshToken, refresh.Path)
	assert.Equal(t, http.SameSiteStrictMode, refresh.SameSite)
	assert.True(t, refresh.HttpOnly)
	assert.True(t, refresh.Secure)
	assert.NotEqual(t, issued.RefreshToken, refresh.Value, "refresh cookie must rotate")
}

/*
TestHandler_RefreshToken_Failures drives the refresh endpoint through every
401 path and checks the body never distinguishes them.
*/
func TestHandler_RefreshToken_Failures(t *testing.T) {
	handler, service := newTestHandler(t)
	issued := issueSession(t, service)

	// Consume the token once so the replay case below is a true reuse.
	_, err := service.Refresh(context.Background(), issued.RefreshToken)
	require.NoError(t, err)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"missing_cookie", nil},
		{"empty_cookie", &http.Cookie{Name: "refresh", Value: ""}},
		{"unknown_token", &http.Cookie{Name: "refresh", Value: "bogus-token"}},
		{"reused_token", &http.Cookie{Name: "refresh", Value: issued.RefreshToken}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, constants.PathRefreshToken, nil)
			if tt.cookie != nil {
				request.AddCookie(tt.cookie)
			}
			recorder := httptest.NewRecorder()

			handler.Routes().ServeHTTP(recorder, request)
			require.Equal(t, http.StatusUnauthorized, recorder.Code)

			var envelope struct {
				Error string `json:"error"`
			}
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
			assert.Equal(t, token.MsgInvalidRefresh, envelope.Error)
		})
	}
}

/*
TestHandler_VerifyToken accepts the access token from the cookie or a Bearer
header and echoes the verified identity.
*/
func TestHandler_VerifyToken(t *testing.T) {
	handler, service := newTestHandler(t)
	issued := issueSession(t, service)

	t.Run("via_cookie", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, constants.PathVerifyToken, nil)
		request.AddCookie(&http.Cookie{Name: "access", Value: issued.AccessToken})
		recorder := httptest.NewRecorder()

		handler.Routes().ServeHTTP(recorder, request)
		require.Equal(t, http.StatusOK, recorder.Code)

		data := decodeData(t, recorder)
		assert.Equal(t, "user-42", data[constants.FieldUserID])
		assert.Equal(t, issued.SessionID.String(), data[constants.FieldSessionID])
	})

	t.Run("via_bearer_header", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, constants.PathVerifyToken, nil)
		request.Header.Set(constants.HeaderAuthorization, "Bearer "+issued.AccessToken)
		recorder := httptest.NewRecorder()

		handler.Routes().ServeHTTP(recorder, request)
		require.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("missing_token", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, constants.PathVerifyToken, nil)
		recorder := httptest.NewRecorder()

		handler.Routes().ServeHTTP(recorder, request)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)

		var envelope struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
		assert.Equal(t, token.MsgInvalidAccess, envelope.Error)
	})

	t.Run("garbage_token", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, constants.PathVerifyToken, nil)
		request.Header.Set(constants.HeaderAuthorization, "Bearer not-a-jwt")
		recorder := httptest.NewRecorder()

		handler.Routes().ServeHTTP(recorder, request)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

/*
TestHandler_Logout revokes the session, clears both cookies, and leaves the
old access token unusable.
*/
func TestHandler_Logout(t *testing.T) {
	handler, service := newTestHandler(t)
	issued := issueSession(t, service)

	request := httptest.NewRequest(http.MethodPost, constants.PathLogout, nil)
	request.AddCookie(&http.Cookie{Name: "access", Value: issued.AccessToken})
	recorder := httptest.NewRecorder()

	handler.Routes().ServeHTTP(recorder, request)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	// Both cookies are expired on the client.
	assert.Less(t, cookieByName(t, recorder, "access").MaxAge, 0)
	assert.Less(t, cookieByName(t, recorder, "refresh").MaxAge, 0)

	// The revocation reached the store: the token no longer verifies.
	verify := httptest.NewRequest(http.MethodPost, constants.PathVerifyToken, nil)
	verify.AddCookie(&http.Cookie{Name: "access", Value: issued.AccessToken})
	recorder = httptest.NewRecorder()

	handler.Routes().ServeHTTP(recorder, verify)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

/*
TestHandler_Logout_WithoutToken stays a 204: logout is idempotent and never
leaks whether a session existed.
*/
func TestHandler_Logout_WithoutToken(t *testing.T) {
	handler, _ := newTestHandler(t)

	request := httptest.NewRequest(http.MethodPost, constants.PathLogout, nil)
	recorder := httptest.NewRecorder()

	handler.Routes().ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	assert.Less(t, cookieByName(t, recorder, "access").MaxAge, 0)
	assert.Less(t, cookieByName(t, recorder, "refresh").MaxAge, 0)
}
