// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package token

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minhvu/sesame/internal/platform/apperr"
	"github.com/minhvu/sesame/internal/platform/config"
	"github.com/minhvu/sesame/internal/platform/constants"
	"github.com/minhvu/sesame/internal/platform/respond"
)

// # Definitions & Constructors

// Handler implements the token lifecycle HTTP endpoints.
//
// # Scope
//
// This handler owns rotation, validation, and logout. Session creation lives
// in the login flow (internal/users/auth), which calls the same [Service].
type Handler struct {
	tokenService *Service

	accessCookieName  string
	refreshCookieName string
	accessTTL         time.Duration
	refreshTTL        time.Duration
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, cfg *config.Config) *Handler {
	return &Handler{
		tokenService:      service,
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
		accessTTL:         cfg.AccessTTL(),
		refreshTTL:        cfg.RefreshTTL(),
	}
}

// Routes returns a [chi.Router] configured with the token lifecycle routes.
//
// # Endpoints
//   - POST /refresh-token : Rotates the refresh token and re-issues the pair.
//   - POST /verify-token  : Verifies the access token end to end.
//   - POST /logout        : Revokes the session and clears cookies.
//
// The routes are mounted at the server root so the refresh cookie's
// Path=/refresh-token scope matches its endpoint exactly.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post(constants.PathRefreshToken, handler.refreshToken)
	router.Post(constants.PathVerifyToken, handler.verifyToken)
	router.Post(constants.PathLogout, handler.logout)

	return router
}

/*
RefreshToken rotates the refresh token and issues a new token pair.

POST /refresh-token

Description: Reads the refresh cookie, runs the single-use rotation, and
re-injects both cookies. All rotation failures except storage errors collapse
into one 401 so a caller cannot probe whether a stolen token was once valid.

Response:
  - 200: New access token credentials (cookies updated)
  - 401: ErrUnauthorized: Missing, invalid, expired, revoked, or reused token
  - 500: ErrInternal: Storage failure
*/
func (handler *Handler) refreshToken(writer http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(handler.refreshCookieName)
	if err != nil || cookie.Value == "" {
		respond.Error(writer, request, apperr.Unauthorized(MsgInvalidRefresh))
		return
	}

	issued, err := handler.tokenService.Refresh(request.Context(), cookie.Value)
	if err != nil {
		respond.Error(writer, request, mapRefreshError(err))
		return
	}

	handler.SetSessionCookies(writer, issued)

	respond.OK(writer, map[string]any{
		constants.FieldAccessToken: issued.AccessToken,
		constants.FieldTokenType:   "Bearer",
		constants.FieldExpiresIn:   int64(handler.accessTTL / time.Second),
		constants.FieldUserID:      issued.UserID,
	})
}

/*
VerifyToken checks the presented access token end to end.

POST /verify-token

Description: Accepts the access token from the access cookie or a Bearer
header, verifies signature, claims, and session revocation, and echoes the
verified identity.

Response:
  - 200: Verified user and session identifiers
  - 401: ErrUnauthorized: Any verification failure
*/
func (handler *Handler) verifyToken(writer http.ResponseWriter, request *http.Request) {
	tokenString := handler.accessTokenFrom(request)
	if tokenString == "" {
		respond.Error(writer, request, apperr.Unauthorized(MsgInvalidAccess))
		return
	}

	claims, err := handler.tokenService.ValidateAccess(request.Context(), tokenString)
	if err != nil {
		respond.Error(writer, request, mapAccessError(err))
		return
	}

	respond.OK(writer, map[string]any{
		constants.FieldUserID:    claims.UserID(),
		constants.FieldSessionID: claims.SessionID,
	})
}

/*
Logout revokes the current session server-side and clears both cookies.

POST /logout

Description: Resolves the session from the access token, revokes it
(best-effort), and always clears the cookie pair. Idempotent: logging out an
already-revoked or expired session still succeeds.

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if tokenString := handler.accessTokenFrom(request); tokenString != "" {
		claims, err := handler.tokenService.ValidateAccess(request.Context(), tokenString)
		if err == nil {
			if sessionID, parseErr := claims.ParsedSessionID(); parseErr == nil {
				_ = handler.tokenService.LogoutSession(request.Context(), sessionID)
			}
		}
	}

	handler.ClearSessionCookies(writer)
	respond.NoContent(writer)
}

// # Cookies

// SetSessionCookies injects the token pair per the cookie policy: the access
// cookie rides on every request (Lax, Path=/), the refresh cookie only
// reaches its own endpoint (Strict, Path=/refresh-token).
func (handler *Handler) SetSessionCookies(writer http.ResponseWriter, issued IssuedTokens) {
	http.SetCookie(writer, &http.Cookie{
		Name:     handler.accessCookieName,
		Value:    issued.AccessToken,
		Path:     constants.AccessCookiePath,
		MaxAge:   int(handler.accessTTL / time.Second),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.SetCookie(writer, &http.Cookie{
		Name:     handler.refreshCookieName,
		Value:    issued.RefreshToken,
		Path:     constants.RefreshCookiePath,
		MaxAge:   int(handler.refreshTTL / time.Second),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookies expires both cookies on the client.
func (handler *Handler) ClearSessionCookies(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     handler.accessCookieName,
		Value:    "",
		Path:     constants.AccessCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.SetCookie(writer, &http.Cookie{
		Name:     handler.refreshCookieName,
		Value:    "",
		Path:     constants.RefreshCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// AccessTTL exposes the configured access-token lifetime for collaborating
// handlers that echo expires_in.
func (handler *Handler) AccessTTL() time.Duration {
	return handler.accessTTL
}

// accessTokenFrom extracts the access token from the cookie or, as a
// fallback, from an 'Authorization: Bearer' header.
func (handler *Handler) accessTokenFrom(request *http.Request) string {
	if cookie, err := request.Cookie(handler.accessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := request.Header.Get(constants.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

// # Error Mapping

// Client-safe messages. Deliberately identical across the distinguishable
// failure modes of each flow.
const (
	MsgInvalidRefresh = "Invalid or expired refresh token"
	MsgInvalidAccess  = "Invalid or expired token"
)

// mapRefreshError translates rotation sentinels into the API error shape.
func mapRefreshError(err error) error {
	switch {
	case errors.Is(err, ErrNotFoundOrExpired),
		errors.Is(err, ErrRevoked),
		errors.Is(err, ErrReuseDetected):
		return apperr.Unauthorized(MsgInvalidRefresh)
	default:
		return apperr.Internal(err)
	}
}

// mapAccessError translates validation sentinels into the API error shape.
func mapAccessError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrBadKey),
		errors.Is(err, ErrRevokedSession):
		return apperr.Unauthorized(MsgInvalidAccess)
	default:
		return apperr.Internal(err)
	}
}
