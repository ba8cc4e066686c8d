// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, route paths, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Security: Cookie scoping and token route paths.
  - Wire Format: JSON field identifiers and HTTP header names.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "sesame-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Token Routes & Cookies

const (
	// PathLogin authenticates credentials and may demand a 2FA step.
	PathLogin = "/login"

	// PathVerify2FA completes a pending 2FA login attempt.
	PathVerify2FA = "/verify-2fa"

	// PathRefreshToken rotates the refresh token. The refresh cookie is
	// scoped to exactly this path.
	PathRefreshToken = "/refresh-token"

	// PathVerifyToken verifies an access token end to end.
	PathVerifyToken = "/verify-token"

	// PathLogout revokes the session and clears cookies.
	PathLogout = "/logout"

	// AccessCookiePath lets the access cookie ride on every request.
	AccessCookiePath = "/"

	// RefreshCookiePath confines the refresh cookie to its own endpoint.
	RefreshCookiePath = PathRefreshToken
)

// # Two-Factor Login

const (
	// TwoFACodeTTL is how long a pending login code stays redeemable.
	TwoFACodeTTL = 5 * time.Minute

	// TwoFACodeDigits is the length of the emailed numeric code.
	TwoFACodeDigits = 6
)

// # HTTP Headers

const (
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldData        = "data"
	FieldError       = "error"
	FieldCode        = "code"
	FieldDetails     = "details"
	FieldMessage     = "message"
	FieldStatus      = "status"
	FieldApp         = "app"
	FieldVersion     = "version"
	FieldChecks      = "checks"
	FieldAccessToken = "access_token"
	FieldTokenType   = "token_type"
	FieldExpiresIn   = "expires_in"
	FieldUserID      = "user_id"
	FieldSessionID   = "session_id"
	FieldAttemptID   = "attempt_id"
)
