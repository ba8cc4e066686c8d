// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/minhvu/sesame/internal/platform/constants"
	requestutil "github.com/minhvu/sesame/internal/platform/request"
	"github.com/minhvu/sesame/internal/platform/respond"
	"github.com/minhvu/sesame/internal/platform/validate"
	"github.com/minhvu/sesame/internal/token"
)

// # Definitions & Constructors

// Handler implements the login HTTP endpoints.
//
// # Scope
//
// Only session creation lives here (login + 2FA step). Rotation, validation,
// and logout belong to the token handler, which this handler reuses for
// cookie policy so both layers set identical cookies.
type Handler struct {
	authService  *Service
	tokenHandler *token.Handler
}

// NewHandler constructs a new [Handler] with its dependencies.
func NewHandler(service *Service, tokenHandler *token.Handler) *Handler {
	return &Handler{authService: service, tokenHandler: tokenHandler}
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verify2FARequest struct {
	Email     string `json:"email"`
	AttemptID string `json:"attempt_id"`
	Code      string `json:"code"`
}

// Field names used in validation messages.
const (
	fieldEmail     = "email"
	fieldPassword  = "password"
	fieldAttemptID = "attempt_id"
	fieldCode      = "code"
)

/*
Login authenticates a user and establishes a session or a 2FA challenge.

POST /login

Description: Verifies credentials through the user-store port. Accounts with
2FA enabled receive an emailed code and a 206 with the attempt id; everyone
else gets the token pair as cookies plus the access token in the body.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: Access token credentials (cookies set)
  - 206: Pending 2FA challenge (attempt_id)
  - 401: ErrUnauthorized: Invalid credentials
*/
func (handler *Handler) Login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(fieldEmail, input.Email).
		Email(fieldEmail, input.Email).
		Required(fieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if result.TwoFARequired {
		respond.JSON(writer, http.StatusPartialContent, respond.SuccessEnvelope{
			Data: map[string]any{
				constants.FieldAttemptID: result.AttemptID.String(),
			},
		})
		return
	}

	handler.writeSession(writer, result.Issued)
}

/*
Verify2FA completes a pending login attempt.

POST /verify-2fa

Description: Redeems the emailed code for the attempt and issues the session.

Request:
  - Body: verify2FARequest (Email, AttemptID, Code)

Response:
  - 200: Access token credentials (cookies set)
  - 401: ErrUnauthorized: Unknown attempt, expired or wrong code
*/
func (handler *Handler) Verify2FA(writer http.ResponseWriter, request *http.Request) {
	var input verify2FARequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(fieldEmail, input.Email).
		Email(fieldEmail, input.Email).
		Required(fieldAttemptID, input.AttemptID).
		UUID(fieldAttemptID, input.AttemptID).
		Required(fieldCode, input.Code).
		MinLen(fieldCode, input.Code, constants.TwoFACodeDigits)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	attemptID, err := uuid.Parse(input.AttemptID)
	if err != nil {
		respond.Error(writer, request, validate.RequiredError(fieldAttemptID, "Must be a valid UUID"))
		return
	}

	issued, err := handler.authService.Verify2FA(request.Context(), input.Email, attemptID, input.Code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, issued)
}

// writeSession sets the cookie pair and echoes the access credentials.
func (handler *Handler) writeSession(writer http.ResponseWriter, issued token.IssuedTokens) {
	handler.tokenHandler.SetSessionCookies(writer, issued)

	respond.OK(writer, map[string]any{
		constants.FieldAccessToken: issued.AccessToken,
		constants.FieldTokenType:   "Bearer",
		constants.FieldExpiresIn:   int64(handler.tokenHandler.AccessTTL() / time.Second),
		constants.FieldUserID:      issued.UserID,
	})
}
