// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/minhvu/sesame/internal/platform/apperr"
)

// StaticUserStore implements [UserStore] from a fixed, in-memory account set.
//
// # Scope
//
// Development and single-tenant deployments only: accounts come from the
// SEED_USERS_JSON environment variable and passwords are compared in plain
// text. Production deployments plug in their own [UserStore] against a real
// identity backend.
type StaticUserStore struct {
	byEmail map[string]seedUser
}

type seedUser struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	RequiresTwoFA bool   `json:"requires_2fa"`
}

/*
StaticUserStoreFromJSON builds a [StaticUserStore] from a JSON account array.

Parameters:
  - raw: string (JSON array of {user_id, email, password, requires_2fa};
    empty string means no store)

Returns:
  - *StaticUserStore: nil when raw is empty
  - error: Decoding failures or duplicate emails
*/
func StaticUserStoreFromJSON(raw string) (*StaticUserStore, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var seeds []seedUser
	if err := json.Unmarshal([]byte(raw), &seeds); err != nil {
		return nil, fmt.Errorf("auth: seed users are not a valid JSON array: %w", err)
	}

	byEmail := make(map[string]seedUser, len(seeds))
	for _, seed := range seeds {
		if seed.Email == "" || seed.UserID == "" {
			return nil, fmt.Errorf("auth: seed user entries need both user_id and email")
		}
		if _, dup := byEmail[seed.Email]; dup {
			return nil, fmt.Errorf("auth: duplicate seed user email %q", seed.Email)
		}
		byEmail[seed.Email] = seed
	}

	return &StaticUserStore{byEmail: byEmail}, nil
}

// ValidateUser checks the email/password pair against the seeded accounts.
func (store *StaticUserStore) ValidateUser(_ context.Context, email, password string) (*User, error) {
	seed, exists := store.byEmail[email]

	// Compare even for unknown accounts so timing does not reveal whether
	// the email exists.
	expected := ""
	if exists {
		expected = seed.Password
	}
	match := subtle.ConstantTimeCompare([]byte(expected), []byte(password)) == 1

	if !exists || !match {
		return nil, apperr.Unauthorized("Invalid credentials")
	}

	return &User{ID: seed.UserID, Email: seed.Email, RequiresTwoFA: seed.RequiresTwoFA}, nil
}

// GetUser resolves a seeded account by email.
func (store *StaticUserStore) GetUser(_ context.Context, email string) (*User, error) {
	seed, exists := store.byEmail[email]
	if !exists {
		return nil, apperr.NotFound("User")
	}
	return &User{ID: seed.UserID, Email: seed.Email, RequiresTwoFA: seed.RequiresTwoFA}, nil
}
