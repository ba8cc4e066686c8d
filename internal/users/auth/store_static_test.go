// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/sesame/internal/users/auth"
)

const seedJSON = `[
	{"user_id": "user-1", "email": "minh@sesame.app", "password": "pw-one"},
	{"user_id": "user-2", "email": "an@sesame.app", "password": "pw-two", "requires_2fa": true}
]`

/*
TestStaticUserStoreFromJSON covers construction: empty input disables the
store, malformed input and duplicate emails are rejected.
*/
func TestStaticUserStoreFromJSON(t *testing.T) {
	t.Run("empty_disables", func(t *testing.T) {
		store, err := auth.StaticUserStoreFromJSON("   ")
		require.NoError(t, err)
		assert.Nil(t, store)
	})

	t.Run("valid_seed_set", func(t *testing.T) {
		store, err := auth.StaticUserStoreFromJSON(seedJSON)
		require.NoError(t, err)
		require.NotNil(t, store)
	})

	t.Run("malformed_json", func(t *testing.T) {
		_, err := auth.StaticUserStoreFromJSON(`{not an array`)
		require.Error(t, err)
	})

	t.Run("missing_identity", func(t *testing.T) {
		_, err := auth.StaticUserStoreFromJSON(`[{"email": "x@sesame.app", "password": "pw"}]`)
		require.Error(t, err)
	})

	t.Run("duplicate_email", func(t *testing.T) {
		_, err := auth.StaticUserStoreFromJSON(`[
			{"user_id": "a", "email": "x@sesame.app", "password": "pw"},
			{"user_id": "b", "email": "x@sesame.app", "password": "pw"}
		]`)
		require.Error(t, err)
	})
}

/*
TestStaticUserStore_ValidateUser checks the credential matrix and the 2FA flag
passthrough.
*/
func TestStaticUserStore_ValidateUser(t *testing.T) {
	store, err := auth.StaticUserStoreFromJSON(seedJSON)
	require.NoError(t, err)
	ctx := context.Background()

	user, err := store.ValidateUser(ctx, "minh@sesame.app", "pw-one")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.False(t, user.RequiresTwoFA)

	user, err = store.ValidateUser(ctx, "an@sesame.app", "pw-two")
	require.NoError(t, err)
	assert.True(t, user.RequiresTwoFA)

	_, err = store.ValidateUser(ctx, "minh@sesame.app", "wrong")
	require.Error(t, err)

	_, err = store.ValidateUser(ctx, "ghost@sesame.app", "pw-one")
	require.Error(t, err)
}

/*
TestStaticUserStore_GetUser resolves seeded accounts and misses cleanly.
*/
func TestStaticUserStore_GetUser(t *testing.T) {
	store, err := auth.StaticUserStoreFromJSON(seedJSON)
	require.NoError(t, err)
	ctx := context.Background()

	user, err := store.GetUser(ctx, "an@sesame.app")
	require.NoError(t, err)
	assert.Equal(t, "user-2", user.ID)

	_, err = store.GetUser(ctx, "ghost@sesame.app")
	require.Error(t, err)
}
