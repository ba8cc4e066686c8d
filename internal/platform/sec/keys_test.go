// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package sec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu/sesame/internal/platform/sec"
)

func validKey(kid string) sec.SigningKey {
	return sec.SigningKey{KID: kid, Secret: bytes.Repeat([]byte{0x42}, 32)}
}

/*
TestNewKeyStore_Validation exercises the constructor's rejection rules.
*/
func TestNewKeyStore_Validation(t *testing.T) {
	tests := []struct {
		name      string
		keys      []sec.SigningKey
		activeKID string
		wantErr   bool
	}{
		{"valid_single_key", []sec.SigningKey{validKey("k1")}, "k1", false},
		{"valid_multiple_keys", []sec.SigningKey{validKey("k1"), validKey("k2")}, "k2", false},
		{"empty_key_set", nil, "k1", true},
		{"duplicate_kid", []sec.SigningKey{validKey("k1"), validKey("k1")}, "k1", true},
		{"short_secret", []sec.SigningKey{{KID: "k1", Secret: []byte("too-short")}}, "k1", true},
		{"active_kid_missing", []sec.SigningKey{validKey("k1")}, "k9", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := sec.NewKeyStore(tt.keys, tt.activeKID)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, store)
			} else {
				require.NoError(t, err)
				require.NotNil(t, store)
				assert.Equal(t, tt.activeKID, store.ActiveKID())
			}
		})
	}
}

/*
TestKeyStore_SigningKey verifies signing always uses the active kid.
*/
func TestKeyStore_SigningKey(t *testing.T) {
	k1 := validKey("k1")
	k2 := sec.SigningKey{KID: "k2", Secret: bytes.Repeat([]byte{0x99}, 32)}

	store, err := sec.NewKeyStore([]sec.SigningKey{k1, k2}, "k2")
	require.NoError(t, err)

	secret, kid := store.SigningKey()
	assert.Equal(t, "k2", kid)
	assert.Equal(t, k2.Secret, secret)
}

/*
TestKeyStore_VerificationKey covers kid lookup, the empty-kid default, and
unknown kids.
*/
func TestKeyStore_VerificationKey(t *testing.T) {
	k1 := validKey("k1")
	k2 := sec.SigningKey{KID: "k2", Secret: bytes.Repeat([]byte{0x99}, 32)}

	store, err := sec.NewKeyStore([]sec.SigningKey{k1, k2}, "k1")
	require.NoError(t, err)

	// Known kid resolves its own secret.
	secret, ok := store.VerificationKey("k2")
	assert.True(t, ok)
	assert.Equal(t, k2.Secret, secret)

	// Empty kid falls back to the active key.
	secret, ok = store.VerificationKey("")
	assert.True(t, ok)
	assert.Equal(t, k1.Secret, secret)

	// Unknown kid is rejected.
	_, ok = store.VerificationKey("nope")
	assert.False(t, ok)
}
