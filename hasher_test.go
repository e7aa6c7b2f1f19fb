package auth_test

import (
	"testing"
	"time"

	auth "github.com/ardes/authenticated-system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsDeterministic(t *testing.T) {
	hasher := auth.NewHasher()

	first := hasher.Hash("sekrit", "salt-value")
	second := hasher.Hash("sekrit", "salt-value")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "sha256-sized key, hex encoded")
}

func TestHashDependsOnSecretAndSalt(t *testing.T) {
	hasher := auth.NewHasher()

	base := hasher.Hash("sekrit", "salt-value")

	assert.NotEqual(t, base, hasher.Hash("other", "salt-value"))
	assert.NotEqual(t, base, hasher.Hash("sekrit", "other-salt"))
}

func TestVerify(t *testing.T) {
	hasher := auth.NewHasher()
	digest := hasher.Hash("sekrit", "salt-value")

	assert.True(t, hasher.Verify("sekrit", "salt-value", digest))
	assert.False(t, hasher.Verify("wrong", "salt-value", digest))
	assert.False(t, hasher.Verify("sekrit", "wrong-salt", digest))
	assert.False(t, hasher.Verify("sekrit", "salt-value", "not-a-digest"))
}

func TestNewSaltVariesWithInputs(t *testing.T) {
	hasher := auth.NewHasher()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	salt := hasher.NewSalt(at, "pepe.rone@example.com")

	require.Len(t, salt, 64)
	assert.Equal(t, salt, hasher.NewSalt(at, "pepe.rone@example.com"))
	assert.NotEqual(t, salt, hasher.NewSalt(at, "else@example.com"))
	assert.NotEqual(t, salt, hasher.NewSalt(at.Add(time.Nanosecond), "pepe.rone@example.com"))
}

func TestNewOpaqueToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		token := auth.NewOpaqueToken()
		require.Len(t, token, 64)
		require.False(t, seen[token], "tokens must not repeat")
		seen[token] = true
	}
}
