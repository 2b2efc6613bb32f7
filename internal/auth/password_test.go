package auth

import (
	"strings"
	"testing"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher()

	hash, err := hasher.Hash("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))

	ok, err := hasher.Verify("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong horse battery", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_SaltedHashesDiffer(t *testing.T) {
	hasher := NewPasswordHasher()

	a, err := hasher.Hash("same password")
	require.NoError(t, err)
	b, err := hasher.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_EmptyHashNeverMatches(t *testing.T) {
	hasher := NewPasswordHasher()

	ok, err := hasher.Verify("assessly-timing-equalizer", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	hasher := NewPasswordHasher()

	tests := []string{
		"plaintext",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
	}
	for _, encoded := range tests {
		ok, err := hasher.Verify("pw", encoded)
		assert.Error(t, err, encoded)
		assert.False(t, ok, encoded)
	}
}

func TestValidateStrength(t *testing.T) {
	assert.ErrorIs(t, ValidateStrength("short"), domain.ErrPasswordTooWeak)
	assert.NoError(t, ValidateStrength("long enough"))
}
