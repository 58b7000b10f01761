package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, hasher.Compare(hash, "correct horse battery staple"))
	assert.Error(t, hasher.Compare(hash, "wrong password"))
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	h, ok := NewBcryptHasher(bcrypt.MaxCost + 1).(*bcryptHasher)
	require.True(t, ok)
	assert.Equal(t, DefaultCost, h.cost)
}
