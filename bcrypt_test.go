package insurance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	insurance "github.com/goliatone/go-insurance"
)

func TestPasswordHasher(t *testing.T) {
	hasher := insurance.NewPasswordHasher(bcrypt.MinCost)
	assert.Equal(t, bcrypt.MinCost, hasher.Cost())

	digest, err := hasher.Hash(testPassword)
	require.NoError(t, err)
	assert.NotEqual(t, testPassword, digest)

	cost, err := bcrypt.Cost([]byte(digest))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	assert.True(t, hasher.Verify(testPassword, digest))
	assert.False(t, hasher.Verify("wrong-password", digest))
	assert.False(t, hasher.Verify(testPassword, "not-a-digest"))
	assert.False(t, hasher.Verify("", digest))
}

func TestPasswordHasherRejectsEmpty(t *testing.T) {
	_, err := insurance.NewPasswordHasher(bcrypt.MinCost).Hash("")
	assert.ErrorIs(t, err, insurance.ErrPasswordRequired)
}

func TestPasswordHasherClampsCost(t *testing.T) {
	assert.NotEqual(t, 99, insurance.NewPasswordHasher(99).Cost())
	assert.NotEqual(t, 1, insurance.NewPasswordHasher(1).Cost())
}
