package utils

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Sup3r-secret!")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("Sup3r-secret!", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordAgainstDummy("Sup3r-secret!"))
}

func TestOTPHashing(t *testing.T) {
	hash, err := HashOTP("123456")
	require.NoError(t, err)

	assert.NotEqual(t, "123456", hash)
	assert.True(t, CheckOTPHash("123456", hash))
	assert.False(t, CheckOTPHash("654321", hash))
	assert.False(t, CheckOTPAgainstDummy("000000"))
}

func TestGenerateOTPRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := GenerateOTP(6)
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestSecretEqual(t *testing.T) {
	assert.True(t, SecretEqual("admin-key", "admin-key"))
	assert.False(t, SecretEqual("admin-ke", "admin-key"))
	assert.False(t, SecretEqual("", ""))
}
