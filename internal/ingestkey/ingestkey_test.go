package ingestkey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("meter-secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$"))

	assert.True(t, Verify("meter-secret", encoded))
	assert.False(t, Verify("meter-secret2", encoded))

	other, err := Hash("meter-secret")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, other)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!$aGFzaA",
	} {
		assert.False(t, Verify("x", encoded), encoded)
	}
}

func TestVerifier(t *testing.T) {
	assert.False(t, NewVerifier("").Enabled())
	assert.False(t, NewVerifier("").Verify("anything"))

	encoded, err := Hash("k")
	require.NoError(t, err)
	v := NewVerifier("  " + encoded + "\n")
	assert.True(t, v.Enabled())
	assert.True(t, v.Verify("k"))
	assert.False(t, v.Verify(""))
}
