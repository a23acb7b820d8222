package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLoginCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code, err := GenerateLoginCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)

		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "code must be numeric, got %q", code)
		}
		seen[code] = true
	}

	// 100 draws from a million-value space colliding down to a handful
	// would mean the generator is broken
	assert.Greater(t, len(seen), 90)
}

func TestHashLoginCode(t *testing.T) {
	h1 := HashLoginCode("123456")
	h2 := HashLoginCode("123456")
	h3 := HashLoginCode("654321")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64) // hex-encoded SHA-256
	assert.NotContains(t, h1, "123456")
}

func TestCodeEqual(t *testing.T) {
	stored := HashLoginCode("042817")

	assert.True(t, CodeEqual(stored, "042817"))
	assert.False(t, CodeEqual(stored, "042818"))
	assert.False(t, CodeEqual(stored, ""))
	assert.False(t, CodeEqual("", "042817"))
}
