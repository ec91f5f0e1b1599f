package team

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, c := range code {
			require.True(t, strings.ContainsRune(CodeAlphabet, c), "unexpected %q in %s", c, code)
		}
		assert.True(t, ValidCode(code))
		seen[code] = true
	}
	assert.Greater(t, len(seen), 490)
}

func TestCodeAlphabetHasNoLookAlikes(t *testing.T) {
	assert.Len(t, CodeAlphabet, 32)
	for _, c := range "01IO" {
		assert.NotContains(t, CodeAlphabet, string(c))
	}
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("ABCD2345"))
	assert.False(t, ValidCode("ABCD234"))
	assert.False(t, ValidCode("ABCD23450"))
	assert.False(t, ValidCode("ABCD2340"))
	assert.False(t, ValidCode("abcd2345"))
	assert.Equal(t, "ABCD2345", NormalizeCode("  abcd2345 "))
}
