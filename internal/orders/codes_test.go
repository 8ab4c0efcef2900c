package orders

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := GenerateCode()
		assert.Len(t, code, codeLength)
		assert.True(t, ValidCode(code), code)
		seen[code] = true
	}
	// 100 draws from 28^5 should not collide
	assert.Greater(t, len(seen), 95)
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("ABCDE"))
	assert.True(t, ValidCode("FOO"))
	assert.False(t, ValidCode("ABaDE")) // lowercase
	assert.False(t, ValidCode("AB1DE")) // ambiguous digit
	assert.False(t, ValidCode("ABODE")) // letter O
	assert.False(t, ValidCode(""))
}

func TestGenerateSecret(t *testing.T) {
	s := GenerateSecret()
	assert.Len(t, s, secretLength)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(secretCharset, r))
	}
	assert.NotEqual(t, s, GenerateSecret())
}

func TestGeneratePseudonymizationID(t *testing.T) {
	id := GeneratePseudonymizationID()
	assert.Len(t, id, pseudonymLength)
	for _, r := range id {
		assert.True(t, strings.ContainsRune(pseudonymCharset, r))
	}
}
