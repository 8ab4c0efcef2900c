package orders

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Character sets for generated identifiers. Codes avoid characters that are
// easily confused when read aloud or written down.
const (
	codeCharset      = "ABCDEFGHJKLMNPQRSTUVWXYZ3789"
	secretCharset    = "abcdefghjkmnpqrstuvwxyz23456789"
	pseudonymCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	codeLength      = 5
	secretLength    = 32
	pseudonymLength = 10
)

// Code error messages.
const (
	msgCodeInUse   = "This order code is already in use."
	msgCodeInvalid = "This order code contains invalid characters."
)

func randomString(charset string, length int) string {
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(charset)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // crypto/rand failure is not recoverable
		}
		b.WriteByte(charset[n.Int64()])
	}
	return b.String()
}

// GenerateCode returns a new random order code.
func GenerateCode() string {
	return randomString(codeCharset, codeLength)
}

// GenerateSecret returns a new order or position secret.
func GenerateSecret() string {
	return randomString(secretCharset, secretLength)
}

// GeneratePseudonymizationID returns an identifier safe to hand to external
// systems without exposing the attendee.
func GeneratePseudonymizationID() string {
	return randomString(pseudonymCharset, pseudonymLength)
}

// ValidCode reports whether a client-supplied order code uses only allowed
// characters.
func ValidCode(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeCharset, rune(code[i])) {
			return false
		}
	}
	return true
}
