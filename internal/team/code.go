package team

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/aerius-app/aerius/internal/validation"
)

// CodeAlphabet excludes 0/O, 1/I and similar look-alikes.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of characters in an invite code.
const CodeLength = 8

// GenerateCode returns a random invite code. The alphabet has 32 symbols,
// so masking a random byte keeps the distribution uniform.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = CodeAlphabet[b&31]
	}
	return string(buf), nil
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code has the shape of an invite code.
func ValidCode(code string) bool {
	return validation.Var(code, "invitecode") == nil
}
