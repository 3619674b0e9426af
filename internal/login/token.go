package login

import (
	"strings"

	"github.com/google/uuid"
)

// TokenLength is the fixed width of a login token on the wire.
const TokenLength = 32

// NewToken returns a fresh single-use token: 32 lowercase hex characters.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidToken reports whether s has the shape of a token.
func ValidToken(s string) bool {
	return len(s) == TokenLength
}
