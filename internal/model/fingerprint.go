package model

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Fingerprint returns the hex SHA3-256 digest of the token list. Tokens
// are joined with a NUL byte, which cannot appear inside an argument, so
// distinct token lists never collide on spacing.
func Fingerprint(tokens []string) string {
	sum := sha3.Sum256([]byte(strings.Join(tokens, "\x00")))
	return hex.EncodeToString(sum[:])
}
