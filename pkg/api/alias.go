package api

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ReservedAliases lists names a note alias must never take, because they
// collide with route names on the same path level.
var ReservedAliases = []string{"get_token", "drop_token", "drop_tokens", "report", "last"}

// ValidateAlias reports whether an alias is acceptable for a note.
// Reserved names and digit-only aliases are refused; digit strings would
// collide with positional note addressing. An empty alias is valid (one
// is generated at creation time).
func ValidateAlias(alias string) error {
	if alias == "" {
		return nil
	}
	if len(alias) > 63 {
		return NewInvalidRequestError("alias", "alias must be 63 characters or fewer")
	}
	for _, r := range ReservedAliases {
		if alias == r {
			return NewInvalidRequestError("alias", fmt.Sprintf("alias %q is reserved", alias))
		}
	}
	if isDigits(alias) {
		return NewInvalidRequestError("alias", "alias can't be a number")
	}
	return nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

const aliasAlphabet = "abcdefghijklmnopqrstuvwxyz"

// RandomAlias generates a ten-letter lowercase alias for notes created
// without an explicit one.
func RandomAlias() string {
	b := make([]byte, 10)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(aliasAlphabet))))
		if err != nil {
			// crypto/rand never fails on supported platforms.
			panic(err)
		}
		b[i] = aliasAlphabet[n.Int64()]
	}
	return string(b)
}
