package util

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NormalizeQuestion lowercases s, trims it and collapses internal whitespace
// runs to a single space. Questions that differ only in case or spacing
// normalize to the same string.
func NormalizeQuestion(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// HashQuestion is the stable cache hash of a question's normalized form.
func HashQuestion(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(NormalizeQuestion(s)))
}
