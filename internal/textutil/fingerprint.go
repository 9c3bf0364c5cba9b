package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
)

// tokenSplitPattern matches non-alphanumeric character sequences for tokenization.
var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeName lowercases a filename, strips its extension, and collapses
// separator runs to single spaces. Two recordings of the same broadcast named
// with different separator conventions normalize identically.
func NormalizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	lowered := strings.ToLower(base)
	tokens := tokenSplitPattern.Split(lowered, -1)
	kept := tokens[:0]
	for _, token := range tokens {
		if token != "" {
			kept = append(kept, token)
		}
	}
	return strings.Join(kept, " ")
}

// Fingerprint returns a stable hex digest of the normalized filename, used as
// the resolver cache key.
func Fingerprint(name string) string {
	sum := sha256.Sum256([]byte(NormalizeName(name)))
	return hex.EncodeToString(sum[:16])
}
