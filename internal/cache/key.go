// Package cache holds answers to already-resolved questions, keyed by a
// normalized content hash, with per-entry TTL and LRU eviction.
package cache

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Questions that differ only by casing, accents, or whitespace must collide
// on the same key; the geographic scope is part of the semantic question, so
// different scopes must produce different keys.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// DeriveKey returns a fixed-length opaque key for a resolved question within
// an optional geographic scope.
func DeriveKey(resolvedQuestion, geoScope string) string {
	h := xxhash.New()
	_, _ = h.WriteString(Normalize(resolvedQuestion))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(Normalize(geoScope))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Normalize lowercases, strips accents, and collapses whitespace. Shared with
// the precompiled matcher so trigger patterns and cache keys agree on what
// "the same question" means.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(stripAccents, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(s), " ")
}
