package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// etagBytes is the number of SHA-256 bytes kept in an ETag (16 hex chars).
const etagBytes = 8

// ETag returns the strong entity tag for body, quoted as required by RFC 9110.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:etagBytes]) + `"`
}

// MatchesETag reports whether an If-None-Match header value matches etag.
// It accepts "*", comma separated lists and weak validators (W/"...").
// Comparison is weak, as If-None-Match requires.
func MatchesETag(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}

	want := opaqueTag(etag)
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if opaqueTag(candidate) == want {
			return true
		}
	}
	return false
}

// opaqueTag strips whitespace and the weak prefix from an entity tag.
func opaqueTag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "W/")
	return tag
}
