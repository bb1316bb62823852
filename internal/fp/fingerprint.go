// Package fp fingerprints cached content for HTTP validators.
package fp

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint is the hex SHA-256 of b.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ETag returns a strong entity tag for b.
func ETag(b []byte) string {
	return `"` + Fingerprint(b) + `"`
}

// Matches reports whether an If-None-Match header value matches etag. It
// accepts "*", comma separated lists and weak validators.
func Matches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, c := range strings.Split(ifNoneMatch, ",") {
		c = strings.TrimSpace(c)
		if c == "*" || strings.TrimPrefix(c, "W/") == etag {
			return true
		}
	}
	return false
}
