// Package checksum computes the content digests used as note versions.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag formats a digest as a strong HTTP entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// ParseETag strips the quoting and weak prefix from an If-Match value.
// The wildcard "*" and an empty header both yield "".
func ParseETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	if v == "*" {
		return ""
	}
	return v
}

// Matches reports whether data still has the version named by want.
// An empty want matches anything.
func Matches(want string, data []byte) bool {
	return want == "" || want == Sum(data)
}
