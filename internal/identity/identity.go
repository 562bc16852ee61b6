// Package identity provides session identity primitives.
package identity

import (
	"regexp"
	"strings"
)

// DefaultSessionID is used when a request carries no usable session ID.
const DefaultSessionID = "default"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// SanitizeSessionID normalizes a client-supplied session ID. Whitespace is
// trimmed; empty or malformed IDs fall back to DefaultSessionID.
func SanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionID
	}
	return id
}

// IsValidSessionID reports whether id satisfies the session ID charset and
// length rules as-is, without the default fallback.
func IsValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}
