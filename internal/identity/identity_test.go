package identity

import (
	"strings"
	"testing"
)

func TestSanitizeSessionID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid plain", "trip-2026", "trip-2026"},
		{"valid with separators", "user_1:tab.4", "user_1:tab.4"},
		{"empty", "", DefaultSessionID},
		{"whitespace only", "   ", DefaultSessionID},
		{"trimmed", "  abc  ", "abc"},
		{"illegal chars", "a/b", DefaultSessionID},
		{"spaces inside", "my session", DefaultSessionID},
		{"too long", strings.Repeat("x", 129), DefaultSessionID},
		{"max length", strings.Repeat("x", 128), strings.Repeat("x", 128)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeSessionID(tt.in); got != tt.want {
				t.Errorf("SanitizeSessionID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsValidSessionID(t *testing.T) {
	t.Parallel()

	if !IsValidSessionID("ok-1") {
		t.Error("expected ok-1 to be valid")
	}
	if IsValidSessionID("") {
		t.Error("expected empty ID to be invalid")
	}
	if IsValidSessionID("has space") {
		t.Error("expected ID with space to be invalid")
	}
}
