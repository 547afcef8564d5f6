package exceptions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		// Literals
		{"abc", "abc", true},
		{"abc", "abd", false},
		{"abc", "ab", false},
		{"abc", "abcd", false},

		// Empty pattern matches only empty name
		{"", "", true},
		{"", "x", false},
		{"*", "", true},

		// Star, including across path separators
		{"*", "anything", true},
		{"db/*.xml", "db/changelog.xml", true},
		{"db/*.xml", "db/migrations/001.xml", true},
		{"db/*.xml", "db/changelog.sql", false},
		{"db/*.xml", "src/changelog.xml", false},
		{"*-release", "2024-release", true},
		{"a*b*c", "aXbYc", true},
		{"a*b*c", "abc", true},
		{"a*b*c", "acb", false},

		// Question mark
		{"?", "x", true},
		{"?", "", false},
		{"?", "xy", false},
		{"release-?", "release-1", true},
		{"v?.?", "v1.2", true},

		// Character classes
		{"[abc]", "b", true},
		{"[abc]", "d", false},
		{"[a-z]", "m", true},
		{"[a-z]", "M", false},
		{"[0-9][0-9]", "42", true},
		{"[!abc]", "d", true},
		{"[!abc]", "a", false},
		{"[!a-z]", "5", true},
		{"release/[0-9]*", "release/42-hotfix", true},

		// ']' as first class member, '-' at the edge
		{"[]]", "]", true},
		{"[a-]", "-", true},

		// Unterminated class falls back to a literal '['
		{"[abc", "[", false},
		{"a[", "a[", true},

		// Branch-name shapes from base branch matching
		{"main", "main", true},
		{"release/*", "release/2024.06", true},
		{"release/*", "feature-x", false},

		// Unicode
		{"über-*", "über-alles", true},
		{"?", "ü", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, tt.name))
		})
	}
}
