package document

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateBytes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"shorter than cap", "abc", 10, "abc"},
		{"exact cap", "abcd", 4, "abcd"},
		{"ascii cut", "abcdef", 3, "abc"},
		{"umlaut straddles cap", "abä", 3, "ab"},
		{"euro sign straddles cap", "a€", 2, "a"},
		{"zero cap", "abc", 0, ""},
		{"negative cap passes through", "abc", -1, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateBytes(tt.input, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncateBytesNeverSplitsRunes(t *testing.T) {
	text := strings.Repeat("Größenänderung € ", 50)
	for max := 0; max <= len(text); max++ {
		got := TruncateBytes(text, max)
		assert.LessOrEqual(t, len(got), max)
		assert.True(t, utf8.ValidString(got), "max %d", max)
	}
}
