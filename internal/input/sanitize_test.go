package input

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_SizeLimit(t *testing.T) {
	limit := 64

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize(strings.Repeat("a", tt.size), limit)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitize_Text(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
		{"Surrounding Space", "  turn on \n", "turn on"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.input, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize_Rejects(t *testing.T) {
	_, err := Sanitize("bad \xff", 0)
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	_, err = Sanitize(" \x00\t ", 0)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMaxSize_Env(t *testing.T) {
	t.Setenv(EnvMaxSize, "8")
	assert.Equal(t, 8, MaxSize())

	_, err := Sanitize("123456789", 0)
	assert.ErrorIs(t, err, ErrTooLarge)

	t.Setenv(EnvMaxSize, "nope")
	assert.Equal(t, DefaultMaxSize, MaxSize())
}
