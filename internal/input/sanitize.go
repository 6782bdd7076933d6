// Package input cleans user text before it reaches a machine.
package input

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxSize is 16KB; chat turns are short.
	DefaultMaxSize = 16 * 1024
	// EnvMaxSize overrides the default limit.
	EnvMaxSize = "MOORE_MAX_INPUT_SIZE"
)

var (
	ErrTooLarge    = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8 = errors.New("input contains invalid UTF-8 sequences")
	ErrEmpty       = errors.New("input is empty")
)

// Sanitize enforces the size limit, validates UTF-8, strips control
// characters other than newline, tab and carriage return, and trims
// surrounding whitespace. A limit <= 0 uses MaxSize().
func Sanitize(in string, limit int) (string, error) {
	if limit <= 0 {
		limit = MaxSize()
	}

	// 1. Size. Rejected rather than truncated.
	if len(in) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrTooLarge, len(in), limit)
	}

	// 2. Encoding.
	if !utf8.ValidString(in) {
		return "", ErrInvalidUTF8
	}

	// 3. Control characters (ANSI escapes, NUL, BEL...).
	out := in
	if strings.IndexFunc(in, unsafeControl) >= 0 {
		var b strings.Builder
		b.Grow(len(in))
		for _, r := range in {
			if !unsafeControl(r) {
				b.WriteRune(r)
			}
		}
		out = b.String()
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmpty
	}
	return out, nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

// MaxSize returns the limit from EnvMaxSize, or DefaultMaxSize.
func MaxSize() int {
	if val := os.Getenv(EnvMaxSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxSize
}
