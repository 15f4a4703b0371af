// Package sanitize cleans user-supplied run labels before they are stored
// and printed back in listings.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxNameLength is the maximum length of a run name.
const MaxNameLength = 80

var (
	reRepeatedSeparators = regexp.MustCompile(`[-_ ]{2,}`)
	reRepeatedDots       = regexp.MustCompile(`\.{2,}`)
)

// RunName keeps letters, digits, '-', '_', '.', '/' and spaces, collapses
// runs of separators and dots, trims the result and cuts it to
// MaxNameLength.
func RunName(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.' || r == '/' || r == ' ':
			b.WriteRune(r)
		case r == '\t' || r == '\n':
			b.WriteRune(' ')
		}
	}

	s := reRepeatedSeparators.ReplaceAllStringFunc(b.String(), func(m string) string {
		return m[:1]
	})
	s = reRepeatedDots.ReplaceAllString(s, ".")
	s = strings.Trim(s, " -_./")

	if len(s) > MaxNameLength {
		s = strings.TrimRight(s[:MaxNameLength], " -_./")
	}
	return s
}
