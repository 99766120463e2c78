// Package sanitize cleans server-supplied values before they reach log
// output. Upstream error bodies are attacker-influenced; stripping control
// characters and ANSI escapes prevents log-injection and terminal escapes.
package sanitize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// ForLog renders any value as a single log-safe line: newlines collapse to
// spaces, C0 control characters (except tab) and ANSI CSI sequences are
// removed.
func ForLog(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		s = "<nil>"
	case string:
		s = t
	case []byte:
		s = string(t)
	case error:
		s = t.Error()
	default:
		if b, err := json.Marshal(t); err == nil {
			s = string(b)
		} else {
			s = fmt.Sprint(t)
		}
	}

	s = ansiEscape.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteByte(' ')
		case r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			// drop remaining control characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
