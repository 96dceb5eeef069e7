package relay

import "strings"

// Escaping for the console command grammar. Order matters: backslash
// first, then quote, then newline, so already-escaped sequences are not
// escaped twice.

// EscapeName escapes a display name for embedding in a quoted command
// argument. Names cannot contain newlines, so only backslash and quote
// apply.
func EscapeName(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// EscapeBody escapes a message body: backslash, quote, then newline.
func EscapeBody(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// UnescapeBody reverses EscapeBody. Kept next to the escape rules so the
// round-trip stays in one place.
func UnescapeBody(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
