package relay

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const redaction = "****"

// ProfanityFilter redacts configured words, matched case-insensitively on
// word boundaries, from game chat before it reaches the chat platform.
type ProfanityFilter struct {
	re *regexp.Regexp
}

// LoadProfanityFilter reads one word per line; blank lines and #-comments
// are skipped. An empty path yields a filter that passes everything.
func LoadProfanityFilter(path string) (*ProfanityFilter, error) {
	if path == "" {
		return &ProfanityFilter{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("profanity list: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words = append(words, regexp.QuoteMeta(word))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("profanity list: %w", err)
	}
	return NewProfanityFilter(words), nil
}

// NewProfanityFilter builds a filter from already-quoted patterns.
func NewProfanityFilter(words []string) *ProfanityFilter {
	if len(words) == 0 {
		return &ProfanityFilter{}
	}
	return &ProfanityFilter{
		re: regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`),
	}
}

// Clean substitutes the redaction placeholder for every match.
func (p *ProfanityFilter) Clean(s string) string {
	if p.re == nil {
		return s
	}
	return p.re.ReplaceAllString(s, redaction)
}
