package card

import (
	"fmt"
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims, lowercases and collapses internal whitespace.
// Two names that normalize equally refer to the same card or deck.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// Unique returns names with blanks and normalized duplicates removed.
// The first spelling of each name wins and order is preserved.
func Unique(names []string) []string {
	seen := make(map[string]bool, len(names))
	result := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		norm := Normalize(n)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		result = append(result, n)
	}
	return result
}

// ParseLink parses "term=target" into a Link.
func ParseLink(s string) (Link, error) {
	term, target, ok := strings.Cut(s, "=")
	term = strings.TrimSpace(term)
	target = strings.TrimSpace(target)
	if !ok || term == "" || target == "" {
		return Link{}, fmt.Errorf("invalid link %q: expected term=target", s)
	}
	return Link{Term: term, Target: target}, nil
}
