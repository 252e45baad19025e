// Package tokenizer normalizes a raw log line into a token string used
// as the similarity-search key. The transform is pure and deterministic:
// identical input bytes always yield identical tokens, and tokenizing an
// already-normalized string is a no-op.
package tokenizer

import (
	"regexp"
	"strings"
)

var (
	hexRun    = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b`)
	numberRun = regexp.MustCompile(`\b[0-9]+\b`)
	uuidRun   = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	spaceRun  = regexp.MustCompile(`\s+`)
)

// Tokenize normalizes a raw log line: it lowercases the text, masks
// UUIDs, hex literals, and bare numbers (so "retry 3" and "retry 42"
// collapse to the same token), and collapses runs of whitespace. The
// result is what the similarity index is trained and queried against.
func Tokenize(line string) string {
	t := uuidRun.ReplaceAllString(line, "U")
	t = hexRun.ReplaceAllString(t, "H")
	t = numberRun.ReplaceAllString(t, "N")
	t = strings.ToLower(t)
	t = spaceRun.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
