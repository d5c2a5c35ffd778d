package news

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

const (
	MaxSummaryRunes = 700
	Ellipsis        = "…"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes markup, decodes entities and collapses whitespace.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// Truncate caps s at max runes, trimming trailing whitespace from the cut
// before appending an ellipsis. Strings within the limit are returned as is.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := strings.TrimRightFunc(string(runes[:max]), unicode.IsSpace)
	return cut + Ellipsis
}

// Summarize produces the plain-text summary stored on an Article.
func Summarize(rawHTML string) string {
	return Truncate(StripHTML(rawHTML), MaxSummaryRunes)
}
