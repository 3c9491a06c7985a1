// Package htmlsanitize cleans user-supplied text before it is stored.
// Descriptions may carry a safe subset of HTML; names and other labels are
// reduced to plain text.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	once   sync.Once
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	once.Do(func() {
		rich = bluemonday.UGCPolicy()
		rich.AllowAttrs("class").OnElements("table", "thead", "tbody", "tr", "th", "td")
		strict = bluemonday.StrictPolicy()
	})
	return rich, strict
}

// Sanitize keeps formatting, lists, links and images and removes scripts,
// event handlers and unsafe URLs.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	p, _ := policies()
	return p.Sanitize(s)
}

// PlainText strips every tag and returns the unescaped, trimmed text.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	_, p := policies()
	return strings.TrimSpace(html.UnescapeString(p.Sanitize(s)))
}

// IsPlainText reports whether s contains no markup at all.
func IsPlainText(s string) bool {
	return !strings.ContainsAny(s, "<>")
}
