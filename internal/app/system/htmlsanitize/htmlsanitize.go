// internal/app/system/htmlsanitize/htmlsanitize.go
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// contentPolicy allows the limited rich formatting cultural content records
// may carry: headings, lists, emphasis, links, images, tables.
var contentPolicy = buildContentPolicy()

// messagePolicy strips all markup. Chat messages are stored as plain text.
var messagePolicy = bluemonday.StrictPolicy()

func buildContentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("u", "s", "sub", "sup", "mark")
	p.AllowAttrs("class", "style").OnElements("table", "thead", "tbody", "tr", "th", "td")
	p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
	return p
}

// Sanitize cleans user-supplied rich content, removing scripts, event
// handlers, and unsafe URLs while preserving allowed formatting.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}
	return contentPolicy.Sanitize(html)
}

// SanitizeMessage strips all markup from a chat message body and trims
// surrounding whitespace.
func SanitizeMessage(body string) string {
	if body == "" {
		return ""
	}
	return strings.TrimSpace(messagePolicy.Sanitize(body))
}

// IsPlainText reports whether s contains no HTML tags.
func IsPlainText(s string) bool {
	open := strings.IndexByte(s, '<')
	if open < 0 {
		return true
	}
	return strings.IndexByte(s[open:], '>') < 0
}
