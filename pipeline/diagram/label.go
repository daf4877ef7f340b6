package diagram

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var tagPattern = regexp.MustCompile(`<[^<>]+>`)

// SanitizeLabel turns a shape label into a display name.
// Labels containing tag-like markup are stripped to their text with whitespace collapsed;
// plain labels are only trimmed.
func SanitizeLabel(raw string) string {
	if !tagPattern.MatchString(raw) {
		return strings.TrimSpace(raw)
	}

	var parts []string
	z := html.NewTokenizer(strings.NewReader(raw))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
		case html.TextToken:
			parts = append(parts, string(z.Text()))
		default:
			// 标签本身视为分词边界
			parts = append(parts, " ")
		}
	}
}
