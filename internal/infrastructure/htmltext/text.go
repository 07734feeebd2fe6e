// Package htmltext turns HTML-escaped titles from upstream APIs into plain text.
package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Plain decodes entities, drops markup and collapses whitespace.
// When the fragment cannot be parsed the trimmed input is returned.
func Plain(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || !strings.ContainsAny(fragment, "&<") {
		return collapse(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
