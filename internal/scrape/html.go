package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractText reduces an HTML-bearing feed field to normalized plain
// text. Nitter feeds carry the post body as HTML in the description.
func extractText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
