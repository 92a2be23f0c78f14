package adapter

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobagg/internal/model"
)

// extractText converts an HTML or HTML-encoded string to plain text.
// Entities are unescaped first (Greenhouse double-encodes its content), the
// result is parsed, and text nodes are joined with collapsed whitespace.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(unescaped))
	if err != nil {
		return strings.Join(strings.Fields(unescaped), " ")
	}
	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "#text":
			*parts = append(*parts, s.Text())
		case "script", "style":
		default:
			collectText(s, parts)
		}
	})
}

// matchesKeywords reports whether every whitespace-separated term of keywords
// appears in at least one of fields. Sources without server-side search use
// it to honor Query.Keywords. An empty query matches everything.
func matchesKeywords(keywords string, fields ...string) bool {
	terms := strings.Fields(strings.ToLower(keywords))
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(strings.Join(fields, " "))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func boolPtr(b bool) *bool { return &b }

// lastPage wraps postings as the final page of a source.
func lastPage(postings []model.RawPosting) model.Page {
	return model.Page{Postings: postings, Done: true}
}
