package store

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PreviewLength is the maximum preview size in runes.
const PreviewLength = 500

// Preview reduces an HTML or plain-text description to at most PreviewLength
// runes of whitespace-collapsed text.
func Preview(description string) string {
	text := description
	if strings.ContainsAny(description, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
		if err == nil {
			text = doc.Text()
		}
	}
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) <= PreviewLength {
		return text
	}
	return strings.TrimSpace(string(runes[:PreviewLength]))
}
