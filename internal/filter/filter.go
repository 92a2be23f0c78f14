package filter

import (
	"strings"

	"github.com/amishk599/jobagg/internal/model"
)

// TitleAndLocationFilter matches postings whose title contains any of the
// title keywords and whose location contains any of the location keywords.
// A posting whose title or location contains an exclude keyword never matches.
// Matching is case-insensitive. Empty include lists are treated as "match all".
type TitleAndLocationFilter struct {
	titleKeywords    []string
	locations        []string
	excludeTitles    []string
	excludeLocations []string
}

// NewTitleAndLocationFilter returns a filter that requires both a title keyword
// match and a location keyword match (case-insensitive substring).
func NewTitleAndLocationFilter(titleKeywords []string, locations []string) *TitleAndLocationFilter {
	return &TitleAndLocationFilter{
		titleKeywords: lower(titleKeywords),
		locations:     lower(locations),
	}
}

// WithExcludes adds title and location keywords that reject a posting even
// when the include lists match.
func (f *TitleAndLocationFilter) WithExcludes(titles, locations []string) *TitleAndLocationFilter {
	f.excludeTitles = lower(titles)
	f.excludeLocations = lower(locations)
	return f
}

// Match returns true if the posting's title contains any title keyword and the
// posting's location contains any location keyword, and neither hits an exclude.
func (f *TitleAndLocationFilter) Match(p model.Posting) bool {
	titleLower := strings.ToLower(p.Title)
	locationLower := strings.ToLower(p.Location)

	if containsAny(titleLower, f.excludeTitles) || containsAny(locationLower, f.excludeLocations) {
		return false
	}
	if len(f.titleKeywords) > 0 && !containsAny(titleLower, f.titleKeywords) {
		return false
	}
	if len(f.locations) > 0 && !containsAny(locationLower, f.locations) {
		return false
	}
	return true
}

// All matches only when every filter matches. With no filters it matches everything.
func All(filters ...model.PostingFilter) model.PostingFilter {
	return allFilter(filters)
}

type allFilter []model.PostingFilter

func (a allFilter) Match(p model.Posting) bool {
	for _, f := range a {
		if !f.Match(p) {
			return false
		}
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
