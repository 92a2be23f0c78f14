package filter

import (
	"testing"

	"github.com/amishk599/jobagg/internal/model"
)

func posting(title, location string) model.Posting {
	return model.Posting{Title: title, Location: location}
}

func TestTitleAndLocationFilter_Match(t *testing.T) {
	tests := []struct {
		name          string
		titleKeywords []string
		locations     []string
		posting       model.Posting
		wantMatch     bool
	}{
		{
			name:          "matches both title and location",
			titleKeywords: []string{"software engineer", "backend"},
			locations:     []string{"United States", "Remote"},
			posting:       posting("Software Engineer", "Remote - US"),
			wantMatch:     true,
		},
		{
			name:          "title match but location miss",
			titleKeywords: []string{"software engineer"},
			locations:     []string{"United States", "Remote"},
			posting:       posting("Software Engineer", "London, UK"),
			wantMatch:     false,
		},
		{
			name:          "case insensitive matching",
			titleKeywords: []string{"FULLSTACK"},
			locations:     []string{"us"},
			posting:       posting("Fullstack Developer", "US Remote"),
			wantMatch:     true,
		},
		{
			name:          "no keywords match",
			titleKeywords: []string{"devops", "sre"},
			locations:     []string{"Remote"},
			posting:       posting("Frontend Engineer", "New York, NY"),
			wantMatch:     false,
		},
		{
			name:          "empty keyword lists pass all",
			titleKeywords: []string{},
			locations:     []string{},
			posting:       posting("Any Role", "Anywhere"),
			wantMatch:     true,
		},
		{
			name:          "blank keywords are ignored",
			titleKeywords: []string{"  "},
			locations:     nil,
			posting:       posting("Any Role", "Anywhere"),
			wantMatch:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewTitleAndLocationFilter(tt.titleKeywords, tt.locations)
			got := f.Match(tt.posting)
			if got != tt.wantMatch {
				t.Errorf("Match() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

func TestTitleAndLocationFilter_Excludes(t *testing.T) {
	f := NewTitleAndLocationFilter([]string{"engineer"}, nil).
		WithExcludes([]string{"Senior Staff", "manager"}, []string{"onsite"})

	tests := []struct {
		posting   model.Posting
		wantMatch bool
	}{
		{posting("Software Engineer", "Remote"), true},
		{posting("Senior Staff Engineer", "Remote"), false},
		{posting("Engineering Manager", "Remote"), false},
		{posting("Software Engineer", "Austin, TX (Onsite)"), false},
	}
	for _, tt := range tests {
		t.Run(tt.posting.Title+"/"+tt.posting.Location, func(t *testing.T) {
			if got := f.Match(tt.posting); got != tt.wantMatch {
				t.Errorf("Match() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

func TestAll(t *testing.T) {
	title := NewTitleAndLocationFilter([]string{"engineer"}, nil)
	us := NewUSLocationFilter()

	if !All().Match(posting("Anything", "Anywhere")) {
		t.Error("expected empty All to match everything")
	}

	f := All(title, us)
	if !f.Match(posting("Backend Engineer", "Austin, TX")) {
		t.Error("expected title and US location to match")
	}
	if f.Match(posting("Backend Engineer", "Berlin, Germany")) {
		t.Error("expected non-US location to be rejected")
	}
	if f.Match(posting("Designer", "Austin, TX")) {
		t.Error("expected title miss to be rejected")
	}
}

func TestIsUSLocation(t *testing.T) {
	tests := []struct {
		location string
		want     bool
	}{
		{"", true},
		{"N/A", true},
		{"Remote", true},
		{"Work from home", true},
		{"Remote - US", true},
		{"US Remote", true},
		{"United States", true},
		{"Austin, TX", true},
		{"Springfield, IL", true},
		{"New York City", true},
		{"Milwaukee, WI", true},
		{"California", true},
		{"London, UK", false},
		{"Berlin, Germany", false},
		{"Remote (US or Canada)", false},
		{"Remote - Worldwide", false},
		{"Anywhere", false},
		{"Remote - EMEA", false},
		{"Lagos", false},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			if got := IsUSLocation(tt.location); got != tt.want {
				t.Errorf("IsUSLocation(%q) = %v, want %v", tt.location, got, tt.want)
			}
		})
	}
}
