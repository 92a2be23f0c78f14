package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/amishk599/jobagg/internal/model"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewWithClock(func() time.Time { return fixedNow })
}

func boolPtr(b bool) *bool { return &b }

func TestFingerprint_IgnoresCaseAndWhitespace(t *testing.T) {
	a := Fingerprint("Backend Engineer", "Acme", "Remote")
	b := Fingerprint("  backend   ENGINEER ", "ACME", "remote")
	if a != b {
		t.Errorf("expected equal fingerprints, got %s and %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

func TestFingerprint_DistinguishesFields(t *testing.T) {
	base := Fingerprint("Backend Engineer", "Acme", "Remote")
	tests := []struct {
		name                     string
		title, company, location string
	}{
		{"different title", "Frontend Engineer", "Acme", "Remote"},
		{"different company", "Backend Engineer", "Globex", "Remote"},
		{"different location", "Backend Engineer", "Acme", "Austin, TX"},
		// The separator keeps field boundaries from sliding.
		{"shifted boundary", "Backend Engineer|Acme", "", "Remote"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fingerprint(tt.title, tt.company, tt.location); got == base {
				t.Errorf("expected fingerprint to differ from base")
			}
		})
	}
}

func TestNormalize_CanonicalizesFields(t *testing.T) {
	n := newTestNormalizer()
	raw := model.RawPosting{
		Title:       "  Senior   Go\tEngineer ",
		Company:     "Acme\nCorp",
		Location:    " Austin,  TX ",
		Description: "  Build things.  ",
		URL:         " https://example.com/jobs/1 ",
		PostedDate:  "2026-03-10T08:30:00Z",
		JobType:     " Full-time ",
		Salary:      "$150k - $180k",
		Tags:        []string{"go", " ", "Go", "go", "kubernetes"},
	}

	p, err := n.Normalize(raw, "remotive")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Title != "Senior Go Engineer" {
		t.Errorf("expected collapsed title, got %q", p.Title)
	}
	if p.Company != "Acme Corp" {
		t.Errorf("expected collapsed company, got %q", p.Company)
	}
	if p.Location != "Austin, TX" {
		t.Errorf("expected collapsed location, got %q", p.Location)
	}
	if p.Description != "Build things." {
		t.Errorf("expected trimmed description, got %q", p.Description)
	}
	if p.URL != "https://example.com/jobs/1" {
		t.Errorf("expected trimmed url, got %q", p.URL)
	}
	if p.Source != "remotive" {
		t.Errorf("expected source remotive, got %s", p.Source)
	}
	if p.JobType != "Full-time" {
		t.Errorf("expected job type Full-time, got %q", p.JobType)
	}
	want := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	if !p.PostedAt.Equal(want) || p.PostedAtEstimated {
		t.Errorf("expected parsed PostedAt %v, got %v (estimated=%v)", want, p.PostedAt, p.PostedAtEstimated)
	}
	if !p.CreatedAt.Equal(fixedNow) {
		t.Errorf("expected CreatedAt %v, got %v", fixedNow, p.CreatedAt)
	}
	if len(p.Tags) != 3 || p.Tags[0] != "go" || p.Tags[1] != "Go" || p.Tags[2] != "kubernetes" {
		t.Errorf("expected ordered unique tags [go Go kubernetes], got %v", p.Tags)
	}
	if p.Remote {
		t.Error("expected Austin posting to be non-remote")
	}
	if p.Fingerprint != Fingerprint("Senior Go Engineer", "Acme Corp", "Austin, TX") {
		t.Error("fingerprint does not match normalized fields")
	}
}

func TestNormalize_MissingRequiredFields(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name  string
		raw   model.RawPosting
		field string
	}{
		{"no title", model.RawPosting{Company: "Acme", URL: "https://x"}, "title"},
		{"placeholder title", model.RawPosting{Title: "N/A", Company: "Acme", URL: "https://x"}, "title"},
		{"blank company", model.RawPosting{Title: "Engineer", Company: "   ", URL: "https://x"}, "company"},
		{"no url", model.RawPosting{Title: "Engineer", Company: "Acme"}, "url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.raw, "remoteok")
			var normErr *model.NormalizationError
			if !errors.As(err, &normErr) {
				t.Fatalf("expected NormalizationError, got %v", err)
			}
			if normErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, normErr.Field)
			}
		})
	}
}

func TestNormalize_BadDateFallsBackToNow(t *testing.T) {
	n := newTestNormalizer()
	p, err := n.Normalize(model.RawPosting{
		Title: "Engineer", Company: "Acme", URL: "https://x", PostedDate: "sometime soon",
	}, "remoteok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.PostedAtEstimated {
		t.Error("expected PostedAtEstimated for unparseable date")
	}
	if !p.PostedAt.Equal(fixedNow) {
		t.Errorf("expected fallback to %v, got %v", fixedNow, p.PostedAt)
	}
}

func TestNormalize_LocationDefaults(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name       string
		raw        model.RawPosting
		wantLoc    string
		wantRemote bool
	}{
		{
			name:       "empty location with remote hint",
			raw:        model.RawPosting{Title: "Engineer", Company: "Acme", URL: "https://x", RemoteHint: boolPtr(true)},
			wantLoc:    "Remote",
			wantRemote: true,
		},
		{
			name:       "empty location without hint",
			raw:        model.RawPosting{Title: "Engineer", Company: "Acme", URL: "https://x"},
			wantLoc:    "N/A",
			wantRemote: false,
		},
		{
			name:       "remote inferred from title",
			raw:        model.RawPosting{Title: "Remote Go Engineer", Company: "Acme", URL: "https://x", Location: "USA"},
			wantLoc:    "USA",
			wantRemote: true,
		},
		{
			name:       "explicit false hint does not override tokens",
			raw:        model.RawPosting{Title: "Engineer", Company: "Acme", URL: "https://x", Location: "Anywhere", RemoteHint: boolPtr(false)},
			wantLoc:    "Anywhere",
			wantRemote: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := n.Normalize(tt.raw, "remotive")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Location != tt.wantLoc {
				t.Errorf("expected location %q, got %q", tt.wantLoc, p.Location)
			}
			if p.Remote != tt.wantRemote {
				t.Errorf("expected remote=%v, got %v", tt.wantRemote, p.Remote)
			}
		})
	}
}

func TestNormalize_SameJobAcrossSourcesCollapses(t *testing.T) {
	n := newTestNormalizer()
	a, err := n.Normalize(model.RawPosting{
		Title: "Backend Engineer", Company: "Acme", Location: "Remote", URL: "https://a.example/1",
	}, "remoteok")
	if err != nil {
		t.Fatalf("normalize a: %v", err)
	}
	b, err := n.Normalize(model.RawPosting{
		Title: "backend engineer", Company: "ACME", Location: "remote", URL: "https://b.example/9",
	}, "remotive")
	if err != nil {
		t.Fatalf("normalize b: %v", err)
	}
	if a.Fingerprint != b.Fingerprint {
		t.Errorf("expected same fingerprint, got %s and %s", a.Fingerprint, b.Fingerprint)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"1710000000", time.Unix(1710000000, 0).UTC(), true},
		{"1710000000000", time.UnixMilli(1710000000000).UTC(), true},
		{"2026-03-01T10:00:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"2026-03-01T10:00:00+02:00", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), true},
		{"2026-03-01T10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"Sun, 01 Mar 2026 10:00:00 +0000", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"Sun, 1 Mar 2026 10:00:00 GMT", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"3 days ago", fixedNow.AddDate(0, 0, -3), true},
		{"Posted 2 weeks ago", fixedNow.AddDate(0, 0, -14), true},
		{"5 hours ago", fixedNow.Add(-5 * time.Hour), true},
		{"30+ days ago", fixedNow.AddDate(0, 0, -30), true},
		{"yesterday", fixedNow.AddDate(0, 0, -1), true},
		{"", time.Time{}, false},
		{"42", time.Time{}, false},
		{"NaN", time.Time{}, false},
		{"next tuesday", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in, fixedNow)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok=%v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInferRemote(t *testing.T) {
	tests := []struct {
		title, location string
		want            bool
	}{
		{"Backend Engineer", "Remote", true},
		{"Backend Engineer", "Remote - US", true},
		{"Backend Engineer (Remote)", "New York, NY", true},
		{"Backend Engineer", "Worldwide", true},
		{"Backend Engineer", "Work from home", true},
		{"Backend Engineer", "Austin, TX", false},
		{"Remoteness Researcher", "Boston, MA", false},
	}
	for _, tt := range tests {
		t.Run(tt.title+"/"+tt.location, func(t *testing.T) {
			if got := InferRemote(tt.title, tt.location); got != tt.want {
				t.Errorf("InferRemote(%q, %q) = %v, want %v", tt.title, tt.location, got, tt.want)
			}
		})
	}
}
