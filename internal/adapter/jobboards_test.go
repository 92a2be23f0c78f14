package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amishk599/jobagg/internal/model"
)

func TestRemoteOK_SkipsLegalNoticeAndFiltersKeywords(t *testing.T) {
	payload := `[
		{"legal": "API Terms of Service"},
		{
			"id": "101",
			"epoch": 1771000000,
			"date": "2026-02-13T16:26:40+00:00",
			"company": "Acme",
			"position": "Senior Go Engineer",
			"tags": ["go", "backend"],
			"description": "<p>Build &amp; ship</p>",
			"location": "",
			"salary_min": 120000,
			"salary_max": 160000,
			"url": "https://remoteok.com/remote-jobs/101"
		},
		{
			"id": 102,
			"epoch": 1771000100,
			"company": "Globex",
			"position": "Product Designer",
			"tags": ["design"],
			"location": "Europe"
		}
	]`
	srv := jsonServer(payload, nil)
	defer srv.Close()

	src := NewRemoteOKSource(testClient(srv))
	page, err := src.FetchPage(context.Background(), model.Query{Keywords: "go backend"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.Done {
		t.Error("expected single-page source to report Done")
	}
	if len(page.Postings) != 1 {
		t.Fatalf("expected 1 posting after keyword filter, got %d", len(page.Postings))
	}

	p := page.Postings[0]
	if p.Title != "Senior Go Engineer" || p.Company != "Acme" {
		t.Errorf("unexpected posting: %+v", p)
	}
	if p.PostedDate != "1771000000" {
		t.Errorf("expected epoch date, got %q", p.PostedDate)
	}
	if p.Location != "Remote" || p.RemoteHint == nil || !*p.RemoteHint {
		t.Errorf("expected remote default location, got %q hint=%v", p.Location, p.RemoteHint)
	}
	if p.Description != "Build & ship" {
		t.Errorf("expected plain description, got %q", p.Description)
	}
	if p.Salary != "$120000-$160000" {
		t.Errorf("unexpected salary %q", p.Salary)
	}
}

func TestRemoteOK_BuildsURLFromID(t *testing.T) {
	srv := jsonServer(`[{"legal": "x"}, {"id": 7, "company": "Acme", "position": "Engineer"}]`, nil)
	defer srv.Close()

	page, err := NewRemoteOKSource(testClient(srv)).FetchPage(context.Background(), model.Query{}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := page.Postings[0].URL; got != "https://remoteok.com/remote-jobs/7" {
		t.Errorf("unexpected url %q", got)
	}
}

func TestSinglePageSources_PageBeyondLastIsEmpty(t *testing.T) {
	srv := statusServer(http.StatusInternalServerError, "")
	defer srv.Close()
	client := testClient(srv)

	sources := []model.Source{
		NewRemoteOKSource(client),
		NewRemotiveSource(client),
		NewAuthenticJobsSource(client),
	}
	for _, src := range sources {
		t.Run(src.Name(), func(t *testing.T) {
			page, err := src.FetchPage(context.Background(), model.Query{}, 2)
			if err != nil {
				t.Fatalf("expected no network call for page 2, got %v", err)
			}
			if !page.Done || len(page.Postings) != 0 {
				t.Errorf("expected empty terminal page, got %+v", page)
			}
		})
	}
}

func TestRemotive_PassesSearchParameter(t *testing.T) {
	var gotSearch string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSearch = r.URL.Query().Get("search")
		w.Write([]byte(`{"jobs": [{
			"id": 1,
			"url": "https://remotive.com/remote-jobs/software-dev/backend-1",
			"title": "Backend Engineer",
			"company_name": "Acme",
			"category": "Software Development",
			"tags": ["go"],
			"job_type": "full_time",
			"publication_date": "2026-02-10T09:00:00",
			"candidate_required_location": "USA",
			"salary": "$140k",
			"description": "<p>Hello</p>"
		}]}`))
	}))
	defer srv.Close()

	page, err := NewRemotiveSource(testClient(srv)).FetchPage(context.Background(), model.Query{Keywords: "backend go"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSearch != "backend go" {
		t.Errorf("expected search param 'backend go', got %q", gotSearch)
	}
	p := page.Postings[0]
	if p.Location != "USA" || p.Salary != "$140k" || p.Description != "Hello" {
		t.Errorf("unexpected posting: %+v", p)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "Software Development" {
		t.Errorf("expected category first in tags, got %v", p.Tags)
	}
}

func TestAdzuna_PagingAndCredentials(t *testing.T) {
	var gotPath, gotAppID, gotWhere string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAppID = r.URL.Query().Get("app_id")
		gotWhere = r.URL.Query().Get("where")
		w.Write([]byte(`{"count": 51, "results": [{
			"id": "9",
			"title": "Data Engineer",
			"description": "Pipelines",
			"redirect_url": "https://adzuna.example/9",
			"created": "2026-02-12T08:00:00Z",
			"salary_min": 100000.5,
			"salary_max": 120000,
			"contract_time": "full_time",
			"company": {"display_name": "Initech"},
			"location": {"display_name": "Austin, Travis County"},
			"category": {"tag": "it-jobs", "label": "IT Jobs"}
		}]}`))
	}))
	defer srv.Close()

	src := NewAdzunaSource(AdzunaConfig{AppID: "id-1", AppKey: "key-1"}, testClient(srv))
	page, err := src.FetchPage(context.Background(), model.Query{Keywords: "data", Location: "Austin"}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/api/jobs/us/search/2" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotAppID != "id-1" || gotWhere != "Austin" {
		t.Errorf("unexpected query params app_id=%q where=%q", gotAppID, gotWhere)
	}
	if !page.Done {
		t.Error("expected short page to be Done")
	}
	p := page.Postings[0]
	if p.Company != "Initech" || p.JobType != "full-time" || p.Salary != "$100000-$120000" {
		t.Errorf("unexpected posting: %+v", p)
	}
}

func TestAuthenticJobs_ParsesFeed(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Authentic Jobs</title>
	<item>
		<title>Senior Designer at Acme Studio</title>
		<link>https://authenticjobs.com/job/1</link>
		<description>&lt;p&gt;Design things&lt;/p&gt;</description>
		<pubDate>Tue, 10 Feb 2026 09:00:00 +0000</pubDate>
	</item>
	<item>
		<title>Backend Developer at Globex</title>
		<link>https://authenticjobs.com/job/2</link>
		<description>APIs</description>
	</item>
</channel>
</rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	page, err := NewAuthenticJobsSource(testClient(srv)).FetchPage(context.Background(), model.Query{Keywords: "designer"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(page.Postings))
	}
	p := page.Postings[0]
	if p.Title != "Senior Designer" || p.Company != "Acme Studio" {
		t.Errorf("expected title/company split, got %q / %q", p.Title, p.Company)
	}
	if p.Description != "Design things" {
		t.Errorf("unexpected description %q", p.Description)
	}
	want := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	if p.PostedDate != want {
		t.Errorf("expected posted date %s, got %s", want, p.PostedDate)
	}
}

func TestSplitTitleCompany(t *testing.T) {
	tests := []struct {
		in, title, company string
	}{
		{"Designer at Acme", "Designer", "Acme"},
		{"Head of Data at Scale at BigCo", "Head of Data at Scale", "BigCo"},
		{"Designer", "Designer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			title, company := splitTitleCompany(tt.in)
			if title != tt.title || company != tt.company {
				t.Errorf("splitTitleCompany(%q) = %q, %q", tt.in, title, company)
			}
		})
	}
}

func TestWeWorkRemotely_ScrapesCategoryPage(t *testing.T) {
	html := `<html><body><section class="jobs"><ul>
		<li class="feature">
			<a href="/company/acme">Acme</a>
			<a href="/remote-jobs/acme-senior-go-engineer">
				<span class="company">Acme</span>
				<span class="title">Senior Go Engineer</span>
				<span class="region company">Anywhere in the World</span>
				<time datetime="2026-02-11T10:00:00Z"></time>
			</a>
		</li>
		<li class="feature">
			<a href="/remote-jobs/globex-designer">
				<span class="company">Globex</span>
				<span class="title">Designer</span>
			</a>
		</li>
		<li class="feature"><span class="title">No company</span></li>
	</ul></section></body></html>`
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}))
	defer srv.Close()

	src := NewWeWorkRemotelySource([]string{"programming", "design"}, testClient(srv))
	page, err := src.FetchPage(context.Background(), model.Query{}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/categories/remote-programming-jobs" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if page.Done {
		t.Error("expected more categories after page 1")
	}
	if len(page.Postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(page.Postings))
	}
	p := page.Postings[0]
	if p.Title != "Senior Go Engineer" || p.Company != "Acme" {
		t.Errorf("unexpected posting: %+v", p)
	}
	if p.URL != "https://weworkremotely.com/remote-jobs/acme-senior-go-engineer" {
		t.Errorf("unexpected url %q", p.URL)
	}
	if p.PostedDate != "2026-02-11T10:00:00Z" {
		t.Errorf("unexpected posted date %q", p.PostedDate)
	}
	if page.Postings[1].Location != "Remote" {
		t.Errorf("expected default Remote location, got %q", page.Postings[1].Location)
	}

	last, err := src.FetchPage(context.Background(), model.Query{}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !last.Done {
		t.Error("expected last category to be Done")
	}
}

func TestWeWorkRemotely_HTTPError(t *testing.T) {
	srv := statusServer(http.StatusTooManyRequests, "30")
	defer srv.Close()

	_, err := NewWeWorkRemotelySource(nil, testClient(srv)).FetchPage(context.Background(), model.Query{}, 1)
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests || httpErr.RetryAfter != 30*time.Second {
		t.Errorf("unexpected HTTPError %+v", httpErr)
	}
}
