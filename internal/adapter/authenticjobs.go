package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/amishk599/jobagg/internal/model"
)

const authenticJobsURL = "https://authenticjobs.com/rss"

// AuthenticJobsSource reads the Authentic Jobs RSS feed. Item titles are
// usually "Job Title at Company", which is the only place the company appears.
type AuthenticJobsSource struct {
	client *http.Client
	parser *gofeed.Parser
}

func NewAuthenticJobsSource(client *http.Client) *AuthenticJobsSource {
	return &AuthenticJobsSource{client: client, parser: gofeed.NewParser()}
}

func (s *AuthenticJobsSource) Name() string { return "authenticjobs" }

func (s *AuthenticJobsSource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	if page > 1 {
		return model.Page{Done: true}, nil
	}

	resp, err := get(ctx, s.client, authenticJobsURL, "authenticjobs fetch")
	if err != nil {
		return model.Page{}, err
	}
	defer resp.Body.Close()

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return model.Page{}, fmt.Errorf("authenticjobs fetch: parsing feed: %w", err)
	}

	postings := make([]model.RawPosting, 0, len(feed.Items))
	for _, item := range feed.Items {
		title, company := splitTitleCompany(item.Title)
		if !matchesKeywords(q.Keywords, title, company) {
			continue
		}

		posted := item.Published
		if item.PublishedParsed != nil {
			posted = item.PublishedParsed.UTC().Format("2006-01-02T15:04:05Z07:00")
		}

		postings = append(postings, model.RawPosting{
			Title:       title,
			Company:     company,
			Description: extractText(item.Description),
			URL:         item.Link,
			PostedDate:  posted,
			Tags:        item.Categories,
		})
	}

	return lastPage(postings), nil
}

// splitTitleCompany splits "Senior Designer at Acme" on the last " at ".
func splitTitleCompany(s string) (title, company string) {
	i := strings.LastIndex(s, " at ")
	if i < 0 {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(" at "):])
}
