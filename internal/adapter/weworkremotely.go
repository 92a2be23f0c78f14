package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/amishk599/jobagg/internal/model"
)

const weWorkRemotelyBaseURL = "https://weworkremotely.com"

// DefaultWeWorkRemotelyCategories are scraped when none are configured.
var DefaultWeWorkRemotelyCategories = []string{"programming", "design", "marketing", "product", "customer-support"}

// WeWorkRemotelySource scrapes the We Work Remotely category listings. Each
// configured category is one page.
type WeWorkRemotelySource struct {
	categories []string
	client     *http.Client
	timeout    time.Duration
}

func NewWeWorkRemotelySource(categories []string, client *http.Client) *WeWorkRemotelySource {
	if len(categories) == 0 {
		categories = DefaultWeWorkRemotelyCategories
	}
	timeout := client.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WeWorkRemotelySource{categories: categories, client: client, timeout: timeout}
}

func (s *WeWorkRemotelySource) Name() string { return "weworkremotely" }

func (s *WeWorkRemotelySource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	if page < 1 || page > len(s.categories) {
		return model.Page{Done: true}, nil
	}
	category := s.categories[page-1]
	listURL := fmt.Sprintf("%s/categories/remote-%s-jobs", weWorkRemotelyBaseURL, category)

	c := colly.NewCollector(colly.UserAgent(userAgent))
	c.WithTransport(WithContext(ctx, s.client))
	c.SetRequestTimeout(s.timeout)

	var (
		postings []model.RawPosting
		httpErr  *model.HTTPError
	)
	c.OnHTML("li.feature", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText("span.title"))
		company := strings.TrimSpace(e.ChildText("span.company:not(.region)"))
		if title == "" || company == "" {
			return
		}
		if !matchesKeywords(q.Keywords, title) {
			return
		}

		var href string
		e.ForEachWithBreak("a[href]", func(_ int, a *colly.HTMLElement) bool {
			if h := a.Attr("href"); strings.Contains(h, "/remote-jobs/") {
				href = h
				return false
			}
			return true
		})
		if href == "" {
			href = e.ChildAttr("a", "href")
		}

		region := strings.TrimSpace(e.ChildText("span.region"))
		if region == "" {
			region = "Remote"
		}

		postings = append(postings, model.RawPosting{
			Title:      title,
			Company:    company,
			Location:   region,
			URL:        e.Request.AbsoluteURL(href),
			PostedDate: e.ChildAttr("time", "datetime"),
			JobType:    "Full-time",
			Tags:       []string{category},
			RemoteHint: boolPtr(true),
		})
	})
	c.OnError(func(r *colly.Response, err error) {
		if r == nil || r.StatusCode == 0 {
			return
		}
		var retryAfter time.Duration
		if r.Headers != nil {
			retryAfter = parseRetryAfter(r.Headers.Get("Retry-After"))
		}
		httpErr = &model.HTTPError{
			StatusCode: r.StatusCode,
			RetryAfter: retryAfter,
			Err:        fmt.Errorf("weworkremotely fetch %s: unexpected status %d", category, r.StatusCode),
		}
	})

	if err := c.Visit(listURL); err != nil {
		if httpErr != nil {
			return model.Page{}, httpErr
		}
		return model.Page{}, fmt.Errorf("weworkremotely fetch %s: %w", category, err)
	}

	return model.Page{Postings: postings, Done: page == len(s.categories)}, nil
}
