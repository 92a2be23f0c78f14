package detail

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/amishk599/jobagg/internal/adapter"
	"github.com/amishk599/jobagg/internal/model"
)

const defaultFetchTimeout = 10 * time.Second

// sourceSelectors are tried before the generic ones, in order.
var sourceSelectors = map[string][]string{
	"remoteok":       {"div.description", "[itemprop=description]"},
	"remotive":       {"div.job-description"},
	"weworkremotely": {"div.listing-container"},
	"greenhouse":     {"#content", "div.job__description"},
	"lever":          {"div.section-wrapper.page-full-width", "div.content"},
	"ashby":          {"div._descriptionText_oj0x8_198", "div[class*=descriptionText]"},
}

var genericSelectors = []string{"div.job-description", "div.description", "div.content", "article", "main"}

// HTMLFetcher downloads a posting page and extracts its description text.
// Outbound fetches share one token bucket.
type HTMLFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewHTMLFetcher allows perSecond fetches per second with the given burst.
// A non-positive perSecond disables the limit.
func NewHTMLFetcher(client *http.Client, perSecond float64, burst int, timeout time.Duration) *HTMLFetcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTMLFetcher{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}
}

func (f *HTMLFetcher) FetchBody(ctx context.Context, url, source string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("detail fetch rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	c := colly.NewCollector(colly.UserAgent("jobagg/1.0"))
	c.WithTransport(adapter.WithContext(ctx, f.client))
	c.SetRequestTimeout(f.timeout)

	var (
		body    string
		parsErr error
		httpErr *model.HTTPError
	)
	c.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			parsErr = err
			return
		}
		body = extractBody(doc, source)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r == nil || r.StatusCode == 0 {
			return
		}
		httpErr = &model.HTTPError{
			StatusCode: r.StatusCode,
			Err:        fmt.Errorf("detail fetch %s: unexpected status %d", url, r.StatusCode),
		}
	})

	if err := c.Visit(url); err != nil {
		if httpErr != nil {
			return "", httpErr
		}
		return "", fmt.Errorf("detail fetch %s: %w", url, err)
	}
	if parsErr != nil {
		return "", fmt.Errorf("detail fetch %s: parsing html: %w", url, parsErr)
	}
	if body == "" {
		return "", fmt.Errorf("detail fetch %s: %w", url, model.ErrDetailUnavailable)
	}
	return body, nil
}

// extractBody returns the text of the first selector that has any, trying
// source-specific selectors before generic ones.
func extractBody(doc *goquery.Document, source string) string {
	doc.Find("script, style, noscript").Remove()

	selectors := append(append([]string{}, sourceSelectors[source]...), genericSelectors...)
	for _, sel := range selectors {
		text := strings.Join(strings.Fields(doc.Find(sel).First().Text()), " ")
		if text != "" {
			return text
		}
	}
	return ""
}
