package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/amishk599/jobagg/internal/model"
)

const userAgent = "jobagg/1.0 (+https://github.com/amishk599/jobagg)"

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// get issues a GET and returns the open response. Any status other than 200
// is turned into a *model.HTTPError carrying the Retry-After hint.
func get(ctx context.Context, client *http.Client, url, label string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("%s: unexpected status %d", label, resp.StatusCode),
		}
	}
	return resp, nil
}

// getJSON fetches url and decodes the JSON body into dst.
func getJSON(ctx context.Context, client *http.Client, url, label string, dst any) error {
	resp, err := get(ctx, client, url, label)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decoding response: %w", label, err)
	}
	return nil
}

// ctxTransport binds every request made through it to ctx. colly builds its
// own requests, so this is how a FetchPage context reaches them.
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req.WithContext(t.ctx))
}

// WithContext wraps client's transport so requests carry ctx.
func WithContext(ctx context.Context, client *http.Client) http.RoundTripper {
	return &ctxTransport{ctx: ctx, base: client.Transport}
}
