package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobagg/internal/model"
)

// Ensure SlackReporter implements model.RunReporter.
var _ model.RunReporter = (*SlackReporter)(nil)

// SlackReporter posts run summaries to a Slack channel via Incoming Webhooks.
type SlackReporter struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackReporter returns a reporter that posts each run to Slack via webhook.
func NewSlackReporter(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Report sends one Block Kit message per run. A 429 is retried once after
// Retry-After; any other non-200 is an error.
func (s *SlackReporter) Report(ctx context.Context, stats model.RunStats) error {
	body, err := json.Marshal(buildPayload(stats))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}

	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter.String())
		select {
		case <-ctx.Done():
			return fmt.Errorf("slack retry cancelled: %w", ctx.Err())
		case <-time.After(retryAfter):
		}

		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack run report sent", "run_id", stats.RunID, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack run report sent", "run_id", stats.RunID)
	return nil
}

func (s *SlackReporter) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestMessage reports a sample run to verify the integration works.
func SendTestMessage(ctx context.Context, r model.RunReporter) error {
	now := time.Now().UTC()
	return r.Report(ctx, model.RunStats{
		RunID:      "test-run",
		StartedAt:  now.Add(-3 * time.Second),
		FinishedAt: now,
		Sources: []model.SourceStats{
			{Source: "remotive", Pages: 1, Raw: 12, Normalized: 12, Inserted: 9, Duplicates: 3},
			{Source: "adzuna", Err: "source adzuna: HTTP 401: integration test"},
		},
	})
}

func buildPayload(stats model.RunStats) slackPayload {
	t := stats.Totals()
	failed := stats.FailedSources()

	header := fmt.Sprintf("%d new postings from %d sources", t.Inserted, len(stats.Sources))
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: header},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Inserted:*\n" + strconv.Itoa(t.Inserted)},
				{Type: "mrkdwn", Text: "*Duplicates:*\n" + strconv.Itoa(t.Duplicates)},
				{Type: "mrkdwn", Text: "*Dropped:*\n" + strconv.Itoa(t.Dropped)},
				{Type: "mrkdwn", Text: "*Duration:*\n" + t.Duration.Round(time.Second).String()},
			},
		},
	}

	var lines []string
	for _, s := range stats.Sources {
		if s.Failed() {
			lines = append(lines, fmt.Sprintf(":x: *%s* failed: %s", s.Source, s.Err))
			continue
		}
		lines = append(lines, fmt.Sprintf(":white_check_mark: *%s*: %d new, %d duplicate, %d pages",
			s.Source, s.Inserted, s.Duplicates, s.Pages))
	}
	if len(lines) > 0 {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: strings.Join(lines, "\n")},
		})
	}

	footer := "Run `" + stats.RunID + "`"
	if len(failed) > 0 {
		footer += fmt.Sprintf(" with %d failed: %s", len(failed), strings.Join(failed, ", "))
	}
	blocks = append(blocks,
		slackBlock{Type: "context", Elements: []slackText{{Type: "mrkdwn", Text: footer}}},
		slackBlock{Type: "divider"},
	)

	return slackPayload{Blocks: blocks}
}
