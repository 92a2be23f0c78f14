package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/amishk599/jobagg/internal/model"
)

const remoteOKURL = "https://remoteok.com/api"

// remoteOKJob is one element of the RemoteOK feed. The first element of the
// array is a legal notice, not a job, and has no position.
type remoteOKJob struct {
	ID          json.RawMessage `json:"id"`
	Epoch       int64           `json:"epoch"`
	Date        string          `json:"date"`
	Company     string          `json:"company"`
	Position    string          `json:"position"`
	Tags        []string        `json:"tags"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	SalaryMin   int             `json:"salary_min"`
	SalaryMax   int             `json:"salary_max"`
	URL         string          `json:"url"`
	Legal       string          `json:"legal"`
}

// RemoteOKSource reads the RemoteOK public JSON feed. The feed has no search
// or paging, so everything arrives as one page and keywords are matched locally.
type RemoteOKSource struct {
	client *http.Client
}

func NewRemoteOKSource(client *http.Client) *RemoteOKSource {
	return &RemoteOKSource{client: client}
}

func (s *RemoteOKSource) Name() string { return "remoteok" }

func (s *RemoteOKSource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	if page > 1 {
		return model.Page{Done: true}, nil
	}

	var items []remoteOKJob
	if err := getJSON(ctx, s.client, remoteOKURL, "remoteok fetch", &items); err != nil {
		return model.Page{}, err
	}

	postings := make([]model.RawPosting, 0, len(items))
	for _, it := range items {
		if it.Legal != "" || it.Position == "" {
			continue
		}
		if !matchesKeywords(q.Keywords, it.Position, it.Company, it.Description, strings.Join(it.Tags, " ")) {
			continue
		}

		posted := it.Date
		if it.Epoch > 0 {
			posted = strconv.FormatInt(it.Epoch, 10)
		}

		url := it.URL
		if url == "" {
			url = fmt.Sprintf("https://remoteok.com/remote-jobs/%s", strings.Trim(string(it.ID), `"`))
		}

		location := it.Location
		if location == "" {
			location = "Remote"
		}

		postings = append(postings, model.RawPosting{
			Title:       it.Position,
			Company:     it.Company,
			Location:    location,
			Description: extractText(it.Description),
			URL:         url,
			PostedDate:  posted,
			JobType:     "Full-time",
			Salary:      salaryRange(it.SalaryMin, it.SalaryMax),
			Tags:        it.Tags,
			RemoteHint:  boolPtr(true),
		})
	}

	return lastPage(postings), nil
}

func salaryRange(low, high int) string {
	switch {
	case low > 0 && high > 0:
		return fmt.Sprintf("$%d-$%d", low, high)
	case low > 0:
		return fmt.Sprintf("$%d+", low)
	case high > 0:
		return fmt.Sprintf("up to $%d", high)
	}
	return ""
}
