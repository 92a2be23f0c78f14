package adapter

import (
	"context"
	"net/http"
	"net/url"

	"github.com/amishk599/jobagg/internal/model"
)

const remotiveURL = "https://remotive.com/api/remote-jobs"

type remotiveJob struct {
	ID                        int64    `json:"id"`
	URL                       string   `json:"url"`
	Title                     string   `json:"title"`
	CompanyName               string   `json:"company_name"`
	Category                  string   `json:"category"`
	Tags                      []string `json:"tags"`
	JobType                   string   `json:"job_type"`
	PublicationDate           string   `json:"publication_date"`
	CandidateRequiredLocation string   `json:"candidate_required_location"`
	Salary                    string   `json:"salary"`
	Description               string   `json:"description"`
}

type remotiveResponse struct {
	Jobs []remotiveJob `json:"jobs"`
}

// RemotiveSource reads the Remotive remote-jobs API. Keywords are passed as
// the server-side search parameter; the API returns a single page.
type RemotiveSource struct {
	client *http.Client
}

func NewRemotiveSource(client *http.Client) *RemotiveSource {
	return &RemotiveSource{client: client}
}

func (s *RemotiveSource) Name() string { return "remotive" }

func (s *RemotiveSource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	if page > 1 {
		return model.Page{Done: true}, nil
	}

	u := remotiveURL
	if q.Keywords != "" {
		u += "?" + url.Values{"search": {q.Keywords}}.Encode()
	}

	var resp remotiveResponse
	if err := getJSON(ctx, s.client, u, "remotive fetch", &resp); err != nil {
		return model.Page{}, err
	}

	postings := make([]model.RawPosting, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		location := j.CandidateRequiredLocation
		if location == "" {
			location = "Remote"
		}
		tags := j.Tags
		if j.Category != "" {
			tags = append([]string{j.Category}, tags...)
		}
		postings = append(postings, model.RawPosting{
			Title:       j.Title,
			Company:     j.CompanyName,
			Location:    location,
			Description: extractText(j.Description),
			URL:         j.URL,
			PostedDate:  j.PublicationDate,
			JobType:     j.JobType,
			Salary:      j.Salary,
			Tags:        tags,
			RemoteHint:  boolPtr(true),
		})
	}

	return lastPage(postings), nil
}
