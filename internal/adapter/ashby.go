package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amishk599/jobagg/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	Title            string `json:"title"`
	Location         string `json:"location"`
	Department       string `json:"department"`
	EmploymentType   string `json:"employmentType"`
	IsRemote         bool   `json:"isRemote"`
	JobUrl           string `json:"jobUrl"`
	PublishedAt      string `json:"publishedAt"`
	IsListed         bool   `json:"isListed"`
	DescriptionPlain string `json:"descriptionPlain"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbySource reads company boards from the Ashby public job board API, one
// board per page. Unlisted jobs are skipped.
type AshbySource struct {
	boards []Board
	client *http.Client
}

func NewAshbySource(boards []Board, client *http.Client) *AshbySource {
	return &AshbySource{boards: boards, client: client}
}

func (s *AshbySource) Name() string { return "ashby" }

func (s *AshbySource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	board, empty, ok := boardPage(s.boards, page)
	if !ok {
		return empty, nil
	}
	url := fmt.Sprintf("%s/%s", ashbyBaseURL, board.Token)

	var ashbyResp ashbyResponse
	if err := getJSON(ctx, s.client, url, "ashby fetch for "+board.Token, &ashbyResp); err != nil {
		return model.Page{}, err
	}

	postings := make([]model.RawPosting, 0, len(ashbyResp.Jobs))
	for _, aj := range ashbyResp.Jobs {
		if !aj.IsListed || !matchesKeywords(q.Keywords, aj.Title) {
			continue
		}

		var tags []string
		if aj.Department != "" {
			tags = []string{aj.Department}
		}

		postings = append(postings, model.RawPosting{
			Title:       aj.Title,
			Company:     board.Company,
			Location:    aj.Location,
			Description: aj.DescriptionPlain,
			URL:         aj.JobUrl,
			PostedDate:  aj.PublishedAt,
			JobType:     aj.EmploymentType,
			Tags:        tags,
			RemoteHint:  boolPtr(aj.IsRemote),
		})
	}

	return model.Page{Postings: postings, Done: page == len(s.boards)}, nil
}
