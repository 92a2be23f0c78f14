package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/amishk599/jobagg/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team         string   `json:"team"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"` // unix millis
	WorkplaceType    string          `json:"workplaceType"`
	HostedURL        string          `json:"hostedUrl"`
	SalaryRange      *struct {
		Min      int    `json:"min"`
		Max      int    `json:"max"`
		Currency string `json:"currency"`
	} `json:"salaryRange"`
}

// LeverSource reads company boards from the Lever public postings API, one
// board per page.
type LeverSource struct {
	boards []Board
	client *http.Client
}

func NewLeverSource(boards []Board, client *http.Client) *LeverSource {
	return &LeverSource{boards: boards, client: client}
}

func (s *LeverSource) Name() string { return "lever" }

func (s *LeverSource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	board, empty, ok := boardPage(s.boards, page)
	if !ok {
		return empty, nil
	}
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, board.Token)

	var leverJobs []leverJob
	if err := getJSON(ctx, s.client, url, "lever fetch for "+board.Token, &leverJobs); err != nil {
		return model.Page{}, err
	}

	postings := make([]model.RawPosting, 0, len(leverJobs))
	for _, lj := range leverJobs {
		if !matchesKeywords(q.Keywords, lj.Text) {
			continue
		}

		// Prefer allLocations if available, fallback to location.
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		var posted string
		if lj.CreatedAt > 0 {
			posted = strconv.FormatInt(lj.CreatedAt, 10)
		}

		var salary string
		if lj.SalaryRange != nil {
			salary = salaryRange(lj.SalaryRange.Min, lj.SalaryRange.Max)
		}

		var tags []string
		for _, t := range []string{lj.Categories.Team, lj.Categories.Department} {
			if t != "" {
				tags = append(tags, t)
			}
		}

		postings = append(postings, model.RawPosting{
			Title:       lj.Text,
			Company:     board.Company,
			Location:    location,
			Description: lj.DescriptionPlain,
			URL:         lj.HostedURL,
			PostedDate:  posted,
			JobType:     lj.Categories.Commitment,
			Salary:      salary,
			Tags:        tags,
			RemoteHint:  boolPtr(lj.WorkplaceType == "remote"),
		})
	}

	return model.Page{Postings: postings, Done: page == len(s.boards)}, nil
}
