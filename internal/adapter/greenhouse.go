package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amishk599/jobagg/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	Location       greenhouseLocation `json:"location"`
	AbsoluteURL    string             `json:"absolute_url"`
	UpdatedAt      string             `json:"updated_at"`
	FirstPublished string             `json:"first_published"`
	Content        string             `json:"content"`
	Departments    []struct {
		Name string `json:"name"`
	} `json:"departments"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseSource reads company boards from the Greenhouse public boards
// API, one board per page.
type GreenhouseSource struct {
	boards []Board
	client *http.Client
}

func NewGreenhouseSource(boards []Board, client *http.Client) *GreenhouseSource {
	return &GreenhouseSource{boards: boards, client: client}
}

func (s *GreenhouseSource) Name() string { return "greenhouse" }

// FetchPage retrieves every job on the page's board. content=true inlines the
// (double-encoded) HTML description.
func (s *GreenhouseSource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	board, empty, ok := boardPage(s.boards, page)
	if !ok {
		return empty, nil
	}
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, board.Token)

	var ghResp greenhouseResponse
	if err := getJSON(ctx, s.client, url, "greenhouse fetch for "+board.Token, &ghResp); err != nil {
		return model.Page{}, err
	}

	postings := make([]model.RawPosting, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		if !matchesKeywords(q.Keywords, gj.Title) {
			continue
		}

		posted := gj.FirstPublished
		if posted == "" {
			posted = gj.UpdatedAt
		}

		var tags []string
		for _, d := range gj.Departments {
			tags = append(tags, d.Name)
		}

		postings = append(postings, model.RawPosting{
			Title:       gj.Title,
			Company:     board.Company,
			Location:    gj.Location.Name,
			Description: extractText(gj.Content),
			URL:         gj.AbsoluteURL,
			PostedDate:  posted,
			Tags:        tags,
		})
	}

	return model.Page{Postings: postings, Done: page == len(s.boards)}, nil
}
