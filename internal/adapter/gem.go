package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amishk599/jobagg/internal/model"
)

const gemBaseURL = "https://api.gem.com/job_board/v0"

type gemJob struct {
	Title          string `json:"title"`
	AbsoluteURL    string `json:"absolute_url"`
	FirstPublished string `json:"first_published_at"`
	Content        string `json:"content"`
	ContentPlain   string `json:"content_plain"`
	EmploymentType string `json:"employment_type"`
	Location       struct {
		Name string `json:"name"`
	} `json:"location"`
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
}

// GemSource reads company boards from the Gem public job board API, one
// board per page.
type GemSource struct {
	boards []Board
	client *http.Client
}

func NewGemSource(boards []Board, client *http.Client) *GemSource {
	return &GemSource{boards: boards, client: client}
}

func (s *GemSource) Name() string { return "gem" }

func (s *GemSource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	board, empty, ok := boardPage(s.boards, page)
	if !ok {
		return empty, nil
	}
	url := fmt.Sprintf("%s/%s/job_posts/", gemBaseURL, board.Token)

	var jobs []gemJob
	if err := getJSON(ctx, s.client, url, "gem fetch for "+board.Token, &jobs); err != nil {
		return model.Page{}, err
	}

	postings := make([]model.RawPosting, 0, len(jobs))
	for _, gj := range jobs {
		if !matchesKeywords(q.Keywords, gj.Title) {
			continue
		}

		desc := gj.ContentPlain
		if desc == "" {
			desc = extractText(gj.Content)
		}
		var tags []string
		for _, d := range gj.Departments {
			if d.Name != "" {
				tags = append(tags, d.Name)
			}
		}

		postings = append(postings, model.RawPosting{
			Title:       gj.Title,
			Company:     board.Company,
			Location:    gj.Location.Name,
			Description: desc,
			URL:         gj.AbsoluteURL,
			PostedDate:  gj.FirstPublished,
			JobType:     gj.EmploymentType,
			Tags:        tags,
		})
	}

	return model.Page{Postings: postings, Done: page == len(s.boards)}, nil
}
