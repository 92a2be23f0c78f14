package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/amishk599/jobagg/internal/model"
)

const (
	adzunaBaseURL = "https://api.adzuna.com/v1/api/jobs"
	adzunaPerPage = 50
)

type adzunaJob struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	RedirectURL string  `json:"redirect_url"`
	Created     string  `json:"created"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	Contract    string  `json:"contract_time"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
	Category struct {
		Tag   string `json:"tag"`
		Label string `json:"label"`
	} `json:"category"`
}

type adzunaResponse struct {
	Count   int         `json:"count"`
	Results []adzunaJob `json:"results"`
}

// AdzunaConfig holds the credentials and market for the Adzuna search API.
type AdzunaConfig struct {
	AppID   string
	AppKey  string
	Country string // two-letter market code, e.g. "us"
}

// AdzunaSource queries the Adzuna search API, which is genuinely paged.
type AdzunaSource struct {
	cfg    AdzunaConfig
	client *http.Client
}

func NewAdzunaSource(cfg AdzunaConfig, client *http.Client) *AdzunaSource {
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	return &AdzunaSource{cfg: cfg, client: client}
}

func (s *AdzunaSource) Name() string { return "adzuna" }

func (s *AdzunaSource) FetchPage(ctx context.Context, q model.Query, page int) (model.Page, error) {
	params := url.Values{
		"app_id":           {s.cfg.AppID},
		"app_key":          {s.cfg.AppKey},
		"results_per_page": {fmt.Sprint(adzunaPerPage)},
		"what":             {q.Keywords},
		"where":            {q.Location},
	}
	u := fmt.Sprintf("%s/%s/search/%d?%s", adzunaBaseURL, s.cfg.Country, page, params.Encode())

	var resp adzunaResponse
	if err := getJSON(ctx, s.client, u, fmt.Sprintf("adzuna fetch page %d", page), &resp); err != nil {
		return model.Page{}, err
	}

	postings := make([]model.RawPosting, 0, len(resp.Results))
	for _, j := range resp.Results {
		var tags []string
		if j.Category.Tag != "" {
			tags = []string{j.Category.Tag}
		}
		postings = append(postings, model.RawPosting{
			Title:       j.Title,
			Company:     j.Company.DisplayName,
			Location:    j.Location.DisplayName,
			Description: extractText(j.Description),
			URL:         j.RedirectURL,
			PostedDate:  j.Created,
			JobType:     strings.ReplaceAll(j.Contract, "_", "-"),
			Salary:      salaryRange(int(j.SalaryMin), int(j.SalaryMax)),
			Tags:        tags,
		})
	}

	done := len(resp.Results) < adzunaPerPage || page*adzunaPerPage >= resp.Count
	return model.Page{Postings: postings, Done: done}, nil
}
