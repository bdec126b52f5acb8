package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jobstream-labs/jobstream/internal/model"
)

const indeedSource = "indeed"

// Indeed scrapes the Indeed job-search JSON endpoints. It carries a Session
// so the runner can hand it fresh state between retries.
type Indeed struct {
	baseURL string
	query   string
	locale  string
	session *Session
}

// NewIndeed builds an Indeed scraper for one search query.
func NewIndeed(baseURL, query, locale string, session *Session) *Indeed {
	return &Indeed{
		baseURL: baseURL,
		query:   query,
		locale:  locale,
		session: session,
	}
}

func (s *Indeed) Source() string { return indeedSource }

// ResetSession discards cookies and identity for the next attempt.
func (s *Indeed) ResetSession() { s.session.Reset() }

func (s *Indeed) Scrape(ctx context.Context, maxJobs int) ([]model.Candidate, error) {
	return ScrapeAll(ctx, s, maxJobs)
}

type indeedListResponse struct {
	Results []struct {
		JobKey      string `json:"jobkey"`
		Title       string `json:"title"`
		Company     string `json:"company"`
		Location    string `json:"formattedLocation"`
		RelativeAge string `json:"formattedRelativeTime"`
		URL         string `json:"url"`
	} `json:"results"`
}

func (s *Indeed) ExtractListItems(ctx context.Context) ([]ListItem, error) {
	url := fmt.Sprintf("%s/jobs?q=%s&l=%s&format=json", s.baseURL, s.query, s.locale)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, failf(Fatal, "creating listing request: %v", err)
	}
	resp, err := s.session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching listing: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusFailure(resp.StatusCode, url)
	}

	var listing indeedListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, failf(Fatal, "decoding listing: %v", err)
	}

	items := make([]ListItem, 0, len(listing.Results))
	for _, r := range listing.Results {
		if r.URL == "" {
			continue
		}
		items = append(items, ListItem{
			JobID:      r.JobKey,
			Title:      r.Title,
			Company:    r.Company,
			Location:   r.Location,
			PostedDate: r.RelativeAge,
			Link:       r.URL,
		})
	}
	return items, nil
}

type indeedDetailResponse struct {
	Description string `json:"sanitizedJobDescription"`
	Attributes  struct {
		Seniority string `json:"seniorityLevel"`
		EmpType   string `json:"employmentType"`
		JobFunc   string `json:"jobFunction"`
		Industry  string `json:"industry"`
	} `json:"attributes"`
}

func (s *Indeed) ExtractDetailFields(ctx context.Context, item ListItem) (map[string]string, error) {
	url := fmt.Sprintf("%s/viewjob?jk=%s&format=json", s.baseURL, item.JobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, failf(Fatal, "creating detail request: %v", err)
	}
	resp, err := s.session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching detail for %s: %w", item.JobID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusFailure(resp.StatusCode, url)
	}

	var detail indeedDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, failf(Fatal, "decoding detail for %s: %v", item.JobID, err)
	}
	return map[string]string{
		"description": detail.Description,
		"seniority":   detail.Attributes.Seniority,
		"emp_type":    detail.Attributes.EmpType,
		"job_func":    detail.Attributes.JobFunc,
		"industry":    detail.Attributes.Industry,
	}, nil
}

func (s *Indeed) BuildRecord(item ListItem, fields map[string]string) model.Candidate {
	jobID := item.JobID
	if jobID == "" {
		jobID = model.NotAvailable
	}
	return model.Candidate{
		Source:      indeedSource,
		JobID:       jobID,
		Title:       orNA(item.Title),
		Company:     orNA(item.Company),
		Location:    orNA(item.Location),
		PostedDate:  orNA(item.PostedDate),
		Link:        item.Link,
		Description: fieldOr(fields, "description"),
		Seniority:   fieldOr(fields, "seniority"),
		EmpType:     fieldOr(fields, "emp_type"),
		JobFunc:     fieldOr(fields, "job_func"),
		Industry:    fieldOr(fields, "industry"),
	}
}

func orNA(v string) string {
	if v == "" {
		return model.NotAvailable
	}
	return v
}
