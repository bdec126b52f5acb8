package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jobstream-labs/jobstream/internal/model"
)

const linkedinSource = "linkedin"

// LinkedIn scrapes the public jobs-guest JSON endpoints. Unlike Indeed it
// exposes all four criteria fields (seniority, employment type, function,
// industry) on the detail page.
type LinkedIn struct {
	baseURL string
	query   string
	locale  string
	session *Session
}

// NewLinkedIn builds a LinkedIn scraper for one search query.
func NewLinkedIn(baseURL, query, locale string, session *Session) *LinkedIn {
	return &LinkedIn{
		baseURL: baseURL,
		query:   query,
		locale:  locale,
		session: session,
	}
}

func (s *LinkedIn) Source() string { return linkedinSource }

// ResetSession discards cookies and identity for the next attempt. LinkedIn
// serves an auth wall to sessions it flags, so a blocked attempt retries with
// a fresh jar.
func (s *LinkedIn) ResetSession() { s.session.Reset() }

func (s *LinkedIn) Scrape(ctx context.Context, maxJobs int) ([]model.Candidate, error) {
	return ScrapeAll(ctx, s, maxJobs)
}

type linkedinListResponse struct {
	Elements []struct {
		EntityURN  string `json:"entityUrn"`
		Title      string `json:"title"`
		Company    string `json:"companyName"`
		Location   string `json:"formattedLocation"`
		ListedAt   string `json:"listedAt"`
		PostingURL string `json:"jobPostingUrl"`
	} `json:"elements"`
}

func (s *LinkedIn) ExtractListItems(ctx context.Context) ([]ListItem, error) {
	endpoint := fmt.Sprintf("%s/jobs-guest/jobs/api/seeMoreJobPostings/search?keywords=%s&location=%s&start=0",
		s.baseURL, url.QueryEscape(s.query), url.QueryEscape(s.locale))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, failf(Fatal, "creating listing request: %v", err)
	}
	resp, err := s.session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching listing: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusFailure(resp.StatusCode, endpoint)
	}

	var listing linkedinListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, failf(Fatal, "decoding listing: %v", err)
	}
	// An OK response with zero elements is the auth wall, not an empty
	// search. A fresh session usually gets through.
	if len(listing.Elements) == 0 {
		return nil, failf(Blocked, "listing returned no elements, likely auth wall")
	}

	items := make([]ListItem, 0, len(listing.Elements))
	for _, e := range listing.Elements {
		if e.PostingURL == "" {
			continue
		}
		items = append(items, ListItem{
			JobID:      jobIDFromURN(e.EntityURN),
			Title:      e.Title,
			Company:    e.Company,
			Location:   e.Location,
			PostedDate: e.ListedAt,
			// Tracking params vary per request and would defeat
			// link-based dedup.
			Link: stripTracking(e.PostingURL),
		})
	}
	return items, nil
}

type linkedinDetailResponse struct {
	Description struct {
		Text string `json:"text"`
	} `json:"description"`
	Criteria []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"jobCriteria"`
}

func (s *LinkedIn) ExtractDetailFields(ctx context.Context, item ListItem) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/jobs-guest/jobs/api/jobPosting/%s", s.baseURL, item.JobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, failf(Fatal, "creating detail request: %v", err)
	}
	resp, err := s.session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching detail for %s: %w", item.JobID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusFailure(resp.StatusCode, endpoint)
	}

	var detail linkedinDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, failf(Fatal, "decoding detail for %s: %v", item.JobID, err)
	}

	fields := map[string]string{"description": detail.Description.Text}
	for _, c := range detail.Criteria {
		switch c.Name {
		case "Seniority level":
			fields["seniority"] = c.Value
		case "Employment type":
			fields["emp_type"] = c.Value
		case "Job function":
			fields["job_func"] = c.Value
		case "Industries":
			fields["industry"] = c.Value
		}
	}
	return fields, nil
}

func (s *LinkedIn) BuildRecord(item ListItem, fields map[string]string) model.Candidate {
	jobID := item.JobID
	if jobID == "" {
		jobID = model.NotAvailable
	}
	return model.Candidate{
		Source:      linkedinSource,
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

// jobIDFromURN extracts the numeric posting id from an entity URN such as
// "urn:li:jobPosting:3791234567".
func jobIDFromURN(urn string) string {
	if i := strings.LastIndex(urn, ":"); i >= 0 {
		return urn[i+1:]
	}
	return urn
}

// stripTracking drops the query string from a posting link.
func stripTracking(link string) string {
	if i := strings.IndexByte(link, '?'); i >= 0 {
		return link[:i]
	}
	return link
}
