// Package model defines the shared data structures of the platform: scraped
// candidates, stored postings, users, and the interaction metadata written by
// the API.
package model

import (
	"strings"
	"time"
)

// NotAvailable is the sentinel stored when a scraper could not extract a
// field. Fields are never null; absence is explicit.
const NotAvailable = "NA"

// Candidate is a raw scraped job record before deduplication. Link is the
// only mandatory field; everything else may carry NotAvailable.
type Candidate struct {
	Source      string `json:"source"`
	JobID       string `json:"job_id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	PostedDate  string `json:"posted_date"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Seniority   string `json:"seniority"`
	EmpType     string `json:"emp_type"`
	JobFunc     string `json:"job_func"`
	Industry    string `json:"industry"`
}

// Posting is a stored job listing. UUID is content-derived from Link, so
// re-ingesting the same listing always maps to the same row. Postings are
// immutable after creation except for administrative updates, and are
// destroyed by retention once older than the configured threshold.
type Posting struct {
	UUID        string    `json:"uuid"`
	Skipped     bool      `json:"skipped"` // reserved for filtering, unused by the pipeline
	ScrapedAt   time.Time `json:"scraped_at"`
	Source      string    `json:"source"`
	JobID       string    `json:"job_id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	PostedDate  string    `json:"posted_date"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	Seniority   string    `json:"seniority"`
	EmpType     string    `json:"emp_type"`
	JobFunc     string    `json:"job_func"`
	Industry    string    `json:"industry"`
}

// FromCandidate builds a Posting from a scraped candidate, assigning the
// content-derived identifier and the scrape timestamp.
func FromCandidate(c Candidate, scrapedAt time.Time) (Posting, error) {
	id, err := PostingID(c.Link)
	if err != nil {
		return Posting{}, err
	}
	return Posting{
		UUID:        id,
		ScrapedAt:   scrapedAt,
		Source:      c.Source,
		JobID:       c.JobID,
		Title:       c.Title,
		Company:     c.Company,
		Location:    c.Location,
		PostedDate:  c.PostedDate,
		Link:        c.Link,
		Description: c.Description,
		Seniority:   c.Seniority,
		EmpType:     c.EmpType,
		JobFunc:     c.JobFunc,
		Industry:    c.Industry,
	}, nil
}

// FlatText flattens the posting's textual fields into a single space-joined
// blob for embedding. Field order follows the struct declaration; the
// identifier and provenance fields are excluded.
func (p Posting) FlatText() string {
	fields := []string{
		p.Source,
		p.JobID,
		p.Title,
		p.Company,
		p.Location,
		p.PostedDate,
		p.Link,
		p.Description,
		p.Seniority,
		p.EmpType,
		p.JobFunc,
		p.Industry,
	}
	return strings.Join(fields, " ")
}

// User is a profile row. Password arrives already hashed; the pipeline and
// search composer read users, never mutate them.
type User struct {
	UserID      string              `json:"user_id"`
	CreatedAt   time.Time           `json:"created_at"`
	Username    string              `json:"username"`
	FirstName   string              `json:"first_name"`
	LastName    string              `json:"last_name"`
	Email       string              `json:"email"`
	Password    string              `json:"password"`
	Skills      []string            `json:"skills"`
	WorkHistory []map[string]string `json:"work_history"`
	Preferences map[string]string   `json:"preferences"`
}

// Search is one row of the append-only search log.
type Search struct {
	SearchID  string    `json:"search_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Results   []string  `json:"results"`
}

// Click is one row of the append-only click log. JobID references a posting
// identifier.
type Click struct {
	ClickID   string    `json:"click_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id"`
}
