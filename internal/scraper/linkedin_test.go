package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLinkedInEmptyListingIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()

	s := NewLinkedIn(srv.URL, "engineer", "remote", NewSession(5*time.Second))
	_, err := s.ExtractListItems(context.Background())
	if err == nil {
		t.Fatal("expected error for empty listing")
	}
	var se *ScrapeError
	if !errors.As(err, &se) || se.Kind != Blocked {
		t.Fatalf("expected blocked failure, got %v", err)
	}
}

func TestLinkedInListItemsStripTracking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"elements":[{
			"entityUrn":"urn:li:jobPosting:3791234567",
			"title":"Data Engineer",
			"companyName":"Acme",
			"formattedLocation":"Remote",
			"listedAt":"2 days ago",
			"jobPostingUrl":"https://www.linkedin.com/jobs/view/3791234567?refId=abc&trk=guest"
		}]}`))
	}))
	defer srv.Close()

	s := NewLinkedIn(srv.URL, "engineer", "remote", NewSession(5*time.Second))
	items, err := s.ExtractListItems(context.Background())
	if err != nil {
		t.Fatalf("ExtractListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Link != "https://www.linkedin.com/jobs/view/3791234567" {
		t.Errorf("tracking params not stripped: %s", items[0].Link)
	}
	if items[0].JobID != "3791234567" {
		t.Errorf("urn not parsed: %s", items[0].JobID)
	}
}

func TestLinkedInBuildRecordFillsCriteria(t *testing.T) {
	s := NewLinkedIn("http://test", "q", "l", NewSession(time.Second))
	item := ListItem{JobID: "42", Title: "Engineer", Link: "http://test/jobs/view/42"}
	fields := map[string]string{
		"description": "builds pipelines",
		"seniority":   "Mid-Senior level",
		"emp_type":    "Full-time",
		"job_func":    "Engineering",
		"industry":    "Software Development",
	}
	c := s.BuildRecord(item, fields)
	if c.Seniority != "Mid-Senior level" || c.Industry != "Software Development" {
		t.Errorf("criteria fields not mapped: %+v", c)
	}
	if c.Company != "NA" {
		t.Errorf("missing company should fall back to NA, got %q", c.Company)
	}
	if c.Source != "linkedin" {
		t.Errorf("wrong source %q", c.Source)
	}
}
