package model

import (
	"errors"
	"testing"

	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

func TestPostingIDDeterministic(t *testing.T) {
	link := "https://jobs.example.com/listing/12345"

	first, err := PostingID(link)
	if err != nil {
		t.Fatalf("PostingID returned error: %v", err)
	}
	second, err := PostingID(link)
	if err != nil {
		t.Fatalf("PostingID returned error on second call: %v", err)
	}
	if first != second {
		t.Errorf("same link produced different ids: %q vs %q", first, second)
	}
}

func TestPostingIDDistinctLinks(t *testing.T) {
	a, err := PostingID("https://jobs.example.com/listing/1")
	if err != nil {
		t.Fatalf("PostingID returned error: %v", err)
	}
	b, err := PostingID("https://jobs.example.com/listing/2")
	if err != nil {
		t.Fatalf("PostingID returned error: %v", err)
	}
	if a == b {
		t.Errorf("different links produced the same id %q", a)
	}
}

func TestPostingIDFormat(t *testing.T) {
	id, err := PostingID("https://jobs.example.com/listing/1")
	if err != nil {
		t.Fatalf("PostingID returned error: %v", err)
	}
	// 128-bit digest rendered in canonical UUID form.
	if len(id) != 36 {
		t.Errorf("expected 36-char identifier, got %d: %q", len(id), id)
	}
}

func TestPostingIDEmptyLink(t *testing.T) {
	for _, link := range []string{"", "   "} {
		if _, err := PostingID(link); !errors.Is(err, apperrors.ErrInvalidCandidate) {
			t.Errorf("PostingID(%q) = %v, want ErrInvalidCandidate", link, err)
		}
	}
}

func TestFlatTextFieldOrder(t *testing.T) {
	p := Posting{
		Source:      "indeed",
		JobID:       "j1",
		Title:       "Data Engineer",
		Company:     "Acme",
		Location:    "Lagos",
		PostedDate:  "3 days ago",
		Link:        "https://example.com/j1",
		Description: "build pipelines",
		Seniority:   "Mid",
		EmpType:     "Full-time",
		JobFunc:     "Engineering",
		Industry:    "Tech",
	}
	want := "indeed j1 Data Engineer Acme Lagos 3 days ago https://example.com/j1 build pipelines Mid Full-time Engineering Tech"
	if got := p.FlatText(); got != want {
		t.Errorf("FlatText() = %q, want %q", got, want)
	}
}
