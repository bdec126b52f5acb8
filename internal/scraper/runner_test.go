package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jobstream-labs/jobstream/internal/model"
	"github.com/jobstream-labs/jobstream/pkg/config"
)

type fakeScraper struct {
	mu          sync.Mutex
	source      string
	items       []ListItem
	listErr     error
	detailCalls int
	resets      int
	failKind    *FailureKind
	failFor     int // attempts that fail before succeeding
	hangFor     int // attempts that block until the context expires
}

func (s *fakeScraper) Source() string { return s.source }

func (s *fakeScraper) Scrape(ctx context.Context, maxJobs int) ([]model.Candidate, error) {
	return ScrapeAll(ctx, s, maxJobs)
}

func (s *fakeScraper) ExtractListItems(ctx context.Context) ([]ListItem, error) {
	s.mu.Lock()
	if s.hangFor > 0 {
		s.hangFor--
		s.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer s.mu.Unlock()
	if s.failFor > 0 {
		s.failFor--
		return nil, failf(*s.failKind, "induced failure")
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.items, nil
}

func (s *fakeScraper) ExtractDetailFields(ctx context.Context, item ListItem) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailCalls++
	return map[string]string{"description": "desc for " + item.JobID}, nil
}

func (s *fakeScraper) BuildRecord(item ListItem, fields map[string]string) model.Candidate {
	return model.Candidate{
		Source:      s.source,
		JobID:       item.JobID,
		Title:       item.Title,
		Link:        item.Link,
		Description: fieldOr(fields, "description"),
	}
}

func (s *fakeScraper) ResetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

type fakeExistence struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func (f *fakeExistence) KnownIDs(ctx context.Context) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{}, len(f.ids))
	for id := range f.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

type fakePublisher struct {
	published []model.Candidate
}

func (p *fakePublisher) PublishCandidates(ctx context.Context, candidates []model.Candidate) error {
	p.published = append(p.published, candidates...)
	return nil
}

func testCfg() config.ScraperConfig {
	return config.ScraperConfig{
		MaxJobs:     25,
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	}
}

func listItems(n int) []ListItem {
	items := make([]ListItem, n)
	for i := range items {
		items[i] = ListItem{
			JobID: fmt.Sprintf("jk%d", i),
			Title: fmt.Sprintf("Job %d", i),
			Link:  fmt.Sprintf("https://example.com/viewjob?jk=%d", i),
		}
	}
	return items
}

func TestRunnerSkipsKnownBeforeDetailFetch(t *testing.T) {
	s := &fakeScraper{source: "test", items: listItems(4)}
	knownID, err := model.PostingID(s.items[1].Link)
	if err != nil {
		t.Fatalf("PostingID: %v", err)
	}
	store := &fakeExistence{ids: map[string]struct{}{knownID: {}}}
	pub := &fakePublisher{}

	r := NewRunner([]Scraper{s}, store, pub, testCfg())
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.detailCalls != 3 {
		t.Errorf("detail fetched %d times, want 3 (known posting skipped)", s.detailCalls)
	}
	if len(pub.published) != 3 {
		t.Errorf("published %d candidates, want 3", len(pub.published))
	}
}

func TestRunnerRetriesBlockedWithFreshSession(t *testing.T) {
	blocked := Blocked
	s := &fakeScraper{source: "test", items: listItems(1), failKind: &blocked, failFor: 2}
	r := NewRunner([]Scraper{s}, &fakeExistence{}, &fakePublisher{}, testCfg())

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.resets != 2 {
		t.Errorf("session reset %d times, want 2", s.resets)
	}
}

func TestRunnerGivesUpAfterMaxAttempts(t *testing.T) {
	blocked := Blocked
	s := &fakeScraper{source: "test", items: listItems(1), failKind: &blocked, failFor: 10}
	r := NewRunner([]Scraper{s}, &fakeExistence{}, &fakePublisher{}, testCfg())

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected terminal failure after exhausted attempts")
	}
}

func TestRunnerDoesNotRetryFatal(t *testing.T) {
	fatal := Fatal
	s := &fakeScraper{source: "test", items: listItems(1), failKind: &fatal, failFor: 10}
	r := NewRunner([]Scraper{s}, &fakeExistence{}, &fakePublisher{}, testCfg())

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error from fatal failure")
	}
	if s.failFor != 9 {
		t.Errorf("scraper attempted %d times, want 1", 10-s.failFor)
	}
}

func TestRunnerCapsAtMaxJobs(t *testing.T) {
	cfg := testCfg()
	cfg.MaxJobs = 2
	s := &fakeScraper{source: "test", items: listItems(10)}
	pub := &fakePublisher{}
	r := NewRunner([]Scraper{s}, &fakeExistence{}, pub, cfg)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pub.published) != 2 {
		t.Errorf("published %d candidates, want 2", len(pub.published))
	}
}

func TestRunnerRetriesHungAttempt(t *testing.T) {
	s := &fakeScraper{source: "test", items: listItems(2), hangFor: 1}
	pub := &fakePublisher{}
	cfg := testCfg()
	cfg.AttemptTimeout = 20 * time.Millisecond
	r := NewRunner([]Scraper{s}, &fakeExistence{}, pub, cfg)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pub.published) != 2 {
		t.Errorf("published %d candidates, want 2 after the timed-out attempt retried", len(pub.published))
	}
}

func TestRunnerHungAttemptsExhaustRetries(t *testing.T) {
	s := &fakeScraper{source: "test", items: listItems(1), hangFor: 10}
	cfg := testCfg()
	cfg.AttemptTimeout = 10 * time.Millisecond
	r := NewRunner([]Scraper{s}, &fakeExistence{}, &fakePublisher{}, cfg)

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected terminal failure when every attempt times out")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("terminal error should carry the timeout cause, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want FailureKind
	}{
		{statusFailure(403, "u"), Blocked},
		{statusFailure(429, "u"), Blocked},
		{statusFailure(500, "u"), Transient},
		{statusFailure(404, "u"), Fatal},
		{fmt.Errorf("wrapped: %w", statusFailure(503, "u")), Transient},
		{context.Canceled, Fatal},
		{fmt.Errorf("plain"), Fatal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
