package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jobstream-labs/jobstream/internal/model"
	"github.com/jobstream-labs/jobstream/pkg/config"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

type fakeStore struct {
	mu         sync.Mutex
	postings   map[string]model.Posting
	down       bool
	failNext   int
	deleteErrs map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{postings: make(map[string]model.Posting)}
}

func (s *fakeStore) KnownIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errors.New("connection refused")
	}
	ids := make(map[string]struct{}, len(s.postings))
	for id := range s.postings {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *fakeStore) InsertPosting(ctx context.Context, posting model.Posting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return false, errors.New("connection refused")
	}
	if s.failNext > 0 {
		s.failNext--
		return false, errors.New("value too long for column")
	}
	if _, ok := s.postings[posting.UUID]; ok {
		return false, nil
	}
	s.postings[posting.UUID] = posting
	return true, nil
}

func (s *fakeStore) ScrapeTimes(ctx context.Context) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	times := make(map[string]time.Time, len(s.postings))
	for id, p := range s.postings {
		times[id] = p.ScrapedAt
	}
	return times, nil
}

func (s *fakeStore) GetPostings(ctx context.Context, ids []string) ([]model.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Posting, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.postings[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) DeletePosting(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.deleteErrs[id]; ok {
		return err
	}
	delete(s.postings, id)
	return nil
}

func (s *fakeStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errors.New("connection refused")
	}
	return nil
}

type fakeIndex struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	deleteErr  error
	upsertErrs int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{vectors: make(map[string][]float32)}
}

func (ix *fakeIndex) KnownIDs(ctx context.Context) (map[string]struct{}, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ids := make(map[string]struct{}, len(ix.vectors))
	for id := range ix.vectors {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (ix *fakeIndex) UpsertBatch(ctx context.Context, ids []string, vectors [][]float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.upsertErrs > 0 {
		ix.upsertErrs--
		return errors.New("index write failed")
	}
	if len(ids) != len(vectors) {
		return errors.New("length mismatch")
	}
	for i, id := range ids {
		ix.vectors[id] = vectors[i]
	}
	return nil
}

func (ix *fakeIndex) DeleteBatch(ctx context.Context, ids []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.deleteErr != nil {
		return ix.deleteErr
	}
	for _, id := range ids {
		delete(ix.vectors, id)
	}
	return nil
}

func (ix *fakeIndex) count() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.vectors)
}

type fakeEmbedder struct {
	calls int
}

func (e *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 0, 0, 0}, nil
}

func (e *fakeEmbedder) EmbedRecord(ctx context.Context, posting model.Posting) ([]float32, error) {
	return e.EmbedText(ctx, posting.FlatText())
}

func (e *fakeEmbedder) EmbedRecords(ctx context.Context, postings []model.Posting) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(postings))
	for i, p := range postings {
		vec, _ := e.EmbedRecord(ctx, p)
		out[i] = vec
	}
	return out, nil
}

func testPipeline(store *fakeStore, index *fakeIndex) *Pipeline {
	return New(store, index, &fakeEmbedder{}, config.PipelineConfig{
		IntervalHours:    6,
		RetentionDays:    30,
		EmbedConcurrency: 4,
		ConsumerBatch:    100,
	}, nil)
}

func candidate(link string) model.Candidate {
	return model.Candidate{
		Source:      "indeed",
		Title:       "Platform Engineer",
		Company:     "Acme",
		Link:        link,
		Description: model.NotAvailable,
	}
}

func TestIngestBatchDeduplicates(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(store, newFakeIndex())
	ctx := context.Background()

	batch := []model.Candidate{
		candidate("https://example.com/jobs/1"),
		candidate("https://example.com/jobs/2"),
		candidate("https://example.com/jobs/1"), // repeated within the batch
	}

	res, err := p.IngestBatch(ctx, batch)
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if res.Ingested != 2 || res.Duplicates != 1 {
		t.Errorf("got %+v, want 2 ingested and 1 duplicate", res)
	}

	// Replaying the full batch must insert nothing.
	res, err = p.IngestBatch(ctx, batch)
	if err != nil {
		t.Fatalf("IngestBatch replay: %v", err)
	}
	if res.Ingested != 0 || res.Duplicates != 3 {
		t.Errorf("replay got %+v, want 0 ingested and 3 duplicates", res)
	}
	if len(store.postings) != 2 {
		t.Errorf("store holds %d postings, want 2", len(store.postings))
	}
}

func TestIngestBatchRejectsMissingLink(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(store, newFakeIndex())

	res, err := p.IngestBatch(context.Background(), []model.Candidate{
		candidate(""),
		candidate("https://example.com/jobs/1"),
	})
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if res.Rejected != 1 || res.Ingested != 1 {
		t.Errorf("got %+v, want 1 rejected and 1 ingested", res)
	}
}

func TestIngestBatchRecordLocalFailureContinues(t *testing.T) {
	store := newFakeStore()
	store.failNext = 1
	p := testPipeline(store, newFakeIndex())

	res, err := p.IngestBatch(context.Background(), []model.Candidate{
		candidate("https://example.com/jobs/1"),
		candidate("https://example.com/jobs/2"),
	})
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if res.Rejected != 1 || res.Ingested != 1 {
		t.Errorf("got %+v, want the failed record skipped and the rest ingested", res)
	}
}

func TestIngestBatchStoreOutageIsRetryable(t *testing.T) {
	store := newFakeStore()
	store.down = true
	p := testPipeline(store, newFakeIndex())

	_, err := p.IngestBatch(context.Background(), []model.Candidate{candidate("https://example.com/jobs/1")})
	if err == nil {
		t.Fatal("expected error from downed store")
	}
}

func TestPropagateConverges(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	p := testPipeline(store, index)
	ctx := context.Background()

	var links []string
	for i := 0; i < 80; i++ {
		links = append(links, fmt.Sprintf("https://example.com/jobs/%d", i))
	}
	batch := make([]model.Candidate, len(links))
	for i, l := range links {
		batch[i] = candidate(l)
	}
	if _, err := p.IngestBatch(ctx, batch); err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}

	n, err := p.Propagate(ctx)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if n != 80 {
		t.Errorf("upserted %d vectors, want 80", n)
	}
	if index.count() != 80 {
		t.Errorf("index holds %d vectors, want 80", index.count())
	}

	// After convergence the stage is a no-op.
	n, err = p.Propagate(ctx)
	if err != nil {
		t.Fatalf("Propagate repeat: %v", err)
	}
	if n != 0 {
		t.Errorf("repeat run upserted %d vectors, want 0", n)
	}
}

func TestPropagateOnlyMissing(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	p := testPipeline(store, index)
	ctx := context.Background()

	if _, err := p.IngestBatch(ctx, []model.Candidate{
		candidate("https://example.com/jobs/1"),
		candidate("https://example.com/jobs/2"),
	}); err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if _, err := p.Propagate(ctx); err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	if _, err := p.IngestBatch(ctx, []model.Candidate{candidate("https://example.com/jobs/3")}); err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	n, err := p.Propagate(ctx)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if n != 1 {
		t.Errorf("upserted %d vectors, want only the new posting", n)
	}
}

func TestScrubEvictionBoundary(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	p := testPipeline(store, index)
	ctx := context.Background()
	now := time.Now().UTC()

	cases := map[string]struct {
		scrapedAt time.Time
		evict     bool
	}{
		"fresh":        {now.Add(-time.Hour), false},
		"almost":       {now.Add(-30*24*time.Hour + time.Minute), false},
		"at-threshold": {now.Add(-30 * 24 * time.Hour), true},
		"ancient":      {now.Add(-90 * 24 * time.Hour), true},
		"future-dated": {now.Add(48 * time.Hour), false},
	}
	for name, tc := range cases {
		id, err := model.PostingID("https://example.com/jobs/" + name)
		if err != nil {
			t.Fatalf("PostingID: %v", err)
		}
		store.postings[id] = model.Posting{UUID: id, ScrapedAt: tc.scrapedAt}
		index.vectors[id] = []float32{1, 2, 3, 4}
	}

	evicted, err := p.Scrub(ctx)
	if err != nil {
		t.Fatalf("Scrub: %v", err)
	}
	if evicted != 2 {
		t.Errorf("evicted %d postings, want 2", evicted)
	}

	for name, tc := range cases {
		id, _ := model.PostingID("https://example.com/jobs/" + name)
		_, inStore := store.postings[id]
		_, inIndex := index.vectors[id]
		if tc.evict && (inStore || inIndex) {
			t.Errorf("%s: expected eviction, still present (store=%v index=%v)", name, inStore, inIndex)
		}
		if !tc.evict && (!inStore || !inIndex) {
			t.Errorf("%s: expected retention, missing (store=%v index=%v)", name, inStore, inIndex)
		}
	}
}

func TestScrubStoreFailureStillClearsIndex(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	p := testPipeline(store, index)

	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	stuck, _ := model.PostingID("https://example.com/jobs/stuck")
	gone, _ := model.PostingID("https://example.com/jobs/gone")
	store.postings[stuck] = model.Posting{UUID: stuck, ScrapedAt: old}
	store.postings[gone] = model.Posting{UUID: gone, ScrapedAt: old}
	store.deleteErrs = map[string]error{stuck: errors.New("row locked")}
	index.vectors[stuck] = []float32{1, 2, 3, 4}
	index.vectors[gone] = []float32{5, 6, 7, 8}

	evicted, err := p.Scrub(context.Background())
	if err != nil {
		t.Fatalf("Scrub: %v", err)
	}
	if evicted != 1 {
		t.Errorf("expected 1 evicted, got %d", evicted)
	}
	// The batch index delete covers the full expired set even when a row
	// delete failed.
	if len(index.vectors) != 0 {
		t.Errorf("expected index cleared, %d vectors remain", len(index.vectors))
	}
	if _, ok := store.postings[stuck]; !ok {
		t.Error("failed row delete should leave the posting for the next scrub")
	}
}

func TestScrubIndexFailureSurfacesError(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	index.deleteErr = errors.New("index unavailable")
	p := testPipeline(store, index)

	id, _ := model.PostingID("https://example.com/jobs/old")
	store.postings[id] = model.Posting{UUID: id, ScrapedAt: time.Now().UTC().Add(-60 * 24 * time.Hour)}
	index.vectors[id] = []float32{1, 2, 3, 4}

	evicted, err := p.Scrub(context.Background())
	if err == nil {
		t.Fatal("expected scrub error when index delete fails")
	}
	if evicted != 1 {
		t.Errorf("store eviction count should be reported alongside the error, got %d", evicted)
	}
}

func TestCandidateBatcherFlushOnFull(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(store, newFakeIndex())
	b := NewCandidateBatcher(p, 2)
	ctx := context.Background()

	msg := func(link string) []byte {
		return []byte(fmt.Sprintf(`{"source":"indeed","title":"x","link":%q}`, link))
	}
	if err := b.Handle(ctx, nil, msg("https://example.com/jobs/1")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.postings) != 0 {
		t.Fatal("batch flushed before reaching batch size")
	}
	if err := b.Handle(ctx, nil, msg("https://example.com/jobs/2")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.postings) != 2 {
		t.Errorf("store holds %d postings after full batch, want 2", len(store.postings))
	}
	if b.Pending() != 0 {
		t.Errorf("batcher still holds %d candidates", b.Pending())
	}
}

func TestCandidateBatcherRetainsBatchOnOutage(t *testing.T) {
	store := newFakeStore()
	p := testPipeline(store, newFakeIndex())
	b := NewCandidateBatcher(p, 100)
	ctx := context.Background()

	if err := b.Handle(ctx, nil, []byte(`{"link":"https://example.com/jobs/1"}`)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	store.down = true
	err := b.Flush(ctx)
	if err == nil {
		t.Fatal("expected flush error while store is down")
	}
	if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if b.Pending() != 1 {
		t.Errorf("batcher holds %d candidates after retryable failure, want 1", b.Pending())
	}

	store.down = false
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush after recovery: %v", err)
	}
	if len(store.postings) != 1 {
		t.Errorf("store holds %d postings after recovery, want 1", len(store.postings))
	}
}

func TestCandidateBatcherDropsBadMessage(t *testing.T) {
	p := testPipeline(newFakeStore(), newFakeIndex())
	b := NewCandidateBatcher(p, 10)

	if err := b.Handle(context.Background(), nil, []byte("{not json")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if b.Pending() != 0 {
		t.Errorf("bad message buffered: pending=%d", b.Pending())
	}
}
