package vector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jobstream-labs/jobstream/pkg/config"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
	"github.com/jobstream-labs/jobstream/pkg/logger"
)

var errStaleHandle = errors.New(`collection [job_embeddings] not found`)

type fakeCollection struct {
	vectors    map[string][]float32
	upsertErr  error
	queryErr   error
	queryIDs   []string
	queryDists []float64
	queries    int
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{vectors: make(map[string][]float32)}
}

func (f *fakeCollection) IDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.vectors))
	for id := range f.vectors {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeCollection) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for i, id := range ids {
		f.vectors[id] = vectors[i]
	}
	return nil
}

func (f *fakeCollection) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(f.vectors, id)
	}
	return nil
}

func (f *fakeCollection) Query(ctx context.Context, vector []float32, k int) ([]string, []float64, error) {
	f.queries++
	if f.queryErr != nil {
		return nil, nil, f.queryErr
	}
	return f.queryIDs, f.queryDists, nil
}

func (f *fakeCollection) Count(ctx context.Context) (int, error) {
	return len(f.vectors), nil
}

func testIndex(resolve func(ctx context.Context) (collection, error)) *Index {
	return &Index{
		cfg:     config.ChromaConfig{Collection: "job_embeddings", Dimension: 4},
		logger:  logger.WithComponent("vector-index"),
		resolve: resolve,
	}
}

func TestUpsertReloadsStaleHandleOnce(t *testing.T) {
	stale := newFakeCollection()
	stale.upsertErr = errStaleHandle
	fresh := newFakeCollection()
	resolves := 0
	ix := testIndex(func(ctx context.Context) (collection, error) {
		resolves++
		return fresh, nil
	})
	ix.coll = stale

	err := ix.UpsertBatch(context.Background(), []string{"a"}, [][]float32{{1, 2, 3, 4}})
	if err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	if resolves != 1 {
		t.Errorf("handle resolved %d times, want exactly 1", resolves)
	}
	if _, ok := fresh.vectors["a"]; !ok {
		t.Error("retry did not reach the reloaded collection")
	}
}

func TestQueryReloadsStaleHandleOnce(t *testing.T) {
	stale := newFakeCollection()
	stale.queryErr = errStaleHandle
	fresh := newFakeCollection()
	fresh.queryIDs = []string{"a", "b"}
	fresh.queryDists = []float64{0.1, 0.2}
	resolves := 0
	ix := testIndex(func(ctx context.Context) (collection, error) {
		resolves++
		return fresh, nil
	})
	ix.coll = stale

	ids, dists, err := ix.Query(context.Background(), []float32{1, 2, 3, 4}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resolves != 1 {
		t.Errorf("handle resolved %d times, want exactly 1", resolves)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("unexpected ids after retry: %v", ids)
	}
	if len(dists) != 2 {
		t.Errorf("unexpected distances after retry: %v", dists)
	}
	if fresh.queries != 1 {
		t.Errorf("reloaded collection queried %d times, want 1", fresh.queries)
	}
}

func TestUpsertMissingCollectionSurfaces(t *testing.T) {
	stale := newFakeCollection()
	stale.upsertErr = errStaleHandle
	resolves := 0
	ix := testIndex(func(ctx context.Context) (collection, error) {
		resolves++
		return nil, errors.New("collection job_embeddings does not exist")
	})
	ix.coll = stale

	err := ix.UpsertBatch(context.Background(), []string{"a"}, [][]float32{{1, 2, 3, 4}})
	if !errors.Is(err, apperrors.ErrCollectionMissing) {
		t.Fatalf("expected ErrCollectionMissing, got %v", err)
	}
	if resolves != 1 {
		t.Errorf("handle resolved %d times, want exactly 1 (no retry loop)", resolves)
	}
}

func TestQueryMissingCollectionSurfaces(t *testing.T) {
	ix := testIndex(func(ctx context.Context) (collection, error) {
		return nil, errors.New("collection job_embeddings does not exist")
	})

	_, _, err := ix.Query(context.Background(), []float32{1, 2, 3, 4}, 10)
	if !errors.Is(err, apperrors.ErrCollectionMissing) {
		t.Fatalf("expected ErrCollectionMissing, got %v", err)
	}
}

func TestHandleResolvedOncePerStaleness(t *testing.T) {
	fresh := newFakeCollection()
	resolves := 0
	ix := testIndex(func(ctx context.Context) (collection, error) {
		resolves++
		return fresh, nil
	})

	for i := 0; i < 3; i++ {
		if _, err := ix.Count(context.Background()); err != nil {
			t.Fatalf("Count: %v", err)
		}
	}
	if resolves != 1 {
		t.Errorf("handle resolved %d times across calls, want 1", resolves)
	}
}

func TestUpsertBatchRejectsWrongDimension(t *testing.T) {
	ix := testIndex(func(ctx context.Context) (collection, error) {
		t.Fatal("resolver must not run for invalid input")
		return nil, nil
	})

	err := ix.UpsertBatch(context.Background(), []string{"a"}, [][]float32{{1, 2}})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIsMissingCollection(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errStaleHandle, true},
		{errors.New("collection jobs does not exist"), true},
		{fmt.Errorf("chroma: %w", errStaleHandle), true},
		{errors.New("Collection Not Found"), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := isMissingCollection(tc.err); got != tc.want {
			t.Errorf("isMissingCollection(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
