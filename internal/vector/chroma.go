package vector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/jobstream-labs/jobstream/pkg/config"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
	"github.com/jobstream-labs/jobstream/pkg/logger"
)

// collection is the slice of collection behavior the index uses. The Chroma
// client satisfies it through the chromaCollection adapter below.
type collection interface {
	IDs(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Delete(ctx context.Context, ids []string) error
	Query(ctx context.Context, vector []float32, k int) ([]string, []float64, error)
	Count(ctx context.Context) (int, error)
}

// Index is the Chroma-backed vector index for posting embeddings. It holds a
// long-lived client and a cached collection handle; a handle that has gone
// stale (collection dropped and recreated out of band) is reloaded once per
// failing call rather than per request.
type Index struct {
	client  chroma.Client
	cfg     config.ChromaConfig
	logger  *slog.Logger
	resolve func(ctx context.Context) (collection, error)

	mu   sync.Mutex
	coll collection
}

// New connects to the Chroma server. It does not create or resolve the
// collection; call EnsureCollection for that.
func New(cfg config.ChromaConfig) (*Index, error) {
	opts := []chroma.ClientOption{chroma.WithBaseURL(cfg.URL)}
	if cfg.Tenant != "" && cfg.Database != "" {
		opts = append(opts, chroma.WithDatabaseAndTenant(cfg.Database, cfg.Tenant))
	} else if cfg.Tenant != "" {
		opts = append(opts, chroma.WithTenant(cfg.Tenant))
	}

	client, err := chroma.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chroma client: %w", err)
	}

	ix := &Index{
		client: client,
		cfg:    cfg,
		logger: logger.WithComponent("vector-index"),
	}
	ix.resolve = func(ctx context.Context) (collection, error) {
		c, err := ix.client.GetCollection(ctx, ix.cfg.Collection)
		if err != nil {
			return nil, err
		}
		return &chromaCollection{c}, nil
	}
	return ix, nil
}

// Ping reports whether the Chroma server is reachable.
func (ix *Index) Ping(ctx context.Context) error {
	if err := ix.client.Heartbeat(ctx); err != nil {
		return apperrors.New(apperrors.ErrStoreUnavailable, 503, "vector index unreachable")
	}
	return nil
}

// Close releases the underlying HTTP client.
func (ix *Index) Close() error {
	return ix.client.Close()
}

// EnsureCollection creates the posting collection if it does not exist and
// caches the handle. Safe to call repeatedly.
func (ix *Index) EnsureCollection(ctx context.Context) error {
	c, err := ix.client.GetOrCreateCollection(ctx, ix.cfg.Collection)
	if err != nil {
		return fmt.Errorf("ensuring collection %q: %w", ix.cfg.Collection, err)
	}
	ix.mu.Lock()
	ix.coll = &chromaCollection{c}
	ix.mu.Unlock()
	ix.logger.Info("vector collection ready", "collection", ix.cfg.Collection)
	return nil
}

// handle returns the cached collection, resolving it on first use. A missing
// collection maps to ErrCollectionMissing rather than being created silently:
// index setup is an explicit operation.
func (ix *Index) handle(ctx context.Context) (collection, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.coll != nil {
		return ix.coll, nil
	}
	return ix.reloadLocked(ctx)
}

// reload drops the cached handle and resolves the collection again.
func (ix *Index) reload(ctx context.Context) (collection, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.coll = nil
	return ix.reloadLocked(ctx)
}

func (ix *Index) reloadLocked(ctx context.Context) (collection, error) {
	coll, err := ix.resolve(ctx)
	if err != nil {
		if isMissingCollection(err) {
			return nil, apperrors.New(apperrors.ErrCollectionMissing, 503,
				fmt.Sprintf("collection %q does not exist", ix.cfg.Collection))
		}
		return nil, fmt.Errorf("resolving collection %q: %w", ix.cfg.Collection, err)
	}
	ix.coll = coll
	return coll, nil
}

// ListIDs returns every posting identifier currently present in the index.
func (ix *Index) ListIDs(ctx context.Context) ([]string, error) {
	coll, err := ix.handle(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := coll.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing vector ids: %w", err)
	}
	return ids, nil
}

// KnownIDs returns the indexed identifiers as a set, for membership tests
// during propagation.
func (ix *Index) KnownIDs(ctx context.Context) (map[string]struct{}, error) {
	ids, err := ix.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return known, nil
}

// UpsertBatch writes one vector per identifier. Re-upserting an existing
// identifier replaces its vector, so the call is idempotent. A stale handle
// is reloaded once and the upsert retried before the error surfaces.
func (ix *Index) UpsertBatch(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return apperrors.New(apperrors.ErrInvalidInput, 400,
			fmt.Sprintf("id/vector length mismatch: %d vs %d", len(ids), len(vectors)))
	}
	if len(ids) == 0 {
		return nil
	}
	for i, id := range ids {
		if len(vectors[i]) != ix.cfg.Dimension {
			return apperrors.New(apperrors.ErrInvalidInput, 400,
				fmt.Sprintf("vector for %s has dimension %d, want %d", id, len(vectors[i]), ix.cfg.Dimension))
		}
	}

	coll, err := ix.handle(ctx)
	if err != nil {
		return err
	}
	err = coll.Upsert(ctx, ids, vectors)
	if err != nil {
		if isMissingCollection(err) {
			if coll, err = ix.reload(ctx); err != nil {
				return err
			}
			err = coll.Upsert(ctx, ids, vectors)
		}
		if err != nil {
			return fmt.Errorf("upserting %d vectors: %w", len(ids), err)
		}
	}
	return nil
}

// DeleteBatch removes the given identifiers from the index. Identifiers that
// are already absent are ignored.
func (ix *Index) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	coll, err := ix.handle(ctx)
	if err != nil {
		return err
	}
	if err := coll.Delete(ctx, ids); err != nil {
		return fmt.Errorf("deleting %d vectors: %w", len(ids), err)
	}
	return nil
}

// Query runs a k-nearest-neighbour search against the index and returns the
// matched posting identifiers with their distances, nearest first. A stale
// handle is reloaded once and the query retried before the error surfaces.
func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]string, []float64, error) {
	if len(vector) != ix.cfg.Dimension {
		return nil, nil, apperrors.New(apperrors.ErrInvalidInput, 400,
			fmt.Sprintf("query vector has dimension %d, want %d", len(vector), ix.cfg.Dimension))
	}

	coll, err := ix.handle(ctx)
	if err != nil {
		return nil, nil, err
	}
	ids, distances, err := coll.Query(ctx, vector, k)
	if err != nil {
		if isMissingCollection(err) {
			if coll, err = ix.reload(ctx); err != nil {
				return nil, nil, err
			}
			ids, distances, err = coll.Query(ctx, vector, k)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("querying vector index: %w", err)
		}
	}
	return ids, distances, nil
}

// Count returns the number of vectors in the collection.
func (ix *Index) Count(ctx context.Context) (int, error) {
	coll, err := ix.handle(ctx)
	if err != nil {
		return 0, err
	}
	n, err := coll.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

func isMissingCollection(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// chromaCollection adapts a Chroma collection handle to the collection
// interface, keeping the wire types out of the index logic.
type chromaCollection struct {
	c chroma.Collection
}

func (cc *chromaCollection) IDs(ctx context.Context) ([]string, error) {
	res, err := cc.c.Get(ctx)
	if err != nil {
		return nil, err
	}
	docIDs := res.GetIDs()
	ids := make([]string, 0, len(docIDs))
	for _, id := range docIDs {
		ids = append(ids, string(id))
	}
	return ids, nil
}

func (cc *chromaCollection) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	docIDs := make([]chroma.DocumentID, len(ids))
	embs := make([]embeddings.Embedding, len(vectors))
	for i, id := range ids {
		docIDs[i] = chroma.DocumentID(id)
		embs[i] = embeddings.NewEmbeddingFromFloat32(vectors[i])
	}
	return cc.c.Upsert(ctx,
		chroma.WithIDs(docIDs...),
		chroma.WithEmbeddings(embs...),
	)
}

func (cc *chromaCollection) Delete(ctx context.Context, ids []string) error {
	docIDs := make([]chroma.DocumentID, len(ids))
	for i, id := range ids {
		docIDs[i] = chroma.DocumentID(id)
	}
	return cc.c.Delete(ctx, chroma.WithIDsDelete(docIDs...))
}

func (cc *chromaCollection) Query(ctx context.Context, vector []float32, k int) ([]string, []float64, error) {
	res, err := cc.c.Query(ctx,
		chroma.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chroma.WithNResults(k),
	)
	if err != nil {
		return nil, nil, err
	}
	if res == nil || res.CountGroups() == 0 {
		return []string{}, []float64{}, nil
	}
	idGroups := res.GetIDGroups()
	if len(idGroups) == 0 {
		return []string{}, []float64{}, nil
	}

	ids := make([]string, 0, len(idGroups[0]))
	for _, id := range idGroups[0] {
		ids = append(ids, string(id))
	}
	distances := make([]float64, 0, len(ids))
	if groups := res.GetDistancesGroups(); len(groups) > 0 {
		for _, d := range groups[0] {
			distances = append(distances, float64(d))
		}
	}
	return ids, distances, nil
}

func (cc *chromaCollection) Count(ctx context.Context) (int, error) {
	return cc.c.Count(ctx)
}
