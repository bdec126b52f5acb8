package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobstream-labs/jobstream/internal/embed"
	"github.com/jobstream-labs/jobstream/pkg/config"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
	"github.com/jobstream-labs/jobstream/pkg/logger"
	"github.com/jobstream-labs/jobstream/pkg/metrics"
)

// VectorQuerier is the similarity-search slice of the vector index.
type VectorQuerier interface {
	Query(ctx context.Context, vector []float32, k int) ([]string, []float64, error)
}

// QueryCache caches composed search results per user and query. Implemented
// by cache.QueryCache; nil disables caching.
type QueryCache interface {
	GetOrCompute(ctx context.Context, userID, query string, k int, compute func() (Result, error)) (Result, bool, error)
}

// Result is a ranked result list, nearest first.
type Result struct {
	IDs       []string  `json:"ids"`
	Distances []float64 `json:"distances"`
}

// Composer runs contextual searches: it folds the user's profile and
// interaction history into the query text, embeds the composite, and ranks
// postings by vector similarity.
type Composer struct {
	store    ContextStore
	index    VectorQuerier
	embedder embed.Embedder
	cache    QueryCache
	cfg      config.SearchConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewComposer builds a Composer. cache and m may be nil.
func NewComposer(store ContextStore, index VectorQuerier, embedder embed.Embedder, cache QueryCache, cfg config.SearchConfig, m *metrics.Metrics) *Composer {
	return &Composer{
		store:    store,
		index:    index,
		embedder: embedder,
		cache:    cache,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.WithComponent("search-composer"),
	}
}

// Search returns the ranked posting identifiers for a user's query. Results
// for the same user and query within the cache TTL are served from cache.
func (c *Composer) Search(ctx context.Context, userID, query string) (Result, error) {
	start := time.Now()

	var (
		result Result
		cached bool
		err    error
	)
	if c.cache != nil {
		result, cached, err = c.cache.GetOrCompute(ctx, userID, query, c.cfg.DefaultK, func() (Result, error) {
			return c.compose(ctx, userID, query)
		})
	} else {
		result, err = c.compose(ctx, userID, query)
	}

	if c.metrics != nil {
		status := "miss"
		if cached {
			status = "hit"
			c.metrics.CacheHitsTotal.Inc()
		} else {
			c.metrics.CacheMissesTotal.Inc()
		}
		c.metrics.SearchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
		switch {
		case err != nil:
			c.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		case len(result.IDs) == 0:
			c.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		default:
			c.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
		}
	}
	if err != nil {
		return Result{}, err
	}

	c.logger.Info("search served",
		"user_id", userID,
		"results", len(result.IDs),
		"cached", cached,
		"elapsed", time.Since(start),
	)
	return result, nil
}

func (c *Composer) compose(ctx context.Context, userID, query string) (Result, error) {
	if query == "" {
		return Result{}, apperrors.New(apperrors.ErrInvalidInput, 400, "query must not be empty")
	}

	metadata, err := c.UserMetadata(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	composite := fmt.Sprintf("%s, %s", query, metadata)

	vector, err := c.embedder.EmbedText(ctx, composite)
	if err != nil {
		return Result{}, fmt.Errorf("embedding composite query: %w", err)
	}

	ids, distances, err := c.index.Query(ctx, vector, c.cfg.DefaultK)
	if err != nil {
		return Result{}, err
	}
	return Result{IDs: ids, Distances: distances}, nil
}
