// Package pipeline implements the synchronization cycle between the record
// store and the vector index: deduplicated ingest of scraped candidates,
// propagation of missing embeddings, and age-based retention across both
// stores.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jobstream-labs/jobstream/internal/embed"
	"github.com/jobstream-labs/jobstream/internal/model"
	"github.com/jobstream-labs/jobstream/pkg/config"
	"github.com/jobstream-labs/jobstream/pkg/logger"
	"github.com/jobstream-labs/jobstream/pkg/metrics"
)

// Cycle stage labels, used for logging and metrics.
const (
	StageIngest    = "ingest"
	StagePropagate = "propagate"
	StageScrub     = "scrub"
)

// RecordStore is the slice of the primary store the pipeline needs.
type RecordStore interface {
	KnownIDs(ctx context.Context) (map[string]struct{}, error)
	InsertPosting(ctx context.Context, posting model.Posting) (bool, error)
	ScrapeTimes(ctx context.Context) (map[string]time.Time, error)
	GetPostings(ctx context.Context, ids []string) ([]model.Posting, error)
	DeletePosting(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// VectorIndex is the slice of the vector store the pipeline needs.
type VectorIndex interface {
	KnownIDs(ctx context.Context) (map[string]struct{}, error)
	UpsertBatch(ctx context.Context, ids []string, vectors [][]float32) error
	DeleteBatch(ctx context.Context, ids []string) error
}

// Flusher drains candidates buffered outside the pipeline before a cycle
// runs, so a cycle always sees the freshest ingested state.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Invalidator drops cached search results after a cycle mutates the stores.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Pipeline ties the record store, vector index, and embedder together and
// runs the periodic synchronization cycle.
type Pipeline struct {
	store       RecordStore
	index       VectorIndex
	embedder    embed.Embedder
	cfg         config.PipelineConfig
	metrics     *metrics.Metrics
	logger      *slog.Logger
	flusher     Flusher
	invalidator Invalidator
}

// New builds a Pipeline. m may be nil in tests.
func New(store RecordStore, index VectorIndex, embedder embed.Embedder, cfg config.PipelineConfig, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		store:    store,
		index:    index,
		embedder: embedder,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.WithComponent("pipeline"),
	}
}

// SetFlusher registers the candidate buffer to drain at the start of each
// cycle. Optional; without it the ingest stage is a no-op.
func (p *Pipeline) SetFlusher(f Flusher) {
	p.flusher = f
}

// SetInvalidator registers the search cache to drop after each cycle.
// Optional; without it cached results age out on TTL alone.
func (p *Pipeline) SetInvalidator(inv Invalidator) {
	p.invalidator = inv
}

// RunCycle executes one full synchronization cycle: flush pending ingests,
// propagate embeddings, then scrub expired postings. A failing stage is
// logged and does not stop the stages after it; the combined error is
// returned for the caller's logs.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	p.logger.Info("cycle starting")
	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{StageIngest, p.flushPending},
		{StagePropagate, p.propagateStage},
		{StageScrub, p.scrubStage},
	}

	var errs []error
	for _, stage := range stages {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		start := time.Now()
		err := stage.run(ctx)
		elapsed := time.Since(start)
		if p.metrics != nil {
			p.metrics.CycleDuration.WithLabelValues(stage.name).Observe(elapsed.Seconds())
		}
		if err != nil {
			if p.metrics != nil {
				p.metrics.CycleStageFailures.WithLabelValues(stage.name).Inc()
			}
			p.logger.Error("cycle stage failed", "stage", stage.name, "elapsed", elapsed, "error", err)
			errs = append(errs, fmt.Errorf("%s stage: %w", stage.name, err))
			continue
		}
		p.logger.Info("cycle stage complete", "stage", stage.name, "elapsed", elapsed)
	}

	if p.invalidator != nil && ctx.Err() == nil {
		if err := p.invalidator.InvalidateAll(ctx); err != nil {
			p.logger.Warn("search cache invalidation failed", "error", err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) flushPending(ctx context.Context) error {
	if p.flusher == nil {
		return nil
	}
	return p.flusher.Flush(ctx)
}

func (p *Pipeline) propagateStage(ctx context.Context) error {
	_, err := p.Propagate(ctx)
	return err
}

func (p *Pipeline) scrubStage(ctx context.Context) error {
	_, err := p.Scrub(ctx)
	return err
}

// Schedule runs RunCycle on the configured interval until ctx is cancelled.
// The first cycle runs immediately rather than waiting a full interval.
func (p *Pipeline) Schedule(ctx context.Context) error {
	if err := p.RunCycle(ctx); err != nil {
		p.logger.Error("initial cycle finished with errors", "error", err)
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %dh", p.cfg.IntervalHours)
	_, err := c.AddFunc(spec, func() {
		if err := p.RunCycle(ctx); err != nil {
			p.logger.Error("cycle finished with errors", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling cycle: %w", err)
	}
	c.Start()
	p.logger.Info("cycle scheduled", "interval_hours", p.cfg.IntervalHours)

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}
