package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jobstream-labs/jobstream/internal/model"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
	"github.com/jobstream-labs/jobstream/pkg/kafka"
	"github.com/jobstream-labs/jobstream/pkg/logger"
)

// CandidateBatcher buffers scraped candidates arriving from Kafka and hands
// them to the pipeline in batches. It implements kafka.MessageHandler for the
// candidates topic and Flusher for the cycle's ingest stage.
type CandidateBatcher struct {
	pipeline  *Pipeline
	batchSize int
	logger    *slog.Logger

	mu      sync.Mutex
	pending []model.Candidate
}

// NewCandidateBatcher builds a batcher that flushes every batchSize
// candidates.
func NewCandidateBatcher(p *Pipeline, batchSize int) *CandidateBatcher {
	return &CandidateBatcher{
		pipeline:  p,
		batchSize: batchSize,
		logger:    logger.WithComponent("candidate-batcher"),
	}
}

// Handle decodes one Kafka message into a candidate and buffers it, flushing
// when the batch is full. A retryable ingest failure is surfaced so the
// message is not committed and gets redelivered; the buffered candidates
// stay pending for the retry.
func (b *CandidateBatcher) Handle(ctx context.Context, key []byte, value []byte) error {
	candidate, err := kafka.DecodeJSON[model.Candidate](value)
	if err != nil {
		b.logger.Warn("dropping undecodable candidate message", "key", string(key), "error", err)
		return nil
	}

	b.mu.Lock()
	b.pending = append(b.pending, candidate)
	full := len(b.pending) >= b.batchSize
	b.mu.Unlock()

	if !full {
		return nil
	}
	return b.Flush(ctx)
}

// Flush ingests everything currently buffered. On a retryable store failure
// the batch is kept for the next attempt; any other error clears it, since
// per-record problems were already accounted for inside IngestBatch.
func (b *CandidateBatcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if _, err := b.pipeline.IngestBatch(ctx, batch); err != nil {
		if apperrors.Retryable(err) {
			b.mu.Lock()
			b.pending = append(batch, b.pending...)
			b.mu.Unlock()
		}
		return err
	}
	return nil
}

// Pending reports the number of buffered candidates.
func (b *CandidateBatcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
