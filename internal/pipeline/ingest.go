package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jobstream-labs/jobstream/internal/model"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

// IngestResult summarises one ingest batch.
type IngestResult struct {
	Ingested   int
	Duplicates int
	Rejected   int
}

// IngestBatch deduplicates candidates against the record store and inserts
// the new ones. Candidates whose link already maps to a stored posting are
// skipped, not updated. A malformed candidate is counted and dropped; a
// store that has become unreachable aborts the batch with a retryable error
// so the caller can replay it.
func (p *Pipeline) IngestBatch(ctx context.Context, candidates []model.Candidate) (IngestResult, error) {
	var res IngestResult
	if len(candidates) == 0 {
		return res, nil
	}

	known, err := p.store.KnownIDs(ctx)
	if err != nil {
		return res, apperrors.New(apperrors.ErrStoreUnavailable, 503,
			fmt.Sprintf("loading known posting ids: %v", err))
	}
	scrapedAt := time.Now().UTC()

	for _, c := range candidates {
		posting, err := model.FromCandidate(c, scrapedAt)
		if err != nil {
			res.Rejected++
			if p.metrics != nil {
				p.metrics.CandidatesRejectedTotal.WithLabelValues("invalid_link").Inc()
			}
			p.logger.Warn("candidate rejected", "source", c.Source, "title", c.Title, "error", err)
			continue
		}

		if _, dup := known[posting.UUID]; dup {
			res.Duplicates++
			if p.metrics != nil {
				p.metrics.DuplicatesSkippedTotal.Inc()
			}
			continue
		}

		inserted, err := p.store.InsertPosting(ctx, posting)
		if err != nil {
			// Distinguish a bad record from a store outage: if the store
			// still answers a ping the failure is record-local.
			if pingErr := p.store.Ping(ctx); pingErr != nil {
				return res, apperrors.New(apperrors.ErrStoreUnavailable, 503,
					fmt.Sprintf("record store unreachable during ingest: %v", err))
			}
			res.Rejected++
			if p.metrics != nil {
				p.metrics.CandidatesRejectedTotal.WithLabelValues("store_error").Inc()
			}
			p.logger.Error("candidate insert failed", "uuid", posting.UUID, "link", c.Link, "error", err)
			continue
		}
		if !inserted {
			res.Duplicates++
			if p.metrics != nil {
				p.metrics.DuplicatesSkippedTotal.Inc()
			}
			continue
		}

		known[posting.UUID] = struct{}{}
		res.Ingested++
		if p.metrics != nil {
			p.metrics.PostingsIngestedTotal.Inc()
		}
	}

	p.logger.Info("batch ingested",
		"candidates", len(candidates),
		"ingested", res.Ingested,
		"duplicates", res.Duplicates,
		"rejected", res.Rejected,
	)
	return res, nil
}
