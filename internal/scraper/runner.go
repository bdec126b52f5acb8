package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobstream-labs/jobstream/internal/model"
	"github.com/jobstream-labs/jobstream/pkg/config"
	"github.com/jobstream-labs/jobstream/pkg/logger"
	"github.com/jobstream-labs/jobstream/pkg/resilience"
)

// ExistenceSet is the record-store primitive the runner uses to skip detail
// extraction for postings already on file.
type ExistenceSet interface {
	KnownIDs(ctx context.Context) (map[string]struct{}, error)
}

// Publisher hands collected candidates to the ingest side.
type Publisher interface {
	PublishCandidates(ctx context.Context, candidates []model.Candidate) error
}

// SessionResetter is implemented by scrapers that can discard their session
// state between attempts.
type SessionResetter interface {
	ResetSession()
}

// Runner drives the configured scrapers: each source gets a bounded number
// of attempts, failures are classified, and blocked attempts retry with
// fresh session state.
type Runner struct {
	scrapers  []Scraper
	store     ExistenceSet
	publisher Publisher
	cfg       config.ScraperConfig
	logger    *slog.Logger
}

// NewRunner assembles a Runner over the given scrapers.
func NewRunner(scrapers []Scraper, store ExistenceSet, publisher Publisher, cfg config.ScraperConfig) *Runner {
	return &Runner{
		scrapers:  scrapers,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.WithComponent("scrape-runner"),
	}
}

// Run scrapes every source once. A source that exhausts its attempts is
// reported but does not stop the others.
func (r *Runner) Run(ctx context.Context) error {
	var errs []error
	for _, s := range r.scrapers {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.runSource(ctx, s); err != nil {
			r.logger.Error("source failed", "source", s.Source(), "error", err)
			errs = append(errs, fmt.Errorf("source %s: %w", s.Source(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) runSource(ctx context.Context, s Scraper) error {
	backoff := r.cfg.Backoff
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		// A hung source must not stall the whole run; a timed-out attempt
		// classifies as transient and retries like any other.
		var candidates []model.Candidate
		err := resilience.WithTimeout(ctx, r.cfg.AttemptTimeout, "scrape "+s.Source(), func(ctx context.Context) error {
			var err error
			candidates, err = r.collect(ctx, s)
			return err
		})
		if err == nil {
			if len(candidates) == 0 {
				r.logger.Info("nothing new to publish", "source", s.Source(), "attempt", attempt)
				return nil
			}
			if err := r.publisher.PublishCandidates(ctx, candidates); err != nil {
				return fmt.Errorf("publishing %d candidates: %w", len(candidates), err)
			}
			r.logger.Info("candidates published", "source", s.Source(), "count", len(candidates), "attempt", attempt)
			return nil
		}

		kind := Classify(err)
		lastErr = err
		if kind == Fatal || attempt == r.cfg.MaxAttempts {
			break
		}

		if kind == Blocked {
			if resetter, ok := s.(SessionResetter); ok {
				resetter.ResetSession()
				r.logger.Warn("source blocked, session reset", "source", s.Source(), "attempt", attempt)
			}
		} else {
			r.logger.Warn("transient scrape failure", "source", s.Source(), "attempt", attempt, "error", err)
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return fmt.Errorf("giving up after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

// collect lists the source, drops items whose identifier is already in the
// record store, and extracts details only for the remainder.
func (r *Runner) collect(ctx context.Context, s Scraper) ([]model.Candidate, error) {
	known, err := r.store.KnownIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading known ids: %w", err)
	}

	items, err := s.ExtractListItems(ctx)
	if err != nil {
		return nil, err
	}
	if r.cfg.MaxJobs > 0 && len(items) > r.cfg.MaxJobs {
		items = items[:r.cfg.MaxJobs]
	}

	candidates := make([]model.Candidate, 0, len(items))
	skipped := 0
	for _, item := range items {
		id, err := model.PostingID(item.Link)
		if err != nil {
			r.logger.Warn("list item without link skipped", "source", s.Source(), "title", item.Title)
			continue
		}
		if _, ok := known[id]; ok {
			skipped++
			continue
		}
		fields, err := s.ExtractDetailFields(ctx, item)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, s.BuildRecord(item, fields))
	}
	if skipped > 0 {
		r.logger.Info("known postings skipped before detail fetch", "source", s.Source(), "skipped", skipped)
	}
	return candidates, nil
}
