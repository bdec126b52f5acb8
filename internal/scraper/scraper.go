// Package scraper collects job postings from source sites and publishes them
// as candidates for the ingest pipeline. Each site implements a small
// capability interface; shared flow lives in composable helpers rather than
// a base type.
package scraper

import (
	"context"

	"github.com/jobstream-labs/jobstream/internal/model"
)

// ListItem is one entry of a site's listing page, enough to decide whether
// the posting is already on file before fetching its detail page.
type ListItem struct {
	JobID      string
	Title      string
	Company    string
	Location   string
	PostedDate string
	Link       string
}

// Scraper is the capability set every source site provides. Scrape is the
// coarse end-to-end operation; the three finer operations let the runner
// interleave its own steps, in particular the known-identifier check between
// listing and detail extraction.
type Scraper interface {
	Source() string
	Scrape(ctx context.Context, maxJobs int) ([]model.Candidate, error)
	ExtractListItems(ctx context.Context) ([]ListItem, error)
	ExtractDetailFields(ctx context.Context, item ListItem) (map[string]string, error)
	BuildRecord(item ListItem, fields map[string]string) model.Candidate
}

// ScrapeAll is the default Scrape flow: list, then fetch details and build a
// record per item up to maxJobs. Site variants embed it instead of
// inheriting shared behavior.
func ScrapeAll(ctx context.Context, s Scraper, maxJobs int) ([]model.Candidate, error) {
	items, err := s.ExtractListItems(ctx)
	if err != nil {
		return nil, err
	}
	if maxJobs > 0 && len(items) > maxJobs {
		items = items[:maxJobs]
	}

	candidates := make([]model.Candidate, 0, len(items))
	for _, item := range items {
		fields, err := s.ExtractDetailFields(ctx, item)
		if err != nil {
			return candidates, err
		}
		candidates = append(candidates, s.BuildRecord(item, fields))
	}
	return candidates, nil
}

// fieldOr reads an extracted detail field, substituting the unavailable
// sentinel when the extractor produced nothing.
func fieldOr(fields map[string]string, key string) string {
	if v, ok := fields[key]; ok && v != "" {
		return v
	}
	return model.NotAvailable
}
