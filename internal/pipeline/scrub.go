package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const hoursPerDay = 24

// Scrub evicts postings older than the retention threshold from both stores.
// Age is measured in whole elapsed days since the scrape timestamp; a posting
// scraped exactly at the threshold is evicted, one a second younger is kept.
// Future-dated scrape times are never evicted.
//
// Store rows are deleted one by one, log-and-continue. The index delete then
// covers the full expired set in one batch regardless of which row deletes
// succeeded, so a vector never outlives scrubbing of its cohort.
func (p *Pipeline) Scrub(ctx context.Context) (int, error) {
	times, err := p.store.ScrapeTimes(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading scrape times: %w", err)
	}

	now := time.Now().UTC()
	expired := make([]string, 0)
	for id, scrapedAt := range times {
		age := now.Sub(scrapedAt)
		if age < 0 {
			continue
		}
		if int(age.Hours())/hoursPerDay >= p.cfg.RetentionDays {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		p.logger.Info("nothing to scrub", "postings", len(times), "retention_days", p.cfg.RetentionDays)
		return 0, nil
	}
	sort.Strings(expired)
	p.logger.Info("scrubbing expired postings", "expired", len(expired), "retention_days", p.cfg.RetentionDays)

	evicted := 0
	for _, id := range expired {
		if err := p.store.DeletePosting(ctx, id); err != nil {
			p.logger.Error("posting eviction failed", "uuid", id, "error", err)
			continue
		}
		evicted++
	}
	if p.metrics != nil {
		p.metrics.PostingsEvictedTotal.Add(float64(evicted))
	}

	if err := p.index.DeleteBatch(ctx, expired); err != nil {
		return evicted, fmt.Errorf("deleting %d vectors: %w", len(expired), err)
	}
	if p.metrics != nil {
		p.metrics.VectorsDeletedTotal.Add(float64(len(expired)))
	}

	p.logger.Info("scrub complete", "evicted", evicted, "expired", len(expired))
	return evicted, nil
}
