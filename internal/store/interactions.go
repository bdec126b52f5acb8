package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jobstream-labs/jobstream/internal/model"
)

// AddSearch appends one row to the search log with a generated identifier.
func (s *Store) AddSearch(ctx context.Context, userID, query string, results []string) (model.Search, error) {
	rec := model.Search{
		SearchID:  uuid.NewString(),
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Query:     query,
		Results:   results,
	}
	resultsJSON, err := json.Marshal(rec.Results)
	if err != nil {
		return model.Search{}, fmt.Errorf("marshaling search results: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO searches (search_id, user_id, ts, query, results)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.SearchID, rec.UserID, rec.Timestamp, rec.Query, resultsJSON,
	)
	if err != nil {
		return model.Search{}, fmt.Errorf("inserting search: %w", err)
	}
	return rec, nil
}

// AddClick appends one row to the click log with a generated identifier.
func (s *Store) AddClick(ctx context.Context, userID, jobID string) (model.Click, error) {
	rec := model.Click{
		ClickID:   uuid.NewString(),
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		JobID:     jobID,
	}
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO clicks (click_id, user_id, ts, job_id)
		 VALUES ($1, $2, $3, $4)`,
		rec.ClickID, rec.UserID, rec.Timestamp, rec.JobID,
	)
	if err != nil {
		return model.Click{}, fmt.Errorf("inserting click: %w", err)
	}
	return rec, nil
}

// RecentSearchQueries returns up to limit of the user's most recent search
// queries, newest first. An empty history is an empty slice, not an error.
func (s *Store) RecentSearchQueries(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT query FROM searches WHERE user_id = $1 ORDER BY ts DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent searches: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scanning search query: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// RecentClickedJobIDs returns the posting identifiers of up to limit of the
// user's most recent clicks, newest first.
func (s *Store) RecentClickedJobIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT job_id FROM clicks WHERE user_id = $1 ORDER BY ts DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent clicks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning click job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSearches returns the full search log, newest first.
func (s *Store) ListSearches(ctx context.Context, userID string) ([]model.Search, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT search_id, user_id, ts, query, results
		 FROM searches WHERE user_id = $1 ORDER BY ts DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing searches: %w", err)
	}
	defer rows.Close()

	var searches []model.Search
	for rows.Next() {
		var rec model.Search
		var resultsJSON []byte
		if err := rows.Scan(&rec.SearchID, &rec.UserID, &rec.Timestamp, &rec.Query, &resultsJSON); err != nil {
			return nil, fmt.Errorf("scanning search: %w", err)
		}
		if err := json.Unmarshal(resultsJSON, &rec.Results); err != nil {
			return nil, fmt.Errorf("unmarshaling search results: %w", err)
		}
		searches = append(searches, rec)
	}
	return searches, rows.Err()
}

// ListClicks returns the full click log, newest first.
func (s *Store) ListClicks(ctx context.Context, userID string) ([]model.Click, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT click_id, user_id, ts, job_id
		 FROM clicks WHERE user_id = $1 ORDER BY ts DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing clicks: %w", err)
	}
	defer rows.Close()

	var clicks []model.Click
	for rows.Next() {
		var rec model.Click
		if err := rows.Scan(&rec.ClickID, &rec.UserID, &rec.Timestamp, &rec.JobID); err != nil {
			return nil, fmt.Errorf("scanning click: %w", err)
		}
		clicks = append(clicks, rec)
	}
	return clicks, rows.Err()
}

// ScrubMetadata deletes a user's search and click rows beyond the cutoff,
// keeping only the most recent entries of each. Both tables are scrubbed in
// one transaction so the two logs never trim out of step. Independent of
// posting retention; returns the number of rows removed.
func (s *Store) ScrubMetadata(ctx context.Context, userID string, cutoff int) (int, error) {
	total := 0
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []struct {
			table, keyCol string
		}{
			{"searches", "search_id"},
			{"clicks", "click_id"},
		} {
			tag, err := tx.ExecContext(ctx, fmt.Sprintf(
				`DELETE FROM %[1]s WHERE user_id = $1 AND %[2]s NOT IN (
				   SELECT %[2]s FROM %[1]s WHERE user_id = $1 ORDER BY ts DESC LIMIT $2
				 )`, q.table, q.keyCol),
				userID, cutoff,
			)
			if err != nil {
				return fmt.Errorf("scrubbing %s for user %s: %w", q.table, userID, err)
			}
			affected, _ := tag.RowsAffected()
			total += int(affected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if total > 0 {
		s.logger.Info("stale interaction metadata scrubbed",
			"user_id", userID, "cutoff", cutoff, "deleted", total)
	}
	return total, nil
}
