package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jobstream-labs/jobstream/internal/model"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

const postingColumns = `uuid, skipped, scraped_at, source, job_id, title, company, location,
	posted_date, link, description, seniority, emp_type, job_func, industry`

// KnownIDs returns the full set of posting identifiers currently on file.
// One bulk query per ingest batch; the scraping flow consults this set
// before fetching listing details it already has.
func (s *Store) KnownIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT uuid FROM postings`)
	if err != nil {
		return nil, fmt.Errorf("querying posting ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning posting id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ListIDs returns all posting identifiers as a slice, in no particular order.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	known, err := s.KnownIDs(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	return ids, nil
}

// ScrapeTimes returns every posting identifier paired with its scrape
// timestamp. Retention compares these against the age threshold.
func (s *Store) ScrapeTimes(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT uuid, scraped_at FROM postings`)
	if err != nil {
		return nil, fmt.Errorf("querying scrape times: %w", err)
	}
	defer rows.Close()

	times := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var ts time.Time
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, fmt.Errorf("scanning scrape time: %w", err)
		}
		times[id] = ts
	}
	return times, rows.Err()
}

// InsertPosting writes a posting if its identifier is not already on file.
// Returns false without error when the row already existed, so overlapping
// ingest runs collapse into a single insert.
func (s *Store) InsertPosting(ctx context.Context, p model.Posting) (bool, error) {
	tag, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO postings (`+postingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (uuid) DO NOTHING`,
		p.UUID, p.Skipped, p.ScrapedAt, p.Source, p.JobID, p.Title, p.Company,
		p.Location, p.PostedDate, p.Link, p.Description, p.Seniority,
		p.EmpType, p.JobFunc, p.Industry,
	)
	if err != nil {
		return false, fmt.Errorf("inserting posting %s: %w", p.UUID, err)
	}
	affected, err := tag.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetPosting fetches a single posting by identifier.
func (s *Store) GetPosting(ctx context.Context, id string) (model.Posting, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE uuid = $1`, id)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Posting{}, apperrors.Newf(apperrors.ErrPostingNotFound, 404, "posting %s", id)
	}
	if err != nil {
		return model.Posting{}, fmt.Errorf("querying posting %s: %w", id, err)
	}
	return p, nil
}

// GetPostings fetches the postings for the given identifier set. Identifiers
// with no matching row are silently absent from the result.
func (s *Store) GetPostings(ctx context.Context, ids []string) ([]model.Posting, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE uuid = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying postings: %w", err)
	}
	defer rows.Close()

	var postings []model.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// ListPostings returns every posting on file.
func (s *Store) ListPostings(ctx context.Context) ([]model.Posting, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT `+postingColumns+` FROM postings`)
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	defer rows.Close()

	var postings []model.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// UpdatePosting replaces the mutable fields of an existing posting. This is
// the administrative update path; the pipeline never modifies postings.
func (s *Store) UpdatePosting(ctx context.Context, p model.Posting) error {
	tag, err := s.db.DB.ExecContext(ctx,
		`UPDATE postings SET skipped=$2, scraped_at=$3, source=$4, job_id=$5, title=$6,
		 company=$7, location=$8, posted_date=$9, link=$10, description=$11,
		 seniority=$12, emp_type=$13, job_func=$14, industry=$15
		 WHERE uuid=$1`,
		p.UUID, p.Skipped, p.ScrapedAt, p.Source, p.JobID, p.Title, p.Company,
		p.Location, p.PostedDate, p.Link, p.Description, p.Seniority,
		p.EmpType, p.JobFunc, p.Industry,
	)
	if err != nil {
		return fmt.Errorf("updating posting %s: %w", p.UUID, err)
	}
	if affected, _ := tag.RowsAffected(); affected == 0 {
		return apperrors.Newf(apperrors.ErrPostingNotFound, 404, "posting %s", p.UUID)
	}
	return nil
}

// DeletePosting removes a posting by identifier. Deleting an absent posting
// is not an error; retention runs are at-least-once.
func (s *Store) DeletePosting(ctx context.Context, id string) error {
	if _, err := s.db.DB.ExecContext(ctx, `DELETE FROM postings WHERE uuid = $1`, id); err != nil {
		return fmt.Errorf("deleting posting %s: %w", id, err)
	}
	return nil
}

// CountPostings returns the number of postings on file.
func (s *Store) CountPostings(ctx context.Context) (int, error) {
	var count int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM postings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting postings: %w", err)
	}
	return count, nil
}

// Descriptions returns the description text for each of the given posting
// identifiers. Used by the search composer to fold clicked jobs into the
// query context.
func (s *Store) Descriptions(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT description FROM postings WHERE uuid = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying descriptions: %w", err)
	}
	defer rows.Close()

	var descs []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning description: %w", err)
		}
		descs = append(descs, d)
	}
	return descs, rows.Err()
}

// scanTarget abstracts sql.Row and sql.Rows for scanPosting.
type scanTarget interface {
	Scan(dest ...any) error
}

func scanPosting(row scanTarget) (model.Posting, error) {
	var p model.Posting
	err := row.Scan(
		&p.UUID, &p.Skipped, &p.ScrapedAt, &p.Source, &p.JobID, &p.Title,
		&p.Company, &p.Location, &p.PostedDate, &p.Link, &p.Description,
		&p.Seniority, &p.EmpType, &p.JobFunc, &p.Industry,
	)
	return p, err
}
