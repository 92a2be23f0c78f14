package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobagg/internal/model"
)

const postingColumns = `fingerprint, title, company, location, description, url, source,
	posted_at, posted_at_estimated, job_type, salary, tags, remote, created_at`

// PostingStore owns posting identity. A fingerprint is stored at most once and
// the first insert wins.
type PostingStore struct {
	db *sql.DB
}

// Insert stores p unless a posting with the same fingerprint already exists,
// in which case the stored row is left untouched and Duplicate is returned.
func (s *PostingStore) Insert(ctx context.Context, p model.Posting) (model.InsertResult, error) {
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return 0, fmt.Errorf("encoding tags for %s: %w", p.Fingerprint, err)
	}
	if p.Tags == nil {
		tags = []byte("[]")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO postings (`+postingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING`,
		p.Fingerprint, p.Title, p.Company, p.Location, p.Description, p.URL, p.Source,
		toMillis(p.PostedAt), boolInt(p.PostedAtEstimated), p.JobType, p.Salary, string(tags),
		boolInt(p.Remote), toMillis(p.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting posting %s: %w", p.Fingerprint, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected for %s: %w", p.Fingerprint, err)
	}
	if n == 0 {
		return model.Duplicate, nil
	}
	return model.Inserted, nil
}

// Query returns one page of postings matching f, newest first, and the total
// number of matches.
func (s *PostingStore) Query(ctx context.Context, f model.Filter, page, size int) ([]model.Posting, int, error) {
	cond, args := where(f, "title", "company", "description")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM postings"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting postings: %w", err)
	}
	if size <= 0 {
		return nil, total, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+postingColumns+" FROM postings"+cond+
			" ORDER BY posted_at DESC, fingerprint LIMIT ? OFFSET ?",
		append(args, size, offset(page, size))...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying postings: %w", err)
	}
	defer rows.Close()

	var postings []model.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, 0, err
		}
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating postings: %w", err)
	}
	return postings, total, nil
}

// Get returns the posting with the given fingerprint or model.ErrNotFound.
func (s *PostingStore) Get(ctx context.Context, fingerprint string) (model.Posting, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+postingColumns+" FROM postings WHERE fingerprint = ?", fingerprint)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Posting{}, model.ErrNotFound
	}
	return p, err
}

// Each calls fn for every stored posting in insertion order. Rows are read
// fully before fn runs, so fn may write to the database.
func (s *PostingStore) Each(ctx context.Context, fn func(model.Posting) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT "+postingColumns+" FROM postings ORDER BY created_at, fingerprint")
	if err != nil {
		return fmt.Errorf("listing postings: %w", err)
	}
	var all []model.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			rows.Close()
			return err
		}
		all = append(all, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating postings: %w", err)
	}
	rows.Close()

	for _, p := range all {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// Stats summarizes the stored postings. now anchors the 24h window.
func (s *PostingStore) Stats(ctx context.Context, now time.Time) (model.Stats, error) {
	st := model.Stats{BySource: map[string]int{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(remote), 0),
		       COALESCE(SUM(CASE WHEN salary != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM postings`,
		toMillis(now.Add(-24*time.Hour)),
	).Scan(&st.TotalJobs, &st.RemoteJobs, &st.WithSalary, &st.RecentJobs24h)
	if err != nil {
		return model.Stats{}, fmt.Errorf("computing posting stats: %w", err)
	}
	if st.TotalJobs > 0 {
		st.SalaryPercentage = float64(st.WithSalary) * 100 / float64(st.TotalJobs)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT source, COUNT(*) FROM postings GROUP BY source")
	if err != nil {
		return model.Stats{}, fmt.Errorf("counting postings by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			return model.Stats{}, fmt.Errorf("scanning source count: %w", err)
		}
		st.BySource[source] = n
	}
	if err := rows.Err(); err != nil {
		return model.Stats{}, fmt.Errorf("iterating source counts: %w", err)
	}
	return st, nil
}

// Cleanup deletes postings first stored before cutoff, together with the
// projections built from them, and returns how many postings were removed.
func (s *PostingStore) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cleanup: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM postings WHERE created_at < ?", toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleaning up postings older than %v: %w", cutoff, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting removed postings: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM projections WHERE fingerprint NOT IN (SELECT fingerprint FROM postings)",
	); err != nil {
		return 0, fmt.Errorf("removing orphaned projections: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	return removed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosting(r scanner) (model.Posting, error) {
	var (
		p                   model.Posting
		postedAt, createdAt int64
		estimated, remote   int
		tags                string
	)
	err := r.Scan(&p.Fingerprint, &p.Title, &p.Company, &p.Location, &p.Description, &p.URL, &p.Source,
		&postedAt, &estimated, &p.JobType, &p.Salary, &tags, &remote, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Posting{}, err
	}
	if err != nil {
		return model.Posting{}, fmt.Errorf("scanning posting: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return model.Posting{}, fmt.Errorf("decoding tags for %s: %w", p.Fingerprint, err)
	}
	p.PostedAt = fromMillis(postedAt)
	p.CreatedAt = fromMillis(createdAt)
	p.PostedAtEstimated = estimated == 1
	p.Remote = remote == 1
	return p, nil
}
