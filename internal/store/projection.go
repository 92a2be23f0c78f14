package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobagg/internal/model"
)

const projectionColumns = `id, fingerprint, title, company, location, salary, remote, job_type,
	preview, posted_at, source, url, view_count, last_accessed_at, cached_body, cached_at`

// ProjectionStore is the browse-side copy of the posting table. It is derived
// data and can be rebuilt at any time by re-running ImportFrom.
type ProjectionStore struct {
	db *sql.DB
}

// ImportFrom copies every posting not yet projected, keyed by fingerprint.
// It runs in one transaction and is safe to re-run: a second import with no
// new postings imports nothing.
func (s *ProjectionStore) ImportFrom(ctx context.Context, src model.PostingIterator) (imported, skipped int, err error) {
	var pending []model.Posting
	if err := src.Each(ctx, func(p model.Posting) error {
		pending = append(pending, p)
		return nil
	}); err != nil {
		return 0, 0, fmt.Errorf("reading postings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO projections (fingerprint, title, company, location, salary, remote, job_type,
			preview, posted_at, source, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING`)
	if err != nil {
		return 0, 0, fmt.Errorf("preparing projection insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pending {
		res, err := stmt.ExecContext(ctx,
			p.Fingerprint, p.Title, p.Company, p.Location, p.Salary, boolInt(p.Remote), p.JobType,
			Preview(p.Description), toMillis(p.PostedAt), p.Source, p.URL,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("projecting %s: %w", p.Fingerprint, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, fmt.Errorf("reading rows affected for %s: %w", p.Fingerprint, err)
		}
		if n == 0 {
			skipped++
		} else {
			imported++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit import: %w", err)
	}
	return imported, skipped, nil
}

// List returns one page of projections matching f, newest first, with the
// filtered total and page count.
func (s *ProjectionStore) List(ctx context.Context, f model.Filter, page, size int) ([]model.Projection, int, int, error) {
	cond, args := where(f, "title", "company", "preview")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projections"+cond, args...).Scan(&total); err != nil {
		return nil, 0, 0, fmt.Errorf("counting projections: %w", err)
	}
	pages := PageCount(total, size)
	if size <= 0 {
		return nil, total, pages, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+projectionColumns+" FROM projections"+cond+
			" ORDER BY posted_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, size, offset(page, size))...,
	)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("querying projections: %w", err)
	}
	defer rows.Close()

	var out []model.Projection
	for rows.Next() {
		p, err := scanProjection(rows)
		if err != nil {
			return nil, 0, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, fmt.Errorf("iterating projections: %w", err)
	}
	return out, total, pages, nil
}

// Get returns the projection with the given id or model.ErrNotFound.
func (s *ProjectionStore) Get(ctx context.Context, id int64) (model.Projection, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectionColumns+" FROM projections WHERE id = ?", id)
	p, err := scanProjection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Projection{}, model.ErrNotFound
	}
	return p, err
}

// RecordView increments view_count and stamps last_accessed_at.
func (s *ProjectionStore) RecordView(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE projections SET view_count = view_count + 1, last_accessed_at = ? WHERE id = ?",
		toMillis(at), id)
	if err != nil {
		return fmt.Errorf("recording view for %d: %w", id, err)
	}
	return requireRow(res, id)
}

// SaveBody stores a fetched detail body. The last successful save wins.
func (s *ProjectionStore) SaveBody(ctx context.Context, id int64, body string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE projections SET cached_body = ?, cached_at = ? WHERE id = ?",
		body, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("saving body for %d: %w", id, err)
	}
	return requireRow(res, id)
}

// Count returns the number of projections.
func (s *ProjectionStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projections").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting projections: %w", err)
	}
	return n, nil
}

// CachedCount returns the number of projections with a cached detail body.
func (s *ProjectionStore) CachedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projections WHERE cached_body IS NOT NULL").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cached details: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected for %d: %w", id, err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanProjection(r scanner) (model.Projection, error) {
	var (
		p                    model.Projection
		remote               int
		postedAt             int64
		lastAccess, cachedAt sql.NullInt64
		body                 sql.NullString
	)
	err := r.Scan(&p.ID, &p.Fingerprint, &p.Title, &p.Company, &p.Location, &p.Salary, &remote, &p.JobType,
		&p.Preview, &postedAt, &p.Source, &p.URL, &p.ViewCount, &lastAccess, &body, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Projection{}, err
	}
	if err != nil {
		return model.Projection{}, fmt.Errorf("scanning projection: %w", err)
	}
	p.Remote = remote == 1
	p.PostedAt = fromMillis(postedAt)
	p.LastAccessedAt = nullableTime(lastAccess)
	p.CachedAt = nullableTime(cachedAt)
	p.CachedBody = body.String
	return p, nil
}
