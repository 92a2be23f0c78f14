package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"

	"github.com/amishk599/jobagg/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS postings (
	fingerprint         TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	company             TEXT NOT NULL,
	location            TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	url                 TEXT NOT NULL,
	source              TEXT NOT NULL,
	posted_at           INTEGER NOT NULL,
	posted_at_estimated INTEGER NOT NULL DEFAULT 0,
	job_type            TEXT NOT NULL DEFAULT '',
	salary              TEXT NOT NULL DEFAULT '',
	tags                TEXT NOT NULL DEFAULT '[]',
	remote              INTEGER NOT NULL DEFAULT 0,
	created_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_postings_posted_at ON postings(posted_at DESC);
CREATE INDEX IF NOT EXISTS idx_postings_source ON postings(source);
CREATE INDEX IF NOT EXISTS idx_postings_created_at ON postings(created_at);

CREATE TABLE IF NOT EXISTS projections (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint      TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL,
	company          TEXT NOT NULL,
	location         TEXT NOT NULL,
	salary           TEXT NOT NULL DEFAULT '',
	remote           INTEGER NOT NULL DEFAULT 0,
	job_type         TEXT NOT NULL DEFAULT '',
	preview          TEXT NOT NULL DEFAULT '',
	posted_at        INTEGER NOT NULL,
	source           TEXT NOT NULL,
	url              TEXT NOT NULL,
	view_count       INTEGER NOT NULL DEFAULT 0,
	last_accessed_at INTEGER,
	cached_body      TEXT,
	cached_at        INTEGER
);
CREATE INDEX IF NOT EXISTS idx_projections_posted_at ON projections(posted_at DESC);
`

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction("casefold", 1, casefold); err != nil {
		panic(fmt.Sprintf("registering casefold: %v", err))
	}
}

// casefold lowercases text with Go's Unicode tables. sqlite's own lower()
// and LIKE only fold ASCII.
func casefold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// DB is the single sqlite file holding both the posting table (source of
// truth) and the projection table derived from it.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath and ensures the schema
// exists. The pool is capped at one connection so concurrent inserts queue
// in database/sql instead of failing with SQLITE_BUSY.
func Open(dbPath string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Postings returns the deduplicating posting store.
func (d *DB) Postings() *PostingStore { return &PostingStore{db: d.db} }

// Projections returns the projection store.
func (d *DB) Projections() *ProjectionStore { return &ProjectionStore{db: d.db} }

// Ping checks the database is reachable.
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// PageCount returns the number of pages needed for total rows at size rows
// per page.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// offset converts a 1-indexed page into a row offset. Pages below 1 are page 1.
func offset(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeArg(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func foldLike(col string) string {
	return "casefold(" + col + `) LIKE ? ESCAPE '\'`
}

// where builds a WHERE clause for f. keywordCols are the columns the keyword
// is matched against. Keyword and location match case-insensitively.
func where(f model.Filter, keywordCols ...string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		ors := make([]string, len(keywordCols))
		for i, col := range keywordCols {
			ors[i] = foldLike(col)
			args = append(args, likeArg(kw))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		conds = append(conds, foldLike("location"))
		args = append(args, likeArg(loc))
	}
	if src := strings.TrimSpace(f.Source); src != "" {
		conds = append(conds, "source = ?")
		args = append(args, src)
	}
	if f.RemoteOnly {
		conds = append(conds, "remote = 1")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
