package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"FeedCurator/internal/ports"
)

const fingerprintSeparator = "::"

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    hash         TEXT UNIQUE NOT NULL,
    url          TEXT NOT NULL,
    title        TEXT NOT NULL,
    processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteLedger is the persistent set of processed (url, title)
// fingerprints. It only grows; there is no eviction.
type SQLiteLedger struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.Ledger = (*SQLiteLedger)(nil)

// Open creates or opens the ledger database at path.
func Open(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}

	return &SQLiteLedger{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Close releases the underlying database handle.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// IsDuplicate reports whether the (url, title) fingerprint was
// recorded by an earlier run.
func (l *SQLiteLedger) IsDuplicate(ctx context.Context, url, title string) (bool, error) {
	query, args, err := l.builder.
		Select("1").
		From("articles").
		Where(sq.Eq{"hash": Fingerprint(url, title)}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build duplicate query: %w", err)
	}

	var one int
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query duplicate: %w", err)
	}
	return true, nil
}

// MarkProcessed records the fingerprint. Re-marking an existing entry
// is a no-op, not an error.
func (l *SQLiteLedger) MarkProcessed(ctx context.Context, url, title string) error {
	query, args, err := l.builder.
		Insert("articles").
		Options("OR IGNORE").
		Columns("hash", "url", "title").
		Values(Fingerprint(url, title), url, title).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark query: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// Stats summarizes ledger growth for observability endpoints.
type Stats struct {
	TotalProcessed int `json:"total_processed"`
	Last24h        int `json:"last_24h"`
}

// Stats counts all recorded fingerprints and those from the last day.
func (l *SQLiteLedger) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	query, args, err := l.builder.Select("COUNT(*)").From("articles").ToSql()
	if err != nil {
		return Stats{}, fmt.Errorf("build total query: %w", err)
	}
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&stats.TotalProcessed); err != nil {
		return Stats{}, fmt.Errorf("count processed: %w", err)
	}

	query, args, err = l.builder.
		Select("COUNT(*)").
		From("articles").
		Where("processed_at >= datetime('now', '-1 day')").
		ToSql()
	if err != nil {
		return Stats{}, fmt.Errorf("build recent query: %w", err)
	}
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&stats.Last24h); err != nil {
		return Stats{}, fmt.Errorf("count recent: %w", err)
	}

	return stats, nil
}

// Fingerprint is the one-way hash identifying a (url, title) pair. It
// is stored permanently and only ever used for membership tests.
func Fingerprint(url, title string) string {
	sum := sha256.Sum256([]byte(url + fingerprintSeparator + title))
	return hex.EncodeToString(sum[:])
}
