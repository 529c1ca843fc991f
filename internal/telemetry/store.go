package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MaxZeroResults bounds the persisted zero-result log.
const MaxZeroResults = 200

const schema = `
CREATE TABLE IF NOT EXISTS daily_counts (
	date  TEXT    NOT NULL,
	kind  TEXT    NOT NULL,
	key   TEXT    NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (date, kind, key)
);

CREATE TABLE IF NOT EXISTS query_terms (
	term      TEXT PRIMARY KEY,
	count     INTEGER NOT NULL,
	last_seen TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

CREATE TABLE IF NOT EXISTS zero_results (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	query   TEXT NOT NULL,
	at      TEXT NOT NULL
);`

// SQLiteMetricsStore is a Store backed by a SQLite file.
type SQLiteMetricsStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteMetricsStore)(nil)

// OpenSQLiteMetricsStore opens or creates the telemetry database at path.
// An empty path opens a private in-memory database.
func OpenSQLiteMetricsStore(path string) (*SQLiteMetricsStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create telemetry dir: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create telemetry schema: %w", err)
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteMetricsStore) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *SQLiteMetricsStore) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// AddDaily adds counts to the kind counters of date.
func (s *SQLiteMetricsStore) AddDaily(date string, kind Kind, counts map[string]int64) error {
	return s.inTx(func(tx *sql.Tx) error {
		for key, n := range counts {
			if _, err := tx.Exec(`
				INSERT INTO daily_counts (date, kind, key, count) VALUES (?, ?, ?, ?)
				ON CONFLICT(date, kind, key) DO UPDATE SET count = count + excluded.count`,
				date, string(kind), key, n); err != nil {
				return fmt.Errorf("add %s counts: %w", kind, err)
			}
		}
		return nil
	})
}

// Daily sums the kind counters over the inclusive date range [from, to].
func (s *SQLiteMetricsStore) Daily(kind Kind, from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT key, SUM(count) FROM daily_counts
		WHERE kind = ? AND date BETWEEN ? AND ?
		GROUP BY key`, string(kind), from, to)
	if err != nil {
		return nil, fmt.Errorf("query %s counts: %w", kind, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

// TierCounts is Daily for KindTier.
func (s *SQLiteMetricsStore) TierCounts(from, to string) (map[Tier]int64, error) {
	raw, err := s.Daily(KindTier, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[Tier]int64, len(raw))
	for k, n := range raw {
		out[Tier(k)] = n
	}
	return out, nil
}

// AddTerms adds to the lifetime term counts.
func (s *SQLiteMetricsStore) AddTerms(counts map[string]int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return s.inTx(func(tx *sql.Tx) error {
		for term, n := range counts {
			if _, err := tx.Exec(`
				INSERT INTO query_terms (term, count, last_seen) VALUES (?, ?, ?)
				ON CONFLICT(term) DO UPDATE SET count = count + excluded.count, last_seen = excluded.last_seen`,
				term, n, now); err != nil {
				return fmt.Errorf("add term counts: %w", err)
			}
		}
		return nil
	})
}

// TopTerms returns the limit most used terms, ties broken alphabetically.
func (s *SQLiteMetricsStore) TopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`SELECT term, count FROM query_terms ORDER BY count DESC, term LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var out []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// AddZeroResults appends to the zero-result log, keeping the newest
// MaxZeroResults entries.
func (s *SQLiteMetricsStore) AddZeroResults(rs []ZeroResult) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, r := range rs {
			if _, err := tx.Exec(`INSERT INTO zero_results (user_id, query, at) VALUES (?, ?, ?)`,
				r.User, r.Query, r.At.UTC().Format(time.RFC3339Nano)); err != nil {
				return fmt.Errorf("add zero result: %w", err)
			}
		}
		_, err := tx.Exec(`
			DELETE FROM zero_results
			WHERE id NOT IN (SELECT id FROM zero_results ORDER BY id DESC LIMIT ?)`, MaxZeroResults)
		return err
	})
}

// ZeroResults returns up to limit logged searches, newest first.
func (s *SQLiteMetricsStore) ZeroResults(limit int) ([]ZeroResult, error) {
	rows, err := s.db.Query(`SELECT user_id, query, at FROM zero_results ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero results: %w", err)
	}
	defer rows.Close()

	var out []ZeroResult
	for rows.Next() {
		var r ZeroResult
		var at string
		if err := rows.Scan(&r.User, &r.Query, &at); err != nil {
			return nil, err
		}
		if r.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse zero result time: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
