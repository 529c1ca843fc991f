package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const contactsSchema = `
CREATE TABLE IF NOT EXISTS contacts (
	user_id      TEXT NOT NULL,
	id           TEXT NOT NULL,
	full_name    TEXT NOT NULL DEFAULT '',
	company      TEXT NOT NULL DEFAULT '',
	position     TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	connected_on TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, id)
);
CREATE TABLE IF NOT EXISTS index_versions (
	user_id    TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLiteContactStore persists contacts in SQLite so indexes can be rebuilt
// after a restart. Uses modernc.org/sqlite (pure Go).
type SQLiteContactStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ ContactStore = (*SQLiteContactStore)(nil)

// NewSQLiteContactStore opens (or creates) the store at path.
// An empty path opens an in-memory database for tests.
func NewSQLiteContactStore(path string) (*SQLiteContactStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: SQLite has one writer, and :memory: databases are
	// per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(contactsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteContactStore{db: db, path: path}, nil
}

// SaveUser replaces the stored contacts of userID in one transaction.
func (s *SQLiteContactStore) SaveUser(ctx context.Context, userID string, contacts []Contact, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO contacts
		(user_id, id, full_name, company, position, email, connected_on, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range contacts {
		if _, err := stmt.ExecContext(ctx, userID, c.ID, c.FullName, c.Company,
			c.Position, c.Email, c.ConnectedOn, c.Notes); err != nil {
			return fmt.Errorf("insert contact %s: %w", c.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO index_versions (user_id, version, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at`,
		userID, int64(version), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record version: %w", err)
	}

	return tx.Commit()
}

// LoadUser returns the stored contacts of userID ordered by id.
func (s *SQLiteContactStore) LoadUser(ctx context.Context, userID string) ([]Contact, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, 0, fmt.Errorf("store is closed")
	}

	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM index_versions WHERE user_id = ?`, userID).Scan(&version)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read version: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, full_name, company, position, email, connected_on, notes
		FROM contacts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.FullName, &c.Company, &c.Position,
			&c.Email, &c.ConnectedOn, &c.Notes); err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate contacts: %w", err)
	}

	return contacts, uint64(version), nil
}

// Users lists every user with a recorded version.
func (s *SQLiteContactStore) Users(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM index_versions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserStats describes one stored user.
type UserStats struct {
	User      string
	Contacts  int
	Version   uint64
	UpdatedAt time.Time
}

// Stats returns the contact count, version and last update of every
// stored user, sorted by user.
func (s *SQLiteContactStore) Stats(ctx context.Context) ([]UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT v.user_id, v.version, v.updated_at,
		(SELECT COUNT(*) FROM contacts c WHERE c.user_id = v.user_id)
		FROM index_versions v ORDER BY v.user_id`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []UserStats
	for rows.Next() {
		var (
			st      UserStats
			version int64
			updated string
		)
		if err := rows.Scan(&st.User, &version, &updated, &st.Contacts); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.Version = uint64(version)
		if t, err := time.Parse(time.RFC3339, updated); err == nil {
			st.UpdatedAt = t
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Path returns the database path, empty for in-memory stores.
func (s *SQLiteContactStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteContactStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
