package hcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/LarsHaalck/neomutt/mailbox"
)

const schema = `
CREATE TABLE IF NOT EXISTS header_cache (
	key       TEXT PRIMARY KEY,
	stored_at INTEGER NOT NULL,
	record    BLOB NOT NULL
);
`

// SQLite is a Cache persisted in a SQLite database, so header parses
// survive across processes.
type SQLite struct {
	db *sqlx.DB
}

// NewSQLite opens (creating if necessary) a SQLite-backed cache at path.
func NewSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// WAL keeps concurrent readers from blocking the single writer.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open header cache: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate header cache: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Fetch implements Cache. Decode failures are treated as cache misses so a
// schema change never breaks an open.
func (c *SQLite) Fetch(key string) (*mailbox.Message, time.Time, bool) {
	var row struct {
		StoredAt int64  `db:"stored_at"`
		Record   []byte `db:"record"`
	}
	err := c.db.Get(&row, `SELECT stored_at, record FROM header_cache WHERE key = ?`, key)
	if err != nil {
		return nil, time.Time{}, false
	}

	var msg mailbox.Message
	if err := json.Unmarshal(row.Record, &msg); err != nil {
		return nil, time.Time{}, false
	}
	return &msg, time.Unix(row.StoredAt, 0), true
}

// Store implements Cache.
func (c *SQLite) Store(key string, msg *mailbox.Message, storedAt time.Time) error {
	record, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = c.db.Exec(
		`INSERT INTO header_cache (key, stored_at, record) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET stored_at = excluded.stored_at, record = excluded.record`,
		key, storedAt.Unix(), record)
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

// Delete implements Cache.
func (c *SQLite) Delete(key string) error {
	_, err := c.db.Exec(`DELETE FROM header_cache WHERE key = ?`, key)
	return err
}

// Close implements Cache.
func (c *SQLite) Close() error {
	return c.db.Close()
}

var _ Cache = (*SQLite)(nil)
