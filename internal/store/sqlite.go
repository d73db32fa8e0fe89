// ABOUTME: SQLite implementation of the Backend interface using modernc.org/sqlite
// ABOUTME: One table per partition, opened lazily, failures logged and reported as benign values

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// SQLiteStore implements Backend using SQLite
type SQLiteStore struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
	db *sql.DB
}

// Option customizes a store.
type Option func(*storeOptions)

type storeOptions struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithLogger sets the logger used for I/O failure reports.
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp LastUpdated (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) storeOptions {
	o := storeOptions{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", "store")
	return o
}

// NewSQLiteStore creates a store backed by the database file at path.
// Nothing touches the disk until Open (or the first operation) runs.
func NewSQLiteStore(path string, opts ...Option) *SQLiteStore {
	o := applyOptions(opts)
	return &SQLiteStore{
		path:   path,
		logger: o.logger,
		now:    o.now,
	}
}

// Open creates the database file, its parent directories, and any missing
// partition tables. Calling it again after a successful open is a no-op.
func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	if s.path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if s.path == memoryPath {
		// Every connection to :memory: gets its own database
		db.SetMaxOpenConns(1)
	} else if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return fmt.Errorf("setting busy timeout: %w", err)
	}

	for _, p := range Partitions() {
		if err := createPartition(ctx, db, p); err != nil {
			db.Close()
			return err
		}
	}

	s.db = db
	s.logger.Info("SQLite store opened", "path", s.path)
	return nil
}

func createPartition(ctx context.Context, db *sql.DB, p Partition) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %q (
			id           TEXT PRIMARY KEY,
			payload      BLOB NOT NULL,
			last_updated INTEGER NOT NULL
		)`, string(p))

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating partition %s: %w", p, err)
	}
	return nil
}

// conn returns the open database, opening it on first use. The bool is false
// when the partition is unknown or the database cannot be opened.
func (s *SQLiteStore) conn(ctx context.Context, op string, p Partition) (*sql.DB, bool) {
	if !p.Valid() {
		s.logger.Warn("cache "+op+" error", "partition", string(p), "error", ErrUnknownPartition)
		return nil, false
	}
	if err := s.Open(ctx); err != nil {
		s.logger.Warn("cache "+op+" error", "partition", string(p), "error", err)
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		s.logger.Warn("cache "+op+" error", "partition", string(p), "error", "store closed")
		return nil, false
	}
	return s.db, true
}

// Set writes payload under key, stamping LastUpdated with the store clock.
func (s *SQLiteStore) Set(ctx context.Context, p Partition, key string, payload []byte) bool {
	db, ok := s.conn(ctx, "set", p)
	if !ok {
		return false
	}

	query := fmt.Sprintf(`
		INSERT INTO %q (id, payload, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			last_updated = excluded.last_updated
	`, string(p))

	if payload == nil {
		payload = []byte{}
	}
	if _, err := db.ExecContext(ctx, query, key, payload, s.now().UnixMilli()); err != nil {
		s.logger.Warn("cache set error", "partition", string(p), "key", key, "error", err)
		return false
	}
	return true
}

// Get returns the record stored under key.
func (s *SQLiteStore) Get(ctx context.Context, p Partition, key string) (Record, bool) {
	db, ok := s.conn(ctx, "get", p)
	if !ok {
		return Record{}, false
	}

	query := fmt.Sprintf(`SELECT id, payload, last_updated FROM %q WHERE id = ?`, string(p))

	var rec Record
	var updated int64
	err := db.QueryRowContext(ctx, query, key).Scan(&rec.ID, &rec.Payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false
	}
	if err != nil {
		s.logger.Warn("cache get error", "partition", string(p), "key", key, "error", err)
		return Record{}, false
	}

	rec.LastUpdated = time.UnixMilli(updated)
	return rec, true
}

// GetAll returns every record in the partition.
func (s *SQLiteStore) GetAll(ctx context.Context, p Partition) []Record {
	db, ok := s.conn(ctx, "getAll", p)
	if !ok {
		return []Record{}
	}

	query := fmt.Sprintf(`SELECT id, payload, last_updated FROM %q`, string(p))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Warn("cache getAll error", "partition", string(p), "error", err)
		return []Record{}
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var updated int64
		if err := rows.Scan(&rec.ID, &rec.Payload, &updated); err != nil {
			s.logger.Warn("cache getAll error", "partition", string(p), "error", err)
			return []Record{}
		}
		rec.LastUpdated = time.UnixMilli(updated)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("cache getAll error", "partition", string(p), "error", err)
		return []Record{}
	}

	return records
}

// Remove deletes the record stored under key. Removing a missing key succeeds.
func (s *SQLiteStore) Remove(ctx context.Context, p Partition, key string) bool {
	db, ok := s.conn(ctx, "remove", p)
	if !ok {
		return false
	}

	query := fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, string(p))
	if _, err := db.ExecContext(ctx, query, key); err != nil {
		s.logger.Warn("cache remove error", "partition", string(p), "key", key, "error", err)
		return false
	}
	return true
}

// Clear deletes every record in the partition.
func (s *SQLiteStore) Clear(ctx context.Context, p Partition) bool {
	db, ok := s.conn(ctx, "clear", p)
	if !ok {
		return false
	}

	query := fmt.Sprintf(`DELETE FROM %q`, string(p))
	result, err := db.ExecContext(ctx, query)
	if err != nil {
		s.logger.Warn("cache clear error", "partition", string(p), "error", err)
		return false
	}

	if n, _ := result.RowsAffected(); n > 0 {
		s.logger.Debug("cleared partition", "partition", string(p), "count", n)
	}
	return true
}

// Close closes the database connection. A later operation reopens it.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	s.logger.Info("closing SQLite store")
	err := s.db.Close()
	s.db = nil
	return err
}
