package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/TNO-ropt/ropt-everest/pkg/engine"
	"github.com/TNO-ropt/ropt-everest/pkg/results"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists result records in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, engine.NewConfigError("database path is required", nil).WithComponent("store")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Open initializes the database connection, enables WAL mode and runs the
// schema migrations.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return engine.NewIOError("failed to open database", err).WithComponent("store")
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return engine.NewIOError("failed to ping database", err).WithComponent("store")
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return engine.NewIOError("database not initialized", nil).WithComponent("store")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return engine.NewIOError("failed to create migration source", err).WithComponent("store")
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return engine.NewIOError("failed to create database driver", err).WithComponent("store")
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return engine.NewIOError("failed to create migration instance", err).WithComponent("store")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return engine.NewIOError("failed to run migrations", err).WithComponent("store")
	}

	return nil
}

// SaveRecord persists one result record with its event provenance.
func (s *SQLiteStore) SaveRecord(ctx context.Context, source, tag string, record results.Record) error {
	payload, err := results.EncodeJSON(record)
	if err != nil {
		return engine.NewIOError("failed to encode record", err).WithComponent("store")
	}

	query := `
		INSERT INTO results (kind, batch_id, source, tag, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		string(record.Kind()),
		record.BatchID(),
		source,
		tag,
		string(payload),
		time.Now().UTC(),
	)
	if err != nil {
		return engine.NewIOError("failed to save record", err).WithComponent("store")
	}

	return nil
}

// SaveRecords persists a batch of records in a single transaction.
func (s *SQLiteStore) SaveRecords(ctx context.Context, source, tag string, records []results.Record) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return engine.NewIOError("failed to begin transaction", err).WithComponent("store")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO results (kind, batch_id, source, tag, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	for _, record := range records {
		payload, err := results.EncodeJSON(record)
		if err != nil {
			return engine.NewIOError("failed to encode record", err).WithComponent("store")
		}
		if _, err := tx.ExecContext(ctx, query,
			string(record.Kind()), record.BatchID(), source, tag, string(payload), now,
		); err != nil {
			return engine.NewIOError("failed to save record", err).WithComponent("store")
		}
	}

	if err := tx.Commit(); err != nil {
		return engine.NewIOError("failed to commit records", err).WithComponent("store")
	}
	return nil
}

// ListRecords returns stored records matching the filter, in insertion
// order.
func (s *SQLiteStore) ListRecords(ctx context.Context, filter ListFilter) ([]StoredRecord, error) {
	query := `
		SELECT id, kind, batch_id, source, tag, payload, created_at
		FROM results
	`
	var conditions []string
	var args []any
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.BatchID != nil {
		conditions = append(conditions, "batch_id = ?")
		args = append(args, *filter.BatchID)
	}
	if filter.Tag != "" {
		conditions = append(conditions, "tag = ?")
		args = append(args, filter.Tag)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engine.NewIOError("failed to list records", err).WithComponent("store")
	}
	defer func() { _ = rows.Close() }()

	var stored []StoredRecord
	for rows.Next() {
		var (
			item    StoredRecord
			kind    string
			payload string
		)
		if err := rows.Scan(&item.ID, &kind, &item.BatchID, &item.Source, &item.Tag, &payload, &item.CreatedAt); err != nil {
			return nil, engine.NewIOError("failed to scan record", err).WithComponent("store")
		}
		item.Kind = results.Kind(kind)
		record, err := results.DecodeJSON([]byte(payload))
		if err != nil {
			return nil, engine.NewIOError(fmt.Sprintf("failed to decode record %d", item.ID), err).WithComponent("store")
		}
		item.Record = record
		stored = append(stored, item)
	}
	if err := rows.Err(); err != nil {
		return nil, engine.NewIOError("failed to iterate records", err).WithComponent("store")
	}

	return stored, nil
}

// LoadRecords returns the decoded records matching the filter, in
// insertion order. Convenience over ListRecords for replay.
func (s *SQLiteStore) LoadRecords(ctx context.Context, filter ListFilter) ([]results.Record, error) {
	stored, err := s.ListRecords(ctx, filter)
	if err != nil {
		return nil, err
	}
	records := make([]results.Record, len(stored))
	for i, item := range stored {
		records[i] = item.Record
	}
	return records, nil
}

// CountRecords returns the number of stored records matching the filter.
func (s *SQLiteStore) CountRecords(ctx context.Context, filter ListFilter) (int, error) {
	query := "SELECT COUNT(*) FROM results"
	var conditions []string
	var args []any
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.BatchID != nil {
		conditions = append(conditions, "batch_id = ?")
		args = append(args, *filter.BatchID)
	}
	if filter.Tag != "" {
		conditions = append(conditions, "tag = ?")
		args = append(args, filter.Tag)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, engine.NewIOError("failed to count records", err).WithComponent("store")
	}
	return count, nil
}

// Batches returns the distinct batch ids present in the store, ascending.
func (s *SQLiteStore) Batches(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT batch_id FROM results ORDER BY batch_id")
	if err != nil {
		return nil, engine.NewIOError("failed to list batches", err).WithComponent("store")
	}
	defer func() { _ = rows.Close() }()

	var batches []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, engine.NewIOError("failed to scan batch id", err).WithComponent("store")
		}
		batches = append(batches, id)
	}
	return batches, rows.Err()
}
