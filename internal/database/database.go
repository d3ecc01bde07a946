package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Sentinel errors surfaced to callers; the API layer maps them to
// HTTP status codes.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateTask = errors.New("an equivalent task is already pending or processing")
	ErrNotTerminal   = errors.New("task is not in a terminal state")
	ErrNotRetryable  = errors.New("only failed tasks can be retried")
	ErrTerminalState = errors.New("task is already in a terminal state")
)

// MaxNumeric bounds numeric values accepted by the order mirror.
// Values beyond it are treated as data errors, not truncated silently.
const MaxNumeric = 1e12

// RangeError reports order rows rejected for out-of-range numerics.
type RangeError struct {
	ExternalIDs []int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%d order rows exceed the numeric range", len(e.ExternalIDs))
}

type DB struct {
	db *sql.DB
}

func New(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &DB{db: db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            site TEXT NOT NULL,
            kind TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            priority INTEGER NOT NULL DEFAULT 0,
            retry_count INTEGER NOT NULL DEFAULT 0,
            metadata TEXT NOT NULL DEFAULT '',
            progress TEXT NOT NULL DEFAULT '',
            result TEXT NOT NULL DEFAULT '',
            last_error TEXT,
            created_at DATETIME NOT NULL,
            started_at DATETIME,
            completed_at DATETIME
        )`,
		// At-most-one-in-flight per (site, kind).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_active
            ON tasks(site, kind) WHERE status IN ('pending', 'processing')`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_claim ON tasks(status, priority, created_at)`,

		`CREATE TABLE IF NOT EXISTS checkpoints (
            site TEXT NOT NULL,
            kind TEXT NOT NULL,
            last_id INTEGER NOT NULL DEFAULT 0,
            last_modified DATETIME NOT NULL DEFAULT '0001-01-01T00:00:00Z',
            synced_count INTEGER NOT NULL DEFAULT 0,
            last_status TEXT NOT NULL DEFAULT 'ok',
            last_error TEXT,
            last_duration_ms INTEGER NOT NULL DEFAULT 0,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (site, kind)
        )`,

		`CREATE TABLE IF NOT EXISTS cached_products (
            site TEXT NOT NULL,
            product_id INTEGER NOT NULL,
            parent_id INTEGER NOT NULL DEFAULT 0,
            sku TEXT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            publish_status TEXT NOT NULL DEFAULT '',
            stock_status TEXT NOT NULL DEFAULT '',
            quantity REAL NOT NULL DEFAULT 0,
            modified_at DATETIME NOT NULL DEFAULT '0001-01-01T00:00:00Z',
            last_synced_at DATETIME NOT NULL,
            PRIMARY KEY (site, product_id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_cached_products_sku ON cached_products(site, sku)`,

		`CREATE TABLE IF NOT EXISTS orders (
            site TEXT NOT NULL,
            external_id INTEGER NOT NULL,
            number TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT '',
            total REAL NOT NULL DEFAULT 0,
            currency TEXT NOT NULL DEFAULT '',
            customer TEXT NOT NULL DEFAULT '',
            item_count INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            modified_at DATETIME NOT NULL,
            PRIMARY KEY (site, external_id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_orders_modified ON orders(site, modified_at)`,

		`CREATE TABLE IF NOT EXISTS run_logs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL,
            site TEXT NOT NULL,
            status TEXT NOT NULL,
            checked INTEGER NOT NULL DEFAULT 0,
            synced_instock INTEGER NOT NULL DEFAULT 0,
            synced_outofstock INTEGER NOT NULL DEFAULT 0,
            failed INTEGER NOT NULL DEFAULT 0,
            skipped INTEGER NOT NULL DEFAULT 0,
            duration_ms INTEGER NOT NULL DEFAULT 0,
            error TEXT,
            created_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_run_logs_site ON run_logs(site, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}
