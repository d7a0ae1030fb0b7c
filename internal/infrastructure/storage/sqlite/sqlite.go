package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB обёртка над соединением SQLite с блокировкой на запись.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New открывает базу в режиме WAL и применяет схему.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		batch_id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		defects INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		contour_id INTEGER NOT NULL,
		area_px REAL NOT NULL,
		circularity REAL NOT NULL,
		status TEXT NOT NULL,
		defect_type TEXT NOT NULL,
		FOREIGN KEY (batch_id) REFERENCES batches(batch_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_batches_timestamp ON batches(timestamp);
	CREATE INDEX IF NOT EXISTS idx_records_batch_id ON records(batch_id);
	CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close закрывает соединение.
func (db *DB) Close() error {
	return db.conn.Close()
}
