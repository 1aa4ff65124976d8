package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Repository defines the storage operations used by the daemon
type Repository interface {
	Journal() JournalRepository
	Close() error
}

// DB implements the Repository interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates and initializes a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := optimizeSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to optimize database: %w", err)
	}

	database := &DB{db: db}

	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// optimizeSQLite applies pragmas for an append-heavy journal
func optimizeSQLite(db *sql.DB) error {
	// WAL lets API reads proceed while the collector writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA cache_size=-64000"); err != nil {
		return fmt.Errorf("failed to set cache size: %w", err)
	}

	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA temp_store=MEMORY"); err != nil {
		return fmt.Errorf("failed to set temp_store: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Journal returns the event journal repository
func (d *DB) Journal() JournalRepository {
	return NewJournalRepository(d.db)
}

// initSchema creates the database schema if it doesn't exist
func (d *DB) initSchema() error {
	eventsSchema := `CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		block INTEGER NOT NULL,
		occurred_at TIMESTAMP NOT NULL,
		address TEXT,
		airline TEXT,
		flight TEXT,
		departure INTEGER,
		idx INTEGER,
		status INTEGER,
		amount TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		published_at TIMESTAMP
	);`

	flightStatusSchema := `CREATE TABLE IF NOT EXISTS flight_statuses (
		airline TEXT NOT NULL,
		flight TEXT NOT NULL,
		departure INTEGER NOT NULL,
		status INTEGER NOT NULL,
		block INTEGER NOT NULL,
		PRIMARY KEY (airline, flight, departure)
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_events_block ON events(block)`,
		`CREATE INDEX IF NOT EXISTS idx_events_flight ON events(airline, flight, departure)`,
		`CREATE INDEX IF NOT EXISTS idx_events_unpublished ON events(block) WHERE published_at IS NULL`,
	}

	if _, err := d.db.Exec(eventsSchema); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	if _, err := d.db.Exec(flightStatusSchema); err != nil {
		return fmt.Errorf("failed to create flight_statuses table: %w", err)
	}

	for _, idx := range indexes {
		if _, err := d.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
