// Package persistence provides the SQLite-backed lease store. A lease records
// that an issue is currently claimed by a phase processor in this process; it
// is not authoritative about pipeline position (issue labels are).
package persistence

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"autodev/pkg/logx"
)

// Store owns the lease database. It is created at process start and passed
// explicitly to whoever needs it; there is no package-level singleton.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (creating if necessary) the lease database at dbPath and brings
// the schema up to the current version.
func Open(dbPath string) (*Store, error) {
	// synchronous=FULL so every committed mutation is flushed before the call
	// returns. Losing a lease on crash is survivable (restart re-derives from
	// issue labels) but there is no reason to allow it.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)",
		dbPath,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Info("Lease store opened: %s", dbPath)

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection. Should be called during shutdown.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
