package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Config holds database configuration
type Config struct {
	Path string // filesystem path of the SQLite file
	Name string // short name used in logs
}

// DB wraps a SQLite connection with hub-specific lifecycle helpers.
// The hub keeps all state in a single file; WAL mode gives the scheduler
// writer and the HTTP readers safe concurrent access.
type DB struct {
	conn *sql.DB
	log  zerolog.Logger
	name string
	path string
}

// New opens (creating if necessary) the hub database.
func New(cfg Config, log zerolog.Logger) (*DB, error) {
	if cfg.Name == "" {
		cfg.Name = "hub"
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	configureConnectionPool(conn)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	db := &DB{
		conn: conn,
		log:  log.With().Str("database", cfg.Name).Logger(),
		name: cfg.Name,
		path: cfg.Path,
	}

	db.log.Info().Str("path", cfg.Path).Msg("Database opened")
	return db, nil
}

// buildConnectionString assembles the modernc.org/sqlite DSN. Pragmas ride
// along on the connection string so every pooled connection gets them.
func buildConnectionString(path string) string {
	return "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(10000)" +
		"&_pragma=cache_size(-8000)"
}

func configureConnectionPool(conn *sql.DB) {
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)
	conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn exposes the underlying *sql.DB for repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the short database name used in logs.
func (db *DB) Name() string {
	return db.name
}

// Migrate applies the embedded schema. All statements are idempotent
// (CREATE TABLE IF NOT EXISTS), so this is safe to run on every boot.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema to %s: %w", db.name, err)
	}
	db.log.Debug().Msg("Schema applied")
	return nil
}

// HealthCheck pings the database and runs a full integrity check.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check for %s returned: %s", db.name, result)
	}
	return nil
}

// QuickCheck is a cheaper health probe suitable for request paths.
func (db *DB) QuickCheck(ctx context.Context) error {
	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA quick_check(1)").Scan(&result); err != nil {
		return fmt.Errorf("quick check failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("quick check for %s returned: %s", db.name, result)
	}
	return nil
}

// WALCheckpoint folds the write-ahead log back into the main file.
func (db *DB) WALCheckpoint() error {
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint failed for %s: %w", db.name, err)
	}
	return nil
}

// Vacuum reclaims free pages. Intended for maintenance paths, not requests.
func (db *DB) Vacuum() error {
	if _, err := db.conn.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed for %s: %w", db.name, err)
	}
	return nil
}

// Close checkpoints the WAL and closes the connection pool.
func (db *DB) Close() error {
	if err := db.WALCheckpoint(); err != nil {
		db.log.Warn().Err(err).Msg("WAL checkpoint on close failed")
	}
	db.log.Info().Msg("Database closed")
	return db.conn.Close()
}
