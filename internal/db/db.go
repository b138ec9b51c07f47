// Package db provides the persistent ticket store for fixdesk.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DefaultDBPath is the default location for the fixdesk database.
	DefaultDBPath = "~/.fixdesk/fixdesk.db"
)

// DB wraps a sql.DB connection with fixdesk-specific functionality.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates a fixdesk database at the specified path.
// If path is empty, it uses the default path (~/.fixdesk/fixdesk.db).
func Open(path string) (*DB, error) {
	if path == "" {
		path = DefaultDBPath
	}
	path = ExpandPath(path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer; keep the pool at one connection
	// so concurrent technicians serialize at the driver.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: db, path: path}, nil
}

// Path returns the file path of the database.
func (d *DB) Path() string {
	return d.path
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// Exists checks if the database file exists at the given path.
// If path is empty, it checks the default path.
func Exists(path string) bool {
	if path == "" {
		path = DefaultDBPath
	}
	_, err := os.Stat(ExpandPath(path))
	return err == nil
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// FormatTime formats a time.Time as an RFC 3339 string for SQLite
// compatibility. Timestamps are stored at second precision in UTC so
// that encode/decode round-trips compare equal.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// ParseTime parses an RFC 3339 timestamp stored by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Now returns the current time at the precision the store persists.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
