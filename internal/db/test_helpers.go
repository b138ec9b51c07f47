package db

import (
	"database/sql"
	"testing"

	"github.com/fixdesk/fixdesk/internal/extractor"
)

// NewTestDB creates an in-memory SQLite database for testing.
//
// Always use this in tests, never a file-based database: a file-based
// test database risks clobbering real shop data if the path isn't
// isolated.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := Migrate(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return &DB{DB: sqlDB, path: ":memory:"}
}

// NewTestRepo creates a TicketRepo backed by an in-memory database and
// a temp attachment directory, using the default vocabulary.
func NewTestRepo(t *testing.T) *TicketRepo {
	t.Helper()

	database := NewTestDB(t)
	t.Cleanup(func() { database.Close() })

	return NewTicketRepo(database, extractor.New(extractor.DefaultVocabulary()), t.TempDir())
}
