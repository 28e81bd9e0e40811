// Package testutil provides shared test helpers.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/tcgruenwald/platzbuch/internal/db"
)

// NewTestDB opens a fresh migrated SQLite database in a temp directory. The
// database is closed and removed when the test finishes.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
