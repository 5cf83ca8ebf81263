// Package testutil holds small helpers shared by command and
// integration tests.
package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/puzuwe/rquery/exec"
)

// WriteFixture writes content to a file under the test's temp
// directory and returns its path. The file disappears with the test.
func WriteFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// OpenSQLite opens an in-memory sqlite database that is closed when
// the test ends.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := exec.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
