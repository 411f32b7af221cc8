// Package testutil provides shared test helpers for deck fixtures and ledgers.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/deckhand/internal/ledger"
)

// TestLedger creates a temporary SQLite ledger that is automatically cleaned up.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "deckhand-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// Touch moves the file's mtime forward by two seconds so the change is
// visible whatever the filesystem's timestamp granularity.
func Touch(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	mt := info.ModTime().Add(2 * time.Second)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
}

// TestDeck writes a minimal resolvable deck named name into dir and returns
// the path of its definition.
func TestDeck(t *testing.T, dir, name string) string {
	t.Helper()
	WriteFile(t, dir, name+".html", "<div>{{ card.title }}</div>")
	WriteFile(t, dir, name+".css", ".card {}")
	return WriteFile(t, dir, name+".yaml", "title: "+name+"\ndefault:\n  copies: 1\ncards:\n  first: {title: One}\n  second: {title: Two, copies: 0}\n")
}
