package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// dsnParams are appended to every path handed to the sqlite3 driver. The
// daemon writes while chordctl reads, so WAL with a busy timeout.
const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

// DB wraps the SQLite connection of the dispatch journal, chordd.db.
type DB struct {
	*sql.DB
	path string
}

// Open connects to the journal at path, creating its directory if needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the file the journal lives in.
func (db *DB) Path() string { return db.path }
