// Package chatdb provides read-only access to Apple's iMessage chat.db.
package chatdb

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a read-only SQLite connection to a chat.db file.
type DB struct {
	*sql.DB
	path string
}

// Open connects to the message store at path. The connection is read-only;
// a failure here is fatal for the whole operation.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("chat.db not found at %s (Full Disk Access required): %w", path, err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open chat.db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping chat.db: %w", err)
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the database file path this connection was opened with.
func (db *DB) Path() string {
	return db.path
}

// CheckAccess verifies the message store at path can actually be queried.
// Opening alone is not enough: without Full Disk Access the first statement
// fails, so probe sqlite_master.
func CheckAccess(path string) error {
	db, err := Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var one int
	if err := db.QueryRow(`SELECT 1 FROM sqlite_master LIMIT 1`).Scan(&one); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query chat.db: %w", err)
	}
	return nil
}
