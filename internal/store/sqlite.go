package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SqliteStore backs the hierarchical store with an embedded SQLite file
// for single-node deployments. The schema is created at open.
type SqliteStore struct {
	sqlStore
}

var sqliteQueries = sqlQueries{
	get: "SELECT value FROM entries WHERE path = ?",
	upsert: "INSERT INTO entries (path, value) VALUES (?, ?) " +
		"ON CONFLICT (path) DO UPDATE SET value = excluded.value",
	deleteTree: `DELETE FROM entries WHERE path = ? OR path LIKE ? ESCAPE '\'`,
	list:       `SELECT path, value FROM entries WHERE path LIKE ? ESCAPE '\'`,
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	path TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

func NewSqliteStore(dsn string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Concurrent writers on a single connection avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SqliteStore{sqlStore{conn: db, q: sqliteQueries}}, nil
}
