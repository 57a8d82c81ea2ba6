package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// PgStore backs the hierarchical store with Postgres. Multi-path updates
// run in a single transaction, which supplies the store's all-or-nothing
// guarantee.
type PgStore struct {
	sqlStore
}

var pgQueries = sqlQueries{
	get: "SELECT value FROM entries WHERE path = $1",
	upsert: "INSERT INTO entries (path, value) VALUES ($1, $2) " +
		"ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value",
	deleteTree: `DELETE FROM entries WHERE path = $1 OR path LIKE $2 ESCAPE '\'`,
	list:       `SELECT path, value FROM entries WHERE path LIKE $1 ESCAPE '\'`,
}

func NewPgStore(dsn string) (*PgStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgStore{sqlStore{conn: db, q: pgQueries}}, nil
}

// Migrate applies pending schema migrations from dir.
func (s *PgStore) Migrate(dir string) error {
	driver, err := postgres.WithInstance(s.conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
