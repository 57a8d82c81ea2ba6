package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// sqlQueries holds the dialect-specific statements shared by the Postgres
// and SQLite backends. Both store one row per path in an entries table.
type sqlQueries struct {
	get        string
	upsert     string
	deleteTree string
	list       string
}

type sqlStore struct {
	conn *sql.DB
	q    sqlQueries
}

// likePattern escapes LIKE metacharacters in path so encoded key segments
// (which contain '%') match literally, then appends the subtree wildcard.
func likePattern(path string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(path) + "/%"
}

func (s *sqlStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	var raw []byte
	err := s.conn.QueryRowContext(ctx, s.q.get, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %q: %w", path, ErrPathNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", path, err)
	}
	return raw, nil
}

func (s *sqlStore) Set(ctx context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", path, err)
	}

	if _, err := s.conn.ExecContext(ctx, s.q.upsert, path, raw); err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	return nil
}

func (s *sqlStore) Update(ctx context.Context, values map[string]any) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Deterministic order avoids deadlocks between concurrent updates.
	paths := make([]string, 0, len(values))
	for path := range values {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		value := values[path]
		if value == nil {
			if _, err = tx.ExecContext(ctx, s.q.deleteTree, path, likePattern(path)); err != nil {
				return fmt.Errorf("delete %q: %w", path, err)
			}
			continue
		}

		var raw []byte
		raw, err = json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %q: %w", path, err)
		}
		if _, err = tx.ExecContext(ctx, s.q.upsert, path, raw); err != nil {
			return fmt.Errorf("set %q: %w", path, err)
		}
	}

	return tx.Commit()
}

func (s *sqlStore) Delete(ctx context.Context, path string) error {
	if _, err := s.conn.ExecContext(ctx, s.q.deleteTree, path, likePattern(path)); err != nil {
		return fmt.Errorf("delete %q: %w", path, err)
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context, prefix string) (map[string]json.RawMessage, error) {
	rows, err := s.conn.QueryContext(ctx, s.q.list, likePattern(prefix))
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	defer rows.Close()

	children := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			path string
			raw  []byte
		)
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rest := strings.TrimPrefix(path, prefix+"/")
		if strings.Contains(rest, "/") {
			// descendant deeper than one level
			continue
		}
		children[rest] = raw
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return children, nil
}

func (s *sqlStore) Ping() error {
	return s.conn.Ping()
}

func (s *sqlStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
