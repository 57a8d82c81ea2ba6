package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrPathNotFound is returned by Get when no value exists at the path.
var ErrPathNotFound = errors.New("path not found")

// Store is a hierarchical key-value store. Paths are slash-separated;
// segments derived from arbitrary external strings must be escaped with
// EncodeKey. Update applies every path in a single atomic transaction:
// either all paths apply or none do.
type Store interface {
	// Get returns the raw JSON value at path, or ErrPathNotFound.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// Set marshals value and writes it at path, replacing any prior value.
	Set(ctx context.Context, path string, value any) error
	// Update atomically applies all entries. A nil value deletes the path
	// and its entire subtree.
	Update(ctx context.Context, values map[string]any) error
	// Delete removes the path and its entire subtree.
	Delete(ctx context.Context, path string) error
	// List returns the direct children of prefix, keyed by child segment.
	List(ctx context.Context, prefix string) (map[string]json.RawMessage, error)

	Ping() error
	Close() error
}
