package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemStoreSetGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	err := s.Set(ctx, "users/a", map[string]string{"name": "Ann"})
	assert.NoError(t, err)

	raw, err := s.Get(ctx, "users/a")
	assert.NoError(t, err)

	var v map[string]string
	assert.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, "Ann", v["name"])

	_, err = s.Get(ctx, "users/missing")
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestMemStoreUpdate(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	assert.NoError(t, s.Set(ctx, "users/a", "old"))
	assert.NoError(t, s.Set(ctx, "users/a/roomAccess/r1", true))
	assert.NoError(t, s.Set(ctx, "users/a/roomAccess/r2", true))

	// nil deletes the whole subtree, non-nil writes
	err := s.Update(ctx, map[string]any{
		"users/a": nil,
		"users/b": "new",
	})
	assert.NoError(t, err)

	_, err = s.Get(ctx, "users/a")
	assert.ErrorIs(t, err, ErrPathNotFound)
	_, err = s.Get(ctx, "users/a/roomAccess/r1")
	assert.ErrorIs(t, err, ErrPathNotFound)

	raw, err := s.Get(ctx, "users/b")
	assert.NoError(t, err)
	assert.JSONEq(t, `"new"`, string(raw))
}

func TestMemStoreUpdateAtomicOnMarshalError(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	assert.NoError(t, s.Set(ctx, "rooms/r1", "keep"))

	err := s.Update(ctx, map[string]any{
		"rooms/r1": "changed",
		"rooms/r2": func() {}, // unmarshalable
	})
	assert.Error(t, err)

	raw, err := s.Get(ctx, "rooms/r1")
	assert.NoError(t, err)
	assert.JSONEq(t, `"keep"`, string(raw))

	_, err = s.Get(ctx, "rooms/r2")
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestMemStoreDeleteSubtree(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	assert.NoError(t, s.Set(ctx, "rooms/r1", "room"))
	assert.NoError(t, s.Set(ctx, "rooms/r1/users/a", "member"))
	assert.NoError(t, s.Set(ctx, "rooms/r2", "other"))

	assert.NoError(t, s.Delete(ctx, "rooms/r1"))

	_, err := s.Get(ctx, "rooms/r1")
	assert.ErrorIs(t, err, ErrPathNotFound)
	_, err = s.Get(ctx, "rooms/r1/users/a")
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = s.Get(ctx, "rooms/r2")
	assert.NoError(t, err)
}

func TestMemStoreListDirectChildrenOnly(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	assert.NoError(t, s.Set(ctx, "users/a", "doc"))
	assert.NoError(t, s.Set(ctx, "users/a/roomAccess/r1", true))
	assert.NoError(t, s.Set(ctx, "users/b", "doc"))
	assert.NoError(t, s.Set(ctx, "rooms/r1", "room"))

	children, err := s.List(ctx, "users")
	assert.NoError(t, err)
	assert.Len(t, children, 2)
	assert.Contains(t, children, "a")
	assert.Contains(t, children, "b")

	access, err := s.List(ctx, "users/a/roomAccess")
	assert.NoError(t, err)
	assert.Len(t, access, 1)
	assert.Contains(t, access, "r1")
}
