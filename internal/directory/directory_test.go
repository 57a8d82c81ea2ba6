package directory

import (
	"context"
	"testing"

	"github.com/oitbase/roomledger/internal/events"
	"github.com/oitbase/roomledger/internal/identity"
	"github.com/oitbase/roomledger/internal/rooms"
	"github.com/oitbase/roomledger/internal/stats"
	"github.com/oitbase/roomledger/internal/store"
	"github.com/oitbase/roomledger/internal/testutil"
	"github.com/oitbase/roomledger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) (*Directory, *rooms.Ledger, *store.MemStore, *identity.DevProvider) {
	st := store.NewMemStore()
	logger := testutil.TestLogger(t)
	ids := identity.NewDevProvider(st, []byte("test-key"))
	ledger := rooms.NewLedger(st, events.NewBus(), stats.NoopStats{}, logger)
	return NewDirectory(st, ledger, ids, logger), ledger, st, ids
}

func TestCreateAndResolveAccount(t *testing.T) {
	dir, _, _, _ := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.CreateAccount(ctx, "ext-1", "Ann", "ann@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, created.Id)
	assert.Equal(t, types.PlanNone, created.Plan)
	assert.Equal(t, 0, created.RoomQuota)

	resolved, err := dir.ResolveAccount(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, created.Id, resolved.Id)
	assert.Equal(t, "Ann", resolved.Name)
}

func TestResolveAccountUnknownSubject(t *testing.T) {
	dir, _, _, _ := newTestDirectory(t)

	_, err := dir.ResolveAccount(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAccountDanglingMapping(t *testing.T) {
	dir, _, st, _ := newTestDirectory(t)
	ctx := context.Background()

	// mapping exists but the account record does not
	require.NoError(t, st.Set(ctx, store.AuthMappingPath(store.EncodeKey("ext-1")), "missing-account"))

	_, err := dir.ResolveAccount(ctx, "ext-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAccountSubjectIdWithUnsafeChars(t *testing.T) {
	dir, _, _, _ := newTestDirectory(t)
	ctx := context.Background()

	subjectId := "oidc|user.one@example.com"
	created, err := dir.CreateAccount(ctx, subjectId, "Ann", "ann@example.com")
	require.NoError(t, err)

	resolved, err := dir.ResolveAccount(ctx, subjectId)
	require.NoError(t, err)
	assert.Equal(t, created.Id, resolved.Id)
}

func TestLoadAccountReadsAccessChildren(t *testing.T) {
	dir, _, st, _ := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.CreateAccount(ctx, "ext-1", "Ann", "ann@example.com")
	require.NoError(t, err)

	require.NoError(t, st.Set(ctx, store.RoomAccessPath(created.Id, "r1"), types.RoomAccess{IsActive: true}))
	// legacy bare-boolean entry
	require.NoError(t, st.Set(ctx, store.RoomAccessPath(created.Id, "r2"), false))

	acct, err := dir.LoadAccount(ctx, created.Id)
	require.NoError(t, err)
	require.Len(t, acct.RoomAccess, 2)
	assert.True(t, acct.RoomAccess["r1"].IsActive)
	assert.False(t, acct.RoomAccess["r2"].IsActive)
}

func TestReconcileRemovesDanglingMappings(t *testing.T) {
	dir, _, st, _ := newTestDirectory(t)
	ctx := context.Background()

	healthy, err := dir.CreateAccount(ctx, "ext-ok", "Ann", "ann@example.com")
	require.NoError(t, err)

	require.NoError(t, st.Set(ctx, store.AuthMappingPath(store.EncodeKey("ext-dangling")), "gone"))
	require.NoError(t, st.Set(ctx, store.AuthMappingPath(store.EncodeKey("ext-garbage")), map[string]string{"not": "a string"}))

	removed, err := dir.Reconcile(ctx)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	// healthy mapping untouched
	resolved, err := dir.ResolveAccount(ctx, "ext-ok")
	require.NoError(t, err)
	assert.Equal(t, healthy.Id, resolved.Id)

	_, err = dir.ResolveAccount(ctx, "ext-dangling")
	assert.ErrorIs(t, err, ErrNotFound)

	// idempotent
	removed, err = dir.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestDeleteAccountCascade(t *testing.T) {
	dir, ledger, st, ids := newTestDirectory(t)
	ctx := context.Background()

	subject, _, err := ids.Register(ctx, "Ann", "ann@example.com", "secret123")
	require.NoError(t, err)
	acct, err := dir.CreateAccount(ctx, subject.Id, subject.Name, subject.Email)
	require.NoError(t, err)

	// give the account a plan and two owned rooms
	acct.Plan = types.PlanRooms2
	acct.RoomQuota = 2
	require.NoError(t, dir.SaveAccount(ctx, acct))

	r1, err := ledger.CreateRoom(ctx, acct.Id, "First")
	require.NoError(t, err)
	r2, err := ledger.CreateRoom(ctx, acct.Id, "Second")
	require.NoError(t, err)

	// membership in a room owned by someone else
	other, err := dir.CreateAccount(ctx, "ext-other", "Bob", "bob@example.com")
	require.NoError(t, err)
	otherDoc, err := dir.LoadAccount(ctx, other.Id)
	require.NoError(t, err)
	otherDoc.Plan = types.PlanRooms1
	otherDoc.RoomQuota = 1
	require.NoError(t, dir.SaveAccount(ctx, otherDoc))
	shared, err := ledger.CreateRoom(ctx, other.Id, "Shared")
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, store.RoomMemberPath(shared.Id, acct.Id), types.RoomMember{Id: acct.Id, Name: "Ann"}))
	require.NoError(t, st.Set(ctx, store.RoomAccessPath(acct.Id, shared.Id), types.RoomAccess{}))

	require.NoError(t, dir.DeleteAccount(ctx, acct.Id))

	// owned rooms gone, with the second member's view cleaned up too
	_, err = ledger.GetRoom(ctx, r1.Id)
	assert.ErrorIs(t, err, rooms.ErrRoomNotFound)
	_, err = ledger.GetRoom(ctx, r2.Id)
	assert.ErrorIs(t, err, rooms.ErrRoomNotFound)

	// the shared room survives, minus this member
	_, err = ledger.GetRoom(ctx, shared.Id)
	assert.NoError(t, err)
	members, err := ledger.Members(ctx, shared.Id)
	require.NoError(t, err)
	assert.NotContains(t, members, acct.Id)

	// account record, mapping and identity all gone
	_, err = dir.LoadAccount(ctx, acct.Id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = dir.ResolveAccount(ctx, subject.Id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = ids.Login(ctx, "ann@example.com", "secret123")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestDeleteAccountWithoutExternalIdentity(t *testing.T) {
	dir, _, st, _ := newTestDirectory(t)
	ctx := context.Background()

	// name-only signup accounts have no external identity
	acct := types.Account{Id: "local-1", Name: "Newbie", Plan: types.PlanNone}
	require.NoError(t, st.Set(ctx, store.UserPath(acct.Id), acct))

	require.NoError(t, dir.DeleteAccount(ctx, acct.Id))

	_, err := dir.LoadAccount(ctx, acct.Id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAccountIds(t *testing.T) {
	dir, _, _, _ := newTestDirectory(t)
	ctx := context.Background()

	a, err := dir.CreateAccount(ctx, "ext-a", "Ann", "")
	require.NoError(t, err)
	b, err := dir.CreateAccount(ctx, "ext-b", "Bob", "")
	require.NoError(t, err)

	ids, err := dir.ListAccountIds(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.Id, b.Id}, ids)
}
