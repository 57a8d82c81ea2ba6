package rooms

import (
	"context"
	"testing"

	"github.com/oitbase/roomledger/internal/events"
	"github.com/oitbase/roomledger/internal/stats"
	"github.com/oitbase/roomledger/internal/store"
	"github.com/oitbase/roomledger/internal/testutil"
	"github.com/oitbase/roomledger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*Ledger, *store.MemStore, *events.Bus) {
	st := store.NewMemStore()
	bus := events.NewBus()
	return NewLedger(st, bus, stats.NoopStats{}, testutil.TestLogger(t)), st, bus
}

func seedAccount(t *testing.T, st *store.MemStore, acct types.Account) {
	t.Helper()
	doc := acct
	doc.RoomAccess = nil
	require.NoError(t, st.Set(context.Background(), store.UserPath(acct.Id), doc))
	for roomId, access := range acct.RoomAccess {
		require.NoError(t, st.Set(context.Background(), store.RoomAccessPath(acct.Id, roomId), access))
	}
}

func TestCreateRoom(t *testing.T) {
	ledger, st, bus := newTestLedger(t)
	ctx := context.Background()

	seedAccount(t, st, types.Account{Id: "a1", Name: "Ann", Plan: types.PlanRooms1, RoomQuota: 1})

	var joined []events.RoomJoined
	bus.Subscribe(func(e events.Event) {
		if rj, ok := e.(events.RoomJoined); ok {
			joined = append(joined, rj)
		}
	})

	room, err := ledger.CreateRoom(ctx, "a1", "Milk OIT")
	require.NoError(t, err)
	assert.NotEmpty(t, room.Id)
	assert.Equal(t, "a1", room.OwnerId)

	got, err := ledger.GetRoom(ctx, room.Id)
	require.NoError(t, err)
	assert.Equal(t, "Milk OIT", got.Name)

	members, err := ledger.Members(ctx, room.Id)
	require.NoError(t, err)
	require.Contains(t, members, "a1")
	assert.True(t, members["a1"].IsAdmin)

	acct, err := ledger.loadAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{room.Id}, acct.OwnedRooms)
	access := acct.RoomAccess[room.Id]
	assert.True(t, access.IsActive)
	assert.True(t, access.IsAdmin)

	require.Len(t, joined, 1)
	assert.Equal(t, room.Id, joined[0].RoomId)
}

func TestCreateRoomQuotaExceeded(t *testing.T) {
	ledger, st, _ := newTestLedger(t)
	ctx := context.Background()

	seedAccount(t, st, types.Account{
		Id:         "a1",
		Name:       "Ann",
		Plan:       types.PlanRooms1,
		RoomQuota:  1,
		OwnedRooms: []string{"existing"},
	})

	_, err := ledger.CreateRoom(ctx, "a1", "Second")

	var quotaErr *types.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 1, quotaErr.Quota)
}

func TestCreateRoomSuperAdminBypassesQuota(t *testing.T) {
	ledger, st, _ := newTestLedger(t)
	ctx := context.Background()

	seedAccount(t, st, types.Account{
		Id:         "sa",
		Name:       "Root",
		SuperAdmin: true,
		RoomQuota:  0,
		OwnedRooms: []string{"r1", "r2"},
	})

	_, err := ledger.CreateRoom(ctx, "sa", "Another")
	assert.NoError(t, err)
}

func TestCreateRoomAccountMissing(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.CreateRoom(context.Background(), "ghost", "Room")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSetActiveRoomSingleActive(t *testing.T) {
	ledger, st, _ := newTestLedger(t)
	ctx := context.Background()

	seedAccount(t, st, types.Account{Id: "a1", Name: "Ann", Plan: types.PlanRooms5, RoomQuota: 5})

	first, err := ledger.CreateRoom(ctx, "a1", "First")
	require.NoError(t, err)
	second, err := ledger.CreateRoom(ctx, "a1", "Second")
	require.NoError(t, err)

	require.NoError(t, ledger.SetActiveRoom(ctx, "a1", first.Id, true, false))

	acct, err := ledger.loadAccount(ctx, "a1")
	require.NoError(t, err)

	active, ok := acct.ActiveRoom()
	require.True(t, ok)
	assert.Equal(t, first.Id, active)
	assert.False(t, acct.RoomAccess[second.Id].IsActive)
}

func TestSetActiveRoomUpgradesLegacyEntries(t *testing.T) {
	ledger, st, _ := newTestLedger(t)
	ctx := context.Background()

	seedAccount(t, st, types.Account{Id: "a1", Name: "Ann"})
	require.NoError(t, st.Set(ctx, store.RoomPath("r1"), types.Room{Id: "r1", OwnerId: "a1"}))
	require.NoError(t, st.Set(ctx, store.RoomPath("r2"), types.Room{Id: "r2", OwnerId: "a1"}))
	// legacy bare-boolean access entry
	require.NoError(t, st.Set(ctx, store.RoomAccessPath("a1", "r2"), true))

	require.NoError(t, ledger.SetActiveRoom(ctx, "a1", "r1", false, false))

	acct, err := ledger.loadAccount(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, acct.RoomAccess["r1"].IsActive)
	assert.False(t, acct.RoomAccess["r2"].IsActive)
}

func TestSetActiveRoomMissingRoom(t *testing.T) {
	ledger, st, _ := newTestLedger(t)

	seedAccount(t, st, types.Account{Id: "a1", Name: "Ann"})

	err := ledger.SetActiveRoom(context.Background(), "a1", "ghost", false, false)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestDeleteRoomRemovesMemberAccess(t *testing.T) {
	ledger, st, _ := newTestLedger(t)
	ctx := context.Background()

	seedAccount(t, st, types.Account{Id: "owner", Name: "Ann", Plan: types.PlanRooms1, RoomQuota: 1})
	room, err := ledger.CreateRoom(ctx, "owner", "Room")
	require.NoError(t, err)

	// a second member joined via code
	seedAccount(t, st, types.Account{Id: "member", Name: "Bob"})
	require.NoError(t, st.Set(ctx, store.RoomMemberPath(room.Id, "member"), types.RoomMember{Id: "member", Name: "Bob"}))
	require.NoError(t, st.Set(ctx, store.RoomAccessPath("member", room.Id), types.RoomAccess{IsActive: true}))

	require.NoError(t, ledger.DeleteRoom(ctx, room.Id))

	_, err = ledger.GetRoom(ctx, room.Id)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = st.Get(ctx, store.RoomAccessPath("member", room.Id))
	assert.ErrorIs(t, err, store.ErrPathNotFound)
	_, err = st.Get(ctx, store.RoomAccessPath("owner", room.Id))
	assert.ErrorIs(t, err, store.ErrPathNotFound)
	_, err = st.Get(ctx, store.RoomMemberPath(room.Id, "member"))
	assert.ErrorIs(t, err, store.ErrPathNotFound)
}

func TestRemoveOwnedRoom(t *testing.T) {
	ledger, st, _ := newTestLedger(t)
	ctx := context.Background()

	seedAccount(t, st, types.Account{Id: "a1", Name: "Ann", OwnedRooms: []string{"r1", "r2"}})

	require.NoError(t, ledger.RemoveOwnedRoom(ctx, "a1", "r1"))

	acct, err := ledger.loadAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, acct.OwnedRooms)
}
