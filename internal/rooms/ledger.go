package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/oitbase/roomledger/internal/events"
	"github.com/oitbase/roomledger/internal/stats"
	"github.com/oitbase/roomledger/internal/store"
	"github.com/oitbase/roomledger/internal/types"
	"github.com/teris-io/shortid"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidOrExpiredCode covers unknown codes, inactive demo codes
	// and invitations that are no longer redeemable.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")

	// ErrAlreadyRedeemed is a consumed invitation; it matches
	// ErrInvalidOrExpiredCode under errors.Is.
	ErrAlreadyRedeemed = fmt.Errorf("already redeemed: %w", ErrInvalidOrExpiredCode)
)

// Ledger maintains per-account room access records and per-room member
// lists. Every mutation that touches both sides goes through a single
// atomic multi-path update.
type Ledger struct {
	store store.Store
	bus   *events.Bus
	stats stats.StatsProvider
	log   *log.Logger
}

func NewLedger(s store.Store, bus *events.Bus, sp stats.StatsProvider, logger *log.Logger) *Ledger {
	return &Ledger{
		store: s,
		bus:   bus,
		stats: sp,
		log:   logger,
	}
}

// GetRoom loads room metadata.
func (l *Ledger) GetRoom(ctx context.Context, roomId string) (types.Room, error) {
	raw, err := l.store.Get(ctx, store.RoomPath(roomId))
	if err != nil {
		if errors.Is(err, store.ErrPathNotFound) {
			return types.Room{}, fmt.Errorf("room %q: %w", roomId, ErrRoomNotFound)
		}
		return types.Room{}, fmt.Errorf("read room: %w", err)
	}

	var room types.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return types.Room{}, fmt.Errorf("decode room %q: %w", roomId, err)
	}
	return room, nil
}

// Members returns the room's member list keyed by account id.
func (l *Ledger) Members(ctx context.Context, roomId string) (map[string]types.RoomMember, error) {
	children, err := l.store.List(ctx, store.RoomMembersPrefix(roomId))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	members := make(map[string]types.RoomMember, len(children))
	for accountId, raw := range children {
		var m types.RoomMember
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode member %q: %w", accountId, err)
		}
		members[accountId] = m
	}
	return members, nil
}

// CreateRoom creates a workspace owned by the account, enrolls the owner
// as its active admin member and records ownership, all in one atomic
// update. Creation is rejected when the account is at its room quota.
func (l *Ledger) CreateRoom(ctx context.Context, accountId, name string) (types.Room, error) {
	acct, err := l.loadAccount(ctx, accountId)
	if err != nil {
		return types.Room{}, err
	}

	quota := acct.RoomQuota
	if acct.SuperAdmin {
		quota = types.SuperAdminQuota
	}
	if len(acct.OwnedRooms) >= quota {
		return types.Room{}, &types.QuotaError{OwnedRooms: len(acct.OwnedRooms) + 1, Quota: quota}
	}

	roomId, err := shortid.Generate()
	if err != nil {
		return types.Room{}, fmt.Errorf("generate room id: %w", err)
	}

	now := time.Now().UTC()
	room := types.Room{
		Id:        roomId,
		Name:      name,
		OwnerId:   accountId,
		CreatedAt: now,
	}

	doc := acct
	doc.RoomAccess = nil
	doc.OwnedRooms = append(append([]string(nil), acct.OwnedRooms...), roomId)
	doc.UpdatedAt = now

	updates := map[string]any{
		store.RoomPath(roomId):                  room,
		store.UserPath(accountId):               doc,
		store.RoomMemberPath(roomId, accountId): types.RoomMember{Id: accountId, Name: acct.Name, IsAdmin: true, JoinedAt: now},
	}
	addAccessUpdates(updates, acct, roomId, types.RoomAccess{
		JoinedAt: now,
		IsActive: true,
		IsAdmin:  true,
	})

	if err := l.store.Update(ctx, updates); err != nil {
		return types.Room{}, fmt.Errorf("create room: %w", err)
	}

	l.stats.Incr(stats.RoomsCreated)
	l.bus.Publish(events.RoomJoined{AccountId: accountId, RoomId: roomId, IsAdmin: true})
	return room, nil
}

// SetActiveRoom marks the target room active for the account and every
// other access entry inactive, and refreshes the room's member record.
// After the update commits, at most one entry is active.
func (l *Ledger) SetActiveRoom(ctx context.Context, accountId, roomId string, isAdmin, viaSuperAdmin bool) error {
	if _, err := l.GetRoom(ctx, roomId); err != nil {
		return err
	}

	acct, err := l.loadAccount(ctx, accountId)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	updates := map[string]any{
		store.RoomMemberPath(roomId, accountId): types.RoomMember{
			Id:       accountId,
			Name:     acct.Name,
			IsAdmin:  isAdmin,
			JoinedAt: now,
		},
	}
	addAccessUpdates(updates, acct, roomId, types.RoomAccess{
		JoinedAt:      now,
		IsActive:      true,
		IsAdmin:       isAdmin,
		ViaSuperAdmin: viaSuperAdmin,
	})

	if err := l.store.Update(ctx, updates); err != nil {
		return fmt.Errorf("set active room: %w", err)
	}
	return nil
}

// DeleteRoom removes the room subtree and every member's access entry for
// it in one atomic update. Owned-rooms bookkeeping on the owner's account
// record is the caller's concern.
func (l *Ledger) DeleteRoom(ctx context.Context, roomId string) error {
	members, err := l.Members(ctx, roomId)
	if err != nil {
		return err
	}

	updates := map[string]any{
		store.RoomPath(roomId):     nil,
		store.DemoCodePath(roomId): nil,
	}
	for accountId := range members {
		updates[store.RoomAccessPath(accountId, roomId)] = nil
	}

	if err := l.store.Update(ctx, updates); err != nil {
		return fmt.Errorf("delete room %q: %w", roomId, err)
	}

	l.stats.Incr(stats.RoomsDeleted)
	return nil
}

// RemoveOwnedRoom drops roomId from the account's owned-rooms list.
func (l *Ledger) RemoveOwnedRoom(ctx context.Context, accountId, roomId string) error {
	acct, err := l.loadAccount(ctx, accountId)
	if err != nil {
		return err
	}

	owned := make([]string, 0, len(acct.OwnedRooms))
	for _, id := range acct.OwnedRooms {
		if id != roomId {
			owned = append(owned, id)
		}
	}

	doc := acct
	doc.RoomAccess = nil
	doc.OwnedRooms = owned
	doc.UpdatedAt = time.Now().UTC()
	return l.store.Set(ctx, store.UserPath(accountId), doc)
}

// addAccessUpdates normalizes every existing access entry to inactive
// (upgrading legacy bare-boolean entries to full records) and writes the
// target entry as active.
func addAccessUpdates(updates map[string]any, acct types.Account, roomId string, active types.RoomAccess) {
	for existing, access := range acct.RoomAccess {
		if existing == roomId {
			continue
		}
		access.IsActive = false
		updates[store.RoomAccessPath(acct.Id, existing)] = access
	}
	updates[store.RoomAccessPath(acct.Id, roomId)] = active
}

func (l *Ledger) loadAccount(ctx context.Context, accountId string) (types.Account, error) {
	raw, err := l.store.Get(ctx, store.UserPath(accountId))
	if err != nil {
		if errors.Is(err, store.ErrPathNotFound) {
			return types.Account{}, fmt.Errorf("account %q: %w", accountId, ErrAccountNotFound)
		}
		return types.Account{}, fmt.Errorf("read account: %w", err)
	}

	var acct types.Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return types.Account{}, fmt.Errorf("decode account %q: %w", accountId, err)
	}

	children, err := l.store.List(ctx, store.RoomAccessPrefix(accountId))
	if err != nil {
		return types.Account{}, fmt.Errorf("list room access: %w", err)
	}

	if len(children) > 0 {
		acct.RoomAccess = make(map[string]types.RoomAccess, len(children))
		for id, rawAccess := range children {
			var access types.RoomAccess
			if err := json.Unmarshal(rawAccess, &access); err != nil {
				return types.Account{}, fmt.Errorf("decode access for room %q: %w", id, err)
			}
			acct.RoomAccess[id] = access
		}
	}

	return acct, nil
}
