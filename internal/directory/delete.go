package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/oitbase/roomledger/internal/identity"
	"github.com/oitbase/roomledger/internal/store"
)

// DeleteAccount removes everything the account reaches, app data first and
// external identity last:
//
//  1. owned rooms are deleted concurrently (each deletion also removes the
//     room from every member's access map), awaited on a barrier
//  2. memberships in non-owned rooms drop this account's member entry
//  3. the subject mapping and the account record are removed atomically
//  4. the external identity is deleted; a failure here is reported but the
//     already-deleted app data is not restored
func (d *Directory) DeleteAccount(ctx context.Context, accountId string) error {
	acct, err := d.LoadAccount(ctx, accountId)
	if err != nil {
		return err
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		delErrs []error
	)
	for _, roomId := range acct.OwnedRooms {
		wg.Add(1)
		go func(roomId string) {
			defer wg.Done()
			if err := d.rooms.DeleteRoom(ctx, roomId); err != nil {
				mu.Lock()
				delErrs = append(delErrs, fmt.Errorf("delete room %q: %w", roomId, err))
				mu.Unlock()
			}
		}(roomId)
	}
	wg.Wait()

	if len(delErrs) > 0 {
		return fmt.Errorf("%w: %d of %d owned rooms not deleted: %v",
			ErrPartialWrite, len(delErrs), len(acct.OwnedRooms), delErrs[0])
	}

	for roomId := range acct.RoomAccess {
		if acct.OwnsRoom(roomId) {
			continue
		}
		if err := d.store.Delete(ctx, store.RoomMemberPath(roomId, accountId)); err != nil {
			return fmt.Errorf("%w: remove membership in room %q: %v", ErrPartialWrite, roomId, err)
		}
	}

	updates := map[string]any{
		store.UserPath(accountId): nil,
	}
	if acct.ExternalId != "" {
		updates[store.AuthMappingPath(store.EncodeKey(acct.ExternalId))] = nil
	}
	if err := d.store.Update(ctx, updates); err != nil {
		return fmt.Errorf("delete account record: %w", err)
	}

	if acct.ExternalId != "" {
		if err := d.ids.DeleteIdentity(ctx, acct.ExternalId); err != nil {
			// app data is gone; the orphaned identity is reported, not
			// rolled back
			d.log.Printf("account %q deleted but identity removal failed: %v", accountId, err)
			return fmt.Errorf("%w: %v", identity.ErrIdentityFailure, err)
		}
	}

	return nil
}
