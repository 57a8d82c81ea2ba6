package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oitbase/roomledger/internal/events"
	"github.com/oitbase/roomledger/internal/stats"
	"github.com/oitbase/roomledger/internal/store"
	"github.com/oitbase/roomledger/internal/types"
)

// Redemption reports the outcome of a successful code redemption.
type Redemption struct {
	Account types.Account
	RoomId  string
	IsAdmin bool
	Demo    bool
}

// resolvedCode is the target a join code was resolved to before any write.
type resolvedCode struct {
	roomId     string
	isAdmin    bool
	demo       bool
	invitation *types.Invitation
	demoCode   *types.DemoCode
}

// Redeem validates a join code and atomically enrolls the account in the
// target room. account may be nil for the name-only signup flow, in which
// case a fresh account record is created inside the same atomic update.
//
// Resolution order: exact-match invitation first, then active demo codes
// matched case-insensitively. A failed atomic update leaves all state
// unchanged.
func (l *Ledger) Redeem(ctx context.Context, code string, account *types.Account, signupName string) (Redemption, error) {
	resolved, err := l.resolveCode(ctx, code)
	if err != nil {
		return Redemption{}, err
	}

	// the room must exist before any write happens
	if _, err := l.GetRoom(ctx, resolved.roomId); err != nil {
		return Redemption{}, err
	}

	now := time.Now().UTC()

	var acct types.Account
	updates := make(map[string]any)
	if account != nil {
		acct = *account
	} else {
		if signupName == "" {
			return Redemption{}, fmt.Errorf("signup name required: %w", ErrAccountNotFound)
		}
		acct = types.Account{
			Id:        uuid.NewString(),
			Name:      signupName,
			Plan:      types.PlanNone,
			CreatedAt: now,
			UpdatedAt: now,
		}
		doc := acct
		doc.RoomAccess = nil
		updates[store.UserPath(acct.Id)] = doc
	}

	addAccessUpdates(updates, acct, resolved.roomId, types.RoomAccess{
		JoinedAt:      now,
		IsActive:      true,
		IsAdmin:       resolved.isAdmin,
		ViaSuperAdmin: resolved.demo,
	})
	updates[store.RoomMemberPath(resolved.roomId, acct.Id)] = types.RoomMember{
		Id:       acct.Id,
		Name:     acct.Name,
		IsAdmin:  resolved.isAdmin,
		JoinedAt: now,
	}

	if resolved.demo {
		dc := *resolved.demoCode
		dc.UsageCount++
		updates[store.DemoCodePath(resolved.roomId)] = dc
	} else {
		inv := *resolved.invitation
		inv.Status = types.InvitationAccepted
		inv.RedeemedBy = acct.Id
		inv.RedeemedAt = &now
		updates[store.InvitationPath(inv.Code)] = inv
	}

	if err := l.store.Update(ctx, updates); err != nil {
		return Redemption{}, fmt.Errorf("redeem %q: %w", code, err)
	}

	if resolved.demo {
		l.stats.Incr(stats.DemoRedemptions)
	} else {
		l.stats.Incr(stats.InvitesRedeemed)
	}
	l.bus.Publish(events.RoomJoined{AccountId: acct.Id, RoomId: resolved.roomId, IsAdmin: resolved.isAdmin})

	return Redemption{
		Account: acct,
		RoomId:  resolved.roomId,
		IsAdmin: resolved.isAdmin,
		Demo:    resolved.demo,
	}, nil
}

func (l *Ledger) resolveCode(ctx context.Context, code string) (resolvedCode, error) {
	inv, err := l.getInvitation(ctx, code)
	switch {
	case err == nil:
		if !inv.Status.Redeemable() {
			return resolvedCode{}, ErrAlreadyRedeemed
		}
		if !phoneAllowed(inv.Phone) {
			return resolvedCode{}, ErrInvalidOrExpiredCode
		}
		return resolvedCode{
			roomId:     inv.RoomId,
			isAdmin:    inv.IsAdmin,
			invitation: &inv,
		}, nil
	case errors.Is(err, ErrInvalidOrExpiredCode):
		// fall through to demo codes
	default:
		return resolvedCode{}, err
	}

	roomId, dc, err := l.findDemoCode(ctx, code)
	if err != nil {
		return resolvedCode{}, err
	}

	// demo redemptions always grant admin rights
	return resolvedCode{
		roomId:   roomId,
		isAdmin:  true,
		demo:     true,
		demoCode: dc,
	}, nil
}

// findDemoCode scans active demo codes for a case-insensitive match.
func (l *Ledger) findDemoCode(ctx context.Context, code string) (string, *types.DemoCode, error) {
	children, err := l.store.List(ctx, store.DemoCodesPrefix)
	if err != nil {
		return "", nil, fmt.Errorf("list demo codes: %w", err)
	}

	normalized := strings.ToUpper(code)
	for roomId, raw := range children {
		var dc types.DemoCode
		if err := json.Unmarshal(raw, &dc); err != nil {
			l.log.Printf("unparsable demo code for room %q: %v", roomId, err)
			continue
		}
		if dc.Active && strings.ToUpper(dc.Code) == normalized {
			return roomId, &dc, nil
		}
	}
	return "", nil, ErrInvalidOrExpiredCode
}

// phoneAllowed gates phone-constrained invitations: the constraint must be
// absent or all digits.
func phoneAllowed(phone string) bool {
	if phone == "" {
		return true
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
