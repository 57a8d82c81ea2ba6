package rooms

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oitbase/roomledger/internal/store"
	"github.com/oitbase/roomledger/internal/types"
	"github.com/teris-io/shortid"
)

// demo codes avoid ambiguous characters (0/O, 1/I)
const demoCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const demoCodeLength = 6

func generateDemoCode() (string, error) {
	buf := make([]byte, demoCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = demoCodeAlphabet[int(b)%len(demoCodeAlphabet)]
	}
	return string(buf), nil
}

// CreateInvitation issues a one-time join code for the room. Invitation
// codes are matched case-sensitively at redemption.
func (l *Ledger) CreateInvitation(ctx context.Context, roomId string, isAdmin bool, phone string) (types.Invitation, error) {
	if _, err := l.GetRoom(ctx, roomId); err != nil {
		return types.Invitation{}, err
	}

	code, err := shortid.Generate()
	if err != nil {
		return types.Invitation{}, fmt.Errorf("generate code: %w", err)
	}

	inv := types.Invitation{
		Code:      code,
		RoomId:    roomId,
		Status:    types.InvitationCreated,
		IsAdmin:   isAdmin,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}

	if err := l.store.Set(ctx, store.InvitationPath(code), inv); err != nil {
		return types.Invitation{}, fmt.Errorf("write invitation: %w", err)
	}
	return inv, nil
}

// MarkInvitationSent advances a created invitation to sent. Terminal
// invitations are left untouched.
func (l *Ledger) MarkInvitationSent(ctx context.Context, code string) error {
	inv, err := l.getInvitation(ctx, code)
	if err != nil {
		return err
	}
	if !inv.Status.Redeemable() {
		return ErrAlreadyRedeemed
	}

	inv.Status = types.InvitationSent
	return l.store.Set(ctx, store.InvitationPath(code), inv)
}

// CreateDemoCode attaches a fresh reusable demo code to the room,
// replacing any previous one.
func (l *Ledger) CreateDemoCode(ctx context.Context, roomId string) (types.DemoCode, error) {
	if _, err := l.GetRoom(ctx, roomId); err != nil {
		return types.DemoCode{}, err
	}

	code, err := generateDemoCode()
	if err != nil {
		return types.DemoCode{}, err
	}

	dc := types.DemoCode{
		Code:      code,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	if err := l.store.Set(ctx, store.DemoCodePath(roomId), dc); err != nil {
		return types.DemoCode{}, fmt.Errorf("write demo code: %w", err)
	}
	return dc, nil
}

// SetDemoCodeActive toggles the room's demo code without resetting its
// usage counter.
func (l *Ledger) SetDemoCodeActive(ctx context.Context, roomId string, active bool) error {
	raw, err := l.store.Get(ctx, store.DemoCodePath(roomId))
	if err != nil {
		if errors.Is(err, store.ErrPathNotFound) {
			return fmt.Errorf("demo code for room %q: %w", roomId, ErrInvalidOrExpiredCode)
		}
		return fmt.Errorf("read demo code: %w", err)
	}

	var dc types.DemoCode
	if err := json.Unmarshal(raw, &dc); err != nil {
		return fmt.Errorf("decode demo code: %w", err)
	}

	dc.Active = active
	return l.store.Set(ctx, store.DemoCodePath(roomId), dc)
}

func (l *Ledger) getInvitation(ctx context.Context, code string) (types.Invitation, error) {
	raw, err := l.store.Get(ctx, store.InvitationPath(code))
	if err != nil {
		if errors.Is(err, store.ErrPathNotFound) {
			return types.Invitation{}, ErrInvalidOrExpiredCode
		}
		return types.Invitation{}, fmt.Errorf("read invitation: %w", err)
	}

	var inv types.Invitation
	if err := json.Unmarshal(raw, &inv); err != nil {
		return types.Invitation{}, fmt.Errorf("decode invitation: %w", err)
	}
	return inv, nil
}
