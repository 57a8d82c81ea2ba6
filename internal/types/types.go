package types

import (
	"encoding/json"
	"time"
)

// Account is the application-level user identity, distinct from the
// external sign-in identity it may be mapped to.
type Account struct {
	Id               string            `json:"id"`
	Name             string            `json:"name"`
	Email            string            `json:"email,omitempty"`
	ExternalId       string            `json:"externalId,omitempty"`
	Plan             Plan              `json:"plan"`
	RoomQuota        int               `json:"roomQuota"`
	SuperAdmin       bool              `json:"superAdmin,omitempty"`
	OwnedRooms       []string          `json:"ownedRooms,omitempty"`
	TransferRequests map[string]string `json:"transferRequests,omitempty"`
	GracePeriodEnd   *time.Time        `json:"gracePeriodEnd,omitempty"`
	InGracePeriod    bool              `json:"isInGracePeriod,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`

	// RoomSettings is opaque per-room client state, stored pass-through.
	RoomSettings map[string]json.RawMessage `json:"roomSettings,omitempty"`

	// RoomAccess entries are persisted as child records of the account,
	// not as part of the account document itself.
	RoomAccess map[string]RoomAccess `json:"roomAccess,omitempty"`
}

// OwnsRoom reports whether roomId is in the account's owned-rooms list.
func (a Account) OwnsRoom(roomId string) bool {
	for _, id := range a.OwnedRooms {
		if id == roomId {
			return true
		}
	}
	return false
}

// ActiveRoom returns the id of the room currently marked active, if any.
func (a Account) ActiveRoom() (string, bool) {
	for id, access := range a.RoomAccess {
		if access.IsActive {
			return id, true
		}
	}
	return "", false
}

// RoomAccess records one account's access to one room. At most one entry
// per account may have IsActive set.
type RoomAccess struct {
	JoinedAt      time.Time `json:"joinedAt"`
	IsActive      bool      `json:"isActive"`
	IsAdmin       bool      `json:"isAdmin"`
	ViaSuperAdmin bool      `json:"viaSuperAdmin,omitempty"`
}

// UnmarshalJSON accepts the legacy encoding where an access entry was
// persisted as a bare boolean active flag. Such entries are normalized to
// a full record the next time they are written.
func (ra *RoomAccess) UnmarshalJSON(b []byte) error {
	var active bool
	if err := json.Unmarshal(b, &active); err == nil {
		*ra = RoomAccess{IsActive: active}
		return nil
	}

	type roomAccess RoomAccess
	var v roomAccess
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	*ra = RoomAccess(v)
	return nil
}

// Room is a shared workspace scoping all data for one tracked participant.
type Room struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerId   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoomMember is the per-room record of one member account.
type RoomMember struct {
	Id       string    `json:"id"`
	Name     string    `json:"name"`
	IsAdmin  bool      `json:"isAdmin"`
	JoinedAt time.Time `json:"joinedAt"`
}

type InvitationStatus string

const (
	InvitationCreated  InvitationStatus = "created"
	InvitationSent     InvitationStatus = "sent"
	InvitationInvited  InvitationStatus = "invited"
	InvitationAccepted InvitationStatus = "accepted"
)

// Redeemable reports whether an invitation in this status may still be
// consumed. Accepted is terminal; a consumed code cannot be redeemed again.
func (s InvitationStatus) Redeemable() bool {
	switch s {
	case InvitationCreated, InvitationSent, InvitationInvited:
		return true
	}
	return false
}

// Invitation is a one-time join token for a room.
type Invitation struct {
	Code       string           `json:"code"`
	RoomId     string           `json:"roomId"`
	Status     InvitationStatus `json:"status"`
	IsAdmin    bool             `json:"isAdmin"`
	Phone      string           `json:"phone,omitempty"`
	RedeemedBy string           `json:"redeemedBy,omitempty"`
	RedeemedAt *time.Time       `json:"redeemedAt,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// DemoCode is a reusable, admin-granting join token attached to a room.
// Redemptions increment the usage counter and never consume the code.
type DemoCode struct {
	Code       string    `json:"code"`
	Active     bool      `json:"active"`
	UsageCount int       `json:"usageCount"`
	CreatedAt  time.Time `json:"createdAt"`
}
