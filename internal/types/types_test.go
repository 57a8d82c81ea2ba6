package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanQuota(t *testing.T) {
	tcases := []struct {
		plan  Plan
		quota int
	}{
		{PlanNone, 0},
		{PlanRooms1, 1},
		{PlanRooms2, 2},
		{PlanRooms3, 3},
		{PlanRooms4, 4},
		{PlanRooms5, 5},
		{PlanSuperAdmin, SuperAdminQuota},
	}

	for _, tc := range tcases {
		t.Run(string(tc.plan), func(t *testing.T) {
			assert.Equal(t, tc.quota, tc.plan.Quota())
			assert.True(t, tc.plan.Valid())
		})
	}

	assert.Equal(t, 0, Plan("bogus").Quota())
	assert.False(t, Plan("bogus").Valid())
}

func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan("rooms_3")
	assert.NoError(t, err)
	assert.Equal(t, PlanRooms3, plan)

	_, err = ParsePlan("rooms_9")
	assert.Error(t, err)
}

func TestRoomAccessLegacyBool(t *testing.T) {
	tcases := []struct {
		name string
		raw  string
		want RoomAccess
	}{
		{
			name: "legacy true",
			raw:  `true`,
			want: RoomAccess{IsActive: true},
		},
		{
			name: "legacy false",
			raw:  `false`,
			want: RoomAccess{},
		},
		{
			name: "full record",
			raw:  `{"isActive":true,"isAdmin":true}`,
			want: RoomAccess{IsActive: true, IsAdmin: true},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var ra RoomAccess
			assert.NoError(t, json.Unmarshal([]byte(tc.raw), &ra))
			assert.Equal(t, tc.want, ra)
		})
	}

	var ra RoomAccess
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &ra))
}

func TestAccountActiveRoom(t *testing.T) {
	acct := Account{
		RoomAccess: map[string]RoomAccess{
			"r1": {IsActive: false},
			"r2": {IsActive: true},
		},
	}

	id, ok := acct.ActiveRoom()
	assert.True(t, ok)
	assert.Equal(t, "r2", id)

	_, ok = Account{}.ActiveRoom()
	assert.False(t, ok)
}

func TestAccountOwnsRoom(t *testing.T) {
	acct := Account{OwnedRooms: []string{"r1", "r2"}}
	assert.True(t, acct.OwnsRoom("r1"))
	assert.False(t, acct.OwnsRoom("r3"))
}

func TestInvitationStatusRedeemable(t *testing.T) {
	assert.True(t, InvitationCreated.Redeemable())
	assert.True(t, InvitationSent.Redeemable())
	assert.True(t, InvitationInvited.Redeemable())
	assert.False(t, InvitationAccepted.Redeemable())
}

func TestQuotaErrorMessage(t *testing.T) {
	err := &QuotaError{OwnedRooms: 3, Quota: 1}
	assert.Contains(t, err.Error(), "remove 2 room(s) first")
}
