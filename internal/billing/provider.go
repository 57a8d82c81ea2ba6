package billing

import (
	"context"
	"errors"

	"github.com/oitbase/roomledger/internal/types"
)

// ErrEntitlementLookup marks failures talking to the billing provider.
var ErrEntitlementLookup = errors.New("entitlement lookup failure")

// Package is a purchasable subscription tier.
type Package struct {
	Plan        types.Plan `json:"plan"`
	DisplayName string     `json:"displayName"`
}

// EntitlementProvider is the billing backend contract: named entitlements
// with active/inactive state, purchasable packages, purchases and restore.
// Each mutating call returns the resulting active entitlement set.
type EntitlementProvider interface {
	ActiveEntitlements(ctx context.Context, accountId string) ([]string, error)
	Packages(ctx context.Context) ([]Package, error)
	Purchase(ctx context.Context, accountId string, plan types.Plan) ([]string, error)
	RestorePurchases(ctx context.Context, accountId string) ([]string, error)
}

// entitlementPriority orders entitlement names from highest plan to
// lowest; the highest active one wins.
var entitlementPriority = []struct {
	name string
	plan types.Plan
}{
	{"rooms_5", types.PlanRooms5},
	{"rooms_4", types.PlanRooms4},
	{"rooms_3", types.PlanRooms3},
	{"rooms_2", types.PlanRooms2},
	{"rooms_1", types.PlanRooms1},
}

// PlanForEntitlements maps a set of active entitlement names to the
// highest-priority plan among them, or PlanNone.
func PlanForEntitlements(names []string) types.Plan {
	active := make(map[string]bool, len(names))
	for _, n := range names {
		active[n] = true
	}

	for _, e := range entitlementPriority {
		if active[e.name] {
			return e.plan
		}
	}
	return types.PlanNone
}

// DefaultPackages lists the standard purchasable tiers.
func DefaultPackages() []Package {
	return []Package{
		{Plan: types.PlanRooms1, DisplayName: "1 room"},
		{Plan: types.PlanRooms2, DisplayName: "2 rooms"},
		{Plan: types.PlanRooms3, DisplayName: "3 rooms"},
		{Plan: types.PlanRooms4, DisplayName: "4 rooms"},
		{Plan: types.PlanRooms5, DisplayName: "5 rooms"},
	}
}
