package types

import "fmt"

// Plan is the closed set of subscription tiers. Each plan implies a fixed
// room quota; the quota is never stored independently of the plan.
type Plan string

const (
	PlanNone   Plan = "none"
	PlanRooms1 Plan = "rooms_1"
	PlanRooms2 Plan = "rooms_2"
	PlanRooms3 Plan = "rooms_3"
	PlanRooms4 Plan = "rooms_4"
	PlanRooms5 Plan = "rooms_5"

	// PlanSuperAdmin is the unlimited tier granted out-of-band.
	PlanSuperAdmin Plan = "super_admin"
)

// SuperAdminQuota is the sentinel quota for the unlimited tier.
const SuperAdminQuota = 1000

var planQuotas = map[Plan]int{
	PlanNone:       0,
	PlanRooms1:     1,
	PlanRooms2:     2,
	PlanRooms3:     3,
	PlanRooms4:     4,
	PlanRooms5:     5,
	PlanSuperAdmin: SuperAdminQuota,
}

// Quota returns the room quota implied by the plan. Unknown plan tags map
// to zero.
func (p Plan) Quota() int {
	return planQuotas[p]
}

// Valid reports whether p is a known plan tag.
func (p Plan) Valid() bool {
	_, ok := planQuotas[p]
	return ok
}

// ParsePlan converts a plan tag to a Plan, rejecting unknown tags.
func ParsePlan(s string) (Plan, error) {
	p := Plan(s)
	if !p.Valid() {
		return PlanNone, fmt.Errorf("unknown plan %q", s)
	}
	return p, nil
}
