package types

import "fmt"

// QuotaError rejects a plan change or room creation that would leave the
// account owning more rooms than its quota allows. No side effects are
// performed when it is returned.
type QuotaError struct {
	OwnedRooms int
	Quota      int
}

func (e *QuotaError) Error() string {
	over := e.OwnedRooms - e.Quota
	if over < 0 {
		over = 0
	}
	return fmt.Sprintf("room quota exceeded: %d rooms owned, quota is %d, remove %d room(s) first",
		e.OwnedRooms, e.Quota, over)
}
