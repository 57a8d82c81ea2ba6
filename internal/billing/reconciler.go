package billing

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oitbase/roomledger/internal/events"
	"github.com/oitbase/roomledger/internal/stats"
	"github.com/oitbase/roomledger/internal/types"
)

const (
	// DefaultGracePeriod preserves owned rooms after a lapse pending
	// reactivation.
	DefaultGracePeriod = 16 * 24 * time.Hour

	// DefaultRecheckDelay is the single retry delay when the entitlement
	// lookup fails at grace expiry.
	DefaultRecheckDelay = 30 * time.Second
)

// AccountRepository is the account-record handle the reconciler operates
// through.
type AccountRepository interface {
	LoadAccount(ctx context.Context, accountId string) (types.Account, error)
	SaveAccount(ctx context.Context, acct types.Account) error
	ListAccountIds(ctx context.Context) ([]string, error)
}

// RoomDeleter removes a room and every member's access entry for it.
type RoomDeleter interface {
	DeleteRoom(ctx context.Context, roomId string) error
}

// Reconciler keeps each account's persisted plan in step with the billing
// provider's entitlements, runs grace periods on lapse and cascades room
// deletion when a grace period expires without reactivation.
//
// States per account: none, active(plan), grace(plan, end). Grace timers
// are in-process only; RescheduleAll re-derives them from the persisted
// gracePeriodEnd on every cold start.
type Reconciler struct {
	accounts AccountRepository
	rooms    RoomDeleter
	provider EntitlementProvider
	bus      *events.Bus
	clock    Clock
	stats    stats.StatsProvider
	log      *log.Logger

	GracePeriod  time.Duration
	RecheckDelay time.Duration

	mu     sync.Mutex
	timers map[string]func()
}

func NewReconciler(accounts AccountRepository, rooms RoomDeleter, provider EntitlementProvider,
	bus *events.Bus, clock Clock, sp stats.StatsProvider, logger *log.Logger) *Reconciler {
	return &Reconciler{
		accounts:     accounts,
		rooms:        rooms,
		provider:     provider,
		bus:          bus,
		clock:        clock,
		stats:        sp,
		log:          logger,
		GracePeriod:  DefaultGracePeriod,
		RecheckDelay: DefaultRecheckDelay,
		timers:       make(map[string]func()),
	}
}

// HandleEntitlementsChanged is the push-delegate entry point: it maps the
// account's current active entitlements to a plan and persists the
// transition. An empty set starts a grace period when the account was
// previously active; a non-empty set during grace reactivates.
func (r *Reconciler) HandleEntitlementsChanged(ctx context.Context, accountId string, entitlements []string) error {
	acct, err := r.accounts.LoadAccount(ctx, accountId)
	if err != nil {
		return err
	}

	plan := PlanForEntitlements(entitlements)
	if plan != types.PlanNone {
		return r.activate(ctx, acct, plan)
	}

	if acct.InGracePeriod {
		// lapse already recorded; the running grace period is not extended
		return nil
	}
	if acct.Plan == types.PlanNone {
		return nil
	}

	end := r.clock.Now().Add(r.GracePeriod)
	acct.InGracePeriod = true
	acct.GracePeriodEnd = &end
	if err := r.accounts.SaveAccount(ctx, acct); err != nil {
		return fmt.Errorf("persist grace period: %w", err)
	}

	r.scheduleExpiry(accountId, end)
	r.bus.Publish(events.SubscriptionCancelled{AccountId: accountId, GracePeriodEnd: end})
	r.log.Printf("account %q entered grace period until %s", accountId, end.Format(time.RFC3339))
	return nil
}

func (r *Reconciler) activate(ctx context.Context, acct types.Account, plan types.Plan) error {
	wasGrace := acct.InGracePeriod

	acct.Plan = plan
	acct.RoomQuota = plan.Quota()
	acct.InGracePeriod = false
	acct.GracePeriodEnd = nil
	if err := r.accounts.SaveAccount(ctx, acct); err != nil {
		return fmt.Errorf("persist plan: %w", err)
	}

	r.cancelTimer(acct.Id)

	if wasGrace {
		r.bus.Publish(events.SubscriptionReactivated{AccountId: acct.Id, Plan: plan})
	} else {
		r.bus.Publish(events.SubscriptionUpdated{AccountId: acct.Id, Plan: plan, RoomQuota: plan.Quota()})
	}
	return nil
}

// Purchase buys a plan for the account. A downgrade below the current
// owned-room count is rejected before any purchase side effect.
func (r *Reconciler) Purchase(ctx context.Context, accountId string, plan types.Plan) error {
	if !plan.Valid() || plan == types.PlanNone || plan == types.PlanSuperAdmin {
		return fmt.Errorf("plan %q is not purchasable", plan)
	}

	acct, err := r.accounts.LoadAccount(ctx, accountId)
	if err != nil {
		return err
	}

	if len(acct.OwnedRooms) > plan.Quota() {
		return &types.QuotaError{OwnedRooms: len(acct.OwnedRooms), Quota: plan.Quota()}
	}

	entitlements, err := r.provider.Purchase(ctx, accountId, plan)
	if err != nil {
		return fmt.Errorf("purchase: %w", err)
	}

	return r.HandleEntitlementsChanged(ctx, accountId, entitlements)
}

// Restore re-syncs the account with the provider's restore-purchases call.
func (r *Reconciler) Restore(ctx context.Context, accountId string) error {
	entitlements, err := r.provider.RestorePurchases(ctx, accountId)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEntitlementLookup, err)
	}
	return r.HandleEntitlementsChanged(ctx, accountId, entitlements)
}

// CheckExpiry processes a due grace period. The entitlement status is
// re-verified first (retrying the lookup exactly once after RecheckDelay);
// only a confirmed-inactive account has its owned rooms deleted and its
// plan reset.
func (r *Reconciler) CheckExpiry(ctx context.Context, accountId string) error {
	acct, err := r.accounts.LoadAccount(ctx, accountId)
	if err != nil {
		return err
	}

	if !acct.InGracePeriod || acct.GracePeriodEnd == nil {
		return nil
	}
	if r.clock.Now().Before(*acct.GracePeriodEnd) {
		r.scheduleExpiry(accountId, *acct.GracePeriodEnd)
		return nil
	}

	entitlements, err := r.provider.ActiveEntitlements(ctx, accountId)
	if err != nil {
		r.clock.Sleep(r.RecheckDelay)
		entitlements, err = r.provider.ActiveEntitlements(ctx, accountId)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEntitlementLookup, err)
		}
	}

	if PlanForEntitlements(entitlements) != types.PlanNone {
		return r.activate(ctx, acct, PlanForEntitlements(entitlements))
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
			if err := r.rooms.DeleteRoom(ctx, roomId); err != nil {
				mu.Lock()
				delErrs = append(delErrs, fmt.Errorf("delete room %q: %w", roomId, err))
				mu.Unlock()
			}
		}(roomId)
	}
	wg.Wait()

	if len(delErrs) > 0 {
		// rooms that survived stay owned; the next check retries them
		return fmt.Errorf("grace expiry for %q: %d of %d rooms not deleted: %v",
			accountId, len(delErrs), len(acct.OwnedRooms), delErrs[0])
	}

	deleted := acct.OwnedRooms
	acct.Plan = types.PlanNone
	acct.RoomQuota = 0
	acct.OwnedRooms = nil
	acct.InGracePeriod = false
	acct.GracePeriodEnd = nil
	if err := r.accounts.SaveAccount(ctx, acct); err != nil {
		return fmt.Errorf("reset plan after expiry: %w", err)
	}

	r.cancelTimer(accountId)
	r.stats.Incr(stats.GraceExpiries)
	r.bus.Publish(events.RoomsDeletedAfterGracePeriod{AccountId: accountId, RoomIds: deleted})
	r.log.Printf("grace period expired for %q, deleted %d room(s)", accountId, len(deleted))
	return nil
}

// RescheduleAll re-derives grace timers from persisted state. Run on every
// cold start; already-due periods are processed immediately.
func (r *Reconciler) RescheduleAll(ctx context.Context) error {
	ids, err := r.accounts.ListAccountIds(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	for _, id := range ids {
		acct, err := r.accounts.LoadAccount(ctx, id)
		if err != nil {
			r.log.Printf("reschedule: skipping account %q: %v", id, err)
			continue
		}
		if acct.InGracePeriod && acct.GracePeriodEnd != nil {
			r.scheduleExpiry(id, *acct.GracePeriodEnd)
		}
	}
	return nil
}

// Stop cancels all in-process grace timers. Persisted state is untouched;
// the next start reschedules from it.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cancel := range r.timers {
		cancel()
		delete(r.timers, id)
	}
}

func (r *Reconciler) scheduleExpiry(accountId string, end time.Time) {
	d := end.Sub(r.clock.Now())
	if d < 0 {
		d = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.timers[accountId]; ok {
		cancel()
	}
	r.timers[accountId] = r.clock.AfterFunc(d, func() {
		if err := r.CheckExpiry(context.Background(), accountId); err != nil {
			r.log.Printf("grace expiry check for %q: %v", accountId, err)
		}
	})
}

func (r *Reconciler) cancelTimer(accountId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.timers[accountId]; ok {
		cancel()
		delete(r.timers, accountId)
	}
}
