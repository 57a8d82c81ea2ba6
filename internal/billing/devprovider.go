package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oitbase/roomledger/internal/store"
	"github.com/oitbase/roomledger/internal/types"
)

const entitlementsPrefix = "billingEntitlements"

// StoreProvider is a self-contained EntitlementProvider for development
// and single-node deployments: purchased entitlements are persisted in
// the store under their own namespace. Hosted billing backends implement
// the same interface against their own APIs.
type StoreProvider struct {
	store store.Store
}

func NewStoreProvider(s store.Store) *StoreProvider {
	return &StoreProvider{store: s}
}

func entitlementsPath(accountId string) string {
	return entitlementsPrefix + "/" + accountId
}

func (p *StoreProvider) ActiveEntitlements(ctx context.Context, accountId string) ([]string, error) {
	raw, err := p.store.Get(ctx, entitlementsPath(accountId))
	if err != nil {
		if errors.Is(err, store.ErrPathNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrEntitlementLookup, err)
	}

	var entitlements []string
	if err := json.Unmarshal(raw, &entitlements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntitlementLookup, err)
	}
	return entitlements, nil
}

func (p *StoreProvider) Packages(_ context.Context) ([]Package, error) {
	return DefaultPackages(), nil
}

func (p *StoreProvider) Purchase(ctx context.Context, accountId string, plan types.Plan) ([]string, error) {
	entitlements := []string{string(plan)}
	if err := p.store.Set(ctx, entitlementsPath(accountId), entitlements); err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}
	return entitlements, nil
}

func (p *StoreProvider) RestorePurchases(ctx context.Context, accountId string) ([]string, error) {
	return p.ActiveEntitlements(ctx, accountId)
}

// CancelAll drops every entitlement for the account. Used by the dev
// billing endpoints to simulate a lapse.
func (p *StoreProvider) CancelAll(ctx context.Context, accountId string) error {
	return p.store.Delete(ctx, entitlementsPath(accountId))
}
