package billing

import (
	"context"

	"github.com/oitbase/roomledger/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockEntitlementProvider struct {
	mock.Mock
}

func (m *MockEntitlementProvider) ActiveEntitlements(ctx context.Context, accountId string) ([]string, error) {
	args := m.Called(ctx, accountId)
	if ents, ok := args.Get(0).([]string); ok {
		return ents, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEntitlementProvider) Packages(ctx context.Context) ([]Package, error) {
	args := m.Called(ctx)
	if pkgs, ok := args.Get(0).([]Package); ok {
		return pkgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEntitlementProvider) Purchase(ctx context.Context, accountId string, plan types.Plan) ([]string, error) {
	args := m.Called(ctx, accountId, plan)
	if ents, ok := args.Get(0).([]string); ok {
		return ents, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEntitlementProvider) RestorePurchases(ctx context.Context, accountId string) ([]string, error) {
	args := m.Called(ctx, accountId)
	if ents, ok := args.Get(0).([]string); ok {
		return ents, args.Error(1)
	}
	return nil, args.Error(1)
}
