package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/loomworks/loom/pkg/balance"
)

// MockBalanceStore is a mock implementation of balance.Store.
type MockBalanceStore struct {
	mock.Mock
}

func (m *MockBalanceStore) Balance(ctx context.Context, accountID string) (balance.Balance, error) {
	args := m.Called(ctx, accountID)

	return args.Get(0).(balance.Balance), args.Error(1)
}

func (m *MockBalanceStore) Debit(ctx context.Context, accountID string, amount int64) (int64, int64, error) {
	args := m.Called(ctx, accountID, amount)

	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockBalanceStore) Credit(ctx context.Context, accountID string, amount int64) error {
	args := m.Called(ctx, accountID, amount)

	return args.Error(0)
}
