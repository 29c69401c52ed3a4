package balance

import (
	"context"
	"sync"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and
// single-process deployments.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]Balance
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{balances: make(map[string]Balance)}
}

// SetBalance seeds an account balance.
func (s *MemoryStore) SetBalance(accountID string, b Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[accountID] = b
}

// Balance implements Store.
func (s *MemoryStore) Balance(_ context.Context, accountID string) (Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balances[accountID], nil
}

// Debit implements Store. The read-check-write sequence runs under the lock,
// so it is atomic with respect to other callers.
func (s *MemoryStore) Debit(_ context.Context, accountID string, amount int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.balances[accountID]
	if current.Total() < amount {
		return 0, 0, ErrInsufficientBalance
	}

	renewable := min(amount, current.Renewable)
	permanent := amount - renewable

	current.Renewable -= renewable
	current.Permanent -= permanent
	s.balances[accountID] = current

	return renewable, permanent, nil
}

// Credit implements Store.
func (s *MemoryStore) Credit(_ context.Context, accountID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.balances[accountID]
	current.Renewable += amount
	s.balances[accountID] = current

	return nil
}
