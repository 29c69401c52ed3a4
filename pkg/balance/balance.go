// Package balance abstracts the account balance store manipulated by the
// token ledger. Every implementation must make Debit atomic under concurrent
// callers: two simultaneous reservations against the same account can never
// over-spend a shared balance.
package balance

import (
	"context"
	"errors"
)

// ErrInsufficientBalance indicates the combined renewable + permanent balance
// cannot cover the requested debit. Nothing is charged.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Balance is an account's funds, in whole billing credits. Renewable credits
// are spent before permanent ones.
type Balance struct {
	Renewable int64 `json:"renewable"`
	Permanent int64 `json:"permanent"`
}

// Total returns the combined spendable credits.
func (b Balance) Total() int64 {
	return b.Renewable + b.Permanent
}

// Store is the balance store contract.
type Store interface {
	// Balance returns the account's current balance.
	Balance(ctx context.Context, accountID string) (Balance, error)

	// Debit atomically withdraws amount credits, preferring renewable
	// balance before permanent balance. It returns how much was taken from
	// each pool, or ErrInsufficientBalance leaving the account untouched.
	Debit(ctx context.Context, accountID string, amount int64) (renewable, permanent int64, err error)

	// Credit adds amount credits to the account's renewable pool. Refunds
	// always restore renewable balance.
	Credit(ctx context.Context, accountID string, amount int64) error
}
