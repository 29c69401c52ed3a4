package ledger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/balance"
	"github.com/loomworks/loom/pkg/models"
)

// unitPolicy makes one credit cover one token so reservation arithmetic is
// easy to follow: 16 chars of input -> 4 tokens -> ceil(4 * 2.5) = 10 credits.
var unitPolicy = CostPolicy{
	TokensPerCredit:  1,
	MinimumCharge:    1,
	OutputMultiplier: 1.5,
	SafetyFactor:     1.0,
}

const sixteenChars = "0123456789abcdef"

func newTestLedger(t *testing.T, initial balance.Balance) (*Ledger, *balance.MemoryStore) {
	t.Helper()

	store := balance.NewMemoryStore()
	store.SetBalance("acct", initial)

	costs := NewCostRegistry()
	costs.Register("test-model", unitPolicy)
	costs.RegisterFlat("image-model", 3)

	return NewLedger(store, costs, slog.Default()), store
}

func TestReserve_DebitsEstimate(t *testing.T) {
	l, store := newTestLedger(t, balance.Balance{Renewable: 4, Permanent: 10})

	txn, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.NoError(t, err)
	assert.Equal(t, int64(10), txn.PreCharge)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)

	// Renewable drained first, remainder from permanent.
	remaining, err := store.Balance(context.Background(), "acct")
	require.NoError(t, err)
	assert.Equal(t, balance.Balance{Renewable: 0, Permanent: 4}, remaining)
}

func TestReserve_InsufficientBalanceChargesNothing(t *testing.T) {
	l, store := newTestLedger(t, balance.Balance{Renewable: 4, Permanent: 5})

	_, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	remaining, err := store.Balance(context.Background(), "acct")
	require.NoError(t, err)
	assert.Equal(t, balance.Balance{Renewable: 4, Permanent: 5}, remaining)
}

func TestReserve_ExactBalanceBoundary(t *testing.T) {
	l, _ := newTestLedger(t, balance.Balance{Renewable: 10})

	txn, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.NoError(t, err)
	assert.Equal(t, int64(10), txn.PreCharge)

	l2, store2 := newTestLedger(t, balance.Balance{Renewable: 9})

	_, err = l2.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	remaining, err := store2.Balance(context.Background(), "acct")
	require.NoError(t, err)
	assert.Equal(t, int64(9), remaining.Total())
}

func TestFinalize_RefundsOverestimate(t *testing.T) {
	l, store := newTestLedger(t, balance.Balance{Renewable: 20})

	txn, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.NoError(t, err)
	require.Equal(t, int64(10), txn.PreCharge)

	err = l.Finalize(context.Background(), txn, models.TokenUsage{InputTokens: 4, OutputTokens: 3}, "")
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusAdjusted, txn.Status)
	assert.Equal(t, int64(7), txn.ActualCharge)
	assert.Equal(t, int64(-3), txn.Adjustment)
	assert.Equal(t, txn.ActualCharge, txn.PreCharge+txn.Adjustment)

	// The 3 overcharged credits came back to the renewable pool.
	remaining, err := store.Balance(context.Background(), "acct")
	require.NoError(t, err)
	assert.Equal(t, balance.Balance{Renewable: 13}, remaining)
}

func TestFinalize_ChargesUnderestimate(t *testing.T) {
	l, store := newTestLedger(t, balance.Balance{Renewable: 20})

	txn, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.NoError(t, err)

	err = l.Finalize(context.Background(), txn, models.TokenUsage{InputTokens: 4, OutputTokens: 8}, "")
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusAdjusted, txn.Status)
	assert.Equal(t, int64(12), txn.ActualCharge)
	assert.Equal(t, int64(2), txn.Adjustment)

	remaining, err := store.Balance(context.Background(), "acct")
	require.NoError(t, err)
	assert.Equal(t, int64(8), remaining.Total())
}

func TestFinalize_ExactEstimateCompletes(t *testing.T) {
	l, _ := newTestLedger(t, balance.Balance{Renewable: 20})

	txn, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.NoError(t, err)

	err = l.Finalize(context.Background(), txn, models.TokenUsage{InputTokens: 4, OutputTokens: 6}, "")
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, int64(0), txn.Adjustment)
	assert.Equal(t, txn.PreCharge, txn.ActualCharge)
}

func TestFinalize_ShortfallRefundsEverything(t *testing.T) {
	l, store := newTestLedger(t, balance.Balance{Renewable: 10})

	txn, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.NoError(t, err)

	// Actual usage far above the reservation, with nothing left to cover it.
	err = l.Finalize(context.Background(), txn, models.TokenUsage{InputTokens: 50, OutputTokens: 50}, "")
	require.ErrorIs(t, err, ErrReconciliationShortfall)

	assert.Equal(t, models.TransactionStatusRefunded, txn.Status)

	// Account made whole before the error surfaced.
	remaining, err := store.Balance(context.Background(), "acct")
	require.NoError(t, err)
	assert.Equal(t, int64(10), remaining.Total())
}

func TestFinalize_FallsBackToTextEstimation(t *testing.T) {
	l, _ := newTestLedger(t, balance.Balance{Renewable: 50})

	txn, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.NoError(t, err)

	// Provider reported only the input counter; output falls back to the
	// character heuristic over the response text.
	err = l.Finalize(context.Background(), txn, models.TokenUsage{InputTokens: 4}, sixteenChars)
	require.NoError(t, err)

	assert.Equal(t, int64(4), txn.Usage.InputTokens)
	assert.Equal(t, int64(4), txn.Usage.OutputTokens)
	assert.Equal(t, int64(8), txn.ActualCharge)
}

func TestFinalize_FallsBackToInputEstimate(t *testing.T) {
	l, store := newTestLedger(t, balance.Balance{Renewable: 50})

	txn, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.NoError(t, err)
	require.Equal(t, int64(10), txn.PreCharge)

	// Provider reported only the output counter; the input side falls back to
	// the reservation-time estimate of the input text (4 tokens), not the
	// worst-case reservation total.
	err = l.Finalize(context.Background(), txn, models.TokenUsage{OutputTokens: 3}, "")
	require.NoError(t, err)

	assert.Equal(t, int64(4), txn.Usage.InputTokens)
	assert.Equal(t, int64(3), txn.Usage.OutputTokens)
	assert.Equal(t, int64(7), txn.ActualCharge)
	assert.Equal(t, int64(-3), txn.Adjustment)

	remaining, err := store.Balance(context.Background(), "acct")
	require.NoError(t, err)
	assert.Equal(t, int64(43), remaining.Total())
}

func TestRefund_RestoresPreReservationBalance(t *testing.T) {
	for _, preChargeText := range []string{sixteenChars, "abcd", "a much longer input text that reserves more credits than the small ones"} {
		l, store := newTestLedger(t, balance.Balance{Renewable: 100})

		before, err := store.Balance(context.Background(), "acct")
		require.NoError(t, err)

		txn, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", preChargeText)
		require.NoError(t, err)

		require.NoError(t, l.Refund(context.Background(), txn))
		assert.Equal(t, models.TransactionStatusRefunded, txn.Status)

		after, err := store.Balance(context.Background(), "acct")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	}
}

func TestRefund_RejectsFinalizedTransaction(t *testing.T) {
	l, _ := newTestLedger(t, balance.Balance{Renewable: 50})

	txn, err := l.Reserve(context.Background(), "acct", "exec-1", "test-model", sixteenChars)
	require.NoError(t, err)

	require.NoError(t, l.Finalize(context.Background(), txn, models.TokenUsage{InputTokens: 4, OutputTokens: 6}, ""))

	err = l.Refund(context.Background(), txn)
	assert.ErrorIs(t, err, ErrTransactionFinalized)

	err = l.Finalize(context.Background(), txn, models.TokenUsage{}, "")
	assert.ErrorIs(t, err, ErrTransactionFinalized)
}

func TestReserveFlat_UsesModelCostTable(t *testing.T) {
	l, store := newTestLedger(t, balance.Balance{Renewable: 10})

	txn, err := l.ReserveFlat(context.Background(), "acct", "exec-1", "image-model")
	require.NoError(t, err)
	assert.Equal(t, int64(3), txn.PreCharge)

	// Unknown model falls back to the default flat cost.
	txn2, err := l.ReserveFlat(context.Background(), "acct", "exec-1", "unknown-model")
	require.NoError(t, err)
	assert.Equal(t, DefaultFlatCost, txn2.PreCharge)

	// Flat reservations finalize at the reserved amount.
	require.NoError(t, l.Finalize(context.Background(), txn, models.TokenUsage{}, ""))
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, int64(3), txn.ActualCharge)

	remaining, err := store.Balance(context.Background(), "acct")
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining.Total())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, int64(0), EstimateTokens(""))
	assert.Equal(t, int64(1), EstimateTokens("ab"))
	assert.Equal(t, int64(4), EstimateTokens(sixteenChars))
}

func TestCostPolicy_MinimumChargeFloor(t *testing.T) {
	policy := CostPolicy{TokensPerCredit: 1000, MinimumCharge: 2}

	assert.Equal(t, int64(2), policy.credits(0))
	assert.Equal(t, int64(2), policy.credits(500))
	assert.Equal(t, int64(3), policy.credits(2001))
}
