// Package ledger implements the two-phase billing protocol: a worst-case
// pre-charge reserved before every billable call, reconciled to the actual
// cost afterward. A reservation always reaches exactly one of completed,
// adjusted or refunded; it is never abandoned pending, and a user can never
// receive a completed generation they did not at least provisionally pay for.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/balance"
	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/events"
	"github.com/loomworks/loom/pkg/models"
)

// ErrInsufficientBalance re-exports the balance store sentinel: the
// reservation failed and nothing was charged.
var ErrInsufficientBalance = balance.ErrInsufficientBalance

// ErrReconciliationShortfall indicates the reconciliation adjustment exceeded
// the remaining balance. The reservation was fully refunded and the operation
// is reported as failed, even though the underlying generation may have
// technically succeeded: never silently under-bill.
var ErrReconciliationShortfall = errors.New("reconciliation shortfall: reservation refunded")

// ErrTransactionFinalized indicates a finalize or refund was attempted on a
// transaction that already reached a terminal status.
var ErrTransactionFinalized = errors.New("transaction already finalized")

// Recorder persists billing transactions for analytics. Recording is
// best-effort; a recorder failure never affects the billing outcome.
type Recorder interface {
	SaveTransaction(ctx context.Context, txn *models.BillingTransaction) error
}

// Ledger coordinates reservations against a balance store.
type Ledger struct {
	store    balance.Store
	costs    *CostRegistry
	recorder Recorder
	eventBus eventbus.EventPublisher
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRecorder attaches a transaction recorder.
func WithRecorder(recorder Recorder) Option {
	return func(l *Ledger) { l.recorder = recorder }
}

// WithEventBus publishes a billing event for every finalized transaction.
// Publishing is best-effort and never affects the billing outcome.
func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(l *Ledger) { l.eventBus = bus }
}

// NewLedger creates a ledger over the given balance store and cost registry.
func NewLedger(store balance.Store, costs *CostRegistry, logger *slog.Logger, opts ...Option) *Ledger {
	if costs == nil {
		costs = NewCostRegistry()
	}

	ledger := &Ledger{
		store:  store,
		costs:  costs,
		logger: logger.With("module", "ledger"),
	}

	for _, opt := range opts {
		opt(ledger)
	}

	return ledger
}

// Costs exposes the registry so callers can resolve flat costs.
func (l *Ledger) Costs() *CostRegistry {
	return l.costs
}

// Reserve estimates the worst-case cost of a token-metered call and
// atomically debits it, renewable balance first. On ErrInsufficientBalance
// nothing is charged; the check happens before the expensive external call.
func (l *Ledger) Reserve(ctx context.Context, accountID, executionID, model, inputText string) (*models.BillingTransaction, error) {
	policy := l.costs.Policy(model)
	inputTokens := EstimateTokens(inputText)
	preCharge, estimatedTokens := policy.estimateCredits(inputTokens)

	return l.reserve(ctx, accountID, executionID, model, preCharge, estimatedTokens, inputTokens)
}

// ReserveFlat debits a fixed per-call cost resolved from the model cost
// table, for non-token-metered generations (images, video).
func (l *Ledger) ReserveFlat(ctx context.Context, accountID, executionID, model string) (*models.BillingTransaction, error) {
	return l.reserve(ctx, accountID, executionID, model, l.costs.FlatCost(model), 0, 0)
}

func (l *Ledger) reserve(ctx context.Context, accountID, executionID, model string, preCharge, estimatedTokens, estimatedInputTokens int64) (*models.BillingTransaction, error) {
	_, _, err := l.store.Debit(ctx, accountID, preCharge)
	if err != nil {
		if errors.Is(err, balance.ErrInsufficientBalance) {
			return nil, fmt.Errorf("%w: account %s needs %d credits", ErrInsufficientBalance, accountID, preCharge)
		}

		return nil, fmt.Errorf("failed to debit reservation: %w", err)
	}

	txn := &models.BillingTransaction{
		ID:                   uuid.New().String(),
		AccountID:            accountID,
		ExecutionID:          executionID,
		Model:                model,
		PreCharge:            preCharge,
		EstimatedTokens:      estimatedTokens,
		EstimatedInputTokens: estimatedInputTokens,
		Status:               models.TransactionStatusPending,
		CreatedAt:            time.Now().UTC(),
	}

	l.record(ctx, txn)
	l.logger.DebugContext(ctx, "Reserved billing credits",
		"transaction_id", txn.ID, "account_id", accountID, "model", model, "pre_charge", preCharge)

	return txn, nil
}

// Finalize reconciles a pending reservation to the actual cost. Provider
// counters are preferred; a missing input counter falls back to the
// reservation-time estimate of the input text, a missing output counter to a
// text-length estimate of the response. A positive adjustment the balance
// cannot cover refunds the whole reservation and returns
// ErrReconciliationShortfall.
func (l *Ledger) Finalize(ctx context.Context, txn *models.BillingTransaction, usage models.TokenUsage, outputText string) error {
	if txn.Status != models.TransactionStatusPending {
		return fmt.Errorf("%w: transaction %s is %s", ErrTransactionFinalized, txn.ID, txn.Status)
	}

	policy := l.costs.Policy(txn.Model)

	actualUsage := models.TokenUsage{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	}
	if actualUsage.InputTokens == 0 {
		actualUsage.InputTokens = txn.EstimatedInputTokens
	}

	if actualUsage.OutputTokens == 0 {
		actualUsage.OutputTokens = EstimateTokens(outputText)
	}

	var actual int64
	if txn.EstimatedTokens == 0 && actualUsage.Total() == 0 {
		// Flat reservation: the realized cost is the reserved cost.
		actual = txn.PreCharge
	} else {
		actual = policy.credits(actualUsage.Total())
	}

	adjustment := actual - txn.PreCharge

	switch {
	case adjustment > 0:
		_, _, err := l.store.Debit(ctx, txn.AccountID, adjustment)
		if err != nil {
			if errors.Is(err, balance.ErrInsufficientBalance) {
				// Never leave the user partially charged for an
				// unconfirmable cost: return the whole reservation.
				refundErr := l.store.Credit(ctx, txn.AccountID, txn.PreCharge)
				if refundErr != nil {
					l.logger.ErrorContext(ctx, "Failed to refund after shortfall",
						"transaction_id", txn.ID, "error", refundErr)
				}

				l.finish(ctx, txn, models.TransactionStatusRefunded, 0, 0, actualUsage)

				return fmt.Errorf("%w: adjustment of %d exceeds balance", ErrReconciliationShortfall, adjustment)
			}

			return fmt.Errorf("failed to debit adjustment: %w", err)
		}
	case adjustment < 0:
		err := l.store.Credit(ctx, txn.AccountID, -adjustment)
		if err != nil {
			return fmt.Errorf("failed to credit refund: %w", err)
		}
	}

	status := models.TransactionStatusCompleted
	if adjustment != 0 {
		status = models.TransactionStatusAdjusted
	}

	l.finish(ctx, txn, status, actual, adjustment, actualUsage)
	l.logger.DebugContext(ctx, "Finalized billing transaction",
		"transaction_id", txn.ID, "status", txn.Status, "actual_charge", actual, "adjustment", adjustment)

	return nil
}

// Refund rolls back a pending reservation in full, restoring the account to
// its pre-reservation balance. Invoked whenever the triggering external call
// fails before reconciliation can run.
func (l *Ledger) Refund(ctx context.Context, txn *models.BillingTransaction) error {
	if txn.Status != models.TransactionStatusPending {
		return fmt.Errorf("%w: transaction %s is %s", ErrTransactionFinalized, txn.ID, txn.Status)
	}

	err := l.store.Credit(ctx, txn.AccountID, txn.PreCharge)
	if err != nil {
		return fmt.Errorf("failed to refund reservation: %w", err)
	}

	l.finish(ctx, txn, models.TransactionStatusRefunded, 0, 0, models.TokenUsage{})
	l.logger.DebugContext(ctx, "Refunded billing transaction",
		"transaction_id", txn.ID, "amount", txn.PreCharge)

	return nil
}

func (l *Ledger) finish(ctx context.Context, txn *models.BillingTransaction, status models.TransactionStatus, actual, adjustment int64, usage models.TokenUsage) {
	now := time.Now().UTC()
	txn.Status = status
	txn.ActualCharge = actual
	txn.Adjustment = adjustment
	txn.Usage = usage
	txn.FinalizedAt = &now

	l.record(ctx, txn)

	if l.eventBus != nil {
		err := l.eventBus.Publish(ctx, txn.AccountID, events.TransactionFinalized{
			BaseEvent:     events.NewBaseEvent(events.TransactionFinalizedEvent, ""),
			TransactionID: txn.ID,
			AccountID:     txn.AccountID,
			ExecutionID:   txn.ExecutionID,
			Model:         txn.Model,
			Status:        txn.Status,
			PreCharge:     txn.PreCharge,
			ActualCharge:  txn.ActualCharge,
			Adjustment:    txn.Adjustment,
		})
		if err != nil {
			l.logger.WarnContext(ctx, "Failed to publish billing event",
				"transaction_id", txn.ID, "error", err)
		}
	}
}

func (l *Ledger) record(ctx context.Context, txn *models.BillingTransaction) {
	if l.recorder == nil {
		return
	}

	err := l.recorder.SaveTransaction(ctx, txn)
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to record billing transaction",
			"transaction_id", txn.ID, "error", err)
	}
}
