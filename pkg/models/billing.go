package models

import "time"

// TransactionStatus is the lifecycle state of a billing transaction.
// Every transaction starts pending and reaches exactly one of the terminal
// states; none may be left pending past the end of its triggering call.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusAdjusted  TransactionStatus = "adjusted"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// IsTerminal reports whether the status is one of the terminal states.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusAdjusted || s == TransactionStatusRefunded
}

// BillingTransaction records one reservation/reconciliation cycle. Amounts
// are whole billing credits. Invariant: once completed or adjusted,
// PreCharge + Adjustment == ActualCharge.
type BillingTransaction struct {
	ID              string            `json:"id"`
	AccountID       string            `json:"account_id"`
	ExecutionID     string            `json:"execution_id,omitempty"`
	Model           string            `json:"model"`
	PreCharge       int64             `json:"pre_charge"`
	ActualCharge    int64             `json:"actual_charge,omitempty"`
	Adjustment      int64             `json:"adjustment,omitempty"` // positive = additional charge, negative = refund
	EstimatedTokens int64             `json:"estimated_tokens"`
	// EstimatedInputTokens is the text-length estimate of the input alone,
	// kept for reconciliation when the provider reports no input counter.
	EstimatedInputTokens int64 `json:"estimated_input_tokens,omitempty"`
	Usage           TokenUsage        `json:"usage"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	FinalizedAt     *time.Time        `json:"finalized_at,omitempty"`
}
