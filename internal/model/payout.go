package model

import "time"

// PayoutMethod selects the payment rail mode.
type PayoutMethod string

const (
	// MethodUPI is a sub-minute instant transfer to a virtual payment address.
	MethodUPI PayoutMethod = "upi"
	// MethodBankTransfer is an hours-scale transfer to a bank account.
	MethodBankTransfer PayoutMethod = "bank_transfer"
)

// PayoutStatus is the rail-reported state of a payout. This system never
// asserts a status the rail has not reported; refreshes come from polling.
type PayoutStatus string

const (
	PayoutQueued     PayoutStatus = "queued"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// PayoutResult describes an initiated money transfer.
type PayoutResult struct {
	PayoutID string `json:"payout_id"`

	// ReferenceID is the idempotency tag derived from the shipment and
	// submission attempt, so retried initiations are recognizable as
	// duplicates by the rail itself.
	ReferenceID string `json:"reference_id"`

	Status      PayoutStatus `json:"status"`
	AmountPaise int64        `json:"amount_paise"`
	Method      PayoutMethod `json:"method"`

	// EstimatedSettlement is how long the rail expects the transfer to take.
	EstimatedSettlement time.Duration `json:"estimated_settlement_ns"`

	// UTR is the bank transaction reference, present once processed.
	UTR           string `json:"utr,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`

	// Synthetic marks payouts produced in degraded local mode.
	Synthetic bool `json:"synthetic,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
