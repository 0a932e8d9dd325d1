package model

import "time"

// SettlementStatus tags the unified result of one settlement attempt.
type SettlementStatus string

const (
	// StatusFullSuccess: verified, recorded, and (if requested) paid out.
	StatusFullSuccess SettlementStatus = "full_success"
	// StatusPartialSuccess: ledger record is durable but the payout failed.
	// Payout can be retried independently without re-verifying or re-recording.
	StatusPartialSuccess SettlementStatus = "partial_success"
	// StatusRejected: verification did not clear the gate; no ledger write
	// or payout was attempted. A business outcome, not a system failure.
	StatusRejected SettlementStatus = "rejected"
	// StatusFailed: an infrastructure failure prevented completion of a stage.
	StatusFailed SettlementStatus = "failed"
)

// Stage names the pipeline stage that produced a failure.
type Stage string

const (
	StageVerifying Stage = "verifying"
	StageRecording Stage = "recording"
	StagePaying    Stage = "paying"
)

// RejectionReason states which verification gate failed, so a driver can
// correct and resubmit.
type RejectionReason string

const (
	RejectedNoSignature   RejectionReason = "no_signature"
	RejectedLowConfidence RejectionReason = "low_confidence"
)

// SettlementOutcome is the orchestrator's unified result and the only type
// callers outside the orchestrator need to understand. Which fields are set
// depends on Status:
//
//	full_success     Verdict, Ledger, and Payout (absent when none requested)
//	partial_success  Verdict, Ledger, PayoutError
//	rejected         Verdict, RejectionReason
//	failed           FailedStage, Cause (Verdict set when verification passed)
type SettlementOutcome struct {
	ID         string           `json:"id"`
	ShipmentID string           `json:"shipment_id"`
	Status     SettlementStatus `json:"status"`

	Verdict *VerificationVerdict `json:"verdict,omitempty"`
	Ledger  *LedgerRecord        `json:"ledger,omitempty"`
	Payout  *PayoutResult        `json:"payout,omitempty"`

	RejectionReason RejectionReason `json:"rejection_reason,omitempty"`
	FailedStage     Stage           `json:"failed_stage,omitempty"`
	Cause           string          `json:"cause,omitempty"`
	PayoutError     string          `json:"payout_error,omitempty"`

	Archived  bool      `json:"archived,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Settled reports whether a durable ledger record exists for this outcome.
func (o *SettlementOutcome) Settled() bool {
	return o.Ledger != nil && o.Ledger.RecordID != ""
}
