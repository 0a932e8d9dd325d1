package model

import "time"

// LedgerRecord is the durable reference produced by recording a claim on the
// ledger. Once returned with success status it is permanent: this system
// never mutates or deletes a ledger entry, and deletion requests against a
// settled claim archive application-side state only.
type LedgerRecord struct {
	Network     string `json:"network"`
	TxHash      string `json:"tx_hash"`
	BlockNumber int64  `json:"block_number"`

	// RecordID is the canonical handle future lookups use.
	RecordID    string `json:"record_id"`
	ExplorerURL string `json:"explorer_url,omitempty"`

	// Synthetic marks records produced in degraded local mode (no ledger
	// endpoint configured). Callers must check it before treating the
	// record as externally verifiable.
	Synthetic bool `json:"synthetic,omitempty"`

	// BestEffort marks records whose id was derived locally because the
	// confirmation event was absent; the underlying write still succeeded.
	BestEffort bool `json:"best_effort,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}
