// Package store persists settlement outcomes for the query surface and the
// operational audit trail. The ledger itself is the source of truth for
// proof records; this store only mirrors application-side state, which is
// why deletion is modeled as archiving.
package store

import (
	"context"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

// Filter specifies criteria for listing settlements.
type Filter struct {
	Status          model.SettlementStatus `json:"status,omitempty"`
	ShipmentID      string                 `json:"shipment_id,omitempty"`
	IncludeArchived bool                   `json:"include_archived,omitempty"`
	Limit           int                    `json:"limit,omitempty"`
	Offset          int                    `json:"offset,omitempty"`
}

// Stats aggregates settled records for the dashboard-style view.
type Stats struct {
	Total          int   `json:"total"`
	FullSuccess    int   `json:"full_success"`
	PartialSuccess int   `json:"partial_success"`
	Rejected       int   `json:"rejected"`
	Failed int `json:"failed"`

	// TotalPaidPaise sums amounts for payouts the rail accepted
	// (processing or completed). Queued and failed payouts do not count.
	TotalPaidPaise int64 `json:"total_paid_paise"`
}

// Store defines the persistence interface for settlement outcomes.
type Store interface {
	SaveSettlement(ctx context.Context, outcome *model.SettlementOutcome) error
	GetSettlement(ctx context.Context, id string) (*model.SettlementOutcome, error)
	ListSettlements(ctx context.Context, filter Filter) ([]model.SettlementOutcome, error)

	// UpdatePayout replaces the payout state after a caller-level retry or a
	// rail status refresh. A non-empty payoutErr keeps the settlement
	// partial; a successful payout promotes it to full success.
	UpdatePayout(ctx context.Context, id string, payout *model.PayoutResult, payoutErr string) error

	// ArchiveSettlement hides a settlement from default listings. It never
	// touches the ledger entry.
	ArchiveSettlement(ctx context.Context, id string) error

	SettlementStats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
