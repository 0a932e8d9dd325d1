package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleOutcome(id, shipmentID string, status model.SettlementStatus) *model.SettlementOutcome {
	now := time.Now().UTC().Truncate(time.Second)
	o := &model.SettlementOutcome{
		ID:         id,
		ShipmentID: shipmentID,
		Status:     status,
		Verdict: &model.VerificationVerdict{
			SignatureDetected:  true,
			Confidence:         0.92,
			ImageQuality:       model.QualityGood,
			ContentFingerprint: "abc123",
			VerifiedAt:         now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == model.StatusFullSuccess || status == model.StatusPartialSuccess {
		o.Ledger = &model.LedgerRecord{
			Network:     "polygon-mumbai",
			TxHash:      "0xdeadbeef",
			BlockNumber: 40123456,
			RecordID:    "0xrecord",
			RecordedAt:  now,
		}
	}
	if status == model.StatusFullSuccess {
		o.Payout = &model.PayoutResult{
			PayoutID:    "pout_1",
			ReferenceID: "pod_" + shipmentID + "_1700000000000",
			Status:      model.PayoutCompleted,
			AmountPaise: 50000,
			Method:      model.MethodUPI,
			CreatedAt:   now,
		}
	}
	return o
}

func TestSaveAndGetSettlement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := sampleOutcome("stl-1", "SHIP-001", model.StatusFullSuccess)
	require.NoError(t, s.SaveSettlement(ctx, o))

	got, err := s.GetSettlement(ctx, "stl-1")
	require.NoError(t, err)

	assert.Equal(t, "SHIP-001", got.ShipmentID)
	assert.Equal(t, model.StatusFullSuccess, got.Status)
	require.NotNil(t, got.Verdict)
	assert.True(t, got.Verdict.SignatureDetected)
	assert.InDelta(t, 0.92, got.Verdict.Confidence, 0.001)
	require.NotNil(t, got.Ledger)
	assert.Equal(t, "0xdeadbeef", got.Ledger.TxHash)
	require.NotNil(t, got.Payout)
	assert.Equal(t, int64(50000), got.Payout.AmountPaise)
	assert.False(t, got.Archived)
}

func TestGetSettlementNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSettlement(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListSettlementsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-1", "SHIP-001", model.StatusFullSuccess)))
	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-2", "SHIP-002", model.StatusRejected)))
	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-3", "SHIP-001", model.StatusPartialSuccess)))

	all, err := s.ListSettlements(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rejected, err := s.ListSettlements(ctx, Filter{Status: model.StatusRejected})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "stl-2", rejected[0].ID)

	byShipment, err := s.ListSettlements(ctx, Filter{ShipmentID: "SHIP-001"})
	require.NoError(t, err)
	assert.Len(t, byShipment, 2)

	limited, err := s.ListSettlements(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListExcludesArchived(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-1", "SHIP-001", model.StatusRejected)))
	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-2", "SHIP-002", model.StatusRejected)))
	require.NoError(t, s.ArchiveSettlement(ctx, "stl-1"))

	visible, err := s.ListSettlements(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "stl-2", visible[0].ID)

	all, err := s.ListSettlements(ctx, Filter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// archived rows stay retrievable by id
	got, err := s.GetSettlement(ctx, "stl-1")
	require.NoError(t, err)
	assert.True(t, got.Archived)
}

func TestArchiveMissingSettlement(t *testing.T) {
	s := newTestStore(t)

	err := s.ArchiveSettlement(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestUpdatePayoutPromotesToFullSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := sampleOutcome("stl-1", "SHIP-001", model.StatusPartialSuccess)
	o.FailedStage = model.StagePaying
	o.PayoutError = "insufficient balance"
	require.NoError(t, s.SaveSettlement(ctx, o))

	payout := &model.PayoutResult{
		PayoutID:    "pout_retry",
		ReferenceID: "pod_SHIP-001_1700000001000",
		Status:      model.PayoutProcessing,
		AmountPaise: 50000,
		Method:      model.MethodUPI,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.UpdatePayout(ctx, "stl-1", payout, ""))

	got, err := s.GetSettlement(ctx, "stl-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFullSuccess, got.Status)
	require.NotNil(t, got.Payout)
	assert.Equal(t, "pout_retry", got.Payout.PayoutID)
	assert.Empty(t, got.PayoutError)
}

func TestUpdatePayoutFailureKeepsPartial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := sampleOutcome("stl-1", "SHIP-001", model.StatusPartialSuccess)
	require.NoError(t, s.SaveSettlement(ctx, o))

	require.NoError(t, s.UpdatePayout(ctx, "stl-1", nil, "beneficiary bank is offline"))

	got, err := s.GetSettlement(ctx, "stl-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartialSuccess, got.Status)
	assert.Equal(t, "beneficiary bank is offline", got.PayoutError)
}

func TestUpdatePayoutMissingSettlement(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdatePayout(context.Background(), "missing", nil, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSettlementStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-1", "SHIP-001", model.StatusFullSuccess)))
	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-2", "SHIP-002", model.StatusFullSuccess)))
	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-3", "SHIP-003", model.StatusPartialSuccess)))
	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-4", "SHIP-004", model.StatusRejected)))

	stats, err := s.SettlementStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.FullSuccess)
	assert.Equal(t, 1, stats.PartialSuccess)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, int64(100000), stats.TotalPaidPaise)
}

func TestStatsCountOnlyAcceptedPayouts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-1", "SHIP-001", model.StatusFullSuccess)))
	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-2", "SHIP-002", model.StatusPartialSuccess)))

	// A rail status refresh can store a failed payout with an amount.
	// Failed money never left the account and must not count as paid.
	reversed := &model.PayoutResult{
		PayoutID:      "pout_2",
		ReferenceID:   "pod_SHIP-002_1700000001000",
		Status:        model.PayoutFailed,
		AmountPaise:   50000,
		Method:        model.MethodUPI,
		FailureReason: "payout reversed",
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.UpdatePayout(ctx, "stl-2", reversed, "payout reversed"))

	stats, err := s.SettlementStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, int64(50000), stats.TotalPaidPaise)
}

func TestStatsExcludeArchived(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-1", "SHIP-001", model.StatusFullSuccess)))
	require.NoError(t, s.SaveSettlement(ctx, sampleOutcome("stl-2", "SHIP-002", model.StatusFullSuccess)))
	require.NoError(t, s.ArchiveSettlement(ctx, "stl-1"))

	stats, err := s.SettlementStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, int64(50000), stats.TotalPaidPaise)
}
