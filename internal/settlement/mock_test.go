package settlement

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/myna-logistics/settlement-cli/internal/ledger"
	"github.com/myna-logistics/settlement-cli/internal/model"
	"github.com/myna-logistics/settlement-cli/internal/payout"
	"github.com/myna-logistics/settlement-cli/internal/store"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, claim model.DeliveryClaim) (*model.VerificationVerdict, error) {
	args := m.Called(ctx, claim)
	if v := args.Get(0); v != nil {
		return v.(*model.VerificationVerdict), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, req ledger.RecordRequest) (*model.LedgerRecord, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*model.LedgerRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockInitiator struct {
	mock.Mock
}

func (m *mockInitiator) Initiate(ctx context.Context, req payout.Request) (*model.PayoutResult, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*model.PayoutResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveSettlement(ctx context.Context, outcome *model.SettlementOutcome) error {
	return m.Called(ctx, outcome).Error(0)
}

func (m *mockStore) GetSettlement(ctx context.Context, id string) (*model.SettlementOutcome, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.SettlementOutcome), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListSettlements(ctx context.Context, filter store.Filter) ([]model.SettlementOutcome, error) {
	args := m.Called(ctx, filter)
	if v := args.Get(0); v != nil {
		return v.([]model.SettlementOutcome), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdatePayout(ctx context.Context, id string, p *model.PayoutResult, payoutErr string) error {
	return m.Called(ctx, id, p, payoutErr).Error(0)
}

func (m *mockStore) ArchiveSettlement(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) SettlementStats(ctx context.Context) (*store.Stats, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*store.Stats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
