package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/myna-logistics/settlement-cli/pkg/podregistry"
)

type mockRegistryClient struct {
	mock.Mock
}

func (m *mockRegistryClient) RegisterRecord(ctx context.Context, params podregistry.RegisterParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *mockRegistryClient) TransactionReceipt(ctx context.Context, txHash string) (*podregistry.Receipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*podregistry.Receipt), args.Error(1)
}

func testRequest() RecordRequest {
	return RecordRequest{
		ShipmentID:         "SHIP-001",
		ContentFingerprint: "abc123",
		SubmittedAt:        time.Unix(1700000000, 0).UTC(),
		Metadata:           map[string]any{"recipient": "R. Sharma"},
	}
}

func chainConfig() ChainConfig {
	return ChainConfig{
		Network:        "polygon-mumbai",
		Contract:       "0xcontract",
		ConfirmTimeout: time.Second,
		PollInterval:   10 * time.Millisecond,
	}
}

func TestDeriveRecordID_Deterministic(t *testing.T) {
	first := DeriveRecordID("SHIP-001", "abc123", 1700000000)
	second := DeriveRecordID("SHIP-001", "abc123", 1700000000)

	assert.Equal(t, first, second)
	assert.Len(t, first, 66) // 0x + 32-byte keccak hex

	// Identical content at a different time yields a different identifier.
	assert.NotEqual(t, first, DeriveRecordID("SHIP-001", "abc123", 1700000001))
}

func TestChainRecorder_Success(t *testing.T) {
	registry := &mockRegistryClient{}
	registry.On("RegisterRecord", mock.Anything, mock.MatchedBy(func(p podregistry.RegisterParams) bool {
		return p.ShipmentID == "SHIP-001" && p.ImageHash == "abc123" && p.Contract == "0xcontract"
	})).Return("0xtx1", nil)
	registry.On("TransactionReceipt", mock.Anything, "0xtx1").Return(&podregistry.Receipt{
		TxHash:      "0xtx1",
		BlockNumber: 40123456,
		Status:      1,
		Events:      []podregistry.Event{{Name: "PODRegistered", RecordID: "0xrec1"}},
	}, nil)

	r := NewChainRecorder(registry, chainConfig())
	record, err := r.Record(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "0xrec1", record.RecordID)
	assert.Equal(t, int64(40123456), record.BlockNumber)
	assert.Equal(t, "https://mumbai.polygonscan.com/tx/0xtx1", record.ExplorerURL)
	assert.False(t, record.Synthetic)
	assert.False(t, record.BestEffort)
}

func TestChainRecorder_MissingEventDerivesBestEffortID(t *testing.T) {
	registry := &mockRegistryClient{}
	registry.On("RegisterRecord", mock.Anything, mock.Anything).Return("0xtx1", nil)
	registry.On("TransactionReceipt", mock.Anything, "0xtx1").Return(&podregistry.Receipt{
		TxHash:      "0xtx1",
		BlockNumber: 40123456,
		Status:      1,
	}, nil)

	r := NewChainRecorder(registry, chainConfig())
	record, err := r.Record(context.Background(), testRequest())

	require.NoError(t, err)
	assert.True(t, record.BestEffort)
	assert.Equal(t, DeriveRecordID("SHIP-001", "abc123", 1700000000), record.RecordID)
}

func TestChainRecorder_SubmitFailure(t *testing.T) {
	registry := &mockRegistryClient{}
	registry.On("RegisterRecord", mock.Anything, mock.Anything).
		Return("", eris.New("rpc unreachable"))

	r := NewChainRecorder(registry, chainConfig())
	_, err := r.Record(context.Background(), testRequest())

	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "submit", lerr.Phase)
	assert.False(t, lerr.Committed())
	registry.AssertNotCalled(t, "TransactionReceipt", mock.Anything, mock.Anything)
}

func TestChainRecorder_RevertedTransaction(t *testing.T) {
	registry := &mockRegistryClient{}
	registry.On("RegisterRecord", mock.Anything, mock.Anything).Return("0xtx1", nil)
	registry.On("TransactionReceipt", mock.Anything, "0xtx1").Return(&podregistry.Receipt{
		TxHash: "0xtx1",
		Status: 0,
	}, nil)

	r := NewChainRecorder(registry, chainConfig())
	_, err := r.Record(context.Background(), testRequest())

	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "confirm", lerr.Phase)
	assert.True(t, lerr.Committed(), "gas may have been spent")
}

func TestChainRecorder_PollsUntilMined(t *testing.T) {
	registry := &mockRegistryClient{}
	registry.On("RegisterRecord", mock.Anything, mock.Anything).Return("0xtx1", nil)
	registry.On("TransactionReceipt", mock.Anything, "0xtx1").
		Return(nil, podregistry.ErrReceiptPending).Twice()
	registry.On("TransactionReceipt", mock.Anything, "0xtx1").Return(&podregistry.Receipt{
		TxHash: "0xtx1",
		Status: 1,
		Events: []podregistry.Event{{Name: "PODRegistered", RecordID: "0xrec1"}},
	}, nil).Once()

	r := NewChainRecorder(registry, chainConfig())
	record, err := r.Record(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "0xrec1", record.RecordID)
	registry.AssertNumberOfCalls(t, "TransactionReceipt", 3)
}

func TestLocalRecorder_DeterministicSynthetic(t *testing.T) {
	r := NewLocalRecorder("polygon-mumbai")

	first, err := r.Record(context.Background(), testRequest())
	require.NoError(t, err)
	second, err := r.Record(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, first.Synthetic)
	assert.Equal(t, first.TxHash, second.TxHash)
	assert.Equal(t, first.RecordID, second.RecordID)
	assert.Equal(t, first.BlockNumber, second.BlockNumber)
	assert.GreaterOrEqual(t, first.BlockNumber, int64(40_000_000))
	assert.NotEmpty(t, first.ExplorerURL)
}

func TestExplorerURL(t *testing.T) {
	assert.Equal(t, "https://mumbai.polygonscan.com/tx/0xabc", ExplorerURL("polygon-mumbai", "0xabc"))
	assert.Equal(t, "https://polygonscan.com/tx/0xabc", ExplorerURL("polygon", "0xabc"))
	assert.Empty(t, ExplorerURL("unknown-net", "0xabc"))
}
