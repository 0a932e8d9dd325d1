package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/myna-logistics/settlement-cli/internal/model"
	"github.com/myna-logistics/settlement-cli/internal/resilience"
	"github.com/myna-logistics/settlement-cli/pkg/podregistry"
)

// registeredEvent is the confirmation event carrying the canonical record id.
const registeredEvent = "PODRegistered"

// ChainConfig tunes the chain recorder.
type ChainConfig struct {
	Network        string
	Contract       string
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// chainRecorder records proofs through the registry gateway.
type chainRecorder struct {
	registry podregistry.Client
	cfg      ChainConfig
}

// NewChainRecorder creates a Recorder backed by the registry gateway.
func NewChainRecorder(registry podregistry.Client, cfg ChainConfig) Recorder {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &chainRecorder{registry: registry, cfg: cfg}
}

func (r *chainRecorder) Record(ctx context.Context, req RecordRequest) (*model.LedgerRecord, error) {
	metadataJSON, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, &Error{Phase: "submit", Err: eris.Wrap(err, "marshal metadata")}
	}

	unixTS := req.SubmittedAt.Unix()
	txHash, err := r.registry.RegisterRecord(ctx, podregistry.RegisterParams{
		Contract:   r.cfg.Contract,
		ShipmentID: req.ShipmentID,
		ImageHash:  req.ContentFingerprint,
		Timestamp:  unixTS,
		Metadata:   string(metadataJSON),
	})
	if err != nil {
		return nil, &Error{Phase: "submit", Err: err}
	}

	receipt, err := r.awaitReceipt(ctx, txHash)
	if err != nil {
		return nil, &Error{Phase: "confirm", Err: err}
	}
	if receipt.Status != 1 {
		return nil, &Error{Phase: "confirm", Err: eris.Errorf("transaction %s reverted", txHash)}
	}

	record := &model.LedgerRecord{
		Network:     r.cfg.Network,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		ExplorerURL: ExplorerURL(r.cfg.Network, receipt.TxHash),
		RecordedAt:  time.Now().UTC(),
	}

	// The canonical record id comes from the confirmation event. When the
	// event is missing the write still succeeded, so the id is derived
	// locally and marked best-effort.
	if id := eventRecordID(receipt); id != "" {
		record.RecordID = id
	} else {
		record.RecordID = DeriveRecordID(req.ShipmentID, req.ContentFingerprint, unixTS)
		record.BestEffort = true
		zap.L().Warn("ledger: confirmation event missing, derived record id locally",
			zap.String("tx_hash", receipt.TxHash),
			zap.String("record_id", record.RecordID),
		)
	}

	return record, nil
}

// awaitReceipt polls the gateway until the transaction is mined or the
// confirmation timeout elapses. Only pending receipts and transient
// transport failures are retried.
func (r *chainRecorder) awaitReceipt(ctx context.Context, txHash string) (*podregistry.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ConfirmTimeout)
	defer cancel()

	attempts := int(r.cfg.ConfirmTimeout/r.cfg.PollInterval) + 1
	return resilience.Retry(ctx, resilience.Policy{
		MaxAttempts:  attempts,
		InitialDelay: r.cfg.PollInterval,
		MaxDelay:     r.cfg.PollInterval,
		Multiplier:   1.0,
		Retryable: func(err error) bool {
			return errors.Is(err, podregistry.ErrReceiptPending) || resilience.IsTransient(err)
		},
		OnRetry: func(attempt int, err error) {
			if !errors.Is(err, podregistry.ErrReceiptPending) {
				zap.L().Warn("ledger: receipt poll retrying",
					zap.String("tx_hash", txHash),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			}
		},
	}, func(ctx context.Context) (*podregistry.Receipt, error) {
		return r.registry.TransactionReceipt(ctx, txHash)
	})
}

func eventRecordID(receipt *podregistry.Receipt) string {
	for _, ev := range receipt.Events {
		if ev.Name == registeredEvent && ev.RecordID != "" {
			return ev.RecordID
		}
	}
	return ""
}
