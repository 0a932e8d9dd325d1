package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

// localRecorder is the degraded mode used when no ledger endpoint is
// configured. It synthesizes deterministic plausible-looking references and
// marks every record Synthetic, so callers can tell these records are not
// externally verifiable while the orchestrator's control flow stays
// identical to production.
type localRecorder struct {
	network string
}

// NewLocalRecorder creates the degraded local-mode Recorder.
func NewLocalRecorder(network string) Recorder {
	if network == "" {
		network = "polygon-mumbai"
	}
	return &localRecorder{network: network}
}

func (r *localRecorder) Record(_ context.Context, req RecordRequest) (*model.LedgerRecord, error) {
	unixTS := req.SubmittedAt.Unix()

	seed := sha256.Sum256(fmt.Appendf(nil, "%s-%s-%d", req.ShipmentID, req.ContentFingerprint, unixTS))
	txHash := "0x" + hex.EncodeToString(seed[:])

	// Pseudo block number in a realistic range, deterministic in the seed.
	blockNumber := 40_000_000 + int64(binary.BigEndian.Uint32(seed[:4])%1_000_000)

	return &model.LedgerRecord{
		Network:     r.network,
		TxHash:      txHash,
		BlockNumber: blockNumber,
		RecordID:    DeriveRecordID(req.ShipmentID, req.ContentFingerprint, unixTS),
		ExplorerURL: ExplorerURL(r.network, txHash),
		Synthetic:   true,
		RecordedAt:  time.Now().UTC(),
	}, nil
}
