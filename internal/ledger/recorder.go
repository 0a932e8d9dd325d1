// Package ledger records delivery proofs on an immutable distributed ledger.
// Two strategies implement the Recorder contract: a chain-backed recorder for
// a configured registry gateway, and a local degraded mode that synthesizes
// deterministic references so the pipeline's control flow is identical in
// development and production.
package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

// Recorder writes an immutable proof record and returns its durable reference.
type Recorder interface {
	Record(ctx context.Context, req RecordRequest) (*model.LedgerRecord, error)
}

// RecordRequest carries everything a recording needs.
type RecordRequest struct {
	ShipmentID         string
	ContentFingerprint string
	SubmittedAt        time.Time
	Metadata           map[string]any
}

// Error is a recording failure. Phase distinguishes what may have happened
// on-chain: a "submit" failure means nothing happened; a "confirm" failure
// means gas may have been spent and the record may exist incomplete.
type Error struct {
	Phase string // "submit" or "confirm"
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger: %s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Committed reports whether the underlying write may have landed despite the
// failure.
func (e *Error) Committed() bool {
	return e.Phase == "confirm"
}

// DeriveRecordID computes the deterministic record identifier from the
// shipment id, content fingerprint, and submission unix timestamp. Identical
// content submitted at different times yields different identifiers; the
// ledger does not deduplicate.
func DeriveRecordID(shipmentID, fingerprint string, unixTS int64) string {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "%s-%s-%d", shipmentID, fingerprint, unixTS)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// explorerBases maps network identifiers to their block explorer base URLs.
var explorerBases = map[string]string{
	"polygon-mumbai": "https://mumbai.polygonscan.com",
	"polygon":        "https://polygonscan.com",
}

// ExplorerURL derives the human-inspectable transaction URL for a network.
// Returns empty for unknown networks.
func ExplorerURL(network, txHash string) string {
	base, ok := explorerBases[network]
	if !ok {
		return ""
	}
	return base + "/tx/" + txHash
}
