package payout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rotisserie/eris"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

// localInitiator is the degraded mode used when no rail credentials are
// configured. It produces a deterministic synthetic "processing" result so
// the orchestrator's control flow matches production.
type localInitiator struct{}

// NewLocalInitiator creates the degraded local-mode Initiator.
func NewLocalInitiator() Initiator {
	return &localInitiator{}
}

func (i *localInitiator) Initiate(_ context.Context, req Request) (*model.PayoutResult, error) {
	if req.AmountPaise <= 0 {
		return nil, eris.New("payout: amount must be positive")
	}
	method, err := SelectMethod(req.Payee)
	if err != nil {
		return nil, err
	}

	referenceID := ReferenceID(req.ShipmentID, req.submittedAt())
	seed := sha256.Sum256([]byte(referenceID))

	return &model.PayoutResult{
		PayoutID:            "pout_" + hex.EncodeToString(seed[:12]),
		ReferenceID:         referenceID,
		Status:              model.PayoutProcessing,
		AmountPaise:         req.AmountPaise,
		Method:              method,
		EstimatedSettlement: estimatedSettlement(method),
		Synthetic:           true,
		CreatedAt:           time.Now().UTC(),
	}, nil
}
