// Package payout initiates driver payments over the payment rail. A
// rail-backed initiator and a degraded local mode implement the same
// contract; the strategy is chosen once at construction from configuration.
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

// Initiator starts a money transfer for a recorded delivery.
type Initiator interface {
	Initiate(ctx context.Context, req Request) (*model.PayoutResult, error)
}

// Request carries the payout parameters for one settlement attempt.
type Request struct {
	ShipmentID  string
	RecordID    string
	Payee       model.Payee
	AmountPaise int64

	// SubmittedAt anchors the idempotent reference id. Zero means now.
	SubmittedAt time.Time
}

// RailError is a failure reported by the payment rail itself (insufficient
// balance, invalid account). Reason carries the rail's description verbatim.
type RailError struct {
	Code   string
	Reason string
	Err    error
}

func (e *RailError) Error() string {
	return fmt.Sprintf("payout: rail failure %s: %s", e.Code, e.Reason)
}

func (e *RailError) Unwrap() error {
	return e.Err
}

// Settlement latency estimates reported with each initiated payout.
const (
	upiSettlement  = 60 * time.Second
	bankSettlement = 4 * time.Hour
)

// SelectMethod picks the rail mode from the payee's identity fields: a UPI
// address selects instant transfer, a bank account plus IFSC selects bank
// transfer. Missing both is a precondition failure caught before any rail
// call.
func SelectMethod(p model.Payee) (model.PayoutMethod, error) {
	switch {
	case p.UPIAddress != "":
		return model.MethodUPI, nil
	case p.BankAccount != "" && p.IFSC != "":
		return model.MethodBankTransfer, nil
	default:
		return "", eris.New("payout: payee has neither UPI address nor bank account with IFSC")
	}
}

// ReferenceID derives the idempotency tag for one (shipment, attempt) pair.
func ReferenceID(shipmentID string, submittedAt time.Time) string {
	return fmt.Sprintf("pod_%s_%d", shipmentID, submittedAt.UnixMilli())
}

func estimatedSettlement(method model.PayoutMethod) time.Duration {
	if method == model.MethodUPI {
		return upiSettlement
	}
	return bankSettlement
}

func (r Request) submittedAt() time.Time {
	if r.SubmittedAt.IsZero() {
		return time.Now().UTC()
	}
	return r.SubmittedAt
}
