package payout

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/myna-logistics/settlement-cli/internal/model"
	"github.com/myna-logistics/settlement-cli/pkg/razorpay"
)

// RailConfig holds the business account details for rail-backed payouts.
type RailConfig struct {
	AccountNumber string
}

// railInitiator sends payouts through the RazorpayX rail.
type railInitiator struct {
	rail razorpay.Client
	cfg  RailConfig
}

// NewRailInitiator creates an Initiator backed by the payment rail.
func NewRailInitiator(rail razorpay.Client, cfg RailConfig) Initiator {
	return &railInitiator{rail: rail, cfg: cfg}
}

func (i *railInitiator) Initiate(ctx context.Context, req Request) (*model.PayoutResult, error) {
	if req.AmountPaise <= 0 {
		return nil, eris.New("payout: amount must be positive")
	}
	method, err := SelectMethod(req.Payee)
	if err != nil {
		return nil, err
	}

	referenceID := ReferenceID(req.ShipmentID, req.submittedAt())
	payout, err := i.rail.CreatePayout(ctx, buildCreateRequest(req, method, referenceID, i.cfg.AccountNumber))
	if err != nil {
		if apiErr, ok := razorpay.AsAPIError(err); ok {
			return nil, &RailError{Code: apiErr.Code, Reason: apiErr.Description, Err: err}
		}
		return nil, eris.Wrapf(err, "payout: create for shipment %s", req.ShipmentID)
	}

	return &model.PayoutResult{
		PayoutID:            payout.ID,
		ReferenceID:         referenceID,
		Status:              mapRailStatus(payout.Status),
		AmountPaise:         req.AmountPaise,
		Method:              method,
		EstimatedSettlement: estimatedSettlement(method),
		UTR:                 payout.UTR,
		FailureReason:       payout.FailureReason,
		CreatedAt:           time.Now().UTC(),
	}, nil
}

func buildCreateRequest(req Request, method model.PayoutMethod, referenceID, accountNumber string) razorpay.CreatePayoutRequest {
	contact := razorpay.Contact{
		Name:        req.Payee.Name,
		Type:        "employee",
		ReferenceID: req.Payee.DriverID,
	}

	create := razorpay.CreatePayoutRequest{
		AccountNumber:     accountNumber,
		Amount:            req.AmountPaise,
		Currency:          "INR",
		Purpose:           "payout",
		QueueIfLowBalance: true,
		ReferenceID:       referenceID,
		Narration:         "POD Payment - " + req.ShipmentID,
	}

	if method == model.MethodUPI {
		create.Mode = "UPI"
		create.FundAccount = razorpay.FundAccount{
			AccountType: "vpa",
			VPA:         &razorpay.VPA{Address: req.Payee.UPIAddress},
			Contact:     contact,
		}
	} else {
		create.Mode = "IMPS"
		create.FundAccount = razorpay.FundAccount{
			AccountType: "bank_account",
			BankAccount: &razorpay.BankAccount{
				Name:          req.Payee.Name,
				IFSC:          req.Payee.IFSC,
				AccountNumber: req.Payee.BankAccount,
			},
			Contact: contact,
		}
	}

	return create
}

// FetchStatus queries the rail for the current state of a payout, mapping
// the rail's fields into a PayoutResult with Method and EstimatedSettlement
// derived from the rail's transfer mode.
func FetchStatus(ctx context.Context, rail razorpay.Client, payoutID string) (*model.PayoutResult, error) {
	p, err := rail.FetchPayout(ctx, payoutID)
	if err != nil {
		if apiErr, ok := razorpay.AsAPIError(err); ok {
			return nil, &RailError{Code: apiErr.Code, Reason: apiErr.Description, Err: err}
		}
		return nil, eris.Wrapf(err, "payout: fetch %s", payoutID)
	}

	method := model.MethodBankTransfer
	if p.Mode == "UPI" {
		method = model.MethodUPI
	}

	return &model.PayoutResult{
		PayoutID:            p.ID,
		ReferenceID:         p.ReferenceID,
		Status:              mapRailStatus(p.Status),
		AmountPaise:         p.Amount,
		Method:              method,
		EstimatedSettlement: estimatedSettlement(method),
		UTR:                 p.UTR,
		FailureReason:       p.FailureReason,
		CreatedAt:           time.Unix(p.CreatedAt, 0).UTC(),
	}, nil
}

// mapRailStatus folds the rail's payout states into ours.
func mapRailStatus(status string) model.PayoutStatus {
	switch status {
	case "queued", "pending":
		return model.PayoutQueued
	case "processing":
		return model.PayoutProcessing
	case "processed":
		return model.PayoutCompleted
	case "reversed", "cancelled", "rejected", "failed":
		return model.PayoutFailed
	default:
		return model.PayoutProcessing
	}
}
