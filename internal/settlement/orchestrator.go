// Package settlement runs the three-stage delivery settlement pipeline:
// verify the proof photo, record it on the ledger, pay the driver. The
// stages have different failure semantics. Verification failure rejects the
// claim before anything durable happens. Ledger failure is fatal. Payout
// failure after a durable ledger write is partial success: the record stands
// and the payout can be retried on its own.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/myna-logistics/settlement-cli/internal/ledger"
	"github.com/myna-logistics/settlement-cli/internal/model"
	"github.com/myna-logistics/settlement-cli/internal/payout"
	"github.com/myna-logistics/settlement-cli/internal/store"
	"github.com/myna-logistics/settlement-cli/internal/verify"
)

// DefaultConfidenceThreshold gates payouts behind verification confidence.
const DefaultConfidenceThreshold = 0.6

// Orchestrator drives a claim through verify, record, and pay in order,
// collapsing the stage results into a single SettlementOutcome.
type Orchestrator struct {
	verifier  verify.Verifier
	recorder  ledger.Recorder
	initiator payout.Initiator
	store     store.Store
	threshold float64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfidenceThreshold overrides the verification confidence gate.
func WithConfidenceThreshold(threshold float64) Option {
	return func(o *Orchestrator) { o.threshold = threshold }
}

// WithStore enables best-effort outcome persistence for the audit trail.
func WithStore(s store.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

func New(verifier verify.Verifier, recorder ledger.Recorder, initiator payout.Initiator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		verifier:  verifier,
		recorder:  recorder,
		initiator: initiator,
		threshold: DefaultConfidenceThreshold,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Settle runs one claim through the pipeline. It returns an error only when
// the claim itself is invalid; every pipeline failure is reported inside the
// outcome so the caller always learns how far the claim got.
func (o *Orchestrator) Settle(ctx context.Context, claim model.DeliveryClaim) (*model.SettlementOutcome, error) {
	if err := claim.Validate(); err != nil {
		return nil, eris.Wrap(err, "settlement: invalid claim")
	}

	now := time.Now().UTC()
	outcome := &model.SettlementOutcome{
		ID:         uuid.NewString(),
		ShipmentID: claim.ShipmentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	log := zap.L().With(
		zap.String("settlement_id", outcome.ID),
		zap.String("shipment_id", claim.ShipmentID),
	)

	verdict, err := o.verifier.Verify(ctx, claim)
	if err != nil {
		o.fail(outcome, model.StageVerifying, err)
		o.persist(ctx, outcome, log)
		return outcome, nil
	}
	outcome.Verdict = verdict
	log.Info("verification complete",
		zap.Bool("signature_detected", verdict.SignatureDetected),
		zap.Float64("confidence", verdict.Confidence),
		zap.String("image_quality", string(verdict.ImageQuality)))

	if reason, ok := o.gate(verdict); !ok {
		outcome.Status = model.StatusRejected
		outcome.RejectionReason = reason
		log.Info("claim rejected", zap.String("reason", string(reason)))
		o.persist(ctx, outcome, log)
		return outcome, nil
	}

	if err := ctx.Err(); err != nil {
		o.fail(outcome, model.StageRecording, err)
		o.persist(ctx, outcome, log)
		return outcome, nil
	}

	record, err := o.recorder.Record(ctx, ledger.RecordRequest{
		ShipmentID:         claim.ShipmentID,
		ContentFingerprint: verdict.ContentFingerprint,
		SubmittedAt:        now,
		Metadata: map[string]any{
			"recipient":  claim.RecipientName,
			"confidence": verdict.Confidence,
		},
	})
	if err != nil {
		o.fail(outcome, model.StageRecording, err)
		var lerr *ledger.Error
		if errors.As(err, &lerr) && lerr.Committed() {
			log.Warn("recording failed after submission, ledger state is unknown",
				zap.Error(err))
		}
		o.persist(ctx, outcome, log)
		return outcome, nil
	}
	outcome.Ledger = record
	log.Info("ledger record durable",
		zap.String("tx_hash", record.TxHash),
		zap.String("record_id", record.RecordID),
		zap.Int64("block_number", record.BlockNumber),
		zap.Bool("synthetic", record.Synthetic))

	if !claim.PayoutRequested() {
		outcome.Status = model.StatusFullSuccess
		o.persist(ctx, outcome, log)
		return outcome, nil
	}

	// Past this point the ledger record stands no matter what the payout
	// does, so every failure lands on partial success.
	if err := ctx.Err(); err != nil {
		o.partial(outcome, err, log)
		o.persist(ctx, outcome, log)
		return outcome, nil
	}

	result, err := o.initiator.Initiate(ctx, payout.Request{
		ShipmentID:  claim.ShipmentID,
		RecordID:    record.RecordID,
		Payee:       *claim.Payee,
		AmountPaise: claim.AmountPaise,
		SubmittedAt: now,
	})
	if err != nil {
		o.partial(outcome, err, log)
		o.persist(ctx, outcome, log)
		return outcome, nil
	}
	outcome.Payout = result
	outcome.Status = model.StatusFullSuccess
	log.Info("payout initiated",
		zap.String("payout_id", result.PayoutID),
		zap.String("reference_id", result.ReferenceID),
		zap.String("status", string(result.Status)))

	o.persist(ctx, outcome, log)
	return outcome, nil
}

// RetryPayout re-attempts the payout leg of a partial settlement, reusing
// the existing ledger record. Verification and recording never rerun.
func (o *Orchestrator) RetryPayout(ctx context.Context, id string, payee model.Payee, amountPaise int64) (*model.SettlementOutcome, error) {
	if o.store == nil {
		return nil, eris.New("settlement: retry requires a store")
	}
	outcome, err := o.store.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	if outcome.Status != model.StatusPartialSuccess {
		return nil, eris.Errorf("settlement: %s is %s, only partial settlements can retry payout", id, outcome.Status)
	}
	if !outcome.Settled() {
		return nil, eris.Errorf("settlement: %s has no ledger record", id)
	}

	result, err := o.initiator.Initiate(ctx, payout.Request{
		ShipmentID:  outcome.ShipmentID,
		RecordID:    outcome.Ledger.RecordID,
		Payee:       payee,
		AmountPaise: amountPaise,
	})
	if err != nil {
		if updateErr := o.store.UpdatePayout(ctx, id, nil, failureText(err)); updateErr != nil {
			zap.L().Warn("persisting retry failure", zap.String("settlement_id", id), zap.Error(updateErr))
		}
		outcome.PayoutError = failureText(err)
		return outcome, err
	}

	if err := o.store.UpdatePayout(ctx, id, result, ""); err != nil {
		zap.L().Warn("persisting retry result", zap.String("settlement_id", id), zap.Error(err))
	}
	outcome.Status = model.StatusFullSuccess
	outcome.Payout = result
	outcome.PayoutError = ""
	return outcome, nil
}

// gate applies the two verification acceptance rules in order.
func (o *Orchestrator) gate(v *model.VerificationVerdict) (model.RejectionReason, bool) {
	if !v.SignatureDetected {
		return model.RejectedNoSignature, false
	}
	if v.Confidence < o.threshold {
		return model.RejectedLowConfidence, false
	}
	return "", true
}

func (o *Orchestrator) fail(outcome *model.SettlementOutcome, stage model.Stage, err error) {
	outcome.Status = model.StatusFailed
	outcome.FailedStage = stage
	outcome.Cause = err.Error()
}

func (o *Orchestrator) partial(outcome *model.SettlementOutcome, err error, log *zap.Logger) {
	outcome.Status = model.StatusPartialSuccess
	outcome.FailedStage = model.StagePaying
	outcome.PayoutError = failureText(err)
	log.Warn("payout failed, ledger record stands",
		zap.String("record_id", outcome.Ledger.RecordID),
		zap.String("payout_error", outcome.PayoutError))
}

// persist saves the outcome for the audit trail. Persistence failure never
// changes the settlement result.
func (o *Orchestrator) persist(ctx context.Context, outcome *model.SettlementOutcome, log *zap.Logger) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveSettlement(context.WithoutCancel(ctx), outcome); err != nil {
		log.Warn("persisting settlement outcome", zap.Error(err))
	}
}

// failureText prefers the rail's own description when one exists.
func failureText(err error) string {
	var rerr *payout.RailError
	if errors.As(err, &rerr) {
		return rerr.Reason
	}
	return err.Error()
}
