package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/myna-logistics/settlement-cli/internal/model"
	"github.com/myna-logistics/settlement-cli/internal/settlement"
)

var (
	batchManifest string
	batchLimit    int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Settle delivery claims from a CSV manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		entries, err := settlement.ParseManifest(batchManifest)
		if err != nil {
			return eris.Wrap(err, "batch: parse manifest")
		}
		zap.L().Info("parsed manifest", zap.Int("claims", len(entries)))

		env, err := initSettlement(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		return processBatch(ctx, entries, batchLimit, cfg.Batch.MaxConcurrentClaims, cfg.Batch.ClaimsPerMinute,
			func(ctx context.Context, claim model.DeliveryClaim) (*model.SettlementOutcome, error) {
				return env.Orchestrator.Settle(ctx, claim)
			})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "path to batch manifest CSV (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max claims to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(batchCmd)
}

// settleFunc is the callback signature for settling one claim.
type settleFunc func(ctx context.Context, claim model.DeliveryClaim) (*model.SettlementOutcome, error)

// processBatch settles manifest entries concurrently, bounded by both a
// worker limit and a claims-per-minute rate cap. An individual failure never
// aborts the batch.
func processBatch(ctx context.Context, entries []settlement.ManifestEntry, limit, concurrency, perMinute int, settle settleFunc) error {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("claims", len(entries)),
		zap.Int("concurrency", concurrency),
		zap.Int("claims_per_minute", perMinute),
	)

	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var settled, partial, rejected, failed atomic.Int64

	for _, entry := range entries {
		g.Go(func() error {
			log := zap.L().With(zap.String("shipment_id", entry.Claim.ShipmentID))

			if err := limiter.Wait(gctx); err != nil {
				return err
			}

			claim := entry.Claim
			image, err := os.ReadFile(entry.ImagePath)
			if err != nil {
				failed.Add(1)
				log.Error("reading proof image", zap.String("path", entry.ImagePath), zap.Error(err))
				return nil
			}
			claim.Image = image

			outcome, err := settle(gctx, claim)
			if err != nil {
				failed.Add(1)
				log.Error("settlement failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			switch outcome.Status {
			case model.StatusFullSuccess:
				settled.Add(1)
			case model.StatusPartialSuccess:
				partial.Add(1)
			case model.StatusRejected:
				rejected.Add(1)
			default:
				failed.Add(1)
			}
			log.Info("settlement complete", zap.String("status", string(outcome.Status)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("settled", settled.Load()),
		zap.Int64("partial", partial.Load()),
		zap.Int64("rejected", rejected.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
