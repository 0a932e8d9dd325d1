package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/myna-logistics/settlement-cli/internal/payout"
)

var (
	payoutStatusID         string
	payoutStatusSettlement string
)

var payoutStatusCmd = &cobra.Command{
	Use:   "payout-status",
	Short: "Fetch the rail's current state of a payout",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSettlement(ctx, "settle")
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Rail == nil {
			return eris.New("payout-status: payment rail credentials are not configured")
		}

		result, err := payout.FetchStatus(ctx, env.Rail, payoutStatusID)
		if err != nil {
			return err
		}

		// Optionally refresh the stored settlement with the new state.
		if payoutStatusSettlement != "" {
			if err := env.Store.UpdatePayout(ctx, payoutStatusSettlement, result, result.FailureReason); err != nil {
				zap.L().Warn("persisting refreshed payout status",
					zap.String("settlement_id", payoutStatusSettlement),
					zap.Error(err))
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	payoutStatusCmd.Flags().StringVar(&payoutStatusID, "id", "", "rail payout id (required)")
	payoutStatusCmd.Flags().StringVar(&payoutStatusSettlement, "settlement", "", "settlement id to persist the refreshed status into")
	_ = payoutStatusCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(payoutStatusCmd)
}
