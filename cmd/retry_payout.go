package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

var (
	retryID          string
	retryDriverID    string
	retryPayeeName   string
	retryUPI         string
	retryBankAccount string
	retryIFSC        string
	retryAmount      int64
)

var retryPayoutCmd = &cobra.Command{
	Use:   "retry-payout",
	Short: "Retry the payout of a partially settled claim",
	Long:  "Re-attempts payment for a settlement whose ledger record is durable but whose payout failed. The existing ledger record is reused; nothing is re-verified or re-recorded.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSettlement(ctx, "settle")
		if err != nil {
			return err
		}
		defer env.Close()

		payee := model.Payee{
			DriverID:    retryDriverID,
			Name:        retryPayeeName,
			UPIAddress:  retryUPI,
			BankAccount: retryBankAccount,
			IFSC:        retryIFSC,
		}

		outcome, err := env.Orchestrator.RetryPayout(ctx, retryID, payee, retryAmount)
		if err != nil {
			return err
		}

		zap.L().Info("payout retried",
			zap.String("settlement_id", outcome.ID),
			zap.String("status", string(outcome.Status)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

func init() {
	retryPayoutCmd.Flags().StringVar(&retryID, "id", "", "settlement id (required)")
	retryPayoutCmd.Flags().StringVar(&retryDriverID, "driver", "", "driver id for the payout contact")
	retryPayoutCmd.Flags().StringVar(&retryPayeeName, "payee-name", "", "payee display name")
	retryPayoutCmd.Flags().StringVar(&retryUPI, "upi", "", "payee UPI address")
	retryPayoutCmd.Flags().StringVar(&retryBankAccount, "bank-account", "", "payee bank account number")
	retryPayoutCmd.Flags().StringVar(&retryIFSC, "ifsc", "", "payee bank IFSC code")
	retryPayoutCmd.Flags().Int64Var(&retryAmount, "amount", 0, "payout amount in paise (required)")
	_ = retryPayoutCmd.MarkFlagRequired("id")
	_ = retryPayoutCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(retryPayoutCmd)
}
