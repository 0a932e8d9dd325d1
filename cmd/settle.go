package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

var (
	settleShipment    string
	settleImage       string
	settleRecipient   string
	settlePhone       string
	settleNotes       string
	settleLat         float64
	settleLon         float64
	settleDriverID    string
	settlePayeeName   string
	settleUPI         string
	settleBankAccount string
	settleIFSC        string
	settleAmount      int64
)

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Settle a single delivery claim",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSettlement(ctx, "settle")
		if err != nil {
			return err
		}
		defer env.Close()

		image, err := os.ReadFile(settleImage)
		if err != nil {
			return eris.Wrap(err, "settle: read proof image")
		}

		claim := model.DeliveryClaim{
			ShipmentID:     settleShipment,
			RecipientName:  settleRecipient,
			RecipientPhone: settlePhone,
			DeliveryNotes:  settleNotes,
			Image:          image,
		}
		if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
			claim.Location = &model.Geolocation{Lat: settleLat, Lon: settleLon}
		}
		if settleUPI != "" || settleBankAccount != "" {
			claim.Payee = &model.Payee{
				DriverID:    settleDriverID,
				Name:        settlePayeeName,
				UPIAddress:  settleUPI,
				BankAccount: settleBankAccount,
				IFSC:        settleIFSC,
			}
			claim.AmountPaise = settleAmount
		}

		outcome, err := env.Orchestrator.Settle(ctx, claim)
		if err != nil {
			return eris.Wrap(err, "settle")
		}

		zap.L().Info("settlement complete",
			zap.String("shipment_id", outcome.ShipmentID),
			zap.String("status", string(outcome.Status)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

func init() {
	settleCmd.Flags().StringVar(&settleShipment, "shipment", "", "shipment id (required)")
	settleCmd.Flags().StringVar(&settleImage, "image", "", "path to proof-of-delivery photo (required)")
	settleCmd.Flags().StringVar(&settleRecipient, "recipient", "", "recipient name")
	settleCmd.Flags().StringVar(&settlePhone, "phone", "", "recipient phone")
	settleCmd.Flags().StringVar(&settleNotes, "notes", "", "delivery notes")
	settleCmd.Flags().Float64Var(&settleLat, "lat", 0, "delivery latitude")
	settleCmd.Flags().Float64Var(&settleLon, "lon", 0, "delivery longitude")
	settleCmd.Flags().StringVar(&settleDriverID, "driver", "", "driver id for the payout contact")
	settleCmd.Flags().StringVar(&settlePayeeName, "payee-name", "", "payee display name")
	settleCmd.Flags().StringVar(&settleUPI, "upi", "", "payee UPI address")
	settleCmd.Flags().StringVar(&settleBankAccount, "bank-account", "", "payee bank account number")
	settleCmd.Flags().StringVar(&settleIFSC, "ifsc", "", "payee bank IFSC code")
	settleCmd.Flags().Int64Var(&settleAmount, "amount", 0, "payout amount in paise")
	_ = settleCmd.MarkFlagRequired("shipment")
	_ = settleCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(settleCmd)
}
