package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/myna-logistics/settlement-cli/internal/model"
	"github.com/myna-logistics/settlement-cli/internal/store"
)

var (
	recordsStatus   string
	recordsShipment string
	recordsLimit    int
	recordsOffset   int
	recordsArchived bool
	recordsStats    bool
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List settled delivery records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if recordsStats {
			stats, err := st.SettlementStats(ctx)
			if err != nil {
				return err
			}
			return enc.Encode(stats)
		}

		outcomes, err := st.ListSettlements(ctx, store.Filter{
			Status:          model.SettlementStatus(recordsStatus),
			ShipmentID:      recordsShipment,
			IncludeArchived: recordsArchived,
			Limit:           recordsLimit,
			Offset:          recordsOffset,
		})
		if err != nil {
			return err
		}
		return enc.Encode(outcomes)
	},
}

func init() {
	recordsCmd.Flags().StringVar(&recordsStatus, "status", "", "filter by settlement status")
	recordsCmd.Flags().StringVar(&recordsShipment, "shipment", "", "filter by shipment id")
	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 50, "max records to return")
	recordsCmd.Flags().IntVar(&recordsOffset, "offset", 0, "records to skip")
	recordsCmd.Flags().BoolVar(&recordsArchived, "archived", false, "include archived records")
	recordsCmd.Flags().BoolVar(&recordsStats, "stats", false, "print aggregate stats instead of records")
	rootCmd.AddCommand(recordsCmd)
}
