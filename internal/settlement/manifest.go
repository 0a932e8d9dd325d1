package settlement

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

// ManifestEntry is one row of a batch manifest: a claim plus the path of its
// proof image. Image bytes are loaded right before settling so a large
// manifest does not hold every photo in memory.
type ManifestEntry struct {
	Claim     model.DeliveryClaim
	ImagePath string
}

// ParseManifest reads a batch manifest CSV and returns the claims to settle.
// Required columns: shipment_id, image. Optional: recipient_name,
// recipient_phone, notes, lat, lon, driver_id, payee_name, upi, bank_account,
// ifsc, amount_paise. Rows with a duplicate shipment_id are skipped.
func ParseManifest(csvPath string) ([]ManifestEntry, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: open csv")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "manifest: read csv")
	}

	if len(records) < 2 {
		return nil, eris.New("manifest: csv has no data rows")
	}

	header := records[0]
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.TrimSpace(strings.ToLower(col))] = i
	}

	for _, col := range []string{"shipment_id", "image"} {
		if _, ok := colIdx[col]; !ok {
			return nil, eris.Errorf("manifest: missing required column %q", col)
		}
	}

	seen := make(map[string]bool)
	var entries []ManifestEntry

	for _, row := range records[1:] {
		shipmentID := getCol(row, colIdx, "shipment_id")
		imagePath := getCol(row, colIdx, "image")
		if shipmentID == "" || imagePath == "" {
			continue
		}
		if seen[shipmentID] {
			continue
		}
		seen[shipmentID] = true

		claim := model.DeliveryClaim{
			ShipmentID:     shipmentID,
			RecipientName:  getCol(row, colIdx, "recipient_name"),
			RecipientPhone: getCol(row, colIdx, "recipient_phone"),
			DeliveryNotes:  getCol(row, colIdx, "notes"),
		}

		if lat, lon := getCol(row, colIdx, "lat"), getCol(row, colIdx, "lon"); lat != "" && lon != "" {
			latF, latErr := strconv.ParseFloat(lat, 64)
			lonF, lonErr := strconv.ParseFloat(lon, 64)
			if latErr == nil && lonErr == nil {
				claim.Location = &model.Geolocation{Lat: latF, Lon: lonF}
			}
		}

		upi := getCol(row, colIdx, "upi")
		bankAccount := getCol(row, colIdx, "bank_account")
		ifsc := getCol(row, colIdx, "ifsc")
		amountStr := getCol(row, colIdx, "amount_paise")
		if amountStr != "" && (upi != "" || bankAccount != "") {
			amount, err := strconv.ParseInt(amountStr, 10, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "manifest: bad amount_paise for shipment %s", shipmentID)
			}
			claim.AmountPaise = amount
			claim.Payee = &model.Payee{
				DriverID:    getCol(row, colIdx, "driver_id"),
				Name:        getCol(row, colIdx, "payee_name"),
				UPIAddress:  upi,
				BankAccount: bankAccount,
				IFSC:        ifsc,
			}
		}

		entries = append(entries, ManifestEntry{Claim: claim, ImagePath: imagePath})
	}

	if len(entries) == 0 {
		return nil, eris.New("manifest: no valid rows")
	}
	return entries, nil
}

func getCol(row []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
