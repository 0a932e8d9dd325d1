package settlement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseManifest(t *testing.T) {
	path := writeManifest(t, `shipment_id,image,recipient_name,lat,lon,driver_id,payee_name,upi,amount_paise
SHIP-001,pod1.jpg,A. Kumar,12.9716,77.5946,drv-42,R. Singh,rsingh@upi,50000
SHIP-002,pod2.jpg,B. Rao,,,,,
`)

	entries, err := ParseManifest(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "SHIP-001", first.Claim.ShipmentID)
	assert.Equal(t, "pod1.jpg", first.ImagePath)
	assert.Equal(t, "A. Kumar", first.Claim.RecipientName)
	require.NotNil(t, first.Claim.Location)
	assert.InDelta(t, 12.9716, first.Claim.Location.Lat, 0.0001)
	require.NotNil(t, first.Claim.Payee)
	assert.Equal(t, "rsingh@upi", first.Claim.Payee.UPIAddress)
	assert.Equal(t, int64(50000), first.Claim.AmountPaise)

	second := entries[1]
	assert.Nil(t, second.Claim.Payee)
	assert.Nil(t, second.Claim.Location)
}

func TestParseManifestDeduplicates(t *testing.T) {
	path := writeManifest(t, `shipment_id,image
SHIP-001,pod1.jpg
SHIP-001,pod1-again.jpg
SHIP-002,pod2.jpg
`)

	entries, err := ParseManifest(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "pod1.jpg", entries[0].ImagePath)
}

func TestParseManifestMissingRequiredColumn(t *testing.T) {
	path := writeManifest(t, `shipment_id,recipient_name
SHIP-001,A. Kumar
`)

	_, err := ParseManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required column "image"`)
}

func TestParseManifestSkipsIncompleteRows(t *testing.T) {
	path := writeManifest(t, `shipment_id,image
,pod1.jpg
SHIP-002,
SHIP-003,pod3.jpg
`)

	entries, err := ParseManifest(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "SHIP-003", entries[0].Claim.ShipmentID)
}

func TestParseManifestBadAmount(t *testing.T) {
	path := writeManifest(t, `shipment_id,image,upi,amount_paise
SHIP-001,pod1.jpg,x@upi,not-a-number
`)

	_, err := ParseManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad amount_paise")
}

func TestParseManifestEmpty(t *testing.T) {
	path := writeManifest(t, `shipment_id,image
`)

	_, err := ParseManifest(path)
	require.Error(t, err)
}
