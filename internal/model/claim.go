package model

import (
	"github.com/rotisserie/eris"
)

// Geolocation is the capture location reported with a claim.
type Geolocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Payee identifies who receives the delivery payout and over which rail.
// A UPI address selects instant transfer; a bank account plus IFSC selects
// a bank transfer. When both are present, UPI wins.
type Payee struct {
	DriverID    string `json:"driver_id"`
	Name        string `json:"name"`
	UPIAddress  string `json:"upi_address,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
	IFSC        string `json:"ifsc,omitempty"`
}

// DeliveryClaim is a single proof-of-delivery submission awaiting settlement.
// It is immutable once constructed and lives only for the duration of one
// settlement attempt.
type DeliveryClaim struct {
	ShipmentID     string       `json:"shipment_id"`
	RecipientName  string       `json:"recipient_name,omitempty"`
	RecipientPhone string       `json:"recipient_phone,omitempty"`
	DeliveryNotes  string       `json:"delivery_notes,omitempty"`
	Location       *Geolocation `json:"location,omitempty"`

	// Image holds the raw proof photo bytes. ImageMIME defaults to
	// image/jpeg when empty.
	Image     []byte `json:"-"`
	ImageMIME string `json:"image_mime,omitempty"`

	// Payee and AmountPaise describe the requested payout. A payout is
	// attempted only when both are set (see PayoutRequested).
	Payee       *Payee `json:"payee,omitempty"`
	AmountPaise int64  `json:"amount_paise,omitempty"`
}

// Validate checks the required claim fields.
func (c DeliveryClaim) Validate() error {
	if c.ShipmentID == "" {
		return eris.New("claim: shipment id is required")
	}
	if len(c.Image) == 0 {
		return eris.New("claim: image is required")
	}
	if c.AmountPaise < 0 {
		return eris.New("claim: amount must not be negative")
	}
	return nil
}

// PayoutRequested reports whether the claim asks for a payout after
// recording: payee identity present and a positive amount.
func (c DeliveryClaim) PayoutRequested() bool {
	return c.Payee != nil && c.AmountPaise > 0
}

// MIMEType returns the image MIME type, defaulting to image/jpeg.
func (c DeliveryClaim) MIMEType() string {
	if c.ImageMIME == "" {
		return "image/jpeg"
	}
	return c.ImageMIME
}
