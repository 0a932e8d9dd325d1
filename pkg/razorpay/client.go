// Package razorpay provides a client for the RazorpayX payouts API.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the payout operations used by the settlement pipeline.
type Client interface {
	// CreatePayout initiates a money transfer. The request's ReferenceID is
	// also sent as the idempotency key, so retried creations are recognized
	// as duplicates by the rail.
	CreatePayout(ctx context.Context, req CreatePayoutRequest) (*Payout, error)
	// FetchPayout retrieves the current rail-reported state of a payout.
	FetchPayout(ctx context.Context, payoutID string) (*Payout, error)
}

// VPA is a UPI virtual payment address fund account.
type VPA struct {
	Address string `json:"address"`
}

// BankAccount is a bank fund account.
type BankAccount struct {
	Name          string `json:"name"`
	IFSC          string `json:"ifsc"`
	AccountNumber string `json:"account_number"`
}

// Contact identifies the payout recipient.
type Contact struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// FundAccount describes where the money goes.
type FundAccount struct {
	AccountType string       `json:"account_type"` // "vpa" or "bank_account"
	VPA         *VPA         `json:"vpa,omitempty"`
	BankAccount *BankAccount `json:"bank_account,omitempty"`
	Contact     Contact      `json:"contact"`
}

// CreatePayoutRequest is the payout creation payload.
type CreatePayoutRequest struct {
	AccountNumber     string      `json:"account_number"`
	FundAccount       FundAccount `json:"fund_account"`
	Amount            int64       `json:"amount"` // minor currency units (paise)
	Currency          string      `json:"currency"`
	Mode              string      `json:"mode"` // "UPI" or "IMPS"
	Purpose           string      `json:"purpose"`
	QueueIfLowBalance bool        `json:"queue_if_low_balance"`
	ReferenceID       string      `json:"reference_id"`
	Narration         string      `json:"narration,omitempty"`
}

// Payout is the rail's representation of a transfer.
type Payout struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Mode          string `json:"mode"`
	ReferenceID   string `json:"reference_id"`
	UTR           string `json:"utr,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	ProcessedAt   int64  `json:"processed_at,omitempty"`
}

// APIError is a structured error reported by the rail (e.g. insufficient
// balance, invalid account). The Description carries the rail's reason
// verbatim.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: %s: %s", e.Code, e.Description)
}

// AsAPIError extracts an APIError from an error chain, if present.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Option configures the Razorpay client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
}

// NewClient creates a new RazorpayX payouts client.
func NewClient(keyID, keySecret string, opts ...Option) Client {
	c := &httpClient{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   "https://api.razorpay.com/v1",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CreatePayout(ctx context.Context, req CreatePayoutRequest) (*Payout, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "razorpay: marshal payout request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payouts", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "razorpay: create request")
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.ReferenceID != "" {
		httpReq.Header.Set("X-Payout-Idempotency", req.ReferenceID)
	}

	return c.do(httpReq)
}

func (c *httpClient) FetchPayout(ctx context.Context, payoutID string) (*Payout, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payouts/"+payoutID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "razorpay: create fetch request")
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	return c.do(httpReq)
}

func (c *httpClient) do(req *http.Request) (*Payout, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "razorpay: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "razorpay: read response body")
	}

	if resp.StatusCode >= 400 {
		var apiResp struct {
			Error APIError `json:"error"`
		}
		if unmarshalErr := json.Unmarshal(body, &apiResp); unmarshalErr == nil && apiResp.Error.Description != "" {
			apiResp.Error.StatusCode = resp.StatusCode
			return nil, &apiResp.Error
		}
		return nil, eris.Errorf("razorpay: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var payout Payout
	if err := json.Unmarshal(body, &payout); err != nil {
		return nil, eris.Wrap(err, "razorpay: unmarshal payout")
	}

	return &payout, nil
}
