// Package podregistry provides a JSON-RPC client for the POD registry chain
// gateway. The gateway submits registry transactions on the caller's behalf
// and exposes transaction receipts with decoded contract events.
package podregistry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/myna-logistics/settlement-cli/internal/resilience"
)

// Client defines the registry gateway operations.
type Client interface {
	// RegisterRecord submits a registry write and returns the transaction hash.
	RegisterRecord(ctx context.Context, params RegisterParams) (string, error)
	// TransactionReceipt fetches the receipt for a submitted transaction.
	// Returns ErrReceiptPending while the transaction is not yet mined.
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
}

// ErrReceiptPending indicates the transaction has been submitted but not yet
// confirmed. Safe to retry.
var ErrReceiptPending = eris.New("podregistry: receipt pending")

// RegisterParams is the payload for a registry write.
type RegisterParams struct {
	Contract   string `json:"contract"`
	ShipmentID string `json:"shipmentId"`
	ImageHash  string `json:"imageHash"`
	Timestamp  int64  `json:"timestamp"`
	Metadata   string `json:"metadata"`
}

// Receipt is a confirmed transaction receipt with decoded events.
type Receipt struct {
	TxHash      string  `json:"transactionHash"`
	BlockNumber int64   `json:"blockNumber"`
	Status      int     `json:"status"` // 1 success, 0 reverted
	GasUsed     string  `json:"gasUsed,omitempty"`
	Events      []Event `json:"events,omitempty"`
}

// Event is a decoded contract event emitted by the transaction.
type Event struct {
	Name     string `json:"name"`
	RecordID string `json:"recordId,omitempty"`
}

// Option configures the registry client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	rpcURL string
	http   *http.Client
	// nextID must be read and advanced atomically; one client is shared by
	// all concurrent batch workers.
	nextID atomic.Int64
}

// NewClient creates a registry gateway client for the given RPC endpoint.
func NewClient(rpcURL string, opts ...Option) Client {
	c := &httpClient{
		rpcURL: rpcURL,
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

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call performs a single JSON-RPC round trip and returns the raw result.
func (c *httpClient) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, eris.Wrap(err, "podregistry: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "podregistry: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "podregistry: %s request failed", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "podregistry: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("podregistry: %s unexpected status %d: %s", method, resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, eris.Wrap(err, "podregistry: unmarshal response")
	}

	if rpcResp.Error != nil {
		return nil, eris.Errorf("podregistry: %s rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return rpcResp.Result, nil
}

func (c *httpClient) RegisterRecord(ctx context.Context, params RegisterParams) (string, error) {
	result, err := c.call(ctx, "pod_registerRecord", params)
	if err != nil {
		return "", err
	}

	var txHash string
	if err := json.Unmarshal(result, &txHash); err != nil {
		return "", eris.Wrap(err, "podregistry: unmarshal tx hash")
	}
	if txHash == "" {
		return "", eris.New("podregistry: gateway returned empty tx hash")
	}

	return txHash, nil
}

func (c *httpClient) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	result, err := c.call(ctx, "pod_getTransactionReceipt", txHash)
	if err != nil {
		return nil, err
	}

	// A null result means the transaction is not yet mined.
	if len(result) == 0 || string(result) == "null" {
		return nil, ErrReceiptPending
	}

	var receipt Receipt
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, eris.Wrap(err, "podregistry: unmarshal receipt")
	}

	return &receipt, nil
}
