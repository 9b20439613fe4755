package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joinQuantish/polymarket-mcp/internal/types"
)

// Relay transaction states, normalized from the wire values.
const (
	StatePending   = "PENDING"
	StateConfirmed = "CONFIRMED"
	StateMined     = "MINED"
	StateFailed    = "FAILED"
)

// Call is one contract call in a relayed batch. From identifies the owner
// EOA the relay executes on behalf of; deployment calls carry only From and
// the factory address.
type Call struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	TypeCode string `json:"type"`
}

// SubmitResult is the immediate response to a relay submission. Deployment
// submissions return the new proxy address directly; everything else returns
// only an opaque transaction id to poll.
type SubmitResult struct {
	TransactionID string
	Address       string
}

// Transaction is the polled view of a relayed transaction.
type Transaction struct {
	ID      string
	State   string
	Hash    string
	Address string
}

// Client is the gasless transaction relay. Submit sends a batch of calls;
// Poll reads the state of a previously submitted transaction.
type Client interface {
	Submit(ctx context.Context, calls []Call) (*SubmitResult, error)
	Poll(ctx context.Context, id string) (*Transaction, error)
	// Configured reports whether relay API credentials are present. Surfaced
	// in unresolved-deployment diagnostics.
	Configured() bool
}

// HTTPClient implements Client against the relay HTTP API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewHTTPClient creates a relay client. API credentials may be empty; the
// relay then runs in unauthenticated mode with lower rate limits.
func NewHTTPClient(baseURL, apiKey, apiSecret string) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *HTTPClient) Configured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

func (c *HTTPClient) Submit(ctx context.Context, calls []Call) (*SubmitResult, error) {
	payload, err := json.Marshal(map[string]interface{}{"transactions": calls})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Configured() {
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("X-Api-Secret", c.apiSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.TransientError{Op: "relay submit", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &types.TransientError{Op: "relay submit", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.RemoteRejection{
			Op:     "relay submit",
			Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	return normalizeSubmitResponse(body)
}

func (c *HTTPClient) Poll(ctx context.Context, id string) (*Transaction, error) {
	values := url.Values{}
	values.Set("id", id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transaction?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.Configured() {
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("X-Api-Secret", c.apiSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.TransientError{Op: "relay poll", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &types.TransientError{Op: "relay poll", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.RemoteRejection{
			Op:     "relay poll",
			Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
		}
	}

	return normalizePollResponse(body)
}

// normalizeSubmitResponse maps the relay's submit payload onto one canonical
// shape. The relay reports the transaction id under different keys depending
// on the call path, so the inconsistency is contained here and business logic
// only ever sees SubmitResult.
func normalizeSubmitResponse(body []byte) (*SubmitResult, error) {
	var raw struct {
		TransactionID  string `json:"transactionID"`
		TransactionID2 string `json:"transactionId"`
		ID             string `json:"id"`
		Address        string `json:"address"`
		ProxyAddress   string `json:"proxyAddress"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode relay submit response: %w", err)
	}

	result := &SubmitResult{}
	for _, id := range []string{raw.TransactionID, raw.TransactionID2, raw.ID} {
		if id != "" {
			result.TransactionID = id
			break
		}
	}
	if raw.Address != "" {
		result.Address = raw.Address
	} else {
		result.Address = raw.ProxyAddress
	}

	if result.TransactionID == "" && result.Address == "" {
		return nil, fmt.Errorf("relay submit response carried neither a transaction id nor an address: %s", string(body))
	}
	return result, nil
}

// normalizePollResponse maps the relay's poll payload onto the canonical
// transaction shape and state names.
func normalizePollResponse(body []byte) (*Transaction, error) {
	var raw struct {
		TransactionID string `json:"transactionID"`
		ID            string `json:"id"`
		State         string `json:"state"`
		Status        string `json:"status"`
		Hash          string `json:"transactionHash"`
		Address       string `json:"address"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode relay poll response: %w", err)
	}

	tx := &Transaction{
		ID:      raw.TransactionID,
		Hash:    raw.Hash,
		Address: raw.Address,
	}
	if tx.ID == "" {
		tx.ID = raw.ID
	}

	state := raw.State
	if state == "" {
		state = raw.Status
	}
	switch strings.ToUpper(strings.TrimPrefix(state, "STATE_")) {
	case "NEW", "PENDING", "EXECUTED":
		tx.State = StatePending
	case "CONFIRMED":
		tx.State = StateConfirmed
	case "MINED":
		tx.State = StateMined
	case "FAILED", "INVALID":
		tx.State = StateFailed
	default:
		return nil, fmt.Errorf("unknown relay transaction state %q", state)
	}

	return tx, nil
}
