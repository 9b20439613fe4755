package clob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"github.com/rs/zerolog/log"
)

// Client is the remote order book. Credential endpoints authenticate with an
// L1 signature from the owner key; trading endpoints authenticate with L2
// HMAC headers derived from issued credentials. The funding address stamped
// into the L2 headers is always an explicit parameter, never ambient state.
type Client interface {
	DeriveAPIKey(ctx context.Context, signer *Signer) (*Credentials, error)
	CreateAPIKey(ctx context.Context, signer *Signer) (*Credentials, error)
	PlaceOrder(ctx context.Context, creds *Credentials, fundingAddress string, order *Order, orderType string) (*PlaceResult, error)
	GetOrder(ctx context.Context, creds *Credentials, fundingAddress, remoteID string) (*RemoteOrder, error)
	CancelOrder(ctx context.Context, creds *Credentials, fundingAddress, remoteID string) error
	CancelAll(ctx context.Context, creds *Credentials, fundingAddress string) error
	NegRisk(ctx context.Context, tokenID string) (bool, error)
	GetBalanceAllowance(ctx context.Context, creds *Credentials, fundingAddress string) (*BalanceAllowance, error)
}

// HTTPClient implements Client against the order book HTTP API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new order book client
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DeriveAPIKey recovers credentials previously issued for the signing key.
// Failure here is the expected branch for first-time accounts.
func (c *HTTPClient) DeriveAPIKey(ctx context.Context, signer *Signer) (*Credentials, error) {
	headers, err := signer.AuthHeaders(time.Now(), 0)
	if err != nil {
		return nil, err
	}
	return c.credentialRequest(ctx, http.MethodGet, "/auth/derive-api-key", nil, headers)
}

// CreateAPIKey mints fresh credentials for the signing key.
func (c *HTTPClient) CreateAPIKey(ctx context.Context, signer *Signer) (*Credentials, error) {
	nonce := time.Now().UnixNano()
	headers, err := signer.AuthHeaders(time.Now(), nonce)
	if err != nil {
		return nil, err
	}
	body := []byte(fmt.Sprintf(`{"nonce":%d}`, nonce))
	return c.credentialRequest(ctx, http.MethodPost, "/auth/api-key", body, headers)
}

func (c *HTTPClient) credentialRequest(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Credentials, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.TransientError{Op: "credential request", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &types.TransientError{Op: "credential request", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.RemoteRejection{
			Op:     "credential request",
			Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var creds Credentials
	if err := json.Unmarshal(respBody, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return &creds, nil
}

// PlaceOrder submits a signed order. The response is normalized so callers
// only ever see one shape regardless of which key the order book used for
// the identifier.
func (c *HTTPClient) PlaceOrder(ctx context.Context, creds *Credentials, fundingAddress string, order *Order, orderType string) (*PlaceResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"order":     order,
		"owner":     creds.APIKey,
		"orderType": orderType,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if err := c.addL2Headers(req, creds, fundingAddress, payload); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.TransientError{Op: "place order", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &types.TransientError{Op: "place order", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.RemoteRejection{
			Op:     "place order",
			Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	return normalizePlaceResponse(respBody)
}

// normalizePlaceResponse maps the order book's submission payload onto one
// canonical shape. The remote identifier arrives under different keys
// depending on the call path, so the inconsistency stays at this boundary.
func normalizePlaceResponse(body []byte) (*PlaceResult, error) {
	var raw struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
		Error    string `json:"error"`
		OrderID  string `json:"orderId"`
		OrderID2 string `json:"orderID"`
		ID       string `json:"id"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	result := &PlaceResult{
		Success:  raw.Success,
		Status:   strings.ToUpper(raw.Status),
		ErrorMsg: raw.ErrorMsg,
	}
	if result.ErrorMsg == "" {
		result.ErrorMsg = raw.Error
	}
	for _, id := range []string{raw.OrderID, raw.OrderID2, raw.ID} {
		if id != "" {
			result.RemoteID = id
			break
		}
	}
	return result, nil
}

// GetOrder reads the current remote state of an order.
func (c *HTTPClient) GetOrder(ctx context.Context, creds *Credentials, fundingAddress, remoteID string) (*RemoteOrder, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/order/"+remoteID, nil)
	if err != nil {
		return nil, err
	}
	if err := c.addL2Headers(req, creds, fundingAddress, nil); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.TransientError{Op: "get order", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, types.ErrNotFound
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &types.TransientError{Op: "get order", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.RemoteRejection{
			Op:     "get order",
			Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var raw struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		OriginalSize string `json:"original_size"`
		SizeMatched  string `json:"size_matched"`
	}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode order state: %w", err)
	}

	originalSize, _ := strconv.ParseFloat(raw.OriginalSize, 64)
	sizeMatched, _ := strconv.ParseFloat(raw.SizeMatched, 64)

	return &RemoteOrder{
		RemoteID:     raw.ID,
		Status:       strings.ToUpper(raw.Status),
		OriginalSize: originalSize,
		SizeMatched:  sizeMatched,
	}, nil
}

// CancelOrder cancels a resting order. A 404 means the order already left
// the book (filled or cancelled concurrently) and is not an error.
func (c *HTTPClient) CancelOrder(ctx context.Context, creds *Credentials, fundingAddress, remoteID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/order/"+remoteID, nil)
	if err != nil {
		return err
	}
	if err := c.addL2Headers(req, creds, fundingAddress, nil); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.TransientError{Op: "cancel order", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		log.Debug().Str("remote_id", remoteID).Msg("cancel target already left the book")
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return &types.TransientError{Op: "cancel order", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	default:
		return &types.RemoteRejection{
			Op:     "cancel order",
			Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}
}

// CancelAll cancels every resting order owned by the credentials.
func (c *HTTPClient) CancelAll(ctx context.Context, creds *Credentials, fundingAddress string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/cancel-all", nil)
	if err != nil {
		return err
	}
	if err := c.addL2Headers(req, creds, fundingAddress, nil); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.TransientError{Op: "cancel all", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return &types.RemoteRejection{
			Op:     "cancel all",
			Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}
	return nil
}

// NegRisk looks up which settlement routing governs the market a token
// belongs to. Public endpoint, no authentication.
func (c *HTTPClient) NegRisk(ctx context.Context, tokenID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/markets?clob_token_ids="+tokenID, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &types.TransientError{Op: "market lookup", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("market lookup failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var markets []struct {
		NegRisk bool `json:"neg_risk"`
	}
	if err := json.Unmarshal(respBody, &markets); err != nil {
		return false, fmt.Errorf("failed to decode market lookup: %w", err)
	}
	if len(markets) == 0 {
		return false, fmt.Errorf("no market found for token %s", tokenID)
	}
	return markets[0].NegRisk, nil
}

// GetBalanceAllowance reads the order book's view of spendable collateral
// for the funding address.
func (c *HTTPClient) GetBalanceAllowance(ctx context.Context, creds *Credentials, fundingAddress string) (*BalanceAllowance, error) {
	path := "/balance-allowance?asset_type=COLLATERAL&signature_type=" + strconv.Itoa(SignatureTypePolyProxy)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if err := c.addL2Headers(req, creds, fundingAddress, nil); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.TransientError{Op: "balance allowance", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("balance allowance failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result BalanceAllowance
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode balance allowance: %w", err)
	}
	return &result, nil
}

// addL2Headers stamps HMAC authentication headers onto a trading request.
// fundingAddress is threaded in explicitly by the caller: the same
// credentials can serve queries scoped to either the owner EOA or the proxy
// wallet, and the distinction must not live in shared state.
func (c *HTTPClient) addL2Headers(req *http.Request, creds *Credentials, fundingAddress string, body []byte) error {
	if creds == nil {
		return &types.ValidationError{Field: "credentials", Message: "no trading credentials issued for this account"}
	}

	key, err := DecodeSecret(creds.Secret)
	if err != nil {
		return types.ErrCorruptedCredentials
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := timestamp + req.Method + req.URL.Path
	if body != nil {
		message += string(body)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_ADDRESS", fundingAddress)
	req.Header.Set("POLY_API_KEY", creds.APIKey)
	req.Header.Set("POLY_PASSPHRASE", creds.Passphrase)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_SIGNATURE", signature)
	return nil
}
