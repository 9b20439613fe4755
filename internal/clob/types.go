package clob

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"time"
)

// Remote order statuses reported by the order book.
const (
	RemoteStatusLive      = "LIVE"
	RemoteStatusMatched   = "MATCHED"
	RemoteStatusDelayed   = "DELAYED"
	RemoteStatusUnmatched = "UNMATCHED"
	RemoteStatusCancelled = "CANCELED"
)

// Credentials are the API-level trading credentials issued by the order
// book, distinct from the blockchain signing key.
type Credentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// DecodeSecret decodes the shared secret used for request signing. The
// order book issues URL-safe base64; standard base64 is tolerated for
// legacy credentials.
func DecodeSecret(secret string) ([]byte, error) {
	if key, err := base64.URLEncoding.DecodeString(secret); err == nil {
		return key, nil
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("secret is not valid base64: %w", err)
	}
	return key, nil
}

// Order is the signed order payload submitted to the order book.
type Order struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// BuildOrder converts a price/size pair into the integer amounts the
// exchange contracts settle in. Collateral and outcome tokens both carry six
// decimals; buys give collateral for tokens, sells the reverse.
func BuildOrder(tokenID, side string, price, size float64, maker, signer string, expiration *time.Time) *Order {
	sizeUnits := big.NewInt(int64(size*100+0.5) * 10000)
	collateralUnits := big.NewInt(int64(size*price*10000+0.5) * 100)

	makerAmount, takerAmount := collateralUnits, sizeUnits
	if side == "SELL" {
		makerAmount, takerAmount = sizeUnits, collateralUnits
	}

	expires := int64(0)
	if expiration != nil {
		expires = expiration.Unix()
	}

	return &Order{
		Salt:          time.Now().UnixNano() % 1_000_000_000,
		Maker:         maker,
		Signer:        signer,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       tokenID,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		Expiration:    fmt.Sprintf("%d", expires),
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: SignatureTypePolyProxy,
	}
}

// PlaceResult is the normalized response to an order submission. RemoteID is
// empty when the order book did not return a concrete identifier, which
// callers must treat as failure even when Success is set: the service
// sometimes reports errors inside success-shaped payloads.
type PlaceResult struct {
	Success  bool
	RemoteID string
	Status   string
	ErrorMsg string
}

// RemoteOrder is the polled state of an order resting on the book.
type RemoteOrder struct {
	RemoteID     string
	Status       string
	OriginalSize float64
	SizeMatched  float64
}

// FullyMatched reports whether the remote order has no unmatched remainder.
func (o *RemoteOrder) FullyMatched() bool {
	return o.OriginalSize > 0 && o.SizeMatched >= o.OriginalSize
}

// BalanceAllowance is the order book's view of spendable collateral for an
// account, scoped to the funding address the query was issued for.
type BalanceAllowance struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}
