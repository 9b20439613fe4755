package clob

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/joinQuantish/polymarket-mcp/internal/chain"
)

// Signature types accepted by the exchange contracts. Custodial proxy
// wallets sign with the owner EOA key on behalf of the proxy.
const (
	SignatureTypeEOA       = 0
	SignatureTypePolyProxy = 1
)

const authAttestation = "This message attests that I control the given wallet"

// Signer produces the EIP-712 signatures required by the order book: L1
// authentication payloads for credential issuance and signed orders for
// submission. One signer per owner EOA.
type Signer struct {
	key     *ecdsa.PrivateKey
	chainID int64
}

// NewSigner creates a signer from the owner's private key
func NewSigner(key *ecdsa.PrivateKey, chainID int64) *Signer {
	return &Signer{key: key, chainID: chainID}
}

// Address returns the owner EOA address.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// AuthHeaders builds the L1 authentication headers for credential endpoints.
func (s *Signer) AuthHeaders(now time.Time, nonce int64) (map[string]string, error) {
	timestamp := strconv.FormatInt(now.Unix(), 10)

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": []apitypes.Type{
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(s.chainID),
		},
		Message: map[string]interface{}{
			"address":   s.Address().Hex(),
			"timestamp": timestamp,
			"nonce":     big.NewInt(nonce),
			"message":   authAttestation,
		},
	}

	signature, err := s.signTypedData(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign auth payload: %w", err)
	}

	return map[string]string{
		"POLY_ADDRESS":   s.Address().Hex(),
		"POLY_SIGNATURE": signature,
		"POLY_TIMESTAMP": timestamp,
		"POLY_NONCE":     strconv.FormatInt(nonce, 10),
	}, nil
}

// SignOrder signs an order under the given settlement routing. The verifying
// contract differs between the two mutually exclusive routing variants, so
// the same order signed under the wrong routing is rejected by the exchange.
func (s *Signer) SignOrder(order *Order, negRisk bool) (string, error) {
	verifyingContract := chain.CTFExchange
	if negRisk {
		verifyingContract = chain.NegRiskCTFExchange
	}

	tokenID, ok := new(big.Int).SetString(order.TokenID, 10)
	if !ok {
		return "", fmt.Errorf("token id %q is not a decimal integer", order.TokenID)
	}
	makerAmount, ok := new(big.Int).SetString(order.MakerAmount, 10)
	if !ok {
		return "", fmt.Errorf("maker amount %q is not a decimal integer", order.MakerAmount)
	}
	takerAmount, ok := new(big.Int).SetString(order.TakerAmount, 10)
	if !ok {
		return "", fmt.Errorf("taker amount %q is not a decimal integer", order.TakerAmount)
	}
	expiration, ok := new(big.Int).SetString(order.Expiration, 10)
	if !ok {
		return "", fmt.Errorf("expiration %q is not a decimal integer", order.Expiration)
	}

	sideInt := int64(0)
	if order.Side == "SELL" {
		sideInt = 1
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": []apitypes.Type{
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Polymarket CTF Exchange",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(s.chainID),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: map[string]interface{}{
			"salt":          big.NewInt(order.Salt),
			"maker":         common.HexToAddress(order.Maker).Hex(),
			"signer":        common.HexToAddress(order.Signer).Hex(),
			"taker":         common.HexToAddress(order.Taker).Hex(),
			"tokenId":       tokenID,
			"makerAmount":   makerAmount,
			"takerAmount":   takerAmount,
			"expiration":    expiration,
			"nonce":         big.NewInt(0),
			"feeRateBps":    big.NewInt(0),
			"side":          big.NewInt(sideInt),
			"signatureType": big.NewInt(int64(order.SignatureType)),
		},
	}

	return s.signTypedData(typedData)
}

func (s *Signer) signTypedData(typedData apitypes.TypedData) (string, error) {
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("failed to hash typed data: %w", err)
	}

	signature, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}

	// Legacy recovery id offset expected by the verifier
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}
