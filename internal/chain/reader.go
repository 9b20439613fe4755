package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Function selectors for the read-only verification calls.
var (
	allowanceSelector        = []byte{0xdd, 0x62, 0xed, 0x3e} // allowance(address,address)
	isApprovedForAllSelector = []byte{0xe9, 0x85, 0xe9, 0xc5} // isApprovedForAll(address,address)
)

// Reader is the read-only chain access used to verify ground truth. It is
// never used to mutate state; every mutation flows through the relay.
type Reader interface {
	// CodeAt returns the contract bytecode at addr, empty if none.
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	// Allowance returns the ERC-20 allowance granted by owner to spender.
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	// IsApprovedForAll returns the ERC-1155 operator approval of owner for operator.
	IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error)
}

// RPCReader implements Reader over a JSON-RPC endpoint.
type RPCReader struct {
	client *ethclient.Client
}

// NewRPCReader dials the given RPC endpoint.
func NewRPCReader(rpcURL string) (*RPCReader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}
	return &RPCReader{client: client}, nil
}

func (r *RPCReader) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := r.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read code at %s: %w", addr.Hex(), err)
	}
	return code, nil
}

func (r *RPCReader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data := make([]byte, 0, 68)
	data = append(data, allowanceSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(spender.Bytes(), 32)...)

	result, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("allowance call failed: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

func (r *RPCReader) IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	data := make([]byte, 0, 68)
	data = append(data, isApprovedForAllSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(operator.Bytes(), 32)...)

	result, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("isApprovedForAll call failed: %w", err)
	}

	return new(big.Int).SetBytes(result).Sign() != 0, nil
}
