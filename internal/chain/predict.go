package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Proxy wallet factory on Polygon and the keccak hash of the proxy creation
// code it deploys. Both are fixed per chain deployment.
var (
	ProxyFactoryAddress = common.HexToAddress("0xaacFeEa03eb1561C4e67d661e40682Bd20E3541b")
	proxyInitCodeHash   = common.HexToHash("0x58b6e88a1a90574f8d6e1124f45b70e478384ac0cf5b0bc4564481dbc8b18302")
)

// PredictProxyAddress derives the deterministic proxy wallet address for an
// owner EOA. The factory deploys via CREATE2 with a salt derived from the
// owner address, so the result is a pure function of the owner: no I/O, and
// identical owners always map to identical proxy addresses.
//
// It is used both as a pre-deployment check and as the last-resort recovery
// anchor when the local record, the relay and the chain disagree.
func PredictProxyAddress(owner common.Address) common.Address {
	salt := crypto.Keccak256Hash(common.LeftPadBytes(owner.Bytes(), 32))
	return crypto.CreateAddress2(ProxyFactoryAddress, salt, proxyInitCodeHash.Bytes())
}
