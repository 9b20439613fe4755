package chain

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPredictProxyAddressDeterministic(t *testing.T) {
	owner := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	first := PredictProxyAddress(owner)
	second := PredictProxyAddress(owner)

	if first != second {
		t.Fatalf("prediction not deterministic: %s != %s", first.Hex(), second.Hex())
	}
	if first == (common.Address{}) {
		t.Fatal("predicted the zero address")
	}
	if first == owner {
		t.Fatal("predicted address must differ from the owner")
	}
}

func TestPredictProxyAddressDistinctOwners(t *testing.T) {
	a := PredictProxyAddress(common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))
	b := PredictProxyAddress(common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"))

	if a == b {
		t.Fatalf("distinct owners predicted the same proxy address %s", a.Hex())
	}
}

func TestPredictProxyAddressCaseInsensitive(t *testing.T) {
	mixed := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	lower := common.HexToAddress(strings.ToLower("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))

	if PredictProxyAddress(mixed) != PredictProxyAddress(lower) {
		t.Fatal("prediction must not depend on hex casing of the owner")
	}
}
