package keys

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
)

// Store holds the owner EOA keys the service custodies. Encryption at rest
// is handled by the deployment environment, not here.
type Store interface {
	// Generate mints a fresh owner key and returns its address.
	Generate() (common.Address, error)
	// Import registers an existing hex-encoded private key.
	Import(hexKey string) (common.Address, error)
	// Get returns the private key for an owner address.
	Get(owner string) (*ecdsa.PrivateKey, error)
}

// MemoryStore is an in-process Store keyed by lowercased owner address.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]*ecdsa.PrivateKey
}

// NewMemoryStore creates an empty in-memory key store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]*ecdsa.PrivateKey)}
}

func (s *MemoryStore) Generate() (common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to generate owner key: %w", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	s.mu.Lock()
	s.keys[strings.ToLower(addr.Hex())] = key
	s.mu.Unlock()

	return addr, nil
}

func (s *MemoryStore) Import(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return common.Address{}, types.NewValidationError("private_key", "not a valid secp256k1 key")
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	s.mu.Lock()
	s.keys[strings.ToLower(addr.Hex())] = key
	s.mu.Unlock()

	return addr, nil
}

func (s *MemoryStore) Get(owner string) (*ecdsa.PrivateKey, error) {
	s.mu.RLock()
	key, ok := s.keys[strings.ToLower(owner)]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no signing key for owner %s: %w", owner, types.ErrNotFound)
	}
	return key, nil
}
