package orders

import (
	"context"
	"sync"

	"github.com/joinQuantish/polymarket-mcp/internal/clob"
	"github.com/rs/zerolog/log"
)

// RoutingCache remembers which settlement contract governs each token. The
// cache is advisory: a stale entry costs one rejected submission, after which
// the corrected routing is written back. It is the only shared mutable state
// in the order path.
type RoutingCache struct {
	mu     sync.RWMutex
	byID   map[string]bool
	client clob.Client
}

// NewRoutingCache creates a routing cache backed by the order book's market
// lookup.
func NewRoutingCache(client clob.Client) *RoutingCache {
	return &RoutingCache{
		byID:   make(map[string]bool),
		client: client,
	}
}

// NegRisk returns the cached routing for a token, falling back to a remote
// market lookup on a miss. Lookup failures default to standard routing; the
// submission retry corrects a wrong guess.
func (r *RoutingCache) NegRisk(ctx context.Context, tokenID string) bool {
	r.mu.RLock()
	negRisk, ok := r.byID[tokenID]
	r.mu.RUnlock()
	if ok {
		return negRisk
	}

	negRisk, err := r.client.NegRisk(ctx, tokenID)
	if err != nil {
		log.Debug().Err(err).Str("token_id", tokenID).Msg("market routing lookup failed, assuming standard routing")
		return false
	}

	r.Set(tokenID, negRisk)
	return negRisk
}

// Set records the routing for a token.
func (r *RoutingCache) Set(tokenID string, negRisk bool) {
	r.mu.Lock()
	r.byID[tokenID] = negRisk
	r.mu.Unlock()
}
