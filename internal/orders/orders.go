package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joinQuantish/polymarket-mcp/internal/audit"
	"github.com/joinQuantish/polymarket-mcp/internal/clob"
	"github.com/joinQuantish/polymarket-mcp/internal/credentials"
	"github.com/joinQuantish/polymarket-mcp/internal/keys"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Price bounds for the order book. The valid band is the open interval:
// prices at exactly the bounds are rejected locally before any remote call.
const (
	minPrice = 0.01
	maxPrice = 0.99
)

// SubmitRequest describes one order to place.
type SubmitRequest struct {
	TokenID   string     `json:"token_id"`
	Side      string     `json:"side"`
	Price     float64    `json:"price"`
	Size      float64    `json:"size"`
	OrderType string     `json:"order_type"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Gateway owns order submission, cancellation and local record keeping. It
// signs orders with the owner key, funds them from the proxy wallet, and
// routes them through whichever settlement contract governs the market.
type Gateway struct {
	db          *Database
	client      clob.Client
	credentials *credentials.Manager
	keys        keys.Store
	routing     *RoutingCache
	chainID     int64
	audit       *audit.Recorder
}

// NewGateway creates a new order gateway
func NewGateway(gormDB *gorm.DB, client clob.Client, credentialMgr *credentials.Manager, store keys.Store, routing *RoutingCache, chainID int64, recorder *audit.Recorder) *Gateway {
	return &Gateway{
		db:          NewDatabase(gormDB),
		client:      client,
		credentials: credentialMgr,
		keys:        store,
		routing:     routing,
		chainID:     chainID,
		audit:       recorder,
	}
}

// Submit validates, signs and places a single order. A local record exists
// for every submission attempt; LIVE is only ever recorded together with a
// concrete remote identifier.
func (g *Gateway) Submit(ctx context.Context, owner string, req *SubmitRequest) (*types.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	creds, proxyAddress, err := g.credentials.CredentialsFor(owner)
	if err != nil {
		return nil, err
	}
	key, err := g.keys.Get(owner)
	if err != nil {
		return nil, err
	}
	signer := clob.NewSigner(key, g.chainID)

	order := &types.Order{
		OrderID:      uuid.New().String(),
		OwnerAddress: owner,
		TokenID:      req.TokenID,
		Side:         req.Side,
		Price:        req.Price,
		Size:         req.Size,
		OrderType:    req.OrderType,
		ExpiresAt:    req.ExpiresAt,
		Status:       types.OrderStatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := g.db.CreateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to create order record: %w", err)
	}

	order.Status = types.OrderStatusSubmitting
	if err := g.db.UpdateOrder(order); err != nil {
		return nil, err
	}

	result, err := g.place(ctx, order, creds, proxyAddress, signer)
	if err != nil {
		order.Status = types.OrderStatusFailed
		if uerr := g.db.UpdateOrder(order); uerr != nil {
			log.Error().Err(uerr).Str("order_id", order.OrderID).Msg("failed to record order failure")
		}
		g.audit.Record(owner, "order_submit", fmt.Sprintf("order %s failed: %v", order.OrderID, err), false)
		return order, err
	}

	// The order book sometimes reports errors inside success-shaped payloads.
	// Without a concrete remote identifier the order is failed, never LIVE.
	if !result.Success || result.RemoteID == "" {
		order.Status = types.OrderStatusFailed
		if uerr := g.db.UpdateOrder(order); uerr != nil {
			log.Error().Err(uerr).Str("order_id", order.OrderID).Msg("failed to record order failure")
		}
		reason := result.ErrorMsg
		if reason == "" {
			reason = "order book returned no order identifier"
		}
		g.audit.Record(owner, "order_submit", fmt.Sprintf("order %s rejected: %s", order.OrderID, reason), false)
		return order, &types.RemoteRejection{Op: "place order", Reason: reason}
	}

	order.RemoteID = result.RemoteID
	switch result.Status {
	case clob.RemoteStatusMatched:
		order.Status = types.OrderStatusMatched
	default:
		order.Status = types.OrderStatusLive
	}
	if err := g.db.UpdateOrder(order); err != nil {
		return nil, err
	}

	g.audit.Record(owner, "order_submit", fmt.Sprintf("order %s placed as %s", order.OrderID, order.RemoteID), true)
	log.Info().
		Str("order_id", order.OrderID).
		Str("remote_id", order.RemoteID).
		Str("status", order.Status).
		Msg("order placed")
	return order, nil
}

// place signs and submits the order under the cached routing, retrying
// exactly once under the opposite routing when the rejection looks like a
// misrouted balance check. A successful retry writes the corrected routing
// back to the cache.
func (g *Gateway) place(ctx context.Context, order *types.Order, creds *clob.Credentials, proxyAddress string, signer *clob.Signer) (*clob.PlaceResult, error) {
	negRisk := g.routing.NegRisk(ctx, order.TokenID)

	result, err := g.placeSigned(ctx, order, creds, proxyAddress, signer, negRisk)
	if err == nil || !isRoutingRejection(err) {
		return result, err
	}

	log.Info().
		Str("order_id", order.OrderID).
		Bool("tried_neg_risk", negRisk).
		Msg("submission rejected on balance check, retrying under opposite routing")

	result, retryErr := g.placeSigned(ctx, order, creds, proxyAddress, signer, !negRisk)
	if retryErr != nil {
		// The retry did not help; report the original rejection
		return nil, err
	}
	g.routing.Set(order.TokenID, !negRisk)
	return result, nil
}

func (g *Gateway) placeSigned(ctx context.Context, order *types.Order, creds *clob.Credentials, proxyAddress string, signer *clob.Signer, negRisk bool) (*clob.PlaceResult, error) {
	signed := clob.BuildOrder(order.TokenID, order.Side, order.Price, order.Size, proxyAddress, signer.Address().Hex(), order.ExpiresAt)
	signature, err := signer.SignOrder(signed, negRisk)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}
	signed.Signature = signature

	return g.client.PlaceOrder(ctx, creds, proxyAddress, signed, order.OrderType)
}

// isRoutingRejection reports whether a rejection reads like the balance
// check of the wrong settlement contract. Misrouted orders fail with a
// balance or allowance complaint even when the account is funded.
func isRoutingRejection(err error) bool {
	var rejection *types.RemoteRejection
	if !errors.As(err, &rejection) {
		return false
	}
	reason := strings.ToLower(rejection.Reason)
	return strings.Contains(reason, "balance") || strings.Contains(reason, "allowance")
}

// Cancel removes a resting order from the book and reconciles the local
// record with what actually happened: an order can fill concurrently with
// the cancel, and the final state comes from re-reading the book, not from
// the cancel call succeeding.
func (g *Gateway) Cancel(ctx context.Context, owner, orderID string) (*types.Order, error) {
	order, err := g.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.OwnerAddress != owner {
		return nil, types.ErrNotFound
	}
	if order.Terminal() {
		return order, nil
	}

	// An order without a remote identifier never reached the book
	if order.RemoteID == "" {
		order.Status = types.OrderStatusCancelled
		if err := g.db.UpdateOrder(order); err != nil {
			return nil, err
		}
		return order, nil
	}

	creds, proxyAddress, err := g.credentials.CredentialsFor(owner)
	if err != nil {
		return nil, err
	}

	// Short-circuit: already fully matched, nothing left to cancel
	if remote, err := g.client.GetOrder(ctx, creds, proxyAddress, order.RemoteID); err == nil && remote.FullyMatched() {
		order.Status = types.OrderStatusFilled
		order.FilledSize = remote.SizeMatched
		if uerr := g.db.UpdateOrder(order); uerr != nil {
			return nil, uerr
		}
		return order, nil
	}

	if err := g.client.CancelOrder(ctx, creds, proxyAddress, order.RemoteID); err != nil {
		g.audit.Record(owner, "order_cancel", fmt.Sprintf("cancel of %s failed: %v", order.OrderID, err), false)
		return nil, err
	}

	// Re-read to classify the race between the cancel and any concurrent fill
	remote, err := g.client.GetOrder(ctx, creds, proxyAddress, order.RemoteID)
	switch {
	case errors.Is(err, types.ErrNotFound):
		order.Status = types.OrderStatusCancelled
	case err != nil:
		// Cancel went through but the re-read failed; the reconciliation
		// loop settles the final filled size later
		log.Warn().Err(err).Str("order_id", order.OrderID).Msg("post-cancel re-read failed")
		order.Status = types.OrderStatusCancelled
	case remote.FullyMatched():
		order.Status = types.OrderStatusFilled
		order.FilledSize = remote.SizeMatched
	default:
		order.Status = types.OrderStatusCancelled
		order.FilledSize = remote.SizeMatched
	}

	if err := g.db.UpdateOrder(order); err != nil {
		return nil, err
	}

	g.audit.Record(owner, "order_cancel", fmt.Sprintf("order %s resolved to %s", order.OrderID, order.Status), true)
	return order, nil
}

// CancelAll cancels every resting order for the account and marks the local
// live records accordingly.
func (g *Gateway) CancelAll(ctx context.Context, owner string) error {
	creds, proxyAddress, err := g.credentials.CredentialsFor(owner)
	if err != nil {
		return err
	}

	if err := g.client.CancelAll(ctx, creds, proxyAddress); err != nil {
		return err
	}

	open, err := g.db.GetOrdersByOwner(owner)
	if err != nil {
		return err
	}
	for i := range open {
		if open[i].Terminal() {
			continue
		}
		open[i].Status = types.OrderStatusCancelled
		if err := g.db.UpdateOrder(&open[i]); err != nil {
			log.Error().Err(err).Str("order_id", open[i].OrderID).Msg("failed to record cancel-all result")
		}
	}

	g.audit.Record(owner, "order_cancel_all", "all resting orders cancelled", true)
	return nil
}

// GetOrder returns the local record of one order.
func (g *Gateway) GetOrder(owner, orderID string) (*types.Order, error) {
	order, err := g.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.OwnerAddress != owner {
		return nil, types.ErrNotFound
	}
	return order, nil
}

// ListOrders returns every local order for the account, newest first.
func (g *Gateway) ListOrders(owner string) ([]types.Order, error) {
	return g.db.GetOrdersByOwner(owner)
}

func validateRequest(req *SubmitRequest) error {
	if req.TokenID == "" {
		return types.NewValidationError("token_id", "token id is required")
	}
	if req.Side != types.SideBuy && req.Side != types.SideSell {
		return types.NewValidationError("side", "side must be BUY or SELL")
	}
	if req.Price <= minPrice || req.Price >= maxPrice {
		return types.NewValidationError("price", fmt.Sprintf("price must be strictly between %.2f and %.2f", minPrice, maxPrice))
	}
	if req.Size <= 0 {
		return types.NewValidationError("size", "size must be positive")
	}
	switch req.OrderType {
	case "":
		req.OrderType = types.OrderTypeGTC
	case types.OrderTypeGTC, types.OrderTypeFOK, types.OrderTypeFAK:
	case types.OrderTypeGTD:
		if req.ExpiresAt == nil || !req.ExpiresAt.After(time.Now()) {
			return types.NewValidationError("expires_at", "GTD orders require a future expiration")
		}
	default:
		return types.NewValidationError("order_type", "order type must be one of GTC, GTD, FOK, FAK")
	}
	return nil
}
