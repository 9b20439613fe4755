package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"github.com/rs/zerolog/log"
)

// Batch size bounds. The book has no atomic multi-order endpoint, so batches
// stay small enough that the unwind window after a mid-batch failure is short.
const (
	minBatchSize = 1
	maxBatchSize = 10
)

// AtomicBatchExecutor submits a group of orders with all-or-nothing
// semantics built on sequential submission: the first failure halts the
// batch and every already-placed member is cancelled best-effort. The
// aggregate result never reports partial success.
type AtomicBatchExecutor struct {
	gateway *Gateway
}

// NewAtomicBatchExecutor creates a new batch executor
func NewAtomicBatchExecutor(gateway *Gateway) *AtomicBatchExecutor {
	return &AtomicBatchExecutor{gateway: gateway}
}

// ExecuteBatch places the requests in order, halting on the first failure.
// On failure every persisted batch member ends CANCELLED locally, including
// the one that failed; requests after the failure point are never submitted
// and leave no record.
func (e *AtomicBatchExecutor) ExecuteBatch(ctx context.Context, owner string, requests []*SubmitRequest) (*types.BatchResult, error) {
	if len(requests) < minBatchSize || len(requests) > maxBatchSize {
		return nil, types.NewValidationError("orders", fmt.Sprintf("batch must contain between %d and %d orders", minBatchSize, maxBatchSize))
	}

	batchID := uuid.New().String()
	logger := log.With().
		Str("batch_id", batchID).
		Str("owner_address", owner).
		Int("size", len(requests)).
		Logger()
	logger.Info().Msg("executing order batch")

	result := &types.BatchResult{
		BatchID:   batchID,
		Timestamp: time.Now(),
	}

	var placed []*types.Order
	for i, req := range requests {
		order, err := e.gateway.Submit(ctx, owner, req)
		if order != nil {
			order.BatchID = batchID
			if uerr := e.gateway.db.UpdateOrder(order); uerr != nil {
				logger.Error().Err(uerr).Str("order_id", order.OrderID).Msg("failed to tag order with batch id")
			}
			placed = append(placed, order)
		}
		if err != nil {
			result.FailedAt = i + 1
			result.Reason = err.Error()
			logger.Warn().
				Int("failed_at", result.FailedAt).
				Str("reason", result.Reason).
				Msg("batch halted, unwinding placed orders")
			e.unwind(ctx, owner, placed)
			result.Orders = e.collect(batchID, placed)
			return result, nil
		}
	}

	result.Success = true
	result.Orders = e.collect(batchID, placed)
	logger.Info().Msg("batch fully placed")
	return result, nil
}

// unwind best-effort cancels every placed member and forces all of them to
// CANCELLED locally. A cancel failure is logged and the record is cancelled
// anyway: the reconciliation loop catches any order that survived on the
// book.
func (e *AtomicBatchExecutor) unwind(ctx context.Context, owner string, placed []*types.Order) {
	for _, order := range placed {
		if order.RemoteID != "" && !order.Terminal() {
			if _, err := e.gateway.Cancel(ctx, owner, order.OrderID); err != nil {
				log.Error().Err(err).Str("order_id", order.OrderID).Msg("batch unwind cancel failed")
			}
		}
		fresh, err := e.gateway.db.GetOrder(order.OrderID)
		if err != nil {
			continue
		}
		if fresh.Status != types.OrderStatusFilled {
			fresh.Status = types.OrderStatusCancelled
			if err := e.gateway.db.UpdateOrder(fresh); err != nil {
				log.Error().Err(err).Str("order_id", fresh.OrderID).Msg("failed to record batch unwind")
			}
		}
	}
}

func (e *AtomicBatchExecutor) collect(batchID string, placed []*types.Order) []types.Order {
	orders, err := e.gateway.db.GetOrdersByBatch(batchID)
	if err != nil {
		log.Error().Err(err).Str("batch_id", batchID).Msg("failed to load batch members")
		out := make([]types.Order, 0, len(placed))
		for _, o := range placed {
			out = append(out, *o)
		}
		return out
	}
	return orders
}
