package orders

import (
	"context"
	"errors"
	"time"

	"github.com/joinQuantish/polymarket-mcp/internal/clob"
	"github.com/joinQuantish/polymarket-mcp/internal/credentials"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Processor is the order reconciliation loop. Local records can drift from
// the book: a cancel may race a fill, a batch unwind may miss an order, a
// crash may leave SUBMITTING records behind. The loop polls every open order
// and settles the local status against remote ground truth.
type Processor struct {
	db           *Database
	client       clob.Client
	credentials  *credentials.Manager
	processDelay time.Duration
}

func NewProcessor(gormDB *gorm.DB, client clob.Client, credentialMgr *credentials.Manager) *Processor {
	return &Processor{
		db:           NewDatabase(gormDB),
		client:       client,
		credentials:  credentialMgr,
		processDelay: 30 * time.Second,
	}
}

// Start begins the reconciliation loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "order_processor").Logger()
	logger.Info().Msg("starting order reconciliation processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down order reconciliation processor")
			return
		case <-ticker.C:
			if err := p.reconcileOpenOrders(ctx); err != nil {
				logger.Error().Err(err).Msg("failed to reconcile open orders")
			}
		}
	}
}

func (p *Processor) reconcileOpenOrders(ctx context.Context) error {
	logger := log.With().Str("component", "order_processor").Logger()

	orders, err := p.db.GetOpenOrders()
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}
	logger.Debug().Int("open_count", len(orders)).Msg("reconciling open orders")

	for i := range orders {
		order := &orders[i]

		creds, proxyAddress, err := p.credentials.CredentialsFor(order.OwnerAddress)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("order_id", order.OrderID).
				Msg("cannot reconcile order without credentials")
			continue
		}

		remote, err := p.client.GetOrder(ctx, creds, proxyAddress, order.RemoteID)
		switch {
		case errors.Is(err, types.ErrNotFound):
			// Gone from the book with no fill information: treat as cancelled
			order.Status = types.OrderStatusCancelled
		case err != nil:
			logger.Warn().Err(err).Str("order_id", order.OrderID).Msg("remote order read failed")
			continue
		default:
			applyRemoteState(order, remote)
		}

		if err := p.db.UpdateOrder(order); err != nil {
			logger.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to persist reconciled order")
			continue
		}
		if order.Terminal() {
			logger.Info().
				Str("order_id", order.OrderID).
				Str("status", order.Status).
				Float64("filled_size", order.FilledSize).
				Msg("order reconciled to terminal status")
		}
	}

	return nil
}

// applyRemoteState maps the remote view onto the local record.
func applyRemoteState(order *types.Order, remote *clob.RemoteOrder) {
	order.FilledSize = remote.SizeMatched

	switch remote.Status {
	case clob.RemoteStatusLive, clob.RemoteStatusDelayed:
		if remote.SizeMatched > 0 {
			order.Status = types.OrderStatusMatched
		} else {
			order.Status = types.OrderStatusLive
		}
	case clob.RemoteStatusMatched:
		if remote.FullyMatched() {
			order.Status = types.OrderStatusFilled
		} else {
			order.Status = types.OrderStatusMatched
		}
	case clob.RemoteStatusCancelled:
		order.Status = types.OrderStatusCancelled
	case clob.RemoteStatusUnmatched:
		order.Status = types.OrderStatusFailed
	}
}
