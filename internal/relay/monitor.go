package relay

import (
	"context"
	"time"

	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"github.com/rs/zerolog/log"
)

const (
	submitMaxAttempts = 3
	submitBackoffBase = 500 * time.Millisecond
)

// Monitor is the submit/poll primitive shared by every component that mutates
// on-chain state through the relay.
type Monitor struct {
	client Client
}

// NewMonitor creates a new monitor over the given relay client
func NewMonitor(client Client) *Monitor {
	return &Monitor{client: client}
}

// Configured reports whether the underlying relay carries API credentials.
func (m *Monitor) Configured() bool {
	return m.client.Configured()
}

// Submit sends a batch of calls through the relay. Transient failures
// (network, 5xx) are retried with exponential backoff before escalating;
// structured rejections are returned immediately.
func (m *Monitor) Submit(ctx context.Context, calls []Call) (*SubmitResult, error) {
	logger := log.With().Int("call_count", len(calls)).Str("component", "relay_monitor").Logger()

	var lastErr error
	for attempt := 0; attempt < submitMaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := submitBackoffBase * time.Duration(1<<attempt)
			logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying relay submission after transient failure")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := m.client.Submit(ctx, calls)
		if err == nil {
			logger.Info().
				Str("transaction_id", result.TransactionID).
				Str("address", result.Address).
				Msg("relay submission accepted")
			return result, nil
		}
		if !types.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// AwaitTerminal polls the relay at a fixed interval for up to maxAttempts.
// It returns the confirmed address (or transaction hash when no address is
// reported) once the transaction reaches one of successStates, an error on
// failureState, and ("", nil) on attempt exhaustion. Exhaustion is ambiguous
// rather than a failure: the polling channel itself is unreliable, so callers
// must verify via an independent on-chain read before concluding anything.
func (m *Monitor) AwaitTerminal(ctx context.Context, id string, successStates []string, failureState string, maxAttempts int, interval time.Duration) (string, error) {
	logger := log.With().
		Str("transaction_id", id).
		Str("component", "relay_monitor").
		Logger()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(interval):
			}
		}

		tx, err := m.client.Poll(ctx, id)
		if err != nil {
			// Poll errors count as a missed attempt, not a verdict
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("relay poll failed")
			continue
		}

		logger.Debug().
			Str("state", tx.State).
			Int("attempt", attempt+1).
			Msg("polled relay transaction")

		if tx.State == failureState {
			return "", &types.RemoteRejection{
				Op:          "relay transaction " + id,
				Reason:      "relay reported state " + tx.State,
				Remediation: "the submission was rejected on-chain; re-run sync to converge local state",
			}
		}
		for _, s := range successStates {
			if tx.State == s {
				if tx.Address != "" {
					return tx.Address, nil
				}
				return tx.Hash, nil
			}
		}
	}

	logger.Warn().Int("max_attempts", maxAttempts).Msg("relay polling exhausted without a terminal state")
	return "", nil
}
