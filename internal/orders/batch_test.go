package orders

import (
	"context"
	"testing"

	"github.com/joinQuantish/polymarket-mcp/internal/clob"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
)

func batchOf(n int) []*SubmitRequest {
	requests := make([]*SubmitRequest, n)
	for i := range requests {
		requests[i] = &SubmitRequest{TokenID: "123", Side: types.SideBuy, Price: 0.5, Size: 10}
	}
	return requests
}

func TestExecuteBatchAllLive(t *testing.T) {
	env := setup(t)
	executor := NewAtomicBatchExecutor(env.gateway)

	result, err := executor.ExecuteBatch(context.Background(), env.owner, batchOf(3))
	if err != nil {
		t.Fatalf("ExecuteBatch() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Success = false, reason %q", result.Reason)
	}
	if len(result.Orders) != 3 {
		t.Fatalf("orders = %d, want 3", len(result.Orders))
	}
	for _, order := range result.Orders {
		if order.Status != types.OrderStatusLive {
			t.Fatalf("order %s status = %s, want LIVE", order.OrderID, order.Status)
		}
		if order.BatchID != result.BatchID {
			t.Fatalf("order %s not tagged with batch id", order.OrderID)
		}
	}
}

func TestExecuteBatchHaltsAndUnwinds(t *testing.T) {
	env := setup(t)
	env.clob.placeSteps = []placeStep{
		{result: &clob.PlaceResult{Success: true, RemoteID: "r-1", Status: clob.RemoteStatusLive}},
		{err: &types.RemoteRejection{Op: "place order", Reason: "market closed"}},
	}
	executor := NewAtomicBatchExecutor(env.gateway)

	result, err := executor.ExecuteBatch(context.Background(), env.owner, batchOf(3))
	if err != nil {
		t.Fatalf("ExecuteBatch() error = %v", err)
	}
	if result.Success {
		t.Fatal("Success = true, want false after mid-batch failure")
	}
	if result.FailedAt != 2 {
		t.Fatalf("FailedAt = %d, want 2", result.FailedAt)
	}
	if result.Reason == "" {
		t.Fatal("failed batch must carry a reason")
	}

	// The third order must never have been submitted
	if env.clob.placeCalls != 2 {
		t.Fatalf("place calls = %d, want 2", env.clob.placeCalls)
	}
	// The first order was unwound with a remote cancel
	if len(env.clob.cancelled) != 1 || env.clob.cancelled[0] != "r-1" {
		t.Fatalf("cancelled = %v, want [r-1]", env.clob.cancelled)
	}

	// Every local batch member reads CANCELLED: no partial success shape
	for _, order := range result.Orders {
		if order.Status != types.OrderStatusCancelled {
			t.Fatalf("order %s status = %s, want CANCELLED", order.OrderID, order.Status)
		}
	}
}

func TestExecuteBatchSizeBounds(t *testing.T) {
	env := setup(t)
	executor := NewAtomicBatchExecutor(env.gateway)

	for _, n := range []int{0, 11} {
		_, err := executor.ExecuteBatch(context.Background(), env.owner, batchOf(n))
		if _, ok := err.(*types.ValidationError); !ok {
			t.Fatalf("ExecuteBatch(%d orders) error = %v, want ValidationError", n, err)
		}
	}
	if env.clob.placeCalls != 0 {
		t.Fatal("out-of-bounds batches must not reach the order book")
	}
}

func TestExecuteBatchValidatesBeforePlacing(t *testing.T) {
	env := setup(t)
	executor := NewAtomicBatchExecutor(env.gateway)

	requests := batchOf(3)
	requests[0].Price = 1.5 // invalid member halts at index 1

	result, err := executor.ExecuteBatch(context.Background(), env.owner, requests)
	if err != nil {
		t.Fatalf("ExecuteBatch() error = %v", err)
	}
	if result.Success || result.FailedAt != 1 {
		t.Fatalf("result = %+v, want failure at member 1", result)
	}
	if env.clob.placeCalls != 0 {
		t.Fatalf("place calls = %d, want 0 when the first member is invalid", env.clob.placeCalls)
	}
}
