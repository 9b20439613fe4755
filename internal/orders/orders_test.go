package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joinQuantish/polymarket-mcp/internal/audit"
	"github.com/joinQuantish/polymarket-mcp/internal/clob"
	"github.com/joinQuantish/polymarket-mcp/internal/credentials"
	"github.com/joinQuantish/polymarket-mcp/internal/database"
	"github.com/joinQuantish/polymarket-mcp/internal/keys"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"gorm.io/gorm"
)

const validSecret = "c2VjcmV0LWtleS1tYXRlcmlhbA=="

type placeStep struct {
	result *clob.PlaceResult
	err    error
}

// fakeClob scripts order book behavior per call.
type fakeClob struct {
	mu            sync.Mutex
	placeSteps    []placeStep
	placeCalls    int
	remoteOrders  map[string]*clob.RemoteOrder
	cancelled     []string
	negRiskByID   map[string]bool
	negRiskCalls  int
	cancelAllHits int
}

func newFakeClob() *fakeClob {
	return &fakeClob{
		remoteOrders: make(map[string]*clob.RemoteOrder),
		negRiskByID:  make(map[string]bool),
	}
}

func (f *fakeClob) DeriveAPIKey(context.Context, *clob.Signer) (*clob.Credentials, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClob) CreateAPIKey(context.Context, *clob.Signer) (*clob.Credentials, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClob) PlaceOrder(context.Context, *clob.Credentials, string, *clob.Order, string) (*clob.PlaceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var step placeStep
	if f.placeCalls < len(f.placeSteps) {
		step = f.placeSteps[f.placeCalls]
	} else {
		step = placeStep{result: &clob.PlaceResult{Success: true, RemoteID: "r-" + uuid.New().String(), Status: clob.RemoteStatusLive}}
	}
	f.placeCalls++
	if step.result != nil && step.result.RemoteID != "" {
		f.remoteOrders[step.result.RemoteID] = &clob.RemoteOrder{
			RemoteID:     step.result.RemoteID,
			Status:       clob.RemoteStatusLive,
			OriginalSize: 10,
		}
	}
	return step.result, step.err
}

func (f *fakeClob) GetOrder(_ context.Context, _ *clob.Credentials, _, remoteID string) (*clob.RemoteOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.remoteOrders[remoteID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return order, nil
}

func (f *fakeClob) CancelOrder(_ context.Context, _ *clob.Credentials, _, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, remoteID)
	if order, ok := f.remoteOrders[remoteID]; ok && order.Status == clob.RemoteStatusLive {
		order.Status = clob.RemoteStatusCancelled
	}
	return nil
}

func (f *fakeClob) CancelAll(context.Context, *clob.Credentials, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelAllHits++
	for _, order := range f.remoteOrders {
		if order.Status == clob.RemoteStatusLive {
			order.Status = clob.RemoteStatusCancelled
		}
	}
	return nil
}

func (f *fakeClob) NegRisk(_ context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.negRiskCalls++
	return f.negRiskByID[tokenID], nil
}

func (f *fakeClob) GetBalanceAllowance(context.Context, *clob.Credentials, string) (*clob.BalanceAllowance, error) {
	return &clob.BalanceAllowance{Balance: "0", Allowance: "0"}, nil
}

type testEnv struct {
	gateway *Gateway
	clob    *fakeClob
	routing *RoutingCache
	db      *gorm.DB
	owner   string
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewDatabase("file:" + uuid.New().String() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	store := keys.NewMemoryStore()
	owner, err := store.Generate()
	if err != nil {
		t.Fatalf("failed to generate owner key: %v", err)
	}

	account := &types.Account{
		OwnerAddress:      owner.Hex(),
		ProxyAddress:      "0x2f850cBE0a8b1A2bc9Ab964bD0d557a61EC0d0F9",
		Deployed:          true,
		HasAPICredentials: true,
		APIKey:            "key-1",
		APISecret:         validSecret,
		APIPassphrase:     "pass",
		Status:            types.AccountStatusReady,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	clobFake := newFakeClob()
	recorder := audit.NewRecorder(db)
	credentialMgr := credentials.NewManager(db, clobFake, store, 137, recorder)
	routing := NewRoutingCache(clobFake)
	gateway := NewGateway(db, clobFake, credentialMgr, store, routing, 137, recorder)

	return &testEnv{
		gateway: gateway,
		clob:    clobFake,
		routing: routing,
		db:      db,
		owner:   owner.Hex(),
	}
}

func (e *testEnv) reload(t *testing.T, orderID string) *types.Order {
	t.Helper()
	var order types.Order
	if err := e.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		t.Fatalf("failed to reload order: %v", err)
	}
	return &order
}

func TestSubmitPlacesLiveOrder(t *testing.T) {
	env := setup(t)

	order, err := env.gateway.Submit(context.Background(), env.owner, &SubmitRequest{
		TokenID: "123",
		Side:    types.SideBuy,
		Price:   0.45,
		Size:    10,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if order.Status != types.OrderStatusLive {
		t.Fatalf("status = %s, want LIVE", order.Status)
	}
	if order.RemoteID == "" {
		t.Fatal("a LIVE order must carry a remote identifier")
	}
	if order.OrderType != types.OrderTypeGTC {
		t.Fatalf("order type = %s, want GTC default", order.OrderType)
	}
}

func TestSubmitValidation(t *testing.T) {
	env := setup(t)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{name: "price above ceiling", req: SubmitRequest{TokenID: "1", Side: "BUY", Price: 0.995, Size: 10}},
		{name: "price below floor", req: SubmitRequest{TokenID: "1", Side: "BUY", Price: 0.005, Size: 10}},
		{name: "price exactly at ceiling", req: SubmitRequest{TokenID: "1", Side: "BUY", Price: 0.99, Size: 10}},
		{name: "price exactly at floor", req: SubmitRequest{TokenID: "1", Side: "BUY", Price: 0.01, Size: 10}},
		{name: "zero size", req: SubmitRequest{TokenID: "1", Side: "BUY", Price: 0.5, Size: 0}},
		{name: "negative size", req: SubmitRequest{TokenID: "1", Side: "SELL", Price: 0.5, Size: -1}},
		{name: "bad side", req: SubmitRequest{TokenID: "1", Side: "HOLD", Price: 0.5, Size: 10}},
		{name: "missing token", req: SubmitRequest{Side: "BUY", Price: 0.5, Size: 10}},
		{name: "GTD without expiration", req: SubmitRequest{TokenID: "1", Side: "BUY", Price: 0.5, Size: 10, OrderType: "GTD"}},
		{name: "unknown order type", req: SubmitRequest{TokenID: "1", Side: "BUY", Price: 0.5, Size: 10, OrderType: "IOC", ExpiresAt: &future}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.gateway.Submit(context.Background(), env.owner, &tt.req)
			if _, ok := err.(*types.ValidationError); !ok {
				t.Fatalf("Submit() error = %v, want ValidationError", err)
			}
		})
	}

	// Validation failures must never reach the order book
	if env.clob.placeCalls != 0 {
		t.Fatalf("place calls = %d, want 0", env.clob.placeCalls)
	}
}

func TestSubmitFailsWithoutRemoteID(t *testing.T) {
	env := setup(t)
	env.clob.placeSteps = []placeStep{
		{result: &clob.PlaceResult{Success: true, ErrorMsg: "order book degraded"}},
	}

	order, err := env.gateway.Submit(context.Background(), env.owner, &SubmitRequest{
		TokenID: "123", Side: "BUY", Price: 0.5, Size: 10,
	})

	var rejection *types.RemoteRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("Submit() error = %v, want RemoteRejection", err)
	}
	if order.Status != types.OrderStatusFailed {
		t.Fatalf("status = %s, want FAILED for success shape without id", order.Status)
	}
}

func TestSubmitRetriesOppositeRouting(t *testing.T) {
	env := setup(t)
	env.clob.placeSteps = []placeStep{
		{err: &types.RemoteRejection{Op: "place order", Reason: "not enough balance / allowance"}},
		{result: &clob.PlaceResult{Success: true, RemoteID: "r-retry", Status: clob.RemoteStatusLive}},
	}

	order, err := env.gateway.Submit(context.Background(), env.owner, &SubmitRequest{
		TokenID: "tok-misrouted", Side: "BUY", Price: 0.5, Size: 10,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if order.Status != types.OrderStatusLive || order.RemoteID != "r-retry" {
		t.Fatalf("order = %+v, want LIVE under corrected routing", order)
	}
	if env.clob.placeCalls != 2 {
		t.Fatalf("place calls = %d, want 2 (original plus one retry)", env.clob.placeCalls)
	}

	// The corrected routing is cached: the next lookup must not hit the
	// market endpoint again
	before := env.clob.negRiskCalls
	if got := env.routing.NegRisk(context.Background(), "tok-misrouted"); !got {
		t.Fatal("cache must hold the corrected routing")
	}
	if env.clob.negRiskCalls != before {
		t.Fatal("corrected routing lookup must be served from cache")
	}
}

func TestSubmitDoesNotRetryOtherRejections(t *testing.T) {
	env := setup(t)
	env.clob.placeSteps = []placeStep{
		{err: &types.RemoteRejection{Op: "place order", Reason: "market closed"}},
	}

	_, err := env.gateway.Submit(context.Background(), env.owner, &SubmitRequest{
		TokenID: "123", Side: "BUY", Price: 0.5, Size: 10,
	})

	var rejection *types.RemoteRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("Submit() error = %v, want RemoteRejection", err)
	}
	if env.clob.placeCalls != 1 {
		t.Fatalf("place calls = %d, want 1 (no routing retry for non-balance rejections)", env.clob.placeCalls)
	}
}

func TestCancelRestingOrder(t *testing.T) {
	env := setup(t)

	order, err := env.gateway.Submit(context.Background(), env.owner, &SubmitRequest{
		TokenID: "123", Side: "BUY", Price: 0.5, Size: 10,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	cancelled, err := env.gateway.Cancel(context.Background(), env.owner, order.OrderID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.Status != types.OrderStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", cancelled.Status)
	}
	if len(env.clob.cancelled) != 1 {
		t.Fatalf("remote cancels = %d, want 1", len(env.clob.cancelled))
	}
}

func TestCancelShortCircuitsFilledOrder(t *testing.T) {
	env := setup(t)

	order, err := env.gateway.Submit(context.Background(), env.owner, &SubmitRequest{
		TokenID: "123", Side: "BUY", Price: 0.5, Size: 10,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// The order fills before the cancel arrives
	env.clob.mu.Lock()
	remote := env.clob.remoteOrders[order.RemoteID]
	remote.Status = clob.RemoteStatusMatched
	remote.SizeMatched = remote.OriginalSize
	env.clob.mu.Unlock()

	cancelled, err := env.gateway.Cancel(context.Background(), env.owner, order.OrderID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.Status != types.OrderStatusFilled {
		t.Fatalf("status = %s, want FILLED when nothing is left to cancel", cancelled.Status)
	}
	if len(env.clob.cancelled) != 0 {
		t.Fatal("no remote cancel may be issued for a fully matched order")
	}
}

func TestCancelOrderThatNeverReachedBook(t *testing.T) {
	env := setup(t)
	env.clob.placeSteps = []placeStep{
		{err: &types.RemoteRejection{Op: "place order", Reason: "market closed"}},
	}

	order, _ := env.gateway.Submit(context.Background(), env.owner, &SubmitRequest{
		TokenID: "123", Side: "BUY", Price: 0.5, Size: 10,
	})

	// The failed record is terminal already; cancel is a no-op
	result, err := env.gateway.Cancel(context.Background(), env.owner, order.OrderID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if result.Status != types.OrderStatusFailed {
		t.Fatalf("status = %s, want FAILED unchanged", result.Status)
	}
	if len(env.clob.cancelled) != 0 {
		t.Fatal("no remote cancel for an order without a remote identifier")
	}
}

func TestCancelEnforcesOwnership(t *testing.T) {
	env := setup(t)

	order, err := env.gateway.Submit(context.Background(), env.owner, &SubmitRequest{
		TokenID: "123", Side: "BUY", Price: 0.5, Size: 10,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	_, err = env.gateway.Cancel(context.Background(), "0xSomeoneElse", order.OrderID)
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("Cancel() error = %v, want ErrNotFound for foreign order", err)
	}
}

func TestCancelAllMarksLocalOrders(t *testing.T) {
	env := setup(t)

	for i := 0; i < 3; i++ {
		if _, err := env.gateway.Submit(context.Background(), env.owner, &SubmitRequest{
			TokenID: "123", Side: "BUY", Price: 0.5, Size: 10,
		}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	if err := env.gateway.CancelAll(context.Background(), env.owner); err != nil {
		t.Fatalf("CancelAll() error = %v", err)
	}
	if env.clob.cancelAllHits != 1 {
		t.Fatalf("cancel-all calls = %d, want 1", env.clob.cancelAllHits)
	}

	orders, err := env.gateway.ListOrders(env.owner)
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	for _, order := range orders {
		if order.Status != types.OrderStatusCancelled {
			t.Fatalf("order %s status = %s, want CANCELLED", order.OrderID, order.Status)
		}
	}
}

func TestReconcileAppliesRemoteFills(t *testing.T) {
	env := setup(t)

	order, err := env.gateway.Submit(context.Background(), env.owner, &SubmitRequest{
		TokenID: "123", Side: "BUY", Price: 0.5, Size: 10,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	env.clob.mu.Lock()
	remote := env.clob.remoteOrders[order.RemoteID]
	remote.Status = clob.RemoteStatusMatched
	remote.SizeMatched = remote.OriginalSize
	env.clob.mu.Unlock()

	processor := NewProcessor(env.db, env.clob, env.gateway.credentials)
	if err := processor.reconcileOpenOrders(context.Background()); err != nil {
		t.Fatalf("reconcileOpenOrders() error = %v", err)
	}

	fresh := env.reload(t, order.OrderID)
	if fresh.Status != types.OrderStatusFilled {
		t.Fatalf("status = %s, want FILLED after reconciliation", fresh.Status)
	}
	if fresh.FilledSize != remote.OriginalSize {
		t.Fatalf("filled size = %f, want %f", fresh.FilledSize, remote.OriginalSize)
	}
}
