package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joinQuantish/polymarket-mcp/internal/approvals"
	"github.com/joinQuantish/polymarket-mcp/internal/audit"
	"github.com/joinQuantish/polymarket-mcp/internal/chain"
	"github.com/joinQuantish/polymarket-mcp/internal/clob"
	"github.com/joinQuantish/polymarket-mcp/internal/credentials"
	"github.com/joinQuantish/polymarket-mcp/internal/database"
	"github.com/joinQuantish/polymarket-mcp/internal/keys"
	"github.com/joinQuantish/polymarket-mcp/internal/orders"
	"github.com/joinQuantish/polymarket-mcp/internal/provisioning"
	"github.com/joinQuantish/polymarket-mcp/internal/relay"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	numAccounts    = 3
	ordersPerAcct  = 8
	serverAddress  = "http://localhost:8091"
	simulationPort = ":8091"
	chainID        = 137
)

var tokenIDs = []string{
	"21742633143463906290569050155826241533067272736897614950488156847949938836455",
	"48331043336612883890938759509493159234755048973500640148014422747788308965732",
	"71321045679252212594626385532706912750332728571942532289631379312455583992563",
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// fakeRelay stands in for the gasless transaction relay. Every submitted
// batch confirms on the second poll; deployment batches confirm at the
// deterministic proxy address for the submitting owner.
type fakeRelay struct {
	mu    sync.Mutex
	txs   map[string]*relay.Transaction
	polls map[string]int
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		txs:   make(map[string]*relay.Transaction),
		polls: make(map[string]int),
	}
}

func (f *fakeRelay) Submit(_ context.Context, calls []relay.Call) (*relay.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New().String()
	tx := &relay.Transaction{ID: id, State: relay.StatePending, Hash: "0x" + strings.Repeat("ab", 32)}
	if len(calls) == 1 && calls[0].TypeCode == "SAFE-CREATE" {
		tx.Address = chain.PredictProxyAddress(common.HexToAddress(calls[0].From)).Hex()
	}
	f.txs[id] = tx
	return &relay.SubmitResult{TransactionID: id}, nil
}

func (f *fakeRelay) Poll(_ context.Context, id string) (*relay.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx, ok := f.txs[id]
	if !ok {
		return nil, &types.RemoteRejection{Op: "relay poll", Reason: "unknown transaction"}
	}
	f.polls[id]++
	if f.polls[id] >= 2 {
		tx.State = relay.StateConfirmed
	}
	return tx, nil
}

func (f *fakeRelay) Configured() bool { return true }

// fakeReader answers chain reads as if every relayed deployment landed and
// every approval is unlimited.
type fakeReader struct {
	relay *fakeRelay
}

func (f *fakeReader) CodeAt(_ context.Context, addr common.Address) ([]byte, error) {
	f.relay.mu.Lock()
	defer f.relay.mu.Unlock()
	for _, tx := range f.relay.txs {
		if tx.State == relay.StateConfirmed && strings.EqualFold(tx.Address, addr.Hex()) {
			return []byte{0x60, 0x80}, nil
		}
	}
	return nil, nil
}

func (f *fakeReader) Allowance(_ context.Context, _, _, _ common.Address) (*big.Int, error) {
	return new(big.Int).Lsh(big.NewInt(1), 256-1), nil
}

func (f *fakeReader) IsApprovedForAll(_ context.Context, _, _, _ common.Address) (bool, error) {
	return true, nil
}

// fakeClob stands in for the order book. Credentials always derive-fail
// first, orders rest LIVE and fill on a later poll.
type fakeClob struct {
	mu      sync.Mutex
	orders  map[string]*clob.RemoteOrder
	negRisk map[string]bool
}

func newFakeClob() *fakeClob {
	negRisk := make(map[string]bool)
	for i, id := range tokenIDs {
		negRisk[id] = i%2 == 1
	}
	return &fakeClob{
		orders:  make(map[string]*clob.RemoteOrder),
		negRisk: negRisk,
	}
}

func (f *fakeClob) DeriveAPIKey(_ context.Context, _ *clob.Signer) (*clob.Credentials, error) {
	return nil, &types.RemoteRejection{Op: "derive api key", Reason: "no credentials registered for address"}
}

func (f *fakeClob) CreateAPIKey(_ context.Context, _ *clob.Signer) (*clob.Credentials, error) {
	return &clob.Credentials{
		APIKey:     uuid.New().String(),
		Secret:     "c2ltdWxhdGlvbi1zZWNyZXQta2V5LW1hdGVyaWFs",
		Passphrase: uuid.New().String(),
	}, nil
}

func (f *fakeClob) PlaceOrder(_ context.Context, _ *clob.Credentials, _ string, order *clob.Order, _ string) (*clob.PlaceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New().String()
	f.orders[id] = &clob.RemoteOrder{
		RemoteID:     id,
		Status:       clob.RemoteStatusLive,
		OriginalSize: 1,
	}
	return &clob.PlaceResult{Success: true, RemoteID: id, Status: clob.RemoteStatusLive}, nil
}

func (f *fakeClob) GetOrder(_ context.Context, _ *clob.Credentials, _, remoteID string) (*clob.RemoteOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[remoteID]
	if !ok {
		return nil, types.ErrNotFound
	}
	// Orders drift toward filled over repeated polls
	if order.Status == clob.RemoteStatusLive && rand.Intn(3) == 0 {
		order.Status = clob.RemoteStatusMatched
		order.SizeMatched = order.OriginalSize
	}
	return order, nil
}

func (f *fakeClob) CancelOrder(_ context.Context, _ *clob.Credentials, _, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order, ok := f.orders[remoteID]; ok && order.Status == clob.RemoteStatusLive {
		order.Status = clob.RemoteStatusCancelled
	}
	return nil
}

func (f *fakeClob) CancelAll(_ context.Context, _ *clob.Credentials, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.Status == clob.RemoteStatusLive {
			order.Status = clob.RemoteStatusCancelled
		}
	}
	return nil
}

func (f *fakeClob) NegRisk(_ context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.negRisk[tokenID], nil
}

func (f *fakeClob) GetBalanceAllowance(_ context.Context, _ *clob.Credentials, _ string) (*clob.BalanceAllowance, error) {
	return &clob.BalanceAllowance{Balance: "1000000000", Allowance: "1000000000"}, nil
}

// simulationClient drives the API over HTTP the way an integrating client
// would.
type simulationClient struct {
	baseURL string
	client  *http.Client
}

func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (sc *simulationClient) post(path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	resp, err := sc.client.Post(sc.baseURL+path, "application/json", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}

// main runs a full lifecycle simulation against an in-process server backed
// by fake external collaborators: account registration, deployment, setup,
// single and batch order placement, and cancellation.
func main() {
	relayFake := newFakeRelay()
	clobFake := newFakeClob()

	go func() {
		if err := startServer(relayFake, clobFake); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	time.Sleep(2 * time.Second)

	sc := newSimulationClient()
	stats := struct {
		Accounts     int
		OrdersPlaced int
		OrdersFailed int
		Batches      int
		Cancels      int
		StartTime    time.Time
	}{StartTime: time.Now()}

	for i := 0; i < numAccounts; i++ {
		var registered struct {
			Data types.Account `json:"data"`
		}
		if err := sc.post("/api/v1/accounts", map[string]string{}, &registered); err != nil {
			log.Fatal().Err(err).Msg("Failed to register account")
		}
		owner := registered.Data.OwnerAddress
		log.Info().Str("owner_address", owner).Msg("Account registered")

		if err := sc.post("/api/v1/accounts/"+owner+"/setup", nil, nil); err != nil {
			log.Fatal().Err(err).Str("owner_address", owner).Msg("Failed to set up account")
		}
		stats.Accounts++
		log.Info().Str("owner_address", owner).Msg("Account fully provisioned")

		// Single orders
		var placed []string
		for j := 0; j < ordersPerAcct; j++ {
			order := map[string]interface{}{
				"token_id":   tokenIDs[rand.Intn(len(tokenIDs))],
				"side":       []string{"BUY", "SELL"}[rand.Intn(2)],
				"price":      0.05 + rand.Float64()*0.9,
				"size":       float64(rand.Intn(50) + 5),
				"order_type": "GTC",
			}
			var result struct {
				Data types.Order `json:"data"`
			}
			if err := sc.post("/api/v1/orders/"+owner, order, &result); err != nil {
				log.Warn().Err(err).Str("owner_address", owner).Msg("Order placement failed")
				stats.OrdersFailed++
				continue
			}
			stats.OrdersPlaced++
			placed = append(placed, result.Data.OrderID)
			log.Info().
				Str("order_id", result.Data.OrderID).
				Str("status", result.Data.Status).
				Msg("Order placed")
		}

		// One all-or-nothing batch per account
		batch := map[string]interface{}{
			"orders": []map[string]interface{}{
				{"token_id": tokenIDs[0], "side": "BUY", "price": 0.45, "size": 10.0, "order_type": "GTC"},
				{"token_id": tokenIDs[1], "side": "SELL", "price": 0.60, "size": 5.0, "order_type": "GTC"},
			},
		}
		var batchResult struct {
			Data types.BatchResult `json:"data"`
		}
		if err := sc.post("/api/v1/orders/"+owner+"/batch", batch, &batchResult); err != nil {
			log.Warn().Err(err).Msg("Batch placement failed")
		} else {
			stats.Batches++
			log.Info().
				Str("batch_id", batchResult.Data.BatchID).
				Bool("success", batchResult.Data.Success).
				Msg("Batch executed")
		}

		// Cancel half of the single orders
		for j, orderID := range placed {
			if j%2 != 0 {
				continue
			}
			req, _ := http.NewRequest(http.MethodDelete, sc.baseURL+"/api/v1/orders/"+owner+"/"+orderID, nil)
			resp, err := sc.client.Do(req)
			if err != nil {
				log.Warn().Err(err).Str("order_id", orderID).Msg("Cancel failed")
				continue
			}
			resp.Body.Close()
			stats.Cancels++
		}
	}

	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Accounts provisioned: %d
Orders placed:        %d
Orders failed:        %d
Batches executed:     %d
Cancels issued:       %d
Duration:             %v
`, stats.Accounts, stats.OrdersPlaced, stats.OrdersFailed, stats.Batches, stats.Cancels,
		duration.Round(time.Millisecond))
	fmt.Println(strings.Repeat("=", 80))

	log.Info().
		Int("accounts", stats.Accounts).
		Int("orders_placed", stats.OrdersPlaced).
		Dur("duration", duration).
		Msg("Simulation completed")
}

// startServer wires the full service graph against the fakes and serves the
// real HTTP routes, minus authentication middleware.
func startServer(relayFake *fakeRelay, clobFake *fakeClob) error {
	db, err := database.NewDatabase("file::memory:?cache=shared")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	reader := &fakeReader{relay: relayFake}
	monitor := relay.NewMonitor(relayFake)
	keyStore := keys.NewMemoryStore()
	recorder := audit.NewRecorder(db)

	approvalManager := approvals.NewManager(db, monitor, reader, recorder)
	credentialManager := credentials.NewManager(db, clobFake, keyStore, chainID, recorder)
	provisioningService := provisioning.NewService(db, monitor, reader, approvalManager, credentialManager, keyStore, recorder)

	routing := orders.NewRoutingCache(clobFake)
	orderGateway := orders.NewGateway(db, clobFake, credentialManager, keyStore, routing, chainID, recorder)
	batchExecutor := orders.NewAtomicBatchExecutor(orderGateway)

	orderProcessor := orders.NewProcessor(db, clobFake, credentialManager)
	go orderProcessor.Start(context.Background())

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	provisioningHandlers := provisioning.NewGinHandlers(provisioningService)
	approvalHandlers := approvals.NewGinHandlers(approvalManager)
	credentialHandlers := credentials.NewGinHandlers(credentialManager)
	orderHandlers := orders.NewGinHandlers(orderGateway, batchExecutor)

	v1 := router.Group("/api/v1")
	{
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", provisioningHandlers.RegisterAccountHandler())
			accounts.GET("/:owner", provisioningHandlers.GetAccountHandler())
			accounts.POST("/:owner/deploy", provisioningHandlers.DeployHandler())
			accounts.POST("/:owner/setup", provisioningHandlers.SetupHandler())
			accounts.POST("/:owner/sync", provisioningHandlers.SyncHandler())
			accounts.POST("/:owner/approvals", approvalHandlers.EnsureHandler())
			accounts.GET("/:owner/approvals", approvalHandlers.VerifyHandler())
			accounts.POST("/:owner/credentials/reset", credentialHandlers.ResetHandler())
		}
		orderGroup := v1.Group("/orders")
		{
			orderGroup.POST("/:owner", orderHandlers.SubmitOrderHandler())
			orderGroup.POST("/:owner/batch", orderHandlers.SubmitBatchHandler())
			orderGroup.GET("/:owner", orderHandlers.ListOrdersHandler())
			orderGroup.GET("/:owner/:order_id", orderHandlers.GetOrderHandler())
			orderGroup.DELETE("/:owner/:order_id", orderHandlers.CancelOrderHandler())
			orderGroup.DELETE("/:owner", orderHandlers.CancelAllHandler())
		}
	}

	return router.Run(simulationPort)
}
