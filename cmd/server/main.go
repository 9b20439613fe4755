package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/joinQuantish/polymarket-mcp/internal/approvals"
	"github.com/joinQuantish/polymarket-mcp/internal/audit"
	"github.com/joinQuantish/polymarket-mcp/internal/auth"
	"github.com/joinQuantish/polymarket-mcp/internal/chain"
	"github.com/joinQuantish/polymarket-mcp/internal/clob"
	"github.com/joinQuantish/polymarket-mcp/internal/config"
	"github.com/joinQuantish/polymarket-mcp/internal/credentials"
	"github.com/joinQuantish/polymarket-mcp/internal/database"
	"github.com/joinQuantish/polymarket-mcp/internal/keys"
	"github.com/joinQuantish/polymarket-mcp/internal/orders"
	"github.com/joinQuantish/polymarket-mcp/internal/provisioning"
	"github.com/joinQuantish/polymarket-mcp/internal/relay"
	"github.com/joinQuantish/polymarket-mcp/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the provisioning and trading API server with
// graceful shutdown support. It wires the chain reader, the relay, the order
// book client and all services, then exposes them over HTTP.
func main() {
	cfg := config.Load()

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	reader, err := chain.NewRPCReader(cfg.RPCURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect chain RPC")
	}

	relayClient := relay.NewHTTPClient(cfg.RelayURL, cfg.RelayAPIKey, cfg.RelayAPISecret)
	monitor := relay.NewMonitor(relayClient)
	clobClient := clob.NewHTTPClient(cfg.ClobURL)
	keyStore := keys.NewMemoryStore()
	recorder := audit.NewRecorder(db)

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if cfg.APIClientKey != "" {
		authService.RegisterAPICredentials(cfg.APIClientKey, cfg.APIClientSecret)
	}

	approvalManager := approvals.NewManager(db, monitor, reader, recorder)
	approvalHandlers := approvals.NewGinHandlers(approvalManager)

	credentialManager := credentials.NewManager(db, clobClient, keyStore, cfg.ChainID, recorder)
	credentialHandlers := credentials.NewGinHandlers(credentialManager)

	provisioningService := provisioning.NewService(db, monitor, reader, approvalManager, credentialManager, keyStore, recorder)
	provisioningHandlers := provisioning.NewGinHandlers(provisioningService)

	routing := orders.NewRoutingCache(clobClient)
	orderGateway := orders.NewGateway(db, clobClient, credentialManager, keyStore, routing, cfg.ChainID, recorder)
	batchExecutor := orders.NewAtomicBatchExecutor(orderGateway)
	orderHandlers := orders.NewGinHandlers(orderGateway, batchExecutor)

	// Create and start the order reconciliation processor
	orderProcessor := orders.NewProcessor(db, clobClient, credentialManager)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go orderProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.JWTSecret, authHandlers, provisioningHandlers, approvalHandlers, credentialHandlers, orderHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Account routes: Provisioning lifecycle, protected by JWT authentication
// - Order routes: Trading, protected by JWT authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	provisioningHandlers *provisioning.GinHandlers,
	approvalHandlers *approvals.GinHandlers,
	credentialHandlers *credentials.GinHandlers,
	orderHandlers *orders.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Account provisioning routes
		accounts := v1.Group("/accounts")
		accounts.Use(middleware.JWTAuth(jwtSecret))
		{
			accounts.POST("", provisioningHandlers.RegisterAccountHandler())
			accounts.GET("/:owner", provisioningHandlers.GetAccountHandler())
			accounts.POST("/:owner/deploy", provisioningHandlers.DeployHandler())
			accounts.POST("/:owner/setup", provisioningHandlers.SetupHandler())
			accounts.POST("/:owner/sync", provisioningHandlers.SyncHandler())
			accounts.POST("/:owner/approvals", approvalHandlers.EnsureHandler())
			accounts.GET("/:owner/approvals", approvalHandlers.VerifyHandler())
			accounts.POST("/:owner/credentials", credentialHandlers.CreateHandler())
			accounts.POST("/:owner/credentials/reset", credentialHandlers.ResetHandler())
		}

		// Order routes
		orderGroup := v1.Group("/orders")
		orderGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			orderGroup.POST("/:owner", orderHandlers.SubmitOrderHandler())
			orderGroup.POST("/:owner/batch", orderHandlers.SubmitBatchHandler())
			orderGroup.GET("/:owner", orderHandlers.ListOrdersHandler())
			orderGroup.GET("/:owner/:order_id", orderHandlers.GetOrderHandler())
			orderGroup.DELETE("/:owner/:order_id", orderHandlers.CancelOrderHandler())
			orderGroup.DELETE("/:owner", orderHandlers.CancelAllHandler())
		}
	}
}
