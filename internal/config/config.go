package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config carries process-level settings for the server and the external
// collaborators (chain RPC, relay, order book).
type Config struct {
	Port            string
	DatabasePath    string
	JWTSecret       string
	RPCURL          string
	RelayURL        string
	RelayAPIKey     string
	RelayAPISecret  string
	ClobURL         string
	ChainID         int64
	APIClientKey    string
	APIClientSecret string
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. Only the JWT secret is mandatory; everything else has a
// development default.
func Load() *Config {
	// Missing .env is fine in production, env vars win either way
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DatabasePath:    getEnv("DATABASE_PATH", "accounts.db"),
		JWTSecret:       getEnvOrFatal("JWT_SECRET"),
		RPCURL:          getEnv("RPC_URL", "https://polygon-rpc.com"),
		RelayURL:        getEnv("RELAY_URL", "https://relayer-v2.polymarket.com"),
		RelayAPIKey:     os.Getenv("RELAY_API_KEY"),
		RelayAPISecret:  os.Getenv("RELAY_API_SECRET"),
		ClobURL:         getEnv("CLOB_URL", "https://clob.polymarket.com"),
		ChainID:         getEnvInt64("CHAIN_ID", 137),
		APIClientKey:    os.Getenv("API_CLIENT_KEY"),
		APIClientSecret: os.Getenv("API_CLIENT_SECRET"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrFatal(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Str("key", key).Msg("required environment variable not set")
	}
	return value
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
