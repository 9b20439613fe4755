package credentials

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/joinQuantish/polymarket-mcp/internal/audit"
	"github.com/joinQuantish/polymarket-mcp/internal/clob"
	"github.com/joinQuantish/polymarket-mcp/internal/keys"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Manager issues or recovers remote trading credentials for deployed
// accounts, validating their encoding before anything is persisted.
type Manager struct {
	db      *Database
	client  clob.Client
	keys    keys.Store
	chainID int64
	audit   *audit.Recorder
}

// NewManager creates a new credential manager
func NewManager(gormDB *gorm.DB, client clob.Client, store keys.Store, chainID int64, recorder *audit.Recorder) *Manager {
	return &Manager{
		db:      NewDatabase(gormDB),
		client:  client,
		keys:    store,
		chainID: chainID,
		audit:   recorder,
	}
}

// Create issues trading credentials for the account. It first tries to
// derive credentials already registered for the owner key; for first-time
// accounts that derivation fails, which is the normal branch, not an error —
// it falls through to minting fresh credentials. The returned secret must
// decode and re-encode cleanly before it is persisted, otherwise nothing is
// saved and the caller gets a corrupted-credentials error instead of a
// silent failure at signing time later.
func (m *Manager) Create(ctx context.Context, owner string) error {
	logger := log.With().
		Str("owner_address", owner).
		Str("service", "credentials").
		Logger()

	account, err := m.db.GetAccount(owner)
	if err != nil {
		return err
	}
	if !account.Deployed || account.ProxyAddress == "" {
		return types.NewValidationError("account", "credential issuance requires a deployed proxy wallet")
	}
	if account.HasAPICredentials && account.APIKey != "" {
		logger.Debug().Msg("credentials already present, nothing to do")
		return nil
	}

	key, err := m.keys.Get(owner)
	if err != nil {
		return err
	}
	signer := clob.NewSigner(key, m.chainID)

	creds, err := m.client.DeriveAPIKey(ctx, signer)
	if err != nil {
		logger.Info().Err(err).Msg("no existing credentials to derive, minting new ones")
		creds, err = m.client.CreateAPIKey(ctx, signer)
		if err != nil {
			m.audit.Record(owner, "credentials", fmt.Sprintf("issuance failed: %v", err), false)
			return fmt.Errorf("failed to issue trading credentials: %w", err)
		}
	}

	if err := validateSecret(creds.Secret); err != nil {
		m.audit.Record(owner, "credentials", "order book returned a malformed secret", false)
		return types.ErrCorruptedCredentials
	}

	// Issuance is scoped to the proxy wallet so that the order book resolves
	// balances against the funded address, not the bare owner EOA
	if ba, err := m.client.GetBalanceAllowance(ctx, creds, account.ProxyAddress); err != nil {
		logger.Warn().Err(err).Msg("post-issuance balance check failed")
	} else {
		logger.Debug().
			Str("balance", ba.Balance).
			Str("allowance", ba.Allowance).
			Msg("credential scope verified against funding address")
	}

	if err := m.db.SaveCredentials(account, creds); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}

	m.audit.Record(owner, "credentials", "trading credentials issued", true)
	logger.Info().Msg("trading credentials issued")
	return nil
}

// Reset clears any persisted credentials and re-runs issuance. Safe to
// invoke repeatedly: a reset of an account without credentials is just a
// create.
func (m *Manager) Reset(ctx context.Context, owner string) error {
	account, err := m.db.GetAccount(owner)
	if err != nil {
		return err
	}

	if err := m.db.ClearCredentials(account); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	m.audit.Record(owner, "credentials", "credentials cleared for reset", true)

	return m.Create(ctx, owner)
}

// CredentialsFor returns the stored credentials for signing requests.
func (m *Manager) CredentialsFor(owner string) (*clob.Credentials, string, error) {
	account, err := m.db.GetAccount(owner)
	if err != nil {
		return nil, "", err
	}
	if !account.HasAPICredentials || account.APIKey == "" {
		return nil, "", types.NewValidationError("account", "no trading credentials: run account sync first")
	}
	return &clob.Credentials{
		APIKey:     account.APIKey,
		Secret:     account.APISecret,
		Passphrase: account.APIPassphrase,
	}, account.ProxyAddress, nil
}

// validateSecret checks the secret decodes and round-trip re-encodes to the
// same bytes under one of the accepted base64 alphabets.
func validateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("empty secret")
	}
	if decoded, err := base64.URLEncoding.DecodeString(secret); err == nil {
		if base64.URLEncoding.EncodeToString(decoded) == secret {
			return nil
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(secret); err == nil {
		if base64.StdEncoding.EncodeToString(decoded) == secret {
			return nil
		}
	}
	return fmt.Errorf("secret does not round-trip base64")
}
