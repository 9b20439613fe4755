package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joinQuantish/polymarket-mcp/internal/approvals"
	"github.com/joinQuantish/polymarket-mcp/internal/audit"
	"github.com/joinQuantish/polymarket-mcp/internal/chain"
	"github.com/joinQuantish/polymarket-mcp/internal/credentials"
	"github.com/joinQuantish/polymarket-mcp/internal/keys"
	"github.com/joinQuantish/polymarket-mcp/internal/relay"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	deployAwaitAttempts = 30
	deployAwaitInterval = 2 * time.Second

	// Wait before the single delayed re-check of a relay-reported address
	// whose bytecode has not appeared yet.
	recheckWait = 5 * time.Second
)

// Service owns the account provisioning state machine: deployment, recovery
// and full setup orchestration. All chain mutation goes through the relay;
// the chain reader is only ever used to verify ground truth.
type Service struct {
	db          *Database
	monitor     *relay.Monitor
	reader      chain.Reader
	approvals   *approvals.Manager
	credentials *credentials.Manager
	keys        keys.Store
	audit       *audit.Recorder
}

// NewService creates a new provisioning service
func NewService(gormDB *gorm.DB, monitor *relay.Monitor, reader chain.Reader, approvalMgr *approvals.Manager, credentialMgr *credentials.Manager, store keys.Store, recorder *audit.Recorder) *Service {
	return &Service{
		db:          NewDatabase(gormDB),
		monitor:     monitor,
		reader:      reader,
		approvals:   approvalMgr,
		credentials: credentialMgr,
		keys:        store,
		audit:       recorder,
	}
}

// Register creates the local account record for an owner. When no key is
// imported beforehand a fresh custodial owner key is generated.
func (s *Service) Register(ownerKeyHex string) (*types.Account, error) {
	var owner common.Address
	var err error
	if ownerKeyHex != "" {
		owner, err = s.keys.Import(ownerKeyHex)
	} else {
		owner, err = s.keys.Generate()
	}
	if err != nil {
		return nil, err
	}

	if existing, err := s.db.GetAccount(owner.Hex()); err == nil {
		return existing, nil
	}

	account := &types.Account{
		OwnerAddress: owner.Hex(),
		Status:       types.AccountStatusCreated,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.db.CreateAccount(account); err != nil {
		return nil, fmt.Errorf("failed to create account record: %w", err)
	}

	s.audit.Record(owner.Hex(), "register", "account record created", true)
	return account, nil
}

// GetAccount returns the local account record.
func (s *Service) GetAccount(owner string) (*types.Account, error) {
	return s.db.GetAccount(owner)
}

// Deploy drives the proxy wallet deployment for an account. It is
// idempotent: an already-deployed account returns its cached address without
// a second submission. On any terminal failure the status reverts to
// CREATED; the account is never left at DEPLOYING after this returns.
func (s *Service) Deploy(ctx context.Context, owner string) (string, error) {
	logger := log.With().
		Str("owner_address", owner).
		Str("service", "provisioning").
		Logger()

	account, err := s.db.GetAccount(owner)
	if err != nil {
		return "", err
	}
	if account.Deployed && account.ProxyAddress != "" {
		logger.Debug().Str("proxy_address", account.ProxyAddress).Msg("account already deployed")
		return account.ProxyAddress, nil
	}

	if err := s.db.SetStatus(account, types.AccountStatusDeploying); err != nil {
		return "", fmt.Errorf("failed to mark account deploying: %w", err)
	}

	address, err := s.deploy(ctx, logger, account)
	if err != nil {
		// Failure revert: back to CREATED so a retry resumes cleanly
		if serr := s.db.SetStatus(account, types.AccountStatusCreated); serr != nil {
			logger.Error().Err(serr).Msg("failed to revert status after deployment failure")
		}
		s.audit.Record(owner, "deploy", fmt.Sprintf("deployment failed: %v", err), false)
		return "", err
	}

	account.ProxyAddress = address
	account.Deployed = true
	account.Status = types.AccountStatusDeployed
	account.UpdatedAt = time.Now()
	if err := s.db.UpdateAccount(account); err != nil {
		// The same revert as a failed deployment: the account must never be
		// left at DEPLOYING after this returns
		if serr := s.db.SetStatus(account, types.AccountStatusCreated); serr != nil {
			logger.Error().Err(serr).Msg("failed to revert status after persist failure")
		}
		s.audit.Record(owner, "deploy", fmt.Sprintf("failed to persist deployment: %v", err), false)
		return "", fmt.Errorf("failed to persist deployment: %w", err)
	}

	s.audit.Record(owner, "deploy", "proxy wallet deployed at "+address, true)
	logger.Info().Str("proxy_address", address).Msg("account deployed")
	return address, nil
}

// deploy submits the deployment and resolves its outcome to a verified
// address or an error.
func (s *Service) deploy(ctx context.Context, logger zerolog.Logger, account *types.Account) (string, error) {
	result, err := s.monitor.Submit(ctx, []relay.Call{{
		From:     account.OwnerAddress,
		To:       chain.ProxyFactoryAddress.Hex(),
		Data:     "0x",
		Value:    "0",
		TypeCode: "SAFE-CREATE",
	}})
	if err != nil {
		return "", err
	}

	// Some relay paths return the address immediately; an "already deployed"
	// response naming an address with bytecode is a success, not a failure
	if result.Address != "" {
		code, cerr := s.reader.CodeAt(ctx, common.HexToAddress(result.Address))
		if cerr == nil && len(code) > 0 {
			logger.Info().Str("proxy_address", result.Address).Msg("relay reported deployed address with bytecode")
			return result.Address, nil
		}
	}

	if result.TransactionID != "" {
		confirmed, err := s.monitor.AwaitTerminal(ctx, result.TransactionID,
			[]string{relay.StateConfirmed, relay.StateMined}, relay.StateFailed,
			deployAwaitAttempts, deployAwaitInterval)
		if err != nil {
			return "", err
		}
		// The awaited value may be a transaction hash when the poll carried
		// no address. A hash proves execution, not the deployed location, so
		// only an actual address is ever persisted; everything else resolves
		// through the ambiguous path.
		if common.IsHexAddress(confirmed) {
			return confirmed, nil
		}
	}

	// Ambiguous: the relay neither confirmed nor failed. Re-check the
	// reported address after a fixed wait, then fall back to the
	// deterministic prediction before giving up.
	return s.resolveAmbiguousDeploy(ctx, logger, account, result.Address)
}

func (s *Service) resolveAmbiguousDeploy(ctx context.Context, logger zerolog.Logger, account *types.Account, reported string) (string, error) {
	var candidates []string

	if reported != "" {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(recheckWait):
		}
		code, err := s.reader.CodeAt(ctx, common.HexToAddress(reported))
		if err == nil && len(code) > 0 {
			logger.Info().Str("proxy_address", reported).Msg("relay-reported address verified on delayed re-check")
			return reported, nil
		}
		candidates = append(candidates, reported)
	}

	predicted := chain.PredictProxyAddress(common.HexToAddress(account.OwnerAddress))
	code, err := s.reader.CodeAt(ctx, predicted)
	if err == nil && len(code) > 0 {
		logger.Info().Str("proxy_address", predicted.Hex()).Msg("predicted address verified as deployed")
		return predicted.Hex(), nil
	}
	candidates = append(candidates, predicted.Hex())

	return "", &types.UnresolvedError{
		Op:                 "deployment for " + account.OwnerAddress,
		Candidates:         candidates,
		RelayKeyConfigured: s.monitor.Configured(),
	}
}

// Recover reconciles local state with the chain without re-deploying: it
// verifies a given or predicted address holds bytecode and persists it. Used
// whenever the local record is suspected stale.
func (s *Service) Recover(ctx context.Context, owner, candidate string) (string, error) {
	account, err := s.db.GetAccount(owner)
	if err != nil {
		return "", err
	}

	addr := candidate
	if addr == "" {
		addr = account.ProxyAddress
	}
	if addr == "" {
		addr = chain.PredictProxyAddress(common.HexToAddress(owner)).Hex()
	}

	code, err := s.reader.CodeAt(ctx, common.HexToAddress(addr))
	if err != nil {
		return "", fmt.Errorf("failed to verify candidate address: %w", err)
	}
	if len(code) == 0 {
		return "", &types.UnresolvedError{
			Op:                 "recovery for " + owner,
			Candidates:         []string{addr},
			RelayKeyConfigured: s.monitor.Configured(),
		}
	}

	account.ProxyAddress = addr
	account.Deployed = true
	if account.Status == types.AccountStatusCreated || account.Status == types.AccountStatusDeploying {
		account.Status = types.AccountStatusDeployed
	}
	account.UpdatedAt = time.Now()
	if err := s.db.UpdateAccount(account); err != nil {
		return "", fmt.Errorf("failed to persist recovered address: %w", err)
	}

	s.audit.Record(owner, "recover", "verified existing deployment at "+addr, true)
	return addr, nil
}

// FullSetup provisions an account end to end: deployment, then approvals,
// then credential issuance. Approvals need the deployed address, and
// credential issuance is scoped to it so balance checks resolve correctly —
// the order is load-bearing. Setup failures revert SETTING_UP to DEPLOYED.
func (s *Service) FullSetup(ctx context.Context, owner string) error {
	if _, err := s.Deploy(ctx, owner); err != nil {
		return err
	}

	account, err := s.db.GetAccount(owner)
	if err != nil {
		return err
	}
	if account.Status == types.AccountStatusReady {
		return nil
	}

	if err := s.db.SetStatus(account, types.AccountStatusSettingUp); err != nil {
		return fmt.Errorf("failed to mark account setting up: %w", err)
	}

	if err := s.setup(ctx, owner); err != nil {
		if serr := s.db.SetStatus(account, types.AccountStatusDeployed); serr != nil {
			log.Error().Err(serr).Str("owner_address", owner).Msg("failed to revert status after setup failure")
		}
		s.audit.Record(owner, "full_setup", fmt.Sprintf("setup failed: %v", err), false)
		return err
	}

	if err := s.db.SetStatus(account, types.AccountStatusReady); err != nil {
		return fmt.Errorf("failed to mark account ready: %w", err)
	}
	s.audit.Record(owner, "full_setup", "account fully provisioned", true)
	return nil
}

func (s *Service) setup(ctx context.Context, owner string) error {
	if err := s.approvals.Ensure(ctx, owner, false); err != nil {
		return err
	}
	return s.credentials.Create(ctx, owner)
}

// SyncState is the top-level idempotent reconciliation entrypoint. It
// attempts recovery before deployment, optionally cascades into approvals
// and credentials, and collects the actions taken. Step failures are
// reported inside the result rather than aborting the pass: the operation is
// designed to be safely repeatable.
func (s *Service) SyncState(ctx context.Context, owner string, continueSetup bool) (*types.SyncResult, error) {
	logger := log.With().
		Str("owner_address", owner).
		Bool("continue_setup", continueSetup).
		Str("service", "provisioning").
		Logger()

	account, err := s.db.GetAccount(owner)
	if err != nil {
		return nil, err
	}

	result := &types.SyncResult{
		OwnerAddress: owner,
		Timestamp:    time.Now(),
	}

	if !account.Deployed {
		if addr, err := s.Recover(ctx, owner, ""); err == nil {
			result.Actions = append(result.Actions, "recovered existing deployment at "+addr)
		} else {
			logger.Debug().Err(err).Msg("nothing to recover, attempting deployment")
			if addr, derr := s.Deploy(ctx, owner); derr == nil {
				result.Actions = append(result.Actions, "deployed proxy wallet at "+addr)
			} else {
				result.Errors = append(result.Errors, derr.Error())
			}
		}
		account, err = s.db.GetAccount(owner)
		if err != nil {
			return nil, err
		}
	}

	if continueSetup && account.Deployed {
		if !account.AllApproved() {
			if err := s.approvals.Ensure(ctx, owner, false); err != nil {
				result.Errors = append(result.Errors, err.Error())
			} else {
				result.Actions = append(result.Actions, "granted outstanding approvals")
			}
		}
		if !account.HasAPICredentials {
			if err := s.credentials.Create(ctx, owner); err != nil {
				result.Errors = append(result.Errors, err.Error())
			} else {
				result.Actions = append(result.Actions, "issued trading credentials")
			}
		}

		account, err = s.db.GetAccount(owner)
		if err != nil {
			return nil, err
		}
		if account.Deployed && account.AllApproved() && account.HasAPICredentials &&
			account.Status != types.AccountStatusReady {
			if err := s.db.SetStatus(account, types.AccountStatusReady); err != nil {
				result.Errors = append(result.Errors, err.Error())
			} else {
				result.Actions = append(result.Actions, "account marked ready")
			}
		}
	}

	result.ProxyAddress = account.ProxyAddress
	result.Status = account.Status

	logger.Info().
		Strs("actions", result.Actions).
		Int("errors", len(result.Errors)).
		Str("status", result.Status).
		Msg("state sync completed")

	return result, nil
}
