package approvals

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joinQuantish/polymarket-mcp/internal/audit"
	"github.com/joinQuantish/polymarket-mcp/internal/chain"
	"github.com/joinQuantish/polymarket-mcp/internal/relay"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Approval kinds tracked on the account record.
const (
	kindCollateral = "collateral"
	kindExchange   = "exchange"
	kindNegRisk    = "neg_risk"
)

const (
	awaitMaxAttempts = 30
	awaitInterval    = 2 * time.Second
)

// pair is one (token, spender) grant in the fixed approval set.
type pair struct {
	token   common.Address
	spender common.Address
	erc1155 bool
	kind    string
}

// The full approval set: collateral spending plus outcome-token operator
// rights for both settlement routings and the adapter between them. Six
// grants, recorded as three account flags.
var approvalPairs = []pair{
	{chain.USDC, chain.CTFExchange, false, kindCollateral},
	{chain.USDC, chain.NegRiskCTFExchange, false, kindCollateral},
	{chain.USDC, chain.NegRiskAdapter, false, kindCollateral},
	{chain.ConditionalTokens, chain.CTFExchange, true, kindExchange},
	{chain.ConditionalTokens, chain.NegRiskCTFExchange, true, kindNegRisk},
	{chain.ConditionalTokens, chain.NegRiskAdapter, true, kindNegRisk},
}

var (
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// Allowances above this are treated as effectively unlimited when
	// verifying, to tolerate partial or legacy approvals.
	unlimitedThreshold = new(big.Int).Lsh(big.NewInt(1), 255)
)

// Function selectors for the approval calls.
var (
	approveSelector           = []byte{0x09, 0x5e, 0xa7, 0xb3} // approve(address,uint256)
	setApprovalForAllSelector = []byte{0xa2, 0x2c, 0xb4, 0x65} // setApprovalForAll(address,bool)
)

// Manager ensures the fixed set of token spending approvals exists on-chain,
// batched into a single relayed transaction.
type Manager struct {
	db      *Database
	monitor *relay.Monitor
	reader  chain.Reader
	audit   *audit.Recorder
}

// NewManager creates a new approval manager
func NewManager(gormDB *gorm.DB, monitor *relay.Monitor, reader chain.Reader, recorder *audit.Recorder) *Manager {
	return &Manager{
		db:      NewDatabase(gormDB),
		monitor: monitor,
		reader:  reader,
		audit:   recorder,
	}
}

// Ensure grants whatever subset of the approval set is not yet covered by
// the account's flags, or the full set when force is true. It is a complete
// no-op — zero relay calls — when nothing is outstanding and force is false.
// All three flags are set together only after the relayed batch reaches a
// confirmed terminal state.
func (m *Manager) Ensure(ctx context.Context, owner string, force bool) error {
	logger := log.With().
		Str("owner_address", owner).
		Str("service", "approvals").
		Logger()

	account, err := m.db.GetAccount(owner)
	if err != nil {
		return err
	}
	if !account.Deployed || account.ProxyAddress == "" {
		return types.NewValidationError("account", "approvals require a deployed proxy wallet")
	}

	outstanding := m.outstandingPairs(account, force)
	if len(outstanding) == 0 {
		logger.Debug().Msg("all approvals recorded, nothing to do")
		return nil
	}

	logger.Info().
		Int("outstanding", len(outstanding)).
		Bool("force", force).
		Msg("submitting approval batch")

	calls := make([]relay.Call, 0, len(outstanding))
	for _, p := range outstanding {
		calls = append(calls, relay.Call{
			From:     account.OwnerAddress,
			To:       p.token.Hex(),
			Data:     encodeApproval(p),
			Value:    "0",
			TypeCode: "SAFE",
		})
	}

	result, err := m.monitor.Submit(ctx, calls)
	if err != nil {
		m.audit.Record(owner, "approvals", fmt.Sprintf("batch submission failed: %v", err), false)
		return err
	}

	confirmed, err := m.monitor.AwaitTerminal(ctx, result.TransactionID,
		[]string{relay.StateConfirmed, relay.StateMined}, relay.StateFailed,
		awaitMaxAttempts, awaitInterval)
	if err != nil {
		m.audit.Record(owner, "approvals", fmt.Sprintf("batch rejected: %v", err), false)
		return err
	}
	if confirmed == "" {
		// Polling exhausted: ambiguous, so ask the chain directly before
		// concluding anything
		verified, verr := m.Verify(ctx, owner)
		if verr != nil || !verified.AllApproved() {
			m.audit.Record(owner, "approvals", "confirmation ambiguous and chain read-back incomplete", false)
			return &types.UnresolvedError{
				Op:                 "approval batch " + result.TransactionID,
				Candidates:         []string{account.ProxyAddress},
				RelayKeyConfigured: m.monitor.Configured(),
			}
		}
		logger.Info().Msg("approval batch confirmed via chain read-back after ambiguous polling")
	}

	if err := m.db.SetApprovalFlags(account); err != nil {
		return fmt.Errorf("failed to record approval flags: %w", err)
	}

	m.audit.Record(owner, "approvals", fmt.Sprintf("granted %d approvals in one relayed batch", len(outstanding)), true)
	logger.Info().Int("granted", len(outstanding)).Msg("approval batch confirmed")
	return nil
}

// VerifyResult is the on-chain reality of the approval set for one account.
type VerifyResult struct {
	Collateral bool `json:"collateral"`
	Exchange   bool `json:"exchange"`
	NegRisk    bool `json:"neg_risk"`
	// Drift is set when the recorded flags disagree with the chain.
	Drift bool `json:"drift"`
}

// AllApproved reports whether every kind verified as granted.
func (r *VerifyResult) AllApproved() bool {
	return r.Collateral && r.Exchange && r.NegRisk
}

// Verify reads the approval set back from the chain, independently of the
// recorded flags. An allowance above the unlimited threshold counts as a
// maximum approval so partial legacy grants do not read as missing.
func (m *Manager) Verify(ctx context.Context, owner string) (*VerifyResult, error) {
	account, err := m.db.GetAccount(owner)
	if err != nil {
		return nil, err
	}
	if account.ProxyAddress == "" {
		return nil, types.NewValidationError("account", "no proxy address to verify approvals for")
	}

	proxy := common.HexToAddress(account.ProxyAddress)
	granted := map[string]bool{kindCollateral: true, kindExchange: true, kindNegRisk: true}

	for _, p := range approvalPairs {
		var ok bool
		if p.erc1155 {
			ok, err = m.reader.IsApprovedForAll(ctx, p.token, proxy, p.spender)
		} else {
			var allowance *big.Int
			allowance, err = m.reader.Allowance(ctx, p.token, proxy, p.spender)
			ok = err == nil && allowance.Cmp(unlimitedThreshold) >= 0
		}
		if err != nil {
			return nil, fmt.Errorf("approval read-back failed for spender %s: %w", p.spender.Hex(), err)
		}
		if !ok {
			granted[p.kind] = false
		}
	}

	result := &VerifyResult{
		Collateral: granted[kindCollateral],
		Exchange:   granted[kindExchange],
		NegRisk:    granted[kindNegRisk],
	}
	result.Drift = result.Collateral != account.CollateralApproved ||
		result.Exchange != account.ExchangeApproved ||
		result.NegRisk != account.NegRiskApproved

	if result.Drift {
		log.Warn().
			Str("owner_address", owner).
			Bool("collateral", result.Collateral).
			Bool("exchange", result.Exchange).
			Bool("neg_risk", result.NegRisk).
			Msg("approval flags drifted from chain state")
	}

	return result, nil
}

// outstandingPairs returns the pairs whose covering flag is still false, or
// every pair when forced.
func (m *Manager) outstandingPairs(account *types.Account, force bool) []pair {
	if force {
		return approvalPairs
	}

	covered := map[string]bool{
		kindCollateral: account.CollateralApproved,
		kindExchange:   account.ExchangeApproved,
		kindNegRisk:    account.NegRiskApproved,
	}

	var outstanding []pair
	for _, p := range approvalPairs {
		if !covered[p.kind] {
			outstanding = append(outstanding, p)
		}
	}
	return outstanding
}

func encodeApproval(p pair) string {
	data := make([]byte, 0, 68)
	if p.erc1155 {
		data = append(data, setApprovalForAllSelector...)
		data = append(data, common.LeftPadBytes(p.spender.Bytes(), 32)...)
		data = append(data, common.LeftPadBytes([]byte{1}, 32)...)
	} else {
		data = append(data, approveSelector...)
		data = append(data, common.LeftPadBytes(p.spender.Bytes(), 32)...)
		data = append(data, common.LeftPadBytes(maxUint256.Bytes(), 32)...)
	}
	return "0x" + common.Bytes2Hex(data)
}
