package approvals

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/joinQuantish/polymarket-mcp/internal/audit"
	"github.com/joinQuantish/polymarket-mcp/internal/database"
	"github.com/joinQuantish/polymarket-mcp/internal/relay"
	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"gorm.io/gorm"
)

type fakeRelay struct {
	submitted [][]relay.Call
	pollState string
}

func (f *fakeRelay) Submit(_ context.Context, calls []relay.Call) (*relay.SubmitResult, error) {
	f.submitted = append(f.submitted, calls)
	return &relay.SubmitResult{TransactionID: "tx-1"}, nil
}

func (f *fakeRelay) Poll(context.Context, string) (*relay.Transaction, error) {
	return &relay.Transaction{ID: "tx-1", State: f.pollState, Hash: "0xhash"}, nil
}

func (f *fakeRelay) Configured() bool { return true }

type fakeReader struct {
	allowance   *big.Int
	approvedAll bool
}

func (f *fakeReader) CodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeReader) Allowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	return f.allowance, nil
}

func (f *fakeReader) IsApprovedForAll(context.Context, common.Address, common.Address, common.Address) (bool, error) {
	return f.approvedAll, nil
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase("file:" + uuid.New().String() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, account *types.Account) {
	t.Helper()
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
}

func TestEnsureNoOpWhenAllRecorded(t *testing.T) {
	db := setupDB(t)
	seedAccount(t, db, &types.Account{
		OwnerAddress:       "0xOwner",
		ProxyAddress:       "0xProxy",
		Deployed:           true,
		CollateralApproved: true,
		ExchangeApproved:   true,
		NegRiskApproved:    true,
		Status:             types.AccountStatusReady,
	})

	relayFake := &fakeRelay{pollState: relay.StateConfirmed}
	manager := NewManager(db, relay.NewMonitor(relayFake), &fakeReader{}, audit.NewRecorder(db))

	if err := manager.Ensure(context.Background(), "0xOwner", false); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if len(relayFake.submitted) != 0 {
		t.Fatalf("relay submissions = %d, want 0 when everything is recorded", len(relayFake.submitted))
	}
}

func TestEnsureSubmitsFullSetInOneBatch(t *testing.T) {
	db := setupDB(t)
	seedAccount(t, db, &types.Account{
		OwnerAddress: "0xOwner",
		ProxyAddress: "0xProxy",
		Deployed:     true,
		Status:       types.AccountStatusDeployed,
	})

	relayFake := &fakeRelay{pollState: relay.StateConfirmed}
	manager := NewManager(db, relay.NewMonitor(relayFake), &fakeReader{}, audit.NewRecorder(db))

	if err := manager.Ensure(context.Background(), "0xOwner", false); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	if len(relayFake.submitted) != 1 {
		t.Fatalf("relay submissions = %d, want exactly 1 batch", len(relayFake.submitted))
	}
	if got := len(relayFake.submitted[0]); got != 6 {
		t.Fatalf("batch size = %d, want 6 approval calls", got)
	}

	var account types.Account
	if err := db.Where("owner_address = ?", "0xOwner").First(&account).Error; err != nil {
		t.Fatalf("failed to reload account: %v", err)
	}
	if !account.AllApproved() {
		t.Fatal("approval flags not set after confirmed batch")
	}
}

func TestEnsureForceResubmitsEverything(t *testing.T) {
	db := setupDB(t)
	seedAccount(t, db, &types.Account{
		OwnerAddress:       "0xOwner",
		ProxyAddress:       "0xProxy",
		Deployed:           true,
		CollateralApproved: true,
		ExchangeApproved:   true,
		NegRiskApproved:    true,
	})

	relayFake := &fakeRelay{pollState: relay.StateConfirmed}
	manager := NewManager(db, relay.NewMonitor(relayFake), &fakeReader{}, audit.NewRecorder(db))

	if err := manager.Ensure(context.Background(), "0xOwner", true); err != nil {
		t.Fatalf("Ensure(force) error = %v", err)
	}
	if len(relayFake.submitted) != 1 || len(relayFake.submitted[0]) != 6 {
		t.Fatal("force must resubmit the full six-call batch")
	}
}

func TestEnsureRequiresDeployment(t *testing.T) {
	db := setupDB(t)
	seedAccount(t, db, &types.Account{
		OwnerAddress: "0xOwner",
		Status:       types.AccountStatusCreated,
	})

	manager := NewManager(db, relay.NewMonitor(&fakeRelay{}), &fakeReader{}, audit.NewRecorder(db))

	err := manager.Ensure(context.Background(), "0xOwner", false)
	if _, ok := err.(*types.ValidationError); !ok {
		t.Fatalf("Ensure() error = %v, want ValidationError for undeployed account", err)
	}
}

func TestVerifyUnlimitedThreshold(t *testing.T) {
	db := setupDB(t)
	seedAccount(t, db, &types.Account{
		OwnerAddress:       "0xOwner",
		ProxyAddress:       "0xProxy",
		Deployed:           true,
		CollateralApproved: true,
		ExchangeApproved:   true,
		NegRiskApproved:    true,
	})

	// An allowance at the threshold counts as granted
	reader := &fakeReader{
		allowance:   new(big.Int).Lsh(big.NewInt(1), 255),
		approvedAll: true,
	}
	manager := NewManager(db, relay.NewMonitor(&fakeRelay{}), reader, audit.NewRecorder(db))

	result, err := manager.Verify(context.Background(), "0xOwner")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.AllApproved() {
		t.Fatal("allowance at the unlimited threshold must verify as approved")
	}
	if result.Drift {
		t.Fatal("no drift expected when flags agree with chain")
	}
}

func TestVerifyDetectsDrift(t *testing.T) {
	db := setupDB(t)
	seedAccount(t, db, &types.Account{
		OwnerAddress:       "0xOwner",
		ProxyAddress:       "0xProxy",
		Deployed:           true,
		CollateralApproved: true,
		ExchangeApproved:   true,
		NegRiskApproved:    true,
	})

	// Chain says nothing is approved, flags say everything is
	reader := &fakeReader{allowance: big.NewInt(0), approvedAll: false}
	manager := NewManager(db, relay.NewMonitor(&fakeRelay{}), reader, audit.NewRecorder(db))

	result, err := manager.Verify(context.Background(), "0xOwner")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.AllApproved() {
		t.Fatal("zero allowance must not verify as approved")
	}
	if !result.Drift {
		t.Fatal("drift must be reported when flags disagree with chain")
	}
}
