package types

import (
	"time"

	"gorm.io/gorm"
)

// AccountStatus tracks the provisioning lifecycle of a custodial account.
// Transitions are monotonic forward with two documented failure reverts:
// DEPLOYING -> CREATED and SETTING_UP -> DEPLOYED. A status is never left at
// DEPLOYING or SETTING_UP after an operation returns.
const (
	AccountStatusCreated   = "CREATED"
	AccountStatusDeploying = "DEPLOYING"
	AccountStatusDeployed  = "DEPLOYED"
	AccountStatusSettingUp = "SETTING_UP"
	AccountStatusReady     = "READY"
)

// Account is the local record of one user's custodial trading account.
// OwnerAddress is the immutable EOA that controls the proxy wallet.
// ProxyAddress is only ever persisted after the deployment call returned it
// or an independent on-chain bytecode check confirmed it — never speculatively.
type Account struct {
	gorm.Model         `json:"-"`
	OwnerAddress       string    `gorm:"uniqueIndex" json:"owner_address"`
	ProxyAddress       string    `json:"proxy_address,omitempty"`
	Deployed           bool      `json:"deployed"`
	CollateralApproved bool      `json:"collateral_approved"`
	ExchangeApproved   bool      `json:"exchange_approved"`
	NegRiskApproved    bool      `json:"neg_risk_approved"`
	HasAPICredentials  bool      `json:"has_api_credentials"`
	APIKey             string    `json:"-"`
	APISecret          string    `json:"-"`
	APIPassphrase      string    `json:"-"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AllApproved reports whether every approval flag has been recorded.
func (a *Account) AllApproved() bool {
	return a.CollateralApproved && a.ExchangeApproved && a.NegRiskApproved
}

// AuditEntry is an append-only trace of account state transitions and
// terminal failures. Entries are never updated or deleted.
type AuditEntry struct {
	gorm.Model   `json:"-"`
	EntryID      string    `gorm:"uniqueIndex" json:"entry_id"`
	OwnerAddress string    `gorm:"index" json:"owner_address"`
	Action       string    `json:"action"`
	Detail       string    `json:"detail"`
	Success      bool      `json:"success"`
	CreatedAt    time.Time `json:"created_at"`
}
