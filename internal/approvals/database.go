package approvals

import (
	"errors"

	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetAccount(owner string) (*types.Account, error) {
	var account types.Account
	if err := d.db.Where("owner_address = ?", owner).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// SetApprovalFlags records all three approval kinds together. The underlying
// batch grants up to six individual approvals, but the flags are tracked at
// this coarser granularity (see Verify for drift detection).
func (d *Database) SetApprovalFlags(account *types.Account) error {
	account.CollateralApproved = true
	account.ExchangeApproved = true
	account.NegRiskApproved = true
	return d.db.Save(account).Error
}
