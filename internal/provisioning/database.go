package provisioning

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

func (d *Database) CreateAccount(account *types.Account) error {
	return d.db.Create(account).Error
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

func (d *Database) UpdateAccount(account *types.Account) error {
	return d.db.Save(account).Error
}

// SetStatus persists a status transition on its own, used for the
// DEPLOYING/SETTING_UP markers and their failure reverts.
func (d *Database) SetStatus(account *types.Account, status string) error {
	account.Status = status
	return d.db.Model(account).Update("status", status).Error
}
