package credentials

import (
	"errors"

	"github.com/joinQuantish/polymarket-mcp/internal/clob"
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

// SaveCredentials persists validated credentials on the account record.
func (d *Database) SaveCredentials(account *types.Account, creds *clob.Credentials) error {
	account.APIKey = creds.APIKey
	account.APISecret = creds.Secret
	account.APIPassphrase = creds.Passphrase
	account.HasAPICredentials = true
	return d.db.Save(account).Error
}

// ClearCredentials wipes the persisted credential fields.
func (d *Database) ClearCredentials(account *types.Account) error {
	account.APIKey = ""
	account.APISecret = ""
	account.APIPassphrase = ""
	account.HasAPICredentials = false
	return d.db.Save(account).Error
}
