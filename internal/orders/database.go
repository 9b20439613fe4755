package orders

import (
	"errors"
	"time"

	"github.com/joinQuantish/polymarket-mcp/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetOrdersByOwner(owner string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("owner_address = ?", owner).Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) UpdateOrder(order *types.Order) error {
	order.UpdatedAt = time.Now()
	return d.db.Save(order).Error
}

// GetOpenOrders returns every order that holds a remote identifier but has
// not reached a terminal status. These are the reconciliation candidates.
func (d *Database) GetOpenOrders() ([]types.Order, error) {
	var orders []types.Order
	err := d.db.
		Where("remote_id <> ''").
		Where("status NOT IN ?", []string{types.OrderStatusFilled, types.OrderStatusCancelled, types.OrderStatusFailed}).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) GetOrdersByBatch(batchID string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("batch_id = ?", batchID).Order("id asc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
