package types

import (
	"time"

	"gorm.io/gorm"
)

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order kinds (time-in-force).
const (
	OrderTypeGTC = "GTC" // Good-Til-Cancelled
	OrderTypeGTD = "GTD" // Good-Til-Date, requires an expiration
	OrderTypeFOK = "FOK" // Fill-Or-Kill
	OrderTypeFAK = "FAK" // Fill-And-Kill
)

// Order statuses. FILLED, CANCELLED and FAILED are terminal.
const (
	OrderStatusPending    = "PENDING"
	OrderStatusSubmitting = "SUBMITTING"
	OrderStatusLive       = "LIVE"
	OrderStatusMatched    = "MATCHED"
	OrderStatusFilled     = "FILLED"
	OrderStatusCancelled  = "CANCELLED"
	OrderStatusFailed     = "FAILED"
)

// Order is the local record of one submitted order. RemoteID stays empty
// until the order book accepted the order and returned a concrete identifier.
type Order struct {
	gorm.Model   `json:"-"`
	OrderID      string     `gorm:"uniqueIndex" json:"order_id"`
	RemoteID     string     `gorm:"index" json:"remote_id,omitempty"`
	OwnerAddress string     `gorm:"index" json:"owner_address"`
	TokenID      string     `json:"token_id"`
	Side         string     `json:"side"`
	Price        float64    `json:"price"`
	Size         float64    `json:"size"`
	OrderType    string     `json:"order_type"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Status       string     `json:"status"`
	FilledSize   float64    `json:"filled_size"`
	BatchID      string     `gorm:"index" json:"batch_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Terminal reports whether the order has reached a terminal status.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}
