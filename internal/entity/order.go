package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order represents a customer order stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              int64     `bun:",pk,autoincrement"`
	CustomerName    string    `bun:"customer_name,notnull"`
	OrderDate       time.Time `bun:"order_date,notnull"`
	ShippingAddress string    `bun:"shipping_address,notnull"`
	Total           float64   `bun:"total,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero"`
}
