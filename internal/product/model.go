package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeDigital      Type = "digital"
	TypeSubscription Type = "subscription"
)

type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description,omitempty"`
	Type        Type            `db:"type" json:"type"`
	BasePrice   decimal.Decimal `db:"base_price" json:"base_price"`
	// PeriodDays is set for subscription products only.
	PeriodDays *int      `db:"period_days" json:"period_days,omitempty"`
	Stock      int       `db:"stock" json:"stock"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Unit is one sellable piece of content (a key, an account, a link).
// Units are claimed at purchase time and never reused.
type Unit struct {
	ID          int64      `db:"id" json:"id"`
	ProductID   int64      `db:"product_id" json:"product_id"`
	Content     string     `db:"content" json:"content"`
	OrderItemID *int64     `db:"order_item_id" json:"order_item_id,omitempty"`
	SoldAt      *time.Time `db:"sold_at" json:"sold_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
