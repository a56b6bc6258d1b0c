package purchase

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID         int64           `db:"id" json:"id"`
	CustomerID int64           `db:"customer_id" json:"customer_id"`
	Total      decimal.Decimal `db:"total" json:"total"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// OrderItem freezes the product name and unit price at purchase time so the
// order history survives later catalog edits.
type OrderItem struct {
	ID              int64           `db:"id" json:"id"`
	OrderID         int64           `db:"order_id" json:"order_id"`
	ProductID       int64           `db:"product_id" json:"product_id"`
	NameAtPurchase  string          `db:"name_at_purchase" json:"name_at_purchase"`
	PriceAtPurchase decimal.Decimal `db:"price_at_purchase" json:"price_at_purchase"`
	Quantity        int             `db:"quantity" json:"quantity"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

type PurchaseRequest struct {
	CustomerID int64 `json:"customer_id" binding:"required"`
	ProductID  int64 `json:"product_id" binding:"required"`
	Quantity   int   `json:"quantity" binding:"required,min=1"`
}

type PurchaseResult struct {
	OrderID       int64           `json:"order_id"`
	ProductName   string          `json:"product_name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	Balance       decimal.Decimal `json:"balance"`
	FulfilledText string          `json:"fulfilled_text,omitempty"`
}
