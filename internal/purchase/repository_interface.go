package purchase

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateOrderTx(ctx context.Context, tx *sqlx.Tx, order *Order) (*Order, error)
	CreateItemTx(ctx context.Context, tx *sqlx.Tx, item *OrderItem) (*OrderItem, error)
	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Order, error)
}
