package product

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListActive(ctx context.Context) ([]Product, error)
	// GetForUpdate locks the product row inside the caller's tx. Stock
	// checks and decrements are only valid under this lock.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*Product, error)
	DecrementStock(ctx context.Context, tx *sqlx.Tx, id int64, qty int) error
	// ClaimUnits marks qty unsold units of the product as sold to the
	// given order item and returns their content.
	ClaimUnits(ctx context.Context, tx *sqlx.Tx, productID, orderItemID int64, qty int) ([]Unit, error)
}
