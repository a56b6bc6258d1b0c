package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("product out of stock")
)

const productColumns = `id, name, description, type, base_price, period_days, stock, is_active, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Product, error) {
	var p Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

func (r *repository) ListActive(ctx context.Context) ([]Product, error) {
	products := []Product{}
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active = TRUE ORDER BY name`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (r *repository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*Product, error) {
	var p Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product %d: %w", id, err)
	}
	return &p, nil
}

func (r *repository) DecrementStock(ctx context.Context, tx *sqlx.Tx, id int64, qty int) error {
	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`
	res, err := tx.ExecContext(ctx, query, id, qty)
	if err != nil {
		return fmt.Errorf("decrement stock of product %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOutOfStock
	}
	return nil
}

func (r *repository) ClaimUnits(ctx context.Context, tx *sqlx.Tx, productID, orderItemID int64, qty int) ([]Unit, error) {
	// SKIP LOCKED keeps concurrent purchases of the same product from
	// fighting over the same units.
	query := `
		UPDATE product_units
		SET order_item_id = $2, sold_at = NOW()
		WHERE id IN (
			SELECT id FROM product_units
			WHERE product_id = $1 AND order_item_id IS NULL
			ORDER BY id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, product_id, content, order_item_id, sold_at, created_at`

	units := []Unit{}
	if err := tx.SelectContext(ctx, &units, query, productID, orderItemID, qty); err != nil {
		return nil, fmt.Errorf("claim units of product %d: %w", productID, err)
	}
	if len(units) < qty {
		return nil, ErrOutOfStock
	}
	return units, nil
}
