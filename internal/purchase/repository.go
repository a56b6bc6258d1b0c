package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrOrderNotFound = errors.New("order not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateOrderTx(ctx context.Context, tx *sqlx.Tx, order *Order) (*Order, error) {
	query := `
		INSERT INTO orders (customer_id, total)
		VALUES ($1, $2)
		RETURNING id, customer_id, total, created_at`

	var created Order
	err := tx.QueryRowxContext(ctx, query, order.CustomerID, order.Total).StructScan(&created)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &created, nil
}

func (r *repository) CreateItemTx(ctx context.Context, tx *sqlx.Tx, item *OrderItem) (*OrderItem, error) {
	query := `
		INSERT INTO order_items (order_id, product_id, name_at_purchase, price_at_purchase, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_id, product_id, name_at_purchase, price_at_purchase, quantity, created_at`

	var created OrderItem
	err := tx.QueryRowxContext(ctx, query,
		item.OrderID, item.ProductID, item.NameAtPurchase, item.PriceAtPurchase, item.Quantity,
	).StructScan(&created)
	if err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}
	return &created, nil
}

func (r *repository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	var order Order
	query := `SELECT id, customer_id, total, created_at FROM orders WHERE id = $1`
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return &order, nil
}

func (r *repository) ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Order, error) {
	orders := []Order{}
	query := `
		SELECT id, customer_id, total, created_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &orders, query, customerID, limit, offset); err != nil {
		return nil, fmt.Errorf("list orders for customer %d: %w", customerID, err)
	}
	return orders, nil
}
