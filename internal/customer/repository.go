package customer

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrCustomerNotFound = errors.New("customer not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Customer, error) {
	c := &Customer{}
	err := r.db.GetContext(ctx, c, `SELECT * FROM customers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repository) GetByTelegramID(ctx context.Context, telegramID int64) (*Customer, error) {
	c := &Customer{}
	err := r.db.GetContext(ctx, c, `SELECT * FROM customers WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repository) ListByIDs(ctx context.Context, ids []int64) ([]Customer, error) {
	if len(ids) == 0 {
		return []Customer{}, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM customers WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}

	customers := []Customer{}
	err = r.db.SelectContext(ctx, &customers, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return customers, nil
}
