package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
)

var (
	ErrRequestNotFound   = errors.New("balance request not found")
	ErrRequestNotPending = errors.New("balance request already resolved")
)

const requestColumns = `id, request_type, wallet_address, amount_rub, amount_usdt, fx_rate, status,
	operator_id, operator_comment, operator_action_at,
	debit_transaction_id, credit_transaction_id, refund_transaction_id,
	created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateTx(ctx context.Context, tx *sqlx.Tx, req *BalanceRequest) (*BalanceRequest, error) {
	query := `
		INSERT INTO store_balance_requests (request_type, wallet_address, amount_rub,
			amount_usdt, fx_rate, status, debit_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + requestColumns

	var created BalanceRequest
	err := tx.QueryRowxContext(ctx, query,
		req.RequestType, req.WalletAddress, req.AmountRUB,
		req.AmountUSDT, req.FxRate, req.Status, req.DebitTransactionID,
	).StructScan(&created)
	if err != nil {
		return nil, fmt.Errorf("create balance request: %w", err)
	}
	return &created, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*BalanceRequest, error) {
	var req BalanceRequest
	query := `SELECT ` + requestColumns + ` FROM store_balance_requests WHERE id = $1`
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get balance request %d: %w", id, err)
	}
	return &req, nil
}

func (r *repository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*BalanceRequest, error) {
	var req BalanceRequest
	query := `SELECT ` + requestColumns + ` FROM store_balance_requests WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("lock balance request %d: %w", id, err)
	}
	return &req, nil
}

func (r *repository) Resolve(ctx context.Context, tx *sqlx.Tx, id int64, res Resolution) (*BalanceRequest, error) {
	query := `
		UPDATE store_balance_requests
		SET status = $2, operator_id = $3, operator_comment = $4, operator_action_at = $5,
			credit_transaction_id = $6, refund_transaction_id = $7, updated_at = NOW()
		WHERE id = $1 AND status = $8
		RETURNING ` + requestColumns

	var updated BalanceRequest
	err := tx.QueryRowxContext(ctx, query,
		id, res.Status, res.OperatorID, res.OperatorComment, res.ActionAt,
		res.CreditTransactionID, res.RefundTransactionID, StatusPendingOperator,
	).StructScan(&updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotPending
		}
		return nil, fmt.Errorf("resolve balance request %d: %w", id, err)
	}
	return &updated, nil
}

func (r *repository) List(ctx context.Context, q *listquery.Query) ([]BalanceRequest, int64, error) {
	countQuery, countArgs := q.CountSQL(`SELECT COUNT(*) FROM store_balance_requests`)
	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count balance requests: %w", err)
	}

	if q.OrderBy == "" {
		q.OrderBy = "created_at"
	}
	query, args := q.SQL(`SELECT ` + requestColumns + ` FROM store_balance_requests`)
	requests := []BalanceRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list balance requests: %w", err)
	}
	return requests, total, nil
}
