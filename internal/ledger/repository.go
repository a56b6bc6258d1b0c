package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
	"github.com/ToropovAlexei/autosales-sub001/internal/metrics"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoTransactions      = errors.New("no transactions recorded")
)

// advisory lock key serializing the store-reserve computation
const storeLedgerLockKey = 874501

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, entry NewTransaction) (*Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	created, err := r.AppendTx(ctx, tx, entry)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordTransaction(string(created.Type))
	after, _ := created.StoreBalanceAfter.Float64()
	metrics.StoreBalance.Set(after)
	return created, nil
}

func (r *repository) AppendTx(ctx context.Context, tx *sqlx.Tx, entry NewTransaction) (*Transaction, error) {
	// Serialize the read-compute-insert of store_balance_after. Customer
	// rows are additionally locked below so two entries for the same
	// customer cannot both pass the balance check.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, storeLedgerLockKey); err != nil {
		return nil, err
	}

	prevStore := decimal.Zero
	err := tx.GetContext(ctx, &prevStore,
		`SELECT store_balance_after FROM transactions ORDER BY id DESC LIMIT 1`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	storeAfter := prevStore.Add(entry.StoreBalanceDelta)
	if entry.StoreBalanceDelta.IsNegative() && storeAfter.IsNegative() {
		return nil, ErrInsufficientBalance
	}

	var customerAfter *decimal.Decimal
	if entry.CustomerID != nil {
		var balance decimal.Decimal
		err = tx.QueryRowxContext(ctx,
			`SELECT balance FROM customers WHERE id = $1 FOR UPDATE`,
			*entry.CustomerID,
		).Scan(&balance)
		if err != nil {
			return nil, err
		}

		newBalance := balance.Add(entry.Amount)
		if entry.Amount.IsNegative() && newBalance.IsNegative() {
			return nil, ErrInsufficientBalance
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE customers SET balance = $1, updated_at = NOW() WHERE id = $2`,
			newBalance, *entry.CustomerID,
		)
		if err != nil {
			return nil, err
		}
		customerAfter = &newBalance
	}

	created := &Transaction{}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO transactions (
			customer_id, order_id, type, amount, store_balance_delta, store_balance_after,
			customer_balance_after, platform_commission, gateway_commission,
			payment_gateway, description, details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, customer_id, order_id, type, amount, store_balance_delta, store_balance_after,
			customer_balance_after, platform_commission, gateway_commission,
			payment_gateway, description, details, created_at
	`,
		entry.CustomerID, entry.OrderID, entry.Type, entry.Amount,
		entry.StoreBalanceDelta, storeAfter, customerAfter,
		entry.PlatformCommission, entry.GatewayCommission,
		entry.PaymentGateway, entry.Description, entry.Details,
	).StructScan(created)
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *repository) GetLast(ctx context.Context) (*Transaction, error) {
	t := &Transaction{}
	err := r.db.GetContext(ctx, t, `
		SELECT * FROM transactions
		ORDER BY id DESC
		LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoTransactions
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetDepositForInvoice returns the deposit entry recorded when the given
// invoice completed. Deposit details always carry the invoice id.
func (r *repository) GetDepositForInvoice(ctx context.Context, invoiceID int64) (*Transaction, error) {
	t := &Transaction{}
	err := r.db.GetContext(ctx, t, `
		SELECT * FROM transactions
		WHERE type = 'deposit' AND (details->>'invoice_id')::bigint = $1
		ORDER BY id DESC
		LIMIT 1
	`, invoiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoTransactions
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repository) List(ctx context.Context, q *listquery.Query) ([]Transaction, int64, error) {
	countSQL, countArgs := q.CountSQL(`SELECT COUNT(*) FROM transactions`)
	var total int64
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}

	querySQL, args := q.SQL(`SELECT * FROM transactions`)
	txs := []Transaction{}
	if err := r.db.SelectContext(ctx, &txs, querySQL, args...); err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}

func (r *repository) ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
	if err != nil {
		return nil, err
	}

	return txs, nil
}
