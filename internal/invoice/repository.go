package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
)

var (
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrIllegalTransition = errors.New("illegal invoice status transition")
)

const invoiceColumns = `id, order_id, customer_id, gateway, gateway_invoice_id, status, amount,
	original_amount, bonus_percent, payment_details, receipt_url, expires_at, notified_at,
	created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, inv *Invoice) (*Invoice, error) {
	query := `
		INSERT INTO payment_invoices (order_id, customer_id, gateway, gateway_invoice_id,
			status, amount, original_amount, bonus_percent, payment_details, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + invoiceColumns

	var created Invoice
	err := r.db.QueryRowxContext(ctx, query,
		inv.OrderID, inv.CustomerID, inv.Gateway, inv.GatewayInvoiceID,
		inv.Status, inv.Amount, inv.OriginalAmount, inv.BonusPercent,
		inv.PaymentDetails, inv.ExpiresAt,
	).StructScan(&created)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return &created, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	var inv Invoice
	query := `SELECT ` + invoiceColumns + ` FROM payment_invoices WHERE id = $1`
	if err := r.db.GetContext(ctx, &inv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice %d: %w", id, err)
	}
	return &inv, nil
}

func (r *repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Invoice, error) {
	var inv Invoice
	query := `SELECT ` + invoiceColumns + ` FROM payment_invoices WHERE order_id = $1`
	if err := r.db.GetContext(ctx, &inv, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice by order %s: %w", orderID, err)
	}
	return &inv, nil
}

func (r *repository) GetByOrderIDForUpdate(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) (*Invoice, error) {
	var inv Invoice
	query := `SELECT ` + invoiceColumns + ` FROM payment_invoices WHERE order_id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &inv, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("lock invoice by order %s: %w", orderID, err)
	}
	return &inv, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, to Status, allowedFrom []Status) (*Invoice, error) {
	return r.updateStatus(ctx, r.db, id, to, allowedFrom)
}

func (r *repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, to Status, allowedFrom []Status) (*Invoice, error) {
	return r.updateStatus(ctx, tx, id, to, allowedFrom)
}

// updateStatus is the guarded transition write. The WHERE clause makes the
// transition atomic: a concurrent writer that got there first leaves no
// matching row, and the loser gets ErrIllegalTransition.
func (r *repository) updateStatus(ctx context.Context, q sqlx.ExtContext, id int64, to Status, allowedFrom []Status) (*Invoice, error) {
	from := make([]string, len(allowedFrom))
	for i, s := range allowedFrom {
		from[i] = string(s)
	}
	query := `
		UPDATE payment_invoices
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + invoiceColumns

	var inv Invoice
	err := sqlx.GetContext(ctx, q, &inv, query, id, to, pq.Array(from))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, gerr := r.GetByID(ctx, id); gerr != nil {
				return nil, gerr
			}
			return nil, ErrIllegalTransition
		}
		return nil, fmt.Errorf("update invoice %d status: %w", id, err)
	}
	return &inv, nil
}

func (r *repository) SetGatewayInvoice(ctx context.Context, id int64, gatewayInvoiceID string, paymentDetails []byte) error {
	query := `
		UPDATE payment_invoices
		SET gateway_invoice_id = $2, payment_details = $3, updated_at = NOW()
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, gatewayInvoiceID, paymentDetails)
	if err != nil {
		return fmt.Errorf("set gateway invoice for %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// AttachReceipt stores the receipt URL and flips the invoice to
// receipt_submitted in one guarded write, so a crash cannot leave the
// status set without the URL.
func (r *repository) AttachReceipt(ctx context.Context, id int64, receiptURL string) (*Invoice, error) {
	query := `
		UPDATE payment_invoices
		SET status = $2, receipt_url = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING ` + invoiceColumns

	var inv Invoice
	err := r.db.GetContext(ctx, &inv, query, id, StatusReceiptSubmitted, receiptURL, StatusAwaitingReceipt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, gerr := r.GetByID(ctx, id); gerr != nil {
				return nil, gerr
			}
			return nil, ErrIllegalTransition
		}
		return nil, fmt.Errorf("attach receipt for %d: %w", id, err)
	}
	return &inv, nil
}

func (r *repository) ExpireOld(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE payment_invoices
		SET status = $1, updated_at = NOW()
		WHERE expires_at <= $2
		  AND status IN ($3, $4, $5)`
	res, err := r.db.ExecContext(ctx, query,
		StatusExpired, now, StatusPending, StatusProcessing, StatusAwaitingReceipt)
	if err != nil {
		return 0, fmt.Errorf("expire invoices: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *repository) Open(ctx context.Context, now time.Time) ([]Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM payment_invoices
		WHERE status IN ($1, $2, $3, $4, $5)
		  AND gateway_invoice_id IS NOT NULL
		  AND expires_at > $6
		ORDER BY id ASC`
	invoices := []Invoice{}
	err := r.db.SelectContext(ctx, &invoices, query,
		StatusPending, StatusProcessing, StatusAwaitingReceipt, StatusReceiptSubmitted, StatusDisputed, now)
	if err != nil {
		return nil, fmt.Errorf("list open invoices: %w", err)
	}
	return invoices, nil
}

func (r *repository) PendingOlderThan(ctx context.Context, age time.Duration, now time.Time) ([]Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM payment_invoices
		WHERE status IN ($1, $2)
		  AND notified_at IS NULL
		  AND created_at <= $3
		  AND expires_at > $4
		ORDER BY created_at ASC`
	invoices := []Invoice{}
	err := r.db.SelectContext(ctx, &invoices, query,
		StatusPending, StatusAwaitingReceipt, now.Add(-age), now)
	if err != nil {
		return nil, fmt.Errorf("list pending invoices: %w", err)
	}
	return invoices, nil
}

func (r *repository) MarkNotified(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE payment_invoices SET notified_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark invoice %d notified: %w", id, err)
	}
	return nil
}

func (r *repository) List(ctx context.Context, q *listquery.Query) ([]Invoice, int64, error) {
	countQuery, countArgs := q.CountSQL(`SELECT COUNT(*) FROM payment_invoices`)
	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	if q.OrderBy == "" {
		q.OrderBy = "created_at"
	}
	query, args := q.SQL(`SELECT ` + invoiceColumns + ` FROM payment_invoices`)
	invoices := []Invoice{}
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, total, nil
}
