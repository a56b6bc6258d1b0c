package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
)

type Repository interface {
	Create(ctx context.Context, inv *Invoice) (*Invoice, error)
	GetByID(ctx context.Context, id int64) (*Invoice, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Invoice, error)
	// GetByOrderIDForUpdate locks the invoice row inside the caller's tx
	// so completion and refund run one at a time per invoice.
	GetByOrderIDForUpdate(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) (*Invoice, error)
	// UpdateStatus moves an invoice to status only if its current status
	// is one of allowedFrom. Returns ErrIllegalTransition when the guard
	// does not match, which makes concurrent webhook replays lose cleanly.
	UpdateStatus(ctx context.Context, id int64, to Status, allowedFrom []Status) (*Invoice, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, to Status, allowedFrom []Status) (*Invoice, error)
	SetGatewayInvoice(ctx context.Context, id int64, gatewayInvoiceID string, paymentDetails []byte) error
	// AttachReceipt sets the receipt URL and moves awaiting_receipt to
	// receipt_submitted in a single guarded write.
	AttachReceipt(ctx context.Context, id int64, receiptURL string) (*Invoice, error)
	// ExpireOld moves overdue non-terminal invoices to expired and
	// returns how many rows changed.
	ExpireOld(ctx context.Context, now time.Time) (int64, error)
	// Open returns unexpired non-terminal invoices that already have a
	// gateway-side id, for status polling.
	Open(ctx context.Context, now time.Time) ([]Invoice, error)
	// PendingOlderThan returns unexpired, unnotified invoices still
	// waiting for payment past the given age.
	PendingOlderThan(ctx context.Context, age time.Duration, now time.Time) ([]Invoice, error)
	MarkNotified(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context, q *listquery.Query) ([]Invoice, int64, error)
}
