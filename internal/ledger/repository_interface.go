package ledger

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
)

type Repository interface {
	// Append inserts one ledger entry in its own transaction.
	Append(ctx context.Context, entry NewTransaction) (*Transaction, error)
	// AppendTx inserts one ledger entry inside a caller-owned transaction
	// so the entry commits or rolls back together with the caller's writes.
	AppendTx(ctx context.Context, tx *sqlx.Tx, entry NewTransaction) (*Transaction, error)
	GetLast(ctx context.Context) (*Transaction, error)
	// GetDepositForInvoice returns the deposit entry recorded for an invoice.
	GetDepositForInvoice(ctx context.Context, invoiceID int64) (*Transaction, error)
	List(ctx context.Context, q *listquery.Query) ([]Transaction, int64, error)
	ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Transaction, error)
}
