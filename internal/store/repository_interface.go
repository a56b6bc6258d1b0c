package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
)

type Repository interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, req *BalanceRequest) (*BalanceRequest, error)
	GetByID(ctx context.Context, id int64) (*BalanceRequest, error)
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*BalanceRequest, error)
	// Resolve moves a pending request to completed or rejected. The write
	// is guarded on pending_operator; zero rows means the request was
	// already resolved.
	Resolve(ctx context.Context, tx *sqlx.Tx, id int64, res Resolution) (*BalanceRequest, error)
	List(ctx context.Context, q *listquery.Query) ([]BalanceRequest, int64, error)
}

type Resolution struct {
	Status              RequestStatus
	OperatorID          string
	OperatorComment     *string
	ActionAt            time.Time
	CreditTransactionID *int64
	RefundTransactionID *int64
}
