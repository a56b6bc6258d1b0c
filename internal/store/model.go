package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
)

type RequestType string

const (
	TypeDeposit    RequestType = "deposit"
	TypeWithdrawal RequestType = "withdrawal"
)

type RequestStatus string

const (
	StatusPendingOperator RequestStatus = "pending_operator"
	StatusCompleted       RequestStatus = "completed"
	StatusRejected        RequestStatus = "rejected"
)

// BalanceRequest is an operator-approved movement of store funds to or from
// an external USDT wallet.
type BalanceRequest struct {
	ID               int64           `db:"id" json:"id"`
	RequestType      RequestType     `db:"request_type" json:"request_type"`
	WalletAddress    string          `db:"wallet_address" json:"wallet_address"`
	AmountRUB        decimal.Decimal `db:"amount_rub" json:"amount_rub"`
	AmountUSDT       decimal.Decimal `db:"amount_usdt" json:"amount_usdt"`
	FxRate           decimal.Decimal `db:"fx_rate" json:"fx_rate"`
	Status           RequestStatus   `db:"status" json:"status"`
	OperatorID       *string         `db:"operator_id" json:"operator_id,omitempty"`
	OperatorComment  *string         `db:"operator_comment" json:"operator_comment,omitempty"`
	OperatorActionAt *time.Time      `db:"operator_action_at" json:"operator_action_at,omitempty"`
	// Ledger entry references: the pessimistic debit for withdrawals, the
	// credit for approved deposits, the compensation for rejected
	// withdrawals.
	DebitTransactionID  *int64    `db:"debit_transaction_id" json:"debit_transaction_id,omitempty"`
	CreditTransactionID *int64    `db:"credit_transaction_id" json:"credit_transaction_id,omitempty"`
	RefundTransactionID *int64    `db:"refund_transaction_id" json:"refund_transaction_id,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	RequestType   RequestType     `json:"request_type" binding:"required,oneof=deposit withdrawal"`
	WalletAddress string          `json:"wallet_address" binding:"required,trc20"`
	AmountRUB     decimal.Decimal `json:"amount_rub" binding:"required"`
}

type RejectRequest struct {
	Comment string `json:"comment" binding:"required"`
}

var ListSpec = listquery.Spec{
	"request_type": {Column: "request_type", Ops: []listquery.Op{listquery.OpEq}},
	"status":       {Column: "status", Ops: []listquery.Op{listquery.OpEq, listquery.OpNe, listquery.OpIn}},
	"amount_rub":   {Column: "amount_rub", Ops: []listquery.Op{listquery.OpGt, listquery.OpLt, listquery.OpGe, listquery.OpLe}},
	"created_at":   {Column: "created_at", Ops: []listquery.Op{listquery.OpGt, listquery.OpLt, listquery.OpGe, listquery.OpLe}},
}
