package ledger

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
)

type Type string

const (
	TypeDeposit        Type = "deposit"
	TypePurchase       Type = "purchase"
	TypeWithdrawal     Type = "withdrawal"
	TypeReferralPayout Type = "referral_payout"
	TypeServiceCharge  Type = "service_charge"
	TypeRefund         Type = "refund"
)

// Transaction — запись в журнале движений средств. После вставки никогда
// не меняется и не удаляется; store_balance_after каждой записи равен
// store_balance_after предыдущей плюс store_balance_delta.
type Transaction struct {
	ID                   int64            `db:"id" json:"id"`
	CustomerID           *int64           `db:"customer_id" json:"customer_id"`
	OrderID              *int64           `db:"order_id" json:"order_id"`
	Type                 Type             `db:"type" json:"type"`
	Amount               decimal.Decimal  `db:"amount" json:"amount"`
	StoreBalanceDelta    decimal.Decimal  `db:"store_balance_delta" json:"store_balance_delta"`
	StoreBalanceAfter    decimal.Decimal  `db:"store_balance_after" json:"store_balance_after"`
	CustomerBalanceAfter *decimal.Decimal `db:"customer_balance_after" json:"customer_balance_after"`
	PlatformCommission   decimal.Decimal  `db:"platform_commission" json:"platform_commission"`
	GatewayCommission    decimal.Decimal  `db:"gateway_commission" json:"gateway_commission"`
	PaymentGateway       *string          `db:"payment_gateway" json:"payment_gateway"`
	Description          *string          `db:"description" json:"description"`
	Details              json.RawMessage  `db:"details" json:"details"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
}

// NewTransaction carries the caller-supplied part of a ledger entry.
// Balance snapshots are computed by the repository, never by callers.
type NewTransaction struct {
	CustomerID         *int64
	OrderID            *int64
	Type               Type
	Amount             decimal.Decimal
	StoreBalanceDelta  decimal.Decimal
	PlatformCommission decimal.Decimal
	GatewayCommission  decimal.Decimal
	PaymentGateway     *string
	Description        *string
	Details            json.RawMessage
}

// ListSpec is the filter/sort allow-list for the transactions listing.
var ListSpec = listquery.Spec{
	"id":                  {Column: "id", Ops: []listquery.Op{listquery.OpEq, listquery.OpGt, listquery.OpLt, listquery.OpIn}},
	"customer_id":         {Column: "customer_id", Ops: []listquery.Op{listquery.OpEq, listquery.OpIn}},
	"order_id":            {Column: "order_id", Ops: []listquery.Op{listquery.OpEq}},
	"type":                {Column: "type", Ops: []listquery.Op{listquery.OpEq, listquery.OpIn}},
	"amount":              {Column: "amount", Ops: []listquery.Op{listquery.OpEq, listquery.OpGt, listquery.OpLt, listquery.OpGe, listquery.OpLe}},
	"store_balance_delta": {Column: "store_balance_delta", Ops: []listquery.Op{listquery.OpEq, listquery.OpGt, listquery.OpLt}},
	"platform_commission": {Column: "platform_commission", Ops: []listquery.Op{listquery.OpEq, listquery.OpGt, listquery.OpLt}},
	"gateway_commission":  {Column: "gateway_commission", Ops: []listquery.Op{listquery.OpEq, listquery.OpGt, listquery.OpLt}},
	"payment_gateway":     {Column: "payment_gateway", Ops: []listquery.Op{listquery.OpEq, listquery.OpIn}},
	"created_at":          {Column: "created_at", Ops: []listquery.Op{listquery.OpGt, listquery.OpLt, listquery.OpGe, listquery.OpLe}},
}
