package invoice

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
)

type Status string

const (
	StatusPending          Status = "pending"
	StatusProcessing       Status = "processing"
	StatusAwaitingReceipt  Status = "awaiting_receipt"
	StatusReceiptSubmitted Status = "receipt_submitted"
	StatusDisputed         Status = "disputed"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusExpired          Status = "expired"
	StatusCancelled        Status = "cancelled"
	StatusRefunded         Status = "refunded"
)

// transitions lists the legal forward edges of the invoice lifecycle.
// Terminal statuses have no outgoing edges except completed -> refunded.
var transitions = map[Status][]Status{
	StatusPending:          {StatusProcessing, StatusAwaitingReceipt, StatusCompleted, StatusFailed, StatusExpired, StatusCancelled},
	StatusProcessing:       {StatusAwaitingReceipt, StatusCompleted, StatusFailed, StatusExpired, StatusCancelled},
	StatusAwaitingReceipt:  {StatusReceiptSubmitted, StatusCompleted, StatusFailed, StatusExpired, StatusCancelled},
	StatusReceiptSubmitted: {StatusDisputed, StatusCompleted, StatusFailed, StatusCancelled},
	StatusDisputed:         {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:        {StatusRefunded},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

type Invoice struct {
	ID               int64           `db:"id" json:"id"`
	OrderID          uuid.UUID       `db:"order_id" json:"order_id"`
	CustomerID       int64           `db:"customer_id" json:"customer_id"`
	Gateway          string          `db:"gateway" json:"gateway"`
	GatewayInvoiceID *string         `db:"gateway_invoice_id" json:"gateway_invoice_id,omitempty"`
	Status           Status          `db:"status" json:"status"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	OriginalAmount   decimal.Decimal `db:"original_amount" json:"original_amount"`
	BonusPercent     decimal.Decimal `db:"bonus_percent" json:"bonus_percent"`
	PaymentDetails   json.RawMessage `db:"payment_details" json:"payment_details,omitempty"`
	ReceiptURL       *string         `db:"receipt_url" json:"receipt_url,omitempty"`
	ExpiresAt        time.Time       `db:"expires_at" json:"expires_at"`
	NotifiedAt       *time.Time      `db:"notified_at" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

type CreateInvoiceRequest struct {
	CustomerID int64           `json:"customer_id" binding:"required"`
	Gateway    string          `json:"gateway" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
}

type SubmitReceiptRequest struct {
	ReceiptURL string `json:"receipt_url" binding:"required,url"`
}

var ListSpec = listquery.Spec{
	"customer_id": {Column: "customer_id", Ops: []listquery.Op{listquery.OpEq, listquery.OpIn}},
	"gateway":     {Column: "gateway", Ops: []listquery.Op{listquery.OpEq, listquery.OpIn}},
	"status":      {Column: "status", Ops: []listquery.Op{listquery.OpEq, listquery.OpNe, listquery.OpIn}},
	"amount":      {Column: "amount", Ops: []listquery.Op{listquery.OpEq, listquery.OpGt, listquery.OpLt, listquery.OpGe, listquery.OpLe}},
	"created_at":  {Column: "created_at", Ops: []listquery.Op{listquery.OpGt, listquery.OpLt, listquery.OpGe, listquery.OpLe}},
}
