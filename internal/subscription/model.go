package subscription

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type UserSubscription struct {
	ID                  int64           `db:"id" json:"id"`
	CustomerID          int64           `db:"customer_id" json:"customer_id"`
	ProductID           int64           `db:"product_id" json:"product_id"`
	OrderID             int64           `db:"order_id" json:"order_id"`
	StartedAt           time.Time       `db:"started_at" json:"started_at"`
	ExpiresAt           time.Time       `db:"expires_at" json:"expires_at"`
	CancelledAt         *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	NextChargeAt        *time.Time      `db:"next_charge_at" json:"next_charge_at,omitempty"`
	RenewalOrderID      *int64          `db:"renewal_order_id" json:"renewal_order_id,omitempty"`
	PriceAtSubscription decimal.Decimal `db:"price_at_subscription" json:"price_at_subscription"`
	PeriodDays          int             `db:"period_days" json:"period_days"`
	Details             json.RawMessage `db:"details" json:"details,omitempty"`
	ExpiryNotifiedAt    *time.Time      `db:"expiry_notified_at" json:"-"`
}

func (s *UserSubscription) Active(now time.Time) bool {
	return s.CancelledAt == nil && s.ExpiresAt.After(now)
}
