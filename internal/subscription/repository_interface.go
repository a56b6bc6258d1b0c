package subscription

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ToropovAlexei/autosales-sub001/internal/purchase"
)

type Repository interface {
	// ProvisionTx creates the subscription inside the purchase transaction.
	// Satisfies purchase.SubscriptionProvisioner.
	ProvisionTx(ctx context.Context, tx *sqlx.Tx, p purchase.Provision) (int64, error)
	GetByID(ctx context.Context, id int64) (*UserSubscription, error)
	GetForCustomer(ctx context.Context, customerID int64) ([]UserSubscription, error)
	// GetExpiringForNotification returns active subscriptions expiring
	// within the window that have not been notified yet.
	GetExpiringForNotification(ctx context.Context, now time.Time, window time.Duration) ([]UserSubscription, error)
	MarkExpiryNotificationSent(ctx context.Context, ids []int64, at time.Time) error
	Cancel(ctx context.Context, id int64, at time.Time) error
	// DueForRenewal returns active subscriptions whose next_charge_at has
	// passed.
	DueForRenewal(ctx context.Context, now time.Time) ([]UserSubscription, error)
	SetRenewal(ctx context.Context, id, renewalOrderID int64, expiresAt time.Time, nextChargeAt *time.Time) error
	ClearNextCharge(ctx context.Context, id int64) error
}
