package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ToropovAlexei/autosales-sub001/internal/purchase"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

const subscriptionColumns = `id, customer_id, product_id, order_id, started_at, expires_at,
	cancelled_at, next_charge_at, renewal_order_id, price_at_subscription, period_days,
	details, expiry_notified_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ProvisionTx(ctx context.Context, tx *sqlx.Tx, p purchase.Provision) (int64, error) {
	now := time.Now().UTC()
	expiresAt := now.AddDate(0, 0, p.PeriodDays)
	// Auto-renewal charges a day before expiry.
	nextChargeAt := expiresAt.Add(-24 * time.Hour)

	query := `
		INSERT INTO user_subscriptions (customer_id, product_id, order_id, started_at,
			expires_at, next_charge_at, price_at_subscription, period_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := tx.QueryRowxContext(ctx, query,
		p.CustomerID, p.ProductID, p.OrderID, now, expiresAt, nextChargeAt, p.Price, p.PeriodDays,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create subscription: %w", err)
	}
	return id, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*UserSubscription, error) {
	var sub UserSubscription
	query := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE id = $1`
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription %d: %w", id, err)
	}
	return &sub, nil
}

func (r *repository) GetForCustomer(ctx context.Context, customerID int64) ([]UserSubscription, error) {
	subs := []UserSubscription{}
	query := `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE customer_id = $1
		ORDER BY expires_at DESC`
	if err := r.db.SelectContext(ctx, &subs, query, customerID); err != nil {
		return nil, fmt.Errorf("list subscriptions for customer %d: %w", customerID, err)
	}
	return subs, nil
}

func (r *repository) GetExpiringForNotification(ctx context.Context, now time.Time, window time.Duration) ([]UserSubscription, error) {
	subs := []UserSubscription{}
	query := `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE cancelled_at IS NULL
		  AND expiry_notified_at IS NULL
		  AND expires_at > $1
		  AND expires_at <= $2
		ORDER BY expires_at ASC`
	if err := r.db.SelectContext(ctx, &subs, query, now, now.Add(window)); err != nil {
		return nil, fmt.Errorf("list expiring subscriptions: %w", err)
	}
	return subs, nil
}

func (r *repository) MarkExpiryNotificationSent(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE user_subscriptions SET expiry_notified_at = ? WHERE id IN (?)`, at, ids)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("mark subscriptions notified: %w", err)
	}
	return nil
}

func (r *repository) Cancel(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE user_subscriptions
		SET cancelled_at = $2, next_charge_at = NULL
		WHERE id = $1 AND cancelled_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("cancel subscription %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *repository) DueForRenewal(ctx context.Context, now time.Time) ([]UserSubscription, error) {
	subs := []UserSubscription{}
	query := `
		SELECT ` + subscriptionColumns + `
		FROM user_subscriptions
		WHERE cancelled_at IS NULL
		  AND next_charge_at IS NOT NULL
		  AND next_charge_at <= $1
		ORDER BY next_charge_at ASC`
	if err := r.db.SelectContext(ctx, &subs, query, now); err != nil {
		return nil, fmt.Errorf("list subscriptions due for renewal: %w", err)
	}
	return subs, nil
}

func (r *repository) SetRenewal(ctx context.Context, id, renewalOrderID int64, expiresAt time.Time, nextChargeAt *time.Time) error {
	query := `
		UPDATE user_subscriptions
		SET renewal_order_id = $2, expires_at = $3, next_charge_at = $4, expiry_notified_at = NULL
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, renewalOrderID, expiresAt, nextChargeAt); err != nil {
		return fmt.Errorf("set renewal of subscription %d: %w", id, err)
	}
	return nil
}

func (r *repository) ClearNextCharge(ctx context.Context, id int64) error {
	query := `UPDATE user_subscriptions SET next_charge_at = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("clear next charge of subscription %d: %w", id, err)
	}
	return nil
}
