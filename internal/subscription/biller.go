package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
	"github.com/ToropovAlexei/autosales-sub001/internal/notify"
	"github.com/ToropovAlexei/autosales-sub001/internal/purchase"
)

// Purchaser is the slice of the purchase service the biller needs for
// renewals.
type Purchaser interface {
	Renew(ctx context.Context, customerID, productID int64) (*purchase.PurchaseResult, error)
}

// Biller runs the periodic subscription pass: expiry notifications and
// auto-renewal charges.
type Biller struct {
	repo       Repository
	rdb        *redis.Client
	dispatcher notify.Dispatcher
	purchaser  Purchaser
	window     time.Duration
	dedupeTTL  time.Duration
}

func NewBiller(repo Repository, rdb *redis.Client, dispatcher notify.Dispatcher,
	purchaser Purchaser, window time.Duration) *Biller {
	return &Biller{
		repo:       repo,
		rdb:        rdb,
		dispatcher: dispatcher,
		purchaser:  purchaser,
		window:     window,
		// Outlives the notification window so a DB mark lost to a crash
		// cannot produce a duplicate within the same expiry.
		dedupeTTL: window + 24*time.Hour,
	}
}

func (b *Biller) Run(ctx context.Context) error {
	if err := b.NotifyExpiring(ctx); err != nil {
		return err
	}
	return b.RenewDue(ctx)
}

// NotifyExpiring sends one expiry warning per subscription per expires_at.
// The redis SETNX key covers the gap between dispatch and the DB mark; the
// notified_at column makes the skip durable.
func (b *Biller) NotifyExpiring(ctx context.Context) error {
	if b.window <= 0 {
		return nil
	}
	now := time.Now().UTC()
	subs, err := b.repo.GetExpiringForNotification(ctx, now, b.window)
	if err != nil {
		return err
	}

	notified := make([]int64, 0, len(subs))
	for _, sub := range subs {
		key := fmt.Sprintf("subscription-expiry-notified:%d:%d", sub.ID, sub.ExpiresAt.Unix())
		ok, err := b.rdb.SetNX(ctx, key, 1, b.dedupeTTL).Result()
		if err != nil {
			logger.Errorf("biller: dedupe check for subscription %d: %v", sub.ID, err)
			continue
		}
		if !ok {
			notified = append(notified, sub.ID)
			continue
		}
		if err := b.dispatcher.DispatchSubscriptionExpiring(ctx, sub.CustomerID, sub.ID, sub.ExpiresAt); err != nil {
			logger.Errorf("biller: dispatch expiry for subscription %d: %v", sub.ID, err)
			// Release the key so the next pass retries the dispatch.
			b.rdb.Del(ctx, key)
			continue
		}
		notified = append(notified, sub.ID)
	}

	return b.repo.MarkExpiryNotificationSent(ctx, notified, now)
}

// RenewDue charges subscriptions whose next_charge_at has passed. A customer
// without funds gets the renewal disabled instead of being retried forever.
func (b *Biller) RenewDue(ctx context.Context) error {
	now := time.Now().UTC()
	subs, err := b.repo.DueForRenewal(ctx, now)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		result, err := b.purchaser.Renew(ctx, sub.CustomerID, sub.ProductID)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				logger.Infof("biller: subscription %d renewal skipped, insufficient balance", sub.ID)
				if cerr := b.repo.ClearNextCharge(ctx, sub.ID); cerr != nil {
					logger.Errorf("biller: clear next charge of subscription %d: %v", sub.ID, cerr)
				}
				continue
			}
			logger.Errorf("biller: renew subscription %d: %v", sub.ID, err)
			continue
		}

		newExpiresAt := sub.ExpiresAt.AddDate(0, 0, sub.PeriodDays)
		nextChargeAt := newExpiresAt.Add(-24 * time.Hour)
		if err := b.repo.SetRenewal(ctx, sub.ID, result.OrderID, newExpiresAt, &nextChargeAt); err != nil {
			logger.Errorf("biller: record renewal of subscription %d: %v", sub.ID, err)
		}
	}
	return nil
}
