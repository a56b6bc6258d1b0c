// Package notify queues customer-facing events into Redis and delivers them
// to the chat dispatch endpoint from a background worker. Producing services
// never block on delivery.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
	"github.com/ToropovAlexei/autosales-sub001/internal/metrics"
)

const (
	queueKey       = "notifications:pending"
	failedQueueKey = "notifications:failed"
	maxAttempts    = 3
)

type Notification struct {
	Type       string          `json:"type"`
	CustomerID int64           `json:"customer_id"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Dispatcher is the producer side used by domain services.
type Dispatcher interface {
	DispatchDepositCompleted(ctx context.Context, customerID int64, amount decimal.Decimal) error
	DispatchPurchaseCompleted(ctx context.Context, customerID, orderID int64, content string) error
	DispatchPaymentReminder(ctx context.Context, customerID int64, orderID string) error
	DispatchSubscriptionExpiring(ctx context.Context, customerID, subscriptionID int64, expiresAt time.Time) error
	DispatchBalanceRequestResolved(ctx context.Context, customerID, requestID int64, approved bool) error
	// DispatchOperatorAlert targets the operator chat, not a customer.
	DispatchOperatorAlert(ctx context.Context, message string) error
}

type Service struct {
	rdb         *redis.Client
	client      *http.Client
	dispatchURL string
}

func NewService(rdb *redis.Client, dispatchURL string) *Service {
	return &Service{
		rdb:         rdb,
		client:      &http.Client{Timeout: 10 * time.Second},
		dispatchURL: dispatchURL,
	}
}

func (s *Service) DispatchDepositCompleted(ctx context.Context, customerID int64, amount decimal.Decimal) error {
	return s.enqueue(ctx, "deposit_completed", customerID, map[string]string{"amount": amount.StringFixed(2)})
}

func (s *Service) DispatchPurchaseCompleted(ctx context.Context, customerID, orderID int64, content string) error {
	return s.enqueue(ctx, "purchase_completed", customerID, map[string]interface{}{"order_id": orderID, "content": content})
}

func (s *Service) DispatchPaymentReminder(ctx context.Context, customerID int64, orderID string) error {
	return s.enqueue(ctx, "payment_reminder", customerID, map[string]string{"order_id": orderID})
}

func (s *Service) DispatchSubscriptionExpiring(ctx context.Context, customerID, subscriptionID int64, expiresAt time.Time) error {
	return s.enqueue(ctx, "subscription_expiring", customerID, map[string]interface{}{
		"subscription_id": subscriptionID,
		"expires_at":      expiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Service) DispatchBalanceRequestResolved(ctx context.Context, customerID, requestID int64, approved bool) error {
	return s.enqueue(ctx, "balance_request_resolved", customerID, map[string]interface{}{"request_id": requestID, "approved": approved})
}

func (s *Service) DispatchOperatorAlert(ctx context.Context, message string) error {
	return s.enqueue(ctx, "operator_alert", 0, map[string]string{"message": message})
}

func (s *Service) enqueue(ctx context.Context, typ string, customerID int64, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	n := Notification{Type: typ, CustomerID: customerID, Payload: raw, EnqueuedAt: time.Now().UTC()}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := s.rdb.LPush(ctx, queueKey, data).Err(); err != nil {
		metrics.RecordNotification(typ, "enqueue_failed")
		return fmt.Errorf("enqueue notification: %w", err)
	}
	metrics.RecordNotification(typ, "enqueued")
	return nil
}

// Start runs the delivery worker until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("notification worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("notification worker stopped")
			return
		default:
		}

		res, err := s.rdb.BRPop(ctx, 5*time.Second, queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			logger.Errorf("notification queue read: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var n Notification
		if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
			logger.Errorf("notification decode: %v", err)
			continue
		}
		s.deliver(ctx, n)

		if length, err := s.rdb.LLen(ctx, queueKey).Result(); err == nil {
			metrics.NotificationQueueLength.Set(float64(length))
		}
	}
}

func (s *Service) deliver(ctx context.Context, n Notification) {
	if err := s.send(ctx, n); err != nil {
		n.Attempts++
		if n.Attempts >= maxAttempts {
			logger.Errorf("notification %s for customer %d dropped after %d attempts: %v", n.Type, n.CustomerID, n.Attempts, err)
			metrics.RecordNotification(n.Type, "failed")
			if data, merr := json.Marshal(n); merr == nil {
				s.rdb.LPush(ctx, failedQueueKey, data)
			}
			return
		}
		logger.Errorf("notification %s for customer %d attempt %d: %v", n.Type, n.CustomerID, n.Attempts, err)
		if data, merr := json.Marshal(n); merr == nil {
			s.rdb.LPush(ctx, queueKey, data)
		}
		return
	}
	metrics.RecordNotification(n.Type, "delivered")
}

func (s *Service) send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.dispatchURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dispatch endpoint returned %d", resp.StatusCode)
	}
	return nil
}
