package jobs

import (
	"context"
	"time"

	"github.com/ToropovAlexei/autosales-sub001/internal/gateway"
	"github.com/ToropovAlexei/autosales-sub001/internal/invoice"
	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
	"github.com/ToropovAlexei/autosales-sub001/internal/notify"
)

// NewInvoiceSweep builds the payment maintenance job: expire overdue
// invoices, poll the gateways for status changes on open ones, and remind
// customers about invoices that sat unpaid too long.
func NewInvoiceSweep(repo invoice.Repository, svc *invoice.Service,
	gateways *gateway.Registry, dispatcher notify.Dispatcher,
	remindAfter, interval time.Duration) Job {
	return Job{
		Name:     "invoice-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			now := time.Now().UTC()

			expired, err := repo.ExpireOld(ctx, now)
			if err != nil {
				return err
			}
			if expired > 0 {
				logger.Infof("invoice-sweep: expired %d invoices", expired)
			}

			pollGateways(ctx, repo, svc, gateways, now)

			return remindPending(ctx, repo, dispatcher, remindAfter, now)
		},
	}
}

func pollGateways(ctx context.Context, repo invoice.Repository, svc *invoice.Service,
	gateways *gateway.Registry, now time.Time) {
	open, err := repo.Open(ctx, now)
	if err != nil {
		logger.Errorf("invoice-sweep: list open invoices: %v", err)
		return
	}
	for _, inv := range open {
		adapter, err := gateways.Get(inv.Gateway)
		if err != nil {
			logger.Errorf("invoice-sweep: invoice %d: %v", inv.ID, err)
			continue
		}
		remote, err := adapter.OrderStatus(ctx, *inv.GatewayInvoiceID)
		if err != nil {
			logger.Errorf("invoice-sweep: poll invoice %d: %v", inv.ID, err)
			continue
		}
		if err := svc.HandleGatewayStatus(ctx, inv.Gateway, inv.OrderID, remote); err != nil {
			logger.Errorf("invoice-sweep: apply status %s to invoice %d: %v", remote, inv.ID, err)
		}
	}
}

func remindPending(ctx context.Context, repo invoice.Repository,
	dispatcher notify.Dispatcher, remindAfter time.Duration, now time.Time) error {
	if remindAfter <= 0 {
		return nil
	}
	stale, err := repo.PendingOlderThan(ctx, remindAfter, now)
	if err != nil {
		return err
	}
	for _, inv := range stale {
		if err := dispatcher.DispatchPaymentReminder(ctx, inv.CustomerID, inv.OrderID.String()); err != nil {
			logger.Errorf("invoice-sweep: remind invoice %d: %v", inv.ID, err)
			continue
		}
		if err := repo.MarkNotified(ctx, inv.ID, now); err != nil {
			logger.Errorf("invoice-sweep: mark invoice %d notified: %v", inv.ID, err)
		}
	}
	return nil
}
