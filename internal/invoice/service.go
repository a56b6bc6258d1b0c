package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/db"
	"github.com/ToropovAlexei/autosales-sub001/internal/gateway"
	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
	"github.com/ToropovAlexei/autosales-sub001/internal/metrics"
	"github.com/ToropovAlexei/autosales-sub001/internal/notify"
	"github.com/ToropovAlexei/autosales-sub001/internal/pricing"
	"github.com/ToropovAlexei/autosales-sub001/internal/settings"
)

var (
	ErrInvoiceExpired  = errors.New("invoice expired")
	ErrInvoiceMismatch = errors.New("invoice correlation mismatch")
	ErrNegativeAmount  = errors.New("invoice amount must be positive")
)

type Service struct {
	db         *sqlx.DB
	repo       Repository
	ledgerRepo ledger.Repository
	settings   settings.Repository
	gateways   *gateway.Registry
	dispatcher notify.Dispatcher
	invoiceTTL time.Duration
}

func NewService(db *sqlx.DB, repo Repository, ledgerRepo ledger.Repository,
	settingsRepo settings.Repository, gateways *gateway.Registry,
	dispatcher notify.Dispatcher, invoiceTTL time.Duration) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		ledgerRepo: ledgerRepo,
		settings:   settingsRepo,
		gateways:   gateways,
		dispatcher: dispatcher,
		invoiceTTL: invoiceTTL,
	}
}

// Create opens a deposit invoice. The gateway bonus is applied exactly once
// here; commission math is deferred to completion so settings changes between
// creation and payment use the values in force at payment time.
func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrNegativeAmount
	}
	adapter, err := s.gateways.Get(req.Gateway)
	if err != nil {
		return nil, err
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	bonus := pricing.GatewayBonusPercent(cfg, req.Gateway)
	payable := pricing.ApplyGatewayBonus(req.Amount, bonus)

	inv := &Invoice{
		OrderID:        uuid.New(),
		CustomerID:     req.CustomerID,
		Gateway:        req.Gateway,
		Status:         StatusPending,
		Amount:         payable,
		OriginalAmount: req.Amount,
		BonusPercent:   bonus,
		ExpiresAt:      time.Now().UTC().Add(s.invoiceTTL),
	}

	created, err := s.repo.Create(ctx, inv)
	if err != nil {
		return nil, err
	}

	remote, err := adapter.CreateInvoice(ctx, gateway.CreateInvoiceRequest{
		OrderID:    created.OrderID,
		CustomerID: created.CustomerID,
		Amount:     created.Amount,
	})
	if err != nil {
		// Row stays pending; the expiry sweep reaps it if the customer
		// never retries.
		metrics.RecordInvoice(req.Gateway, "gateway_error")
		return nil, fmt.Errorf("gateway %s: %w", req.Gateway, err)
	}

	if err := s.repo.SetGatewayInvoice(ctx, created.ID, remote.GatewayInvoiceID, remote.PaymentDetails); err != nil {
		return nil, err
	}
	created.GatewayInvoiceID = &remote.GatewayInvoiceID
	created.PaymentDetails = remote.PaymentDetails

	metrics.RecordInvoice(req.Gateway, string(StatusPending))
	return created, nil
}

// completionRetries bounds retries of the completion tx on serialization
// failures.
const completionRetries = 3

// HandlePaymentSuccess completes an invoice and credits the customer in one
// atomic unit. Safe to call any number of times per invoice: replays of an
// already-completed invoice succeed as no-ops, everything else past terminal
// is rejected. paidAmount is the amount the gateway reports as paid; it must
// match the invoice's payable amount exactly. Trusted internal callers (the
// status poll, operator confirmation) pass nil to skip the check.
func (s *Service) HandlePaymentSuccess(ctx context.Context, gatewayName, gatewayInvoiceID string, orderID uuid.UUID, paidAmount *decimal.Decimal) error {
	return db.WithRetry(ctx, completionRetries, func(ctx context.Context) error {
		return s.completePayment(ctx, gatewayName, gatewayInvoiceID, orderID, paidAmount)
	})
}

func (s *Service) completePayment(ctx context.Context, gatewayName, gatewayInvoiceID string, orderID uuid.UUID, paidAmount *decimal.Decimal) error {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin completion tx: %w", err)
	}
	defer tx.Rollback()

	inv, err := s.repo.GetByOrderIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if inv.Gateway != gatewayName {
		return fmt.Errorf("%w: invoice %d belongs to gateway %s", ErrInvoiceMismatch, inv.ID, inv.Gateway)
	}
	if inv.GatewayInvoiceID != nil && gatewayInvoiceID != "" && *inv.GatewayInvoiceID != gatewayInvoiceID {
		return fmt.Errorf("%w: invoice %d gateway id does not match", ErrInvoiceMismatch, inv.ID)
	}
	if paidAmount != nil && !paidAmount.Equal(inv.Amount) {
		return fmt.Errorf("%w: invoice %d expects %s, gateway reported %s", ErrInvoiceMismatch, inv.ID, inv.Amount, *paidAmount)
	}

	if inv.Status == StatusCompleted {
		return nil
	}
	if inv.Status.IsTerminal() {
		return fmt.Errorf("%w: invoice %d is %s", ErrIllegalTransition, inv.ID, inv.Status)
	}
	if time.Now().UTC().After(inv.ExpiresAt) {
		if _, uerr := s.repo.UpdateStatusTx(ctx, tx, inv.ID, StatusExpired, []Status{inv.Status}); uerr == nil {
			tx.Commit()
		}
		return fmt.Errorf("%w: invoice %d", ErrInvoiceExpired, inv.ID)
	}

	breakdown := pricing.DepositBreakdown(inv.OriginalAmount, cfg)
	details, _ := json.Marshal(map[string]interface{}{
		"invoice_id": inv.ID,
		"order_id":   inv.OrderID.String(),
	})
	description := fmt.Sprintf("Deposit via %s, invoice %d", inv.Gateway, inv.ID)
	entry := ledger.NewTransaction{
		CustomerID:         &inv.CustomerID,
		Type:               ledger.TypeDeposit,
		Amount:             inv.OriginalAmount,
		StoreBalanceDelta:  breakdown.StoreBalanceDelta,
		PlatformCommission: breakdown.PlatformCommission,
		GatewayCommission:  breakdown.GatewayCommission,
		PaymentGateway:     &inv.Gateway,
		Description:        &description,
		Details:            details,
	}
	if _, err := s.ledgerRepo.AppendTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("append deposit for invoice %d: %w", inv.ID, err)
	}

	if _, err := s.repo.UpdateStatusTx(ctx, tx, inv.ID, StatusCompleted, []Status{inv.Status}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invoice %d completion: %w", inv.ID, err)
	}

	metrics.RecordInvoice(inv.Gateway, string(StatusCompleted))
	if err := s.dispatcher.DispatchDepositCompleted(ctx, inv.CustomerID, inv.OriginalAmount); err != nil {
		logger.Errorf("dispatch deposit notification for invoice %d: %v", inv.ID, err)
	}
	return nil
}

// HandleGatewayStatus applies a non-success provider status to the invoice.
// Success statuses must go through HandlePaymentSuccess.
func (s *Service) HandleGatewayStatus(ctx context.Context, gatewayName string, orderID uuid.UUID, remote gateway.Status) error {
	if remote == gateway.StatusCompleted {
		inv, err := s.repo.GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		gid := ""
		if inv.GatewayInvoiceID != nil {
			gid = *inv.GatewayInvoiceID
		}
		return s.HandlePaymentSuccess(ctx, gatewayName, gid, orderID, nil)
	}

	target, ok := statusFromGateway(remote)
	if !ok {
		return fmt.Errorf("unmapped gateway status %q", remote)
	}

	inv, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if inv.Gateway != gatewayName {
		return fmt.Errorf("%w: invoice %d belongs to gateway %s", ErrInvoiceMismatch, inv.ID, inv.Gateway)
	}
	if inv.Status == target {
		return nil
	}
	if !CanTransition(inv.Status, target) {
		return fmt.Errorf("%w: %s -> %s on invoice %d", ErrIllegalTransition, inv.Status, target, inv.ID)
	}
	if _, err := s.repo.UpdateStatus(ctx, inv.ID, target, []Status{inv.Status}); err != nil {
		return err
	}
	metrics.RecordInvoice(gatewayName, string(target))
	return nil
}

func statusFromGateway(remote gateway.Status) (Status, bool) {
	switch remote {
	case gateway.StatusPending:
		return StatusPending, true
	case gateway.StatusProcessing:
		return StatusProcessing, true
	case gateway.StatusAwaitingReceipt:
		return StatusAwaitingReceipt, true
	case gateway.StatusDisputed:
		return StatusDisputed, true
	case gateway.StatusFailed:
		return StatusFailed, true
	case gateway.StatusCancelled:
		return StatusCancelled, true
	}
	return "", false
}

// SubmitReceipt records the customer's payment proof and forwards it to the
// provider for review.
func (s *Service) SubmitReceipt(ctx context.Context, id int64, receiptURL string) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	adapter, err := s.gateways.Get(inv.Gateway)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.AttachReceipt(ctx, id, receiptURL)
	if err != nil {
		return nil, err
	}

	if inv.GatewayInvoiceID != nil {
		if err := adapter.SendReceipt(ctx, *inv.GatewayInvoiceID, receiptURL); err != nil {
			logger.Errorf("forward receipt for invoice %d: %v", id, err)
		}
	}
	metrics.RecordInvoice(inv.Gateway, string(StatusReceiptSubmitted))
	return updated, nil
}

func (s *Service) Dispute(ctx context.Context, id int64) (*Invoice, error) {
	return s.transition(ctx, id, StatusDisputed, []Status{StatusReceiptSubmitted})
}

// Confirm is the operator override that resolves a disputed or stuck payment
// as paid. It reuses the atomic completion path.
func (s *Service) Confirm(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	gid := ""
	if inv.GatewayInvoiceID != nil {
		gid = *inv.GatewayInvoiceID
	}
	if err := s.HandlePaymentSuccess(ctx, inv.Gateway, gid, inv.OrderID, nil); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.transition(ctx, id, StatusCancelled,
		[]Status{StatusPending, StatusProcessing, StatusAwaitingReceipt, StatusReceiptSubmitted, StatusDisputed})
	if err != nil {
		return nil, err
	}
	if inv.GatewayInvoiceID != nil {
		if adapter, aerr := s.gateways.Get(inv.Gateway); aerr == nil {
			if cerr := adapter.Cancel(ctx, *inv.GatewayInvoiceID); cerr != nil {
				logger.Errorf("cancel invoice %d at gateway: %v", id, cerr)
			}
		}
	}
	return updated, nil
}

func (s *Service) Fail(ctx context.Context, id int64) (*Invoice, error) {
	return s.transition(ctx, id, StatusFailed,
		[]Status{StatusPending, StatusProcessing, StatusAwaitingReceipt, StatusReceiptSubmitted, StatusDisputed})
}

// Refund reverses a completed deposit: the customer is debited the original
// amount and the store reserve gives the delta back, atomically with the
// status flip to refunded. The reversal negates the recorded deposit entry
// rather than recomputing it, so commission changes made after completion
// cannot skew the refund.
func (s *Service) Refund(ctx context.Context, id int64) (*Invoice, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin refund tx: %w", err)
	}
	defer tx.Rollback()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.GetByOrderIDForUpdate(ctx, tx, current.OrderID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: invoice %d is %s", ErrIllegalTransition, inv.ID, inv.Status)
	}

	deposit, err := s.ledgerRepo.GetDepositForInvoice(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("load deposit for invoice %d: %w", inv.ID, err)
	}

	description := fmt.Sprintf("Refund of invoice %d", inv.ID)
	details, _ := json.Marshal(map[string]interface{}{"invoice_id": inv.ID})
	entry := ledger.NewTransaction{
		CustomerID:         &inv.CustomerID,
		Type:               ledger.TypeRefund,
		Amount:             deposit.Amount.Neg(),
		StoreBalanceDelta:  deposit.StoreBalanceDelta.Neg(),
		PlatformCommission: deposit.PlatformCommission.Neg(),
		GatewayCommission:  deposit.GatewayCommission.Neg(),
		PaymentGateway:     &inv.Gateway,
		Description:        &description,
		Details:            details,
	}
	if _, err := s.ledgerRepo.AppendTx(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("append refund for invoice %d: %w", inv.ID, err)
	}

	updated, err := s.repo.UpdateStatusTx(ctx, tx, inv.ID, StatusRefunded, []Status{StatusCompleted})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit refund of invoice %d: %w", inv.ID, err)
	}
	metrics.RecordInvoice(inv.Gateway, string(StatusRefunded))
	return updated, nil
}

func (s *Service) transition(ctx context.Context, id int64, to Status, allowedFrom []Status) (*Invoice, error) {
	updated, err := s.repo.UpdateStatus(ctx, id, to, allowedFrom)
	if err != nil {
		return nil, err
	}
	metrics.RecordInvoice(updated.Gateway, string(to))
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// PayableAmount is exposed for handlers that want to show the discounted
// amount before creating anything.
func (s *Service) PayableAmount(ctx context.Context, amount decimal.Decimal, gatewayName string) (decimal.Decimal, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return pricing.ApplyGatewayBonus(amount, pricing.GatewayBonusPercent(cfg, gatewayName)), nil
}
