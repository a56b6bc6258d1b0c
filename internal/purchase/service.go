package purchase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/db"
	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
	"github.com/ToropovAlexei/autosales-sub001/internal/metrics"
	"github.com/ToropovAlexei/autosales-sub001/internal/notify"
	"github.com/ToropovAlexei/autosales-sub001/internal/pricing"
	"github.com/ToropovAlexei/autosales-sub001/internal/product"
	"github.com/ToropovAlexei/autosales-sub001/internal/settings"
)

// Provision carries what a subscription product needs to be set up at
// purchase time.
type Provision struct {
	CustomerID int64
	ProductID  int64
	OrderID    int64
	PeriodDays int
	Price      decimal.Decimal
}

// SubscriptionProvisioner creates the subscription record inside the purchase
// transaction so a provisioning failure rolls the whole purchase back.
type SubscriptionProvisioner interface {
	ProvisionTx(ctx context.Context, tx *sqlx.Tx, p Provision) (int64, error)
}

type Service struct {
	db            *sqlx.DB
	repo          Repository
	products      product.Repository
	ledgerRepo    ledger.Repository
	settings      settings.Repository
	subscriptions SubscriptionProvisioner
	dispatcher    notify.Dispatcher
}

func NewService(db *sqlx.DB, repo Repository, products product.Repository,
	ledgerRepo ledger.Repository, settingsRepo settings.Repository,
	subscriptions SubscriptionProvisioner, dispatcher notify.Dispatcher) *Service {
	return &Service{
		db:            db,
		repo:          repo,
		products:      products,
		ledgerRepo:    ledgerRepo,
		settings:      settingsRepo,
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
	}
}

// Purchase debits the customer, claims stock and fulfills the product as one
// transaction. Any failure leaves no order, no debit and no stock change.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	return s.purchase(ctx, req, true)
}

// Renew charges a subscription renewal: same debit and order flow, but no
// fulfillment, since the existing subscription is extended by the caller.
func (s *Service) Renew(ctx context.Context, customerID, productID int64) (*PurchaseResult, error) {
	return s.purchase(ctx, PurchaseRequest{CustomerID: customerID, ProductID: productID, Quantity: 1}, false)
}

// purchaseRetries bounds retries of the purchase tx on serialization
// failures.
const purchaseRetries = 3

func (s *Service) purchase(ctx context.Context, req PurchaseRequest, fulfill bool) (*PurchaseResult, error) {
	var result *PurchaseResult
	err := db.WithRetry(ctx, purchaseRetries, func(ctx context.Context) error {
		var perr error
		result, perr = s.purchaseOnce(ctx, req, fulfill)
		return perr
	})
	return result, err
}

func (s *Service) purchaseOnce(ctx context.Context, req PurchaseRequest, fulfill bool) (*PurchaseResult, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin purchase tx: %w", err)
	}
	defer tx.Rollback()

	prod, err := s.products.GetForUpdate(ctx, tx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !prod.IsActive {
		return nil, product.ErrProductNotFound
	}

	price := pricing.ProductPrice(prod.BasePrice, cfg)
	total := price.Mul(decimal.NewFromInt(int64(req.Quantity)))

	// Subscription products have no unit inventory.
	if prod.Type != product.TypeSubscription {
		if prod.Stock < req.Quantity {
			return nil, product.ErrOutOfStock
		}
		if err := s.products.DecrementStock(ctx, tx, prod.ID, req.Quantity); err != nil {
			return nil, err
		}
	}

	order, err := s.repo.CreateOrderTx(ctx, tx, &Order{CustomerID: req.CustomerID, Total: total})
	if err != nil {
		return nil, err
	}
	item, err := s.repo.CreateItemTx(ctx, tx, &OrderItem{
		OrderID:         order.ID,
		ProductID:       prod.ID,
		NameAtPurchase:  prod.Name,
		PriceAtPurchase: price,
		Quantity:        req.Quantity,
	})
	if err != nil {
		return nil, err
	}

	var fulfilled string
	if fulfill {
		fulfilled, err = s.fulfill(ctx, tx, prod, order, item, req, price)
		if err != nil {
			return nil, err
		}
	}

	details, _ := json.Marshal(map[string]interface{}{
		"product_id": prod.ID,
		"quantity":   req.Quantity,
	})
	description := fmt.Sprintf("Purchase of %s x%d", prod.Name, req.Quantity)
	entry, err := s.ledgerRepo.AppendTx(ctx, tx, ledger.NewTransaction{
		CustomerID:  &req.CustomerID,
		OrderID:     &order.ID,
		Type:        ledger.TypePurchase,
		Amount:      total.Neg(),
		Description: &description,
		Details:     details,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purchase: %w", err)
	}

	metrics.RecordPurchase("completed")
	if fulfill {
		if err := s.dispatcher.DispatchPurchaseCompleted(ctx, req.CustomerID, order.ID, fulfilled); err != nil {
			logger.Errorf("dispatch purchase notification for order %d: %v", order.ID, err)
		}
	}

	balance := decimal.Zero
	if entry.CustomerBalanceAfter != nil {
		balance = *entry.CustomerBalanceAfter
	}
	return &PurchaseResult{
		OrderID:       order.ID,
		ProductName:   prod.Name,
		Price:         price,
		Quantity:      req.Quantity,
		Balance:       balance,
		FulfilledText: fulfilled,
	}, nil
}

func (s *Service) fulfill(ctx context.Context, tx *sqlx.Tx, prod *product.Product,
	order *Order, item *OrderItem, req PurchaseRequest, price decimal.Decimal) (string, error) {
	switch prod.Type {
	case product.TypeSubscription:
		periodDays := 30
		if prod.PeriodDays != nil {
			periodDays = *prod.PeriodDays
		}
		if _, err := s.subscriptions.ProvisionTx(ctx, tx, Provision{
			CustomerID: req.CustomerID,
			ProductID:  prod.ID,
			OrderID:    order.ID,
			PeriodDays: periodDays,
			Price:      price,
		}); err != nil {
			return "", fmt.Errorf("provision subscription: %w", err)
		}
		return fmt.Sprintf("Subscription to %s active for %d days", prod.Name, periodDays), nil
	default:
		units, err := s.products.ClaimUnits(ctx, tx, prod.ID, item.ID, req.Quantity)
		if err != nil {
			return "", err
		}
		contents := make([]string, len(units))
		for i, u := range units {
			contents[i] = u.Content
		}
		return strings.Join(contents, "\n"), nil
	}
}
