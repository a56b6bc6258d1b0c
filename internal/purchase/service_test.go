package purchase

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
	"github.com/ToropovAlexei/autosales-sub001/internal/product"
	"github.com/ToropovAlexei/autosales-sub001/internal/settings"
)

// MockProducts is a mock implementation of product.Repository
type MockProducts struct {
	mock.Mock
}

func (m *MockProducts) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProducts) ListActive(ctx context.Context) ([]product.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]product.Product), args.Error(1)
}

func (m *MockProducts) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*product.Product, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProducts) DecrementStock(ctx context.Context, tx *sqlx.Tx, id int64, qty int) error {
	args := m.Called(ctx, tx, id, qty)
	return args.Error(0)
}

func (m *MockProducts) ClaimUnits(ctx context.Context, tx *sqlx.Tx, productID, orderItemID int64, qty int) ([]product.Unit, error) {
	args := m.Called(ctx, tx, productID, orderItemID, qty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]product.Unit), args.Error(1)
}

// MockOrders is a mock implementation of Repository
type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) CreateOrderTx(ctx context.Context, tx *sqlx.Tx, order *Order) (*Order, error) {
	args := m.Called(ctx, tx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockOrders) CreateItemTx(ctx context.Context, tx *sqlx.Tx, item *OrderItem) (*OrderItem, error) {
	args := m.Called(ctx, tx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OrderItem), args.Error(1)
}

func (m *MockOrders) GetOrder(ctx context.Context, id int64) (*Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockOrders) ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]Order, error) {
	args := m.Called(ctx, customerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Order), args.Error(1)
}

// MockLedger is a mock implementation of ledger.Repository
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Append(ctx context.Context, entry ledger.NewTransaction) (*ledger.Transaction, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedger) AppendTx(ctx context.Context, tx *sqlx.Tx, entry ledger.NewTransaction) (*ledger.Transaction, error) {
	args := m.Called(ctx, tx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedger) GetLast(ctx context.Context) (*ledger.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedger) GetDepositForInvoice(ctx context.Context, invoiceID int64) (*ledger.Transaction, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedger) List(ctx context.Context, q *listquery.Query) ([]ledger.Transaction, int64, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]ledger.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedger) ListForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]ledger.Transaction, error) {
	args := m.Called(ctx, customerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Transaction), args.Error(1)
}

// MockSettings is a mock implementation of settings.Repository
type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) Load(ctx context.Context) (*settings.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settings.Settings), args.Error(1)
}

func (m *MockSettings) Update(ctx context.Context, upd settings.Update) (*settings.Settings, error) {
	args := m.Called(ctx, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settings.Settings), args.Error(1)
}

// MockProvisioner is a mock implementation of SubscriptionProvisioner
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) ProvisionTx(ctx context.Context, tx *sqlx.Tx, p Provision) (int64, error) {
	args := m.Called(ctx, tx, p)
	return args.Get(0).(int64), args.Error(1)
}

// MockDispatcher is a mock implementation of notify.Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) DispatchDepositCompleted(ctx context.Context, customerID int64, amount decimal.Decimal) error {
	args := m.Called(ctx, customerID, amount)
	return args.Error(0)
}

func (m *MockDispatcher) DispatchPurchaseCompleted(ctx context.Context, customerID, orderID int64, content string) error {
	args := m.Called(ctx, customerID, orderID, content)
	return args.Error(0)
}

func (m *MockDispatcher) DispatchPaymentReminder(ctx context.Context, customerID int64, orderID string) error {
	args := m.Called(ctx, customerID, orderID)
	return args.Error(0)
}

func (m *MockDispatcher) DispatchSubscriptionExpiring(ctx context.Context, customerID, subscriptionID int64, expiresAt time.Time) error {
	args := m.Called(ctx, customerID, subscriptionID, expiresAt)
	return args.Error(0)
}

func (m *MockDispatcher) DispatchBalanceRequestResolved(ctx context.Context, customerID, requestID int64, approved bool) error {
	args := m.Called(ctx, customerID, requestID, approved)
	return args.Error(0)
}

func (m *MockDispatcher) DispatchOperatorAlert(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

type purchaseFixture struct {
	service     *Service
	dbMock      sqlmock.Sqlmock
	orders      *MockOrders
	products    *MockProducts
	ledgerRepo  *MockLedger
	settings    *MockSettings
	provisioner *MockProvisioner
	dispatcher  *MockDispatcher
	closer      func()
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	orders := new(MockOrders)
	products := new(MockProducts)
	ledgerRepo := new(MockLedger)
	settingsRepo := new(MockSettings)
	provisioner := new(MockProvisioner)
	dispatcher := new(MockDispatcher)

	svc := NewService(sqlxDB, orders, products, ledgerRepo, settingsRepo, provisioner, dispatcher)

	return &purchaseFixture{
		service:     svc,
		dbMock:      dbMock,
		orders:      orders,
		products:    products,
		ledgerRepo:  ledgerRepo,
		settings:    settingsRepo,
		provisioner: provisioner,
		dispatcher:  dispatcher,
		closer:      func() { sqlxDB.Close() },
	}
}

func digitalProduct() *product.Product {
	return &product.Product{
		ID:        3,
		Name:      "Steam Key",
		Type:      product.TypeDigital,
		BasePrice: decimal.RequireFromString("300"),
		Stock:     5,
		IsActive:  true,
	}
}

func TestPurchaseDebitsAndFulfills(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.closer()

	f.settings.On("Load", mock.Anything).Return(&settings.Settings{}, nil)
	f.dbMock.ExpectBegin()
	f.products.On("GetForUpdate", mock.Anything, mock.Anything, int64(3)).Return(digitalProduct(), nil)
	f.products.On("DecrementStock", mock.Anything, mock.Anything, int64(3), 1).Return(nil)
	f.orders.On("CreateOrderTx", mock.Anything, mock.Anything, mock.MatchedBy(func(o *Order) bool {
		return o.Total.Equal(decimal.RequireFromString("300"))
	})).Return(&Order{ID: 11, CustomerID: 7, Total: decimal.RequireFromString("300")}, nil)
	f.orders.On("CreateItemTx", mock.Anything, mock.Anything, mock.MatchedBy(func(i *OrderItem) bool {
		return i.NameAtPurchase == "Steam Key" && i.PriceAtPurchase.Equal(decimal.RequireFromString("300"))
	})).Return(&OrderItem{ID: 21, OrderID: 11}, nil)
	f.products.On("ClaimUnits", mock.Anything, mock.Anything, int64(3), int64(21), 1).
		Return([]product.Unit{{ID: 1, Content: "KEY-AAAA"}}, nil)

	balanceAfter := decimal.RequireFromString("200")
	f.ledgerRepo.On("AppendTx", mock.Anything, mock.Anything, mock.MatchedBy(func(entry ledger.NewTransaction) bool {
		return entry.Type == ledger.TypePurchase &&
			entry.Amount.Equal(decimal.RequireFromString("-300")) &&
			entry.StoreBalanceDelta.IsZero()
	})).Return(&ledger.Transaction{ID: 5, CustomerBalanceAfter: &balanceAfter}, nil)
	f.dbMock.ExpectCommit()
	f.dispatcher.On("DispatchPurchaseCompleted", mock.Anything, int64(7), int64(11), "KEY-AAAA").Return(nil)

	result, err := f.service.Purchase(context.Background(), PurchaseRequest{CustomerID: 7, ProductID: 3, Quantity: 1})
	require.NoError(t, err)
	require.Equal(t, int64(11), result.OrderID)
	require.Equal(t, "KEY-AAAA", result.FulfilledText)
	require.True(t, result.Balance.Equal(decimal.RequireFromString("200")))
	require.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestPurchaseAppliesMarkup(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.closer()

	f.settings.On("Load", mock.Anything).Return(&settings.Settings{
		GlobalMarkupPercent: decimal.RequireFromString("10"),
	}, nil)
	f.dbMock.ExpectBegin()
	f.products.On("GetForUpdate", mock.Anything, mock.Anything, int64(3)).Return(digitalProduct(), nil)
	f.products.On("DecrementStock", mock.Anything, mock.Anything, int64(3), 1).Return(nil)
	f.orders.On("CreateOrderTx", mock.Anything, mock.Anything, mock.MatchedBy(func(o *Order) bool {
		return o.Total.Equal(decimal.RequireFromString("330"))
	})).Return(&Order{ID: 12, Total: decimal.RequireFromString("330")}, nil)
	f.orders.On("CreateItemTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&OrderItem{ID: 22, OrderID: 12}, nil)
	f.products.On("ClaimUnits", mock.Anything, mock.Anything, int64(3), int64(22), 1).
		Return([]product.Unit{{Content: "KEY-BBBB"}}, nil)
	after := decimal.Zero
	f.ledgerRepo.On("AppendTx", mock.Anything, mock.Anything, mock.MatchedBy(func(entry ledger.NewTransaction) bool {
		return entry.Amount.Equal(decimal.RequireFromString("-330"))
	})).Return(&ledger.Transaction{CustomerBalanceAfter: &after}, nil)
	f.dbMock.ExpectCommit()
	f.dispatcher.On("DispatchPurchaseCompleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := f.service.Purchase(context.Background(), PurchaseRequest{CustomerID: 7, ProductID: 3, Quantity: 1})
	require.NoError(t, err)
	require.True(t, result.Price.Equal(decimal.RequireFromString("330")))
}

func TestPurchaseOutOfStock(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.closer()

	empty := digitalProduct()
	empty.Stock = 0

	f.settings.On("Load", mock.Anything).Return(&settings.Settings{}, nil)
	f.dbMock.ExpectBegin()
	f.products.On("GetForUpdate", mock.Anything, mock.Anything, int64(3)).Return(empty, nil)
	f.dbMock.ExpectRollback()

	_, err := f.service.Purchase(context.Background(), PurchaseRequest{CustomerID: 7, ProductID: 3, Quantity: 1})
	require.ErrorIs(t, err, product.ErrOutOfStock)
	f.orders.AssertNotCalled(t, "CreateOrderTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchaseInsufficientBalanceRollsBack(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.closer()

	f.settings.On("Load", mock.Anything).Return(&settings.Settings{}, nil)
	f.dbMock.ExpectBegin()
	f.products.On("GetForUpdate", mock.Anything, mock.Anything, int64(3)).Return(digitalProduct(), nil)
	f.products.On("DecrementStock", mock.Anything, mock.Anything, int64(3), 1).Return(nil)
	f.orders.On("CreateOrderTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&Order{ID: 13}, nil)
	f.orders.On("CreateItemTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&OrderItem{ID: 23, OrderID: 13}, nil)
	f.products.On("ClaimUnits", mock.Anything, mock.Anything, int64(3), int64(23), 1).
		Return([]product.Unit{{Content: "KEY-CCCC"}}, nil)
	f.ledgerRepo.On("AppendTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, ledger.ErrInsufficientBalance)
	f.dbMock.ExpectRollback()

	_, err := f.service.Purchase(context.Background(), PurchaseRequest{CustomerID: 7, ProductID: 3, Quantity: 1})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	require.NoError(t, f.dbMock.ExpectationsWereMet())
	f.dispatcher.AssertNotCalled(t, "DispatchPurchaseCompleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchaseSubscriptionProvisionsInsideTx(t *testing.T) {
	f := newPurchaseFixture(t)
	defer f.closer()

	days := 30
	sub := &product.Product{
		ID:         4,
		Name:       "VPN Plan",
		Type:       product.TypeSubscription,
		BasePrice:  decimal.RequireFromString("500"),
		PeriodDays: &days,
		IsActive:   true,
	}

	f.settings.On("Load", mock.Anything).Return(&settings.Settings{}, nil)
	f.dbMock.ExpectBegin()
	f.products.On("GetForUpdate", mock.Anything, mock.Anything, int64(4)).Return(sub, nil)
	f.orders.On("CreateOrderTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&Order{ID: 14, CustomerID: 7}, nil)
	f.orders.On("CreateItemTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&OrderItem{ID: 24, OrderID: 14}, nil)
	f.provisioner.On("ProvisionTx", mock.Anything, mock.Anything, mock.MatchedBy(func(p Provision) bool {
		return p.CustomerID == 7 && p.ProductID == 4 && p.OrderID == 14 && p.PeriodDays == 30
	})).Return(int64(31), nil)
	after := decimal.Zero
	f.ledgerRepo.On("AppendTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&ledger.Transaction{CustomerBalanceAfter: &after}, nil)
	f.dbMock.ExpectCommit()
	f.dispatcher.On("DispatchPurchaseCompleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.Purchase(context.Background(), PurchaseRequest{CustomerID: 7, ProductID: 4, Quantity: 1})
	require.NoError(t, err)
	f.provisioner.AssertExpectations(t)
	f.products.AssertNotCalled(t, "DecrementStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.products.AssertNotCalled(t, "ClaimUnits", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
