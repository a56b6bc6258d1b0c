package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ToropovAlexei/autosales-sub001/internal/gateway"
	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
	"github.com/ToropovAlexei/autosales-sub001/internal/settings"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, inv *Invoice) (*Invoice, error) {
	args := m.Called(ctx, inv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invoice), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invoice), args.Error(1)
}

func (m *MockRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Invoice, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invoice), args.Error(1)
}

func (m *MockRepository) GetByOrderIDForUpdate(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) (*Invoice, error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invoice), args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id int64, to Status, allowedFrom []Status) (*Invoice, error) {
	args := m.Called(ctx, id, to, allowedFrom)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invoice), args.Error(1)
}

func (m *MockRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, to Status, allowedFrom []Status) (*Invoice, error) {
	args := m.Called(ctx, tx, id, to, allowedFrom)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invoice), args.Error(1)
}

func (m *MockRepository) SetGatewayInvoice(ctx context.Context, id int64, gatewayInvoiceID string, paymentDetails []byte) error {
	args := m.Called(ctx, id, gatewayInvoiceID, paymentDetails)
	return args.Error(0)
}

func (m *MockRepository) AttachReceipt(ctx context.Context, id int64, receiptURL string) (*Invoice, error) {
	args := m.Called(ctx, id, receiptURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invoice), args.Error(1)
}

func (m *MockRepository) ExpireOld(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) Open(ctx context.Context, now time.Time) ([]Invoice, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Invoice), args.Error(1)
}

func (m *MockRepository) PendingOlderThan(ctx context.Context, age time.Duration, now time.Time) ([]Invoice, error) {
	args := m.Called(ctx, age, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Invoice), args.Error(1)
}

func (m *MockRepository) MarkNotified(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockRepository) List(ctx context.Context, q *listquery.Query) ([]Invoice, int64, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]Invoice), args.Get(1).(int64), args.Error(2)
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

// MockAdapter is a mock payment gateway
type MockAdapter struct {
	mock.Mock
	name string
}

func (m *MockAdapter) Name() string { return m.name }

func (m *MockAdapter) CreateInvoice(ctx context.Context, req gateway.CreateInvoiceRequest) (*gateway.RemoteInvoice, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RemoteInvoice), args.Error(1)
}

func (m *MockAdapter) OrderStatus(ctx context.Context, gatewayInvoiceID string) (gateway.Status, error) {
	args := m.Called(ctx, gatewayInvoiceID)
	return args.Get(0).(gateway.Status), args.Error(1)
}

func (m *MockAdapter) Confirm(ctx context.Context, gatewayInvoiceID string) error {
	args := m.Called(ctx, gatewayInvoiceID)
	return args.Error(0)
}

func (m *MockAdapter) Cancel(ctx context.Context, gatewayInvoiceID string) error {
	args := m.Called(ctx, gatewayInvoiceID)
	return args.Error(0)
}

func (m *MockAdapter) SendReceipt(ctx context.Context, gatewayInvoiceID, receiptURL string) error {
	args := m.Called(ctx, gatewayInvoiceID, receiptURL)
	return args.Error(0)
}

type serviceFixture struct {
	service    *Service
	dbMock     sqlmock.Sqlmock
	repo       *MockRepository
	ledgerRepo *MockLedger
	settings   *MockSettings
	dispatcher *MockDispatcher
	adapter    *MockAdapter
	closer     func()
}

func newServiceFixture(t *testing.T) *serviceFixture {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	repo := new(MockRepository)
	ledgerRepo := new(MockLedger)
	settingsRepo := new(MockSettings)
	dispatcher := new(MockDispatcher)
	adapter := &MockAdapter{name: "mock"}

	registry := gateway.NewRegistry()
	registry.Register(adapter)

	svc := NewService(sqlxDB, repo, ledgerRepo, settingsRepo, registry, dispatcher, 24*time.Hour)

	return &serviceFixture{
		service:    svc,
		dbMock:     dbMock,
		repo:       repo,
		ledgerRepo: ledgerRepo,
		settings:   settingsRepo,
		dispatcher: dispatcher,
		adapter:    adapter,
		closer:     func() { sqlxDB.Close() },
	}
}

func testSettings() *settings.Settings {
	return &settings.Settings{
		PlatformCommissionPercent: decimal.RequireFromString("2"),
		GatewayCommissionPercent:  decimal.RequireFromString("4"),
		GatewayBonusMock:          decimal.RequireFromString("10"),
		USDTRateRUB:               decimal.RequireFromString("100"),
	}
}

func pendingInvoice(orderID uuid.UUID) *Invoice {
	gid := "gw-1"
	return &Invoice{
		ID:               42,
		OrderID:          orderID,
		CustomerID:       7,
		Gateway:          "mock",
		GatewayInvoiceID: &gid,
		Status:           StatusPending,
		Amount:           decimal.RequireFromString("900"),
		OriginalAmount:   decimal.RequireFromString("1000"),
		BonusPercent:     decimal.RequireFromString("10"),
		ExpiresAt:        time.Now().UTC().Add(time.Hour),
	}
}

func TestHandlePaymentSuccessCreditsOnce(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closer()

	orderID := uuid.New()
	inv := pendingInvoice(orderID)

	f.settings.On("Load", mock.Anything).Return(testSettings(), nil)
	f.dbMock.ExpectBegin()
	f.repo.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, orderID).Return(inv, nil)
	f.ledgerRepo.On("AppendTx", mock.Anything, mock.Anything, mock.MatchedBy(func(entry ledger.NewTransaction) bool {
		// 1000 deposit: the customer gets the full amount, the store
		// reserve gets it minus 2% platform and 4% gateway commission.
		return entry.Type == ledger.TypeDeposit &&
			entry.Amount.Equal(decimal.RequireFromString("1000")) &&
			entry.StoreBalanceDelta.Equal(decimal.RequireFromString("940")) &&
			entry.PlatformCommission.Equal(decimal.RequireFromString("20")) &&
			entry.GatewayCommission.Equal(decimal.RequireFromString("40"))
	})).Return(&ledger.Transaction{ID: 1}, nil)
	completed := *inv
	completed.Status = StatusCompleted
	f.repo.On("UpdateStatusTx", mock.Anything, mock.Anything, inv.ID, StatusCompleted, []Status{StatusPending}).
		Return(&completed, nil)
	f.dbMock.ExpectCommit()
	f.dispatcher.On("DispatchDepositCompleted", mock.Anything, inv.CustomerID, inv.OriginalAmount).Return(nil)

	paid := decimal.RequireFromString("900")
	err := f.service.HandlePaymentSuccess(context.Background(), "mock", "gw-1", orderID, &paid)
	require.NoError(t, err)
	f.repo.AssertExpectations(t)
	f.ledgerRepo.AssertExpectations(t)
	f.dispatcher.AssertExpectations(t)
}

func TestHandlePaymentSuccessRejectsWrongAmount(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closer()

	orderID := uuid.New()
	inv := pendingInvoice(orderID)

	f.settings.On("Load", mock.Anything).Return(testSettings(), nil)
	f.dbMock.ExpectBegin()
	f.repo.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, orderID).Return(inv, nil)
	f.dbMock.ExpectRollback()

	// Correlation triple matches, but the gateway reports a partial payment.
	paid := decimal.RequireFromString("500")
	err := f.service.HandlePaymentSuccess(context.Background(), "mock", "gw-1", orderID, &paid)
	require.ErrorIs(t, err, ErrInvoiceMismatch)
	f.ledgerRepo.AssertNotCalled(t, "AppendTx", mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "UpdateStatusTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePaymentSuccessReplayIsNoOp(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closer()

	orderID := uuid.New()
	inv := pendingInvoice(orderID)
	inv.Status = StatusCompleted

	f.settings.On("Load", mock.Anything).Return(testSettings(), nil)
	f.dbMock.ExpectBegin()
	f.repo.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, orderID).Return(inv, nil)
	f.dbMock.ExpectRollback()

	err := f.service.HandlePaymentSuccess(context.Background(), "mock", "gw-1", orderID, nil)
	require.NoError(t, err)
	f.ledgerRepo.AssertNotCalled(t, "AppendTx", mock.Anything, mock.Anything, mock.Anything)
	f.dispatcher.AssertNotCalled(t, "DispatchDepositCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePaymentSuccessRejectsTerminal(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closer()

	orderID := uuid.New()
	inv := pendingInvoice(orderID)
	inv.Status = StatusFailed

	f.settings.On("Load", mock.Anything).Return(testSettings(), nil)
	f.dbMock.ExpectBegin()
	f.repo.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, orderID).Return(inv, nil)
	f.dbMock.ExpectRollback()

	err := f.service.HandlePaymentSuccess(context.Background(), "mock", "gw-1", orderID, nil)
	require.ErrorIs(t, err, ErrIllegalTransition)
	f.ledgerRepo.AssertNotCalled(t, "AppendTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePaymentSuccessExpiredInvoiceNotCredited(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closer()

	orderID := uuid.New()
	inv := pendingInvoice(orderID)
	inv.ExpiresAt = time.Now().UTC().Add(-time.Minute)

	f.settings.On("Load", mock.Anything).Return(testSettings(), nil)
	f.dbMock.ExpectBegin()
	f.repo.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, orderID).Return(inv, nil)
	expired := *inv
	expired.Status = StatusExpired
	f.repo.On("UpdateStatusTx", mock.Anything, mock.Anything, inv.ID, StatusExpired, []Status{StatusPending}).
		Return(&expired, nil)
	f.dbMock.ExpectCommit()

	err := f.service.HandlePaymentSuccess(context.Background(), "mock", "gw-1", orderID, nil)
	require.ErrorIs(t, err, ErrInvoiceExpired)
	f.ledgerRepo.AssertNotCalled(t, "AppendTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePaymentSuccessRejectsWrongGateway(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closer()

	orderID := uuid.New()
	inv := pendingInvoice(orderID)

	f.settings.On("Load", mock.Anything).Return(testSettings(), nil)
	f.dbMock.ExpectBegin()
	f.repo.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, orderID).Return(inv, nil)
	f.dbMock.ExpectRollback()

	err := f.service.HandlePaymentSuccess(context.Background(), "platform_card", "gw-1", orderID, nil)
	require.ErrorIs(t, err, ErrInvoiceMismatch)
}

func TestRefundMirrorsRecordedDeposit(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closer()

	orderID := uuid.New()
	inv := pendingInvoice(orderID)
	inv.Status = StatusCompleted

	// The deposit was recorded under older commission settings. The refund
	// must negate what was actually booked, not today's breakdown.
	deposit := &ledger.Transaction{
		ID:                 11,
		Type:               ledger.TypeDeposit,
		Amount:             decimal.RequireFromString("1000"),
		StoreBalanceDelta:  decimal.RequireFromString("970"),
		PlatformCommission: decimal.RequireFromString("10"),
		GatewayCommission:  decimal.RequireFromString("20"),
	}

	f.dbMock.ExpectBegin()
	f.repo.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
	f.repo.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, orderID).Return(inv, nil)
	f.ledgerRepo.On("GetDepositForInvoice", mock.Anything, inv.ID).Return(deposit, nil)
	f.ledgerRepo.On("AppendTx", mock.Anything, mock.Anything, mock.MatchedBy(func(entry ledger.NewTransaction) bool {
		return entry.Type == ledger.TypeRefund &&
			entry.Amount.Equal(decimal.RequireFromString("-1000")) &&
			entry.StoreBalanceDelta.Equal(decimal.RequireFromString("-970")) &&
			entry.PlatformCommission.Equal(decimal.RequireFromString("-10")) &&
			entry.GatewayCommission.Equal(decimal.RequireFromString("-20"))
	})).Return(&ledger.Transaction{ID: 12}, nil)
	refunded := *inv
	refunded.Status = StatusRefunded
	f.repo.On("UpdateStatusTx", mock.Anything, mock.Anything, inv.ID, StatusRefunded, []Status{StatusCompleted}).
		Return(&refunded, nil)
	f.dbMock.ExpectCommit()

	updated, err := f.service.Refund(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, updated.Status)
	f.ledgerRepo.AssertExpectations(t)
}

func TestCreateAppliesGatewayBonusOnce(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closer()

	f.settings.On("Load", mock.Anything).Return(testSettings(), nil)

	created42 := &Invoice{
		ID:             42,
		OrderID:        uuid.New(),
		CustomerID:     7,
		Gateway:        "mock",
		Status:         StatusPending,
		Amount:         decimal.RequireFromString("900"),
		OriginalAmount: decimal.RequireFromString("1000"),
	}
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(inv *Invoice) bool {
		// 10% mock bonus: customer pays 900 for a 1000 deposit.
		return inv.Amount.Equal(decimal.RequireFromString("900")) &&
			inv.OriginalAmount.Equal(decimal.RequireFromString("1000")) &&
			inv.Status == StatusPending
	})).Return(created42, nil)
	f.adapter.On("CreateInvoice", mock.Anything, mock.MatchedBy(func(req gateway.CreateInvoiceRequest) bool {
		return req.Amount.Equal(decimal.RequireFromString("900"))
	})).Return(&gateway.RemoteInvoice{GatewayInvoiceID: "gw-9", PaymentDetails: []byte(`{"pay_url":"http://pay"}`)}, nil)
	f.repo.On("SetGatewayInvoice", mock.Anything, int64(42), "gw-9", mock.Anything).Return(nil)

	created, err := f.service.Create(context.Background(), CreateInvoiceRequest{
		CustomerID: 7,
		Gateway:    "mock",
		Amount:     decimal.RequireFromString("1000"),
	})
	require.NoError(t, err)
	require.Equal(t, "gw-9", *created.GatewayInvoiceID)
	require.True(t, created.Amount.Equal(decimal.RequireFromString("900")))
}

func TestCreateRejectsUnknownGateway(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closer()

	_, err := f.service.Create(context.Background(), CreateInvoiceRequest{
		CustomerID: 7,
		Gateway:    "nope",
		Amount:     decimal.RequireFromString("100"),
	})
	require.ErrorIs(t, err, gateway.ErrUnknownGateway)
}

func TestTransitionTable(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusCompleted))
	require.True(t, CanTransition(StatusReceiptSubmitted, StatusDisputed))
	require.True(t, CanTransition(StatusCompleted, StatusRefunded))
	require.False(t, CanTransition(StatusExpired, StatusCompleted))
	require.False(t, CanTransition(StatusCancelled, StatusPending))
	require.False(t, CanTransition(StatusRefunded, StatusCompleted))
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusExpired, StatusCancelled, StatusRefunded} {
		require.True(t, s.IsTerminal())
	}
	require.False(t, StatusDisputed.IsTerminal())
}
