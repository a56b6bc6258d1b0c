package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
	"github.com/ToropovAlexei/autosales-sub001/internal/notify"
	"github.com/ToropovAlexei/autosales-sub001/internal/settings"
)

var (
	ErrInvalidWallet = errors.New("invalid TRC20 wallet address")
	ErrRateNotSet    = errors.New("usdt rate is not configured")
	ErrBadAmount     = errors.New("amount must be positive")
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ValidTRC20Address checks the shape of a Tron wallet address: 34 base58
// characters starting with 'T'. No checksum verification.
func ValidTRC20Address(addr string) bool {
	if len(addr) != 34 || addr[0] != 'T' {
		return false
	}
	for _, r := range addr {
		if !strings.ContainsRune(base58Alphabet, r) {
			return false
		}
	}
	return true
}

type Service struct {
	db         *sqlx.DB
	repo       Repository
	ledgerRepo ledger.Repository
	settings   settings.Repository
	dispatcher notify.Dispatcher
}

func NewService(db *sqlx.DB, repo Repository, ledgerRepo ledger.Repository,
	settingsRepo settings.Repository, dispatcher notify.Dispatcher) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		ledgerRepo: ledgerRepo,
		settings:   settingsRepo,
		dispatcher: dispatcher,
	}
}

// Create opens a balance request. Withdrawals debit the store reserve right
// away so the funds cannot be spent twice while the operator decides; the
// debit and the request row commit together.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*BalanceRequest, error) {
	if !req.AmountRUB.IsPositive() {
		return nil, ErrBadAmount
	}
	if !ValidTRC20Address(req.WalletAddress) {
		return nil, ErrInvalidWallet
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !cfg.USDTRateRUB.IsPositive() {
		return nil, ErrRateNotSet
	}
	amountUSDT := req.AmountRUB.Div(cfg.USDTRateRUB).Round(2)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin balance request tx: %w", err)
	}
	defer tx.Rollback()

	request := &BalanceRequest{
		RequestType:   req.RequestType,
		WalletAddress: req.WalletAddress,
		AmountRUB:     req.AmountRUB,
		AmountUSDT:    amountUSDT,
		FxRate:        cfg.USDTRateRUB,
		Status:        StatusPendingOperator,
	}

	if req.RequestType == TypeWithdrawal {
		description := fmt.Sprintf("Withdrawal to %s", req.WalletAddress)
		entry, err := s.ledgerRepo.AppendTx(ctx, tx, ledger.NewTransaction{
			Type:              ledger.TypeWithdrawal,
			Amount:            decimal.Zero,
			StoreBalanceDelta: req.AmountRUB.Neg(),
			Description:       &description,
		})
		if err != nil {
			return nil, err
		}
		request.DebitTransactionID = &entry.ID
	}

	created, err := s.repo.CreateTx(ctx, tx, request)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit balance request: %w", err)
	}

	alert := fmt.Sprintf("Balance request #%d: %s %s RUB (%s USDT) to %s",
		created.ID, created.RequestType, created.AmountRUB.StringFixed(2),
		created.AmountUSDT.StringFixed(2), created.WalletAddress)
	if err := s.dispatcher.DispatchOperatorAlert(ctx, alert); err != nil {
		logger.Errorf("dispatch operator alert for request %d: %v", created.ID, err)
	}
	return created, nil
}

// Complete approves a pending request. Deposits credit the reserve here;
// withdrawals were already debited at creation, so only the status changes.
func (s *Service) Complete(ctx context.Context, id int64, operatorID string) (*BalanceRequest, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin completion tx: %w", err)
	}
	defer tx.Rollback()

	request, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusPendingOperator {
		return nil, ErrRequestNotPending
	}

	res := Resolution{
		Status:     StatusCompleted,
		OperatorID: operatorID,
		ActionAt:   time.Now().UTC(),
	}
	if request.RequestType == TypeDeposit {
		description := fmt.Sprintf("Store deposit from %s", request.WalletAddress)
		entry, err := s.ledgerRepo.AppendTx(ctx, tx, ledger.NewTransaction{
			Type:              ledger.TypeDeposit,
			Amount:            decimal.Zero,
			StoreBalanceDelta: request.AmountRUB,
			Description:       &description,
		})
		if err != nil {
			return nil, err
		}
		res.CreditTransactionID = &entry.ID
	}

	updated, err := s.repo.Resolve(ctx, tx, id, res)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit request %d completion: %w", id, err)
	}

	// CustomerID 0 routes to the store-owner chat.
	if err := s.dispatcher.DispatchBalanceRequestResolved(ctx, 0, id, true); err != nil {
		logger.Errorf("dispatch resolution of request %d: %v", id, err)
	}
	return updated, nil
}

// Reject declines a pending request. A rejected withdrawal gets its reserved
// funds back through a compensating refund entry.
func (s *Service) Reject(ctx context.Context, id int64, operatorID, comment string) (*BalanceRequest, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rejection tx: %w", err)
	}
	defer tx.Rollback()

	request, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusPendingOperator {
		return nil, ErrRequestNotPending
	}

	res := Resolution{
		Status:          StatusRejected,
		OperatorID:      operatorID,
		OperatorComment: &comment,
		ActionAt:        time.Now().UTC(),
	}
	if request.RequestType == TypeWithdrawal {
		description := fmt.Sprintf("Refund of rejected withdrawal request %d", request.ID)
		entry, err := s.ledgerRepo.AppendTx(ctx, tx, ledger.NewTransaction{
			Type:              ledger.TypeRefund,
			Amount:            decimal.Zero,
			StoreBalanceDelta: request.AmountRUB,
			Description:       &description,
		})
		if err != nil {
			return nil, err
		}
		res.RefundTransactionID = &entry.ID
	}

	updated, err := s.repo.Resolve(ctx, tx, id, res)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit request %d rejection: %w", id, err)
	}

	if err := s.dispatcher.DispatchBalanceRequestResolved(ctx, 0, id, false); err != nil {
		logger.Errorf("dispatch resolution of request %d: %v", id, err)
	}
	return updated, nil
}
