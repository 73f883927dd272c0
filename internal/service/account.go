package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/ledger"
	"github.com/hanapgigs/escrow-engine/internal/models"
	"github.com/hanapgigs/escrow-engine/internal/repository"
	"github.com/jackc/pgx/v5"
)

// AccountService manages escrow wallets: creation, top-ups and statements.
type AccountService struct {
	store              QueryStore
	ledger             *ledger.Ledger
	minDepositCentavos int64
}

func NewAccountService(store QueryStore, l *ledger.Ledger, minDepositCentavos int64) *AccountService {
	return &AccountService{
		store:              store,
		ledger:             l,
		minDepositCentavos: minDepositCentavos,
	}
}

// CreateAccount opens an empty PHP wallet for the user. Each user gets one.
func (s *AccountService) CreateAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	account := &models.Account{
		ID:       uuid.New(),
		UserID:   userID,
		Currency: domain.CurrencyPHP,
	}
	if err := s.store.Queries().CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

type DepositCmd struct {
	UserID         uuid.UUID
	AmountCentavos int64
	ReferenceID    string
}

// Deposit credits a wallet top-up. Amounts below the platform minimum are
// rejected before any row is touched.
func (s *AccountService) Deposit(ctx context.Context, cmd DepositCmd) (*models.Transaction, error) {
	if cmd.AmountCentavos < s.minDepositCentavos {
		return nil, domain.ErrDepositBelowMinimum
	}
	if cmd.ReferenceID == "" {
		return nil, errors.New("reference_id is required")
	}

	q := s.store.Queries()
	if existing, err := q.GetTransactionByReferenceID(ctx, cmd.ReferenceID); err == nil {
		return existing, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check deposit reference: %w", err)
	}

	var result *models.Transaction
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		account, err := q.GetAccountByUserID(ctx, cmd.UserID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrAccountNotFound
			}
			return fmt.Errorf("get account: %w", err)
		}

		tx, err := s.ledger.Credit(ctx, q, account.ID, cmd.AmountCentavos, ledger.Entry{
			Type:        domain.TxTypeDeposit,
			ReferenceID: cmd.ReferenceID,
		})
		if err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetBalance returns the user's wallet.
func (s *AccountService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	account, err := s.store.Queries().GetAccountByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetStatement pages through the wallet's ledger history, newest first.
func (s *AccountService) GetStatement(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	account, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.Queries().ListTransactionsByAccount(ctx, repository.ListTransactionsByAccountParams{
		AccountID: account.ID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
