// Package ledger owns every escrow balance mutation. Balances change only
// through Debit and Credit, each of which appends an immutable transaction
// row under the caller's ambient database transaction.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/models"
	"github.com/hanapgigs/escrow-engine/internal/repository"
)

// Entry describes the ledger row recorded alongside a balance movement.
type Entry struct {
	ProjectID      *uuid.UUID
	PayerAccountID *uuid.UUID
	PayeeAccountID *uuid.UUID
	FeeCentavos    int64
	Type           domain.TxType
	ReferenceID    string
}

// Ledger enforces the non-negative-balance invariant. It holds no
// transaction scope of its own; both operations run on the Querier the
// caller passes in, which is expected to be transaction-bound.
type Ledger struct{}

func New() *Ledger {
	return &Ledger{}
}

// Debit atomically decrements an account balance and records the movement.
// The account row must already be locked (GetAccountForUpdate) by the caller;
// the guarded UPDATE is a second line of defense, not the primary lock.
func (l *Ledger) Debit(ctx context.Context, q repository.Querier, accountID uuid.UUID, amountCentavos int64, entry Entry) (*models.Transaction, error) {
	if amountCentavos <= 0 {
		return nil, fmt.Errorf("invalid debit amount: %d", amountCentavos)
	}

	account, err := q.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lock account for debit: %w", err)
	}
	if account.BalanceCentavos < amountCentavos {
		return nil, &domain.InsufficientFundsError{
			RequiredCentavos: amountCentavos,
			CurrentCentavos:  account.BalanceCentavos,
		}
	}

	rows, err := q.DebitAccountBalance(ctx, repository.AdjustAccountBalanceParams{
		AmountCentavos: amountCentavos,
		ID:             accountID,
	})
	if err != nil {
		return nil, fmt.Errorf("debit account balance: %w", err)
	}
	if rows != 1 {
		// The balance guard failed despite the row lock; treat it the same
		// as the pre-check so callers see one error shape.
		return nil, &domain.InsufficientFundsError{
			RequiredCentavos: amountCentavos,
			CurrentCentavos:  account.BalanceCentavos,
		}
	}

	return l.record(ctx, q, accountID, amountCentavos, entry, true)
}

// Credit atomically increments an account balance and records the movement.
// It has no failure condition besides storage errors, which are fatal to the
// enclosing transaction.
func (l *Ledger) Credit(ctx context.Context, q repository.Querier, accountID uuid.UUID, amountCentavos int64, entry Entry) (*models.Transaction, error) {
	if amountCentavos <= 0 {
		return nil, fmt.Errorf("invalid credit amount: %d", amountCentavos)
	}

	rows, err := q.AddToAccountBalance(ctx, repository.AdjustAccountBalanceParams{
		AmountCentavos: amountCentavos,
		ID:             accountID,
	})
	if err != nil {
		return nil, fmt.Errorf("credit account balance: %w", err)
	}
	if rows != 1 {
		return nil, fmt.Errorf("credit account %s affected %d rows", accountID, rows)
	}

	return l.record(ctx, q, accountID, amountCentavos, entry, false)
}

// Release settles held project funds: the worker receives the net amount,
// the platform fee account receives the withheld fee, and a single release
// row records the full breakdown (amount = net, fee = platform cut).
func (l *Ledger) Release(ctx context.Context, q repository.Querier, workerAccountID, platformAccountID uuid.UUID, fees domain.FeeBreakdown, entry Entry) (*models.Transaction, error) {
	if fees.NetCentavos <= 0 {
		return nil, fmt.Errorf("invalid release net amount: %d", fees.NetCentavos)
	}

	rows, err := q.AddToAccountBalance(ctx, repository.AdjustAccountBalanceParams{
		AmountCentavos: fees.NetCentavos,
		ID:             workerAccountID,
	})
	if err != nil {
		return nil, fmt.Errorf("credit worker account: %w", err)
	}
	if rows != 1 {
		return nil, fmt.Errorf("credit worker account %s affected %d rows", workerAccountID, rows)
	}

	if fees.FeeCentavos > 0 {
		rows, err = q.AddToAccountBalance(ctx, repository.AdjustAccountBalanceParams{
			AmountCentavos: fees.FeeCentavos,
			ID:             platformAccountID,
		})
		if err != nil {
			return nil, fmt.Errorf("credit platform fee account: %w", err)
		}
		if rows != 1 {
			return nil, fmt.Errorf("credit platform account %s affected %d rows", platformAccountID, rows)
		}
	}

	payee := workerAccountID
	entry.PayeeAccountID = &payee
	entry.FeeCentavos = fees.FeeCentavos
	entry.Type = domain.TxTypeRelease
	return l.record(ctx, q, workerAccountID, fees.NetCentavos, entry, false)
}

func (l *Ledger) record(ctx context.Context, q repository.Querier, accountID uuid.UUID, amountCentavos int64, entry Entry, debit bool) (*models.Transaction, error) {
	tx := &models.Transaction{
		ID:             uuid.New(),
		ProjectID:      entry.ProjectID,
		PayerAccountID: entry.PayerAccountID,
		PayeeAccountID: entry.PayeeAccountID,
		AmountCentavos: amountCentavos,
		FeeCentavos:    entry.FeeCentavos,
		Type:           entry.Type,
		Status:         domain.TxStatusCompleted,
		ReferenceID:    entry.ReferenceID,
	}
	if debit && tx.PayerAccountID == nil {
		id := accountID
		tx.PayerAccountID = &id
	}
	if !debit && tx.PayeeAccountID == nil {
		id := accountID
		tx.PayeeAccountID = &id
	}
	if err := q.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("append ledger transaction: %w", err)
	}
	return tx, nil
}
