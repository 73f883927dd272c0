package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/models"
)

func (q *Queries) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, username, email, role, created_at) VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`
	return q.db.QueryRow(ctx, query, user.ID, user.Username, user.Email, user.Role).Scan(&user.CreatedAt)
}

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, username, email, role, created_at FROM users WHERE id = $1`
	err := q.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (q *Queries) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (id, user_id, balance_centavos, currency, created_at) VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`
	return q.db.QueryRow(ctx, query, account.ID, account.UserID, account.BalanceCentavos, account.Currency).Scan(&account.CreatedAt)
}

const accountColumns = `id, user_id, balance_centavos, currency, created_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(&account.ID, &account.UserID, &account.BalanceCentavos, &account.Currency, &account.CreatedAt)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (q *Queries) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID))
}

// GetAccountForUpdate locks the account row for the remainder of the ambient
// transaction. Callers must already be inside RunInTx.
func (q *Queries) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

type AdjustAccountBalanceParams struct {
	AmountCentavos int64
	ID             uuid.UUID
}

// AddToAccountBalance credits an account unconditionally.
func (q *Queries) AddToAccountBalance(ctx context.Context, arg AdjustAccountBalanceParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE accounts SET balance_centavos = balance_centavos + $1 WHERE id = $2`,
		arg.AmountCentavos, arg.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DebitAccountBalance decrements a balance only when sufficient funds remain;
// zero rows affected means the guard failed.
func (q *Queries) DebitAccountBalance(ctx context.Context, arg AdjustAccountBalanceParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE accounts SET balance_centavos = balance_centavos - $1 WHERE id = $2 AND balance_centavos >= $1`,
		arg.AmountCentavos, arg.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountNegativeBalances supports the reconciliation invariant check. The
// schema CHECK constraint should make this always zero.
func (q *Queries) CountNegativeBalances(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE balance_centavos < 0`).Scan(&count)
	return count, err
}
