package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/models"
)

// CreateTransaction appends an immutable ledger row. There is deliberately no
// update statement for transactions anywhere in this package.
func (q *Queries) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `INSERT INTO transactions (id, project_id, payer_account_id, payee_account_id, amount_centavos, fee_centavos, type, status, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()) RETURNING created_at`
	return q.db.QueryRow(ctx, query,
		tx.ID, tx.ProjectID, tx.PayerAccountID, tx.PayeeAccountID,
		tx.AmountCentavos, tx.FeeCentavos, tx.Type, tx.Status, tx.ReferenceID).Scan(&tx.CreatedAt)
}

const transactionColumns = `id, project_id, payer_account_id, payee_account_id, amount_centavos, fee_centavos, type, status, reference_id, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := row.Scan(&tx.ID, &tx.ProjectID, &tx.PayerAccountID, &tx.PayeeAccountID,
		&tx.AmountCentavos, &tx.FeeCentavos, &tx.Type, &tx.Status, &tx.ReferenceID, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// GetTransactionByReferenceID backs the service-level idempotency
// short-circuit: a completed transaction with the caller's reference id
// means the operation already happened.
func (q *Queries) GetTransactionByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference_id = $1`, referenceID))
}

type ListTransactionsByAccountParams struct {
	AccountID uuid.UUID
	Limit     int32
	Offset    int32
}

func (q *Queries) ListTransactionsByAccount(ctx context.Context, arg ListTransactionsByAccountParams) ([]models.Transaction, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE payer_account_id = $1 OR payee_account_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func (q *Queries) ListTransactionsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Transaction, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}
