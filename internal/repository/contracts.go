package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/models"
)

func (q *Queries) CreateContract(ctx context.Context, contract *models.Contract) error {
	query := `INSERT INTO contracts (id, project_id, bid_id, agreed_centavos, start_date, end_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING created_at`
	return q.db.QueryRow(ctx, query,
		contract.ID, contract.ProjectID, contract.BidID, contract.AgreedCentavos,
		contract.StartDate, contract.EndDate, contract.Status).Scan(&contract.CreatedAt)
}

const contractColumns = `id, project_id, bid_id, agreed_centavos, start_date, end_date, employer_signed_at, worker_signed_at, status, created_at`

func scanContract(row interface{ Scan(...any) error }) (*models.Contract, error) {
	c := &models.Contract{}
	err := row.Scan(&c.ID, &c.ProjectID, &c.BidID, &c.AgreedCentavos, &c.StartDate, &c.EndDate,
		&c.EmployerSignedAt, &c.WorkerSignedAt, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (q *Queries) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return scanContract(q.db.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
}

func (q *Queries) GetContractForUpdate(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return scanContract(q.db.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) GetContractByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Contract, error) {
	return scanContract(q.db.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE project_id = $1`, projectID))
}

type SetContractSignatureParams struct {
	SignedAt time.Time
	ID       uuid.UUID
}

func (q *Queries) SetContractEmployerSigned(ctx context.Context, arg SetContractSignatureParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE contracts SET employer_signed_at = $1 WHERE id = $2 AND employer_signed_at IS NULL`,
		arg.SignedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) SetContractWorkerSigned(ctx context.Context, arg SetContractSignatureParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE contracts SET worker_signed_at = $1 WHERE id = $2 AND worker_signed_at IS NULL`,
		arg.SignedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type UpdateContractStatusParams struct {
	Status domain.ContractStatus
	ID     uuid.UUID
}

func (q *Queries) UpdateContractStatus(ctx context.Context, arg UpdateContractStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE contracts SET status = $1 WHERE id = $2`, arg.Status, arg.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
