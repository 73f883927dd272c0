package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/models"
)

func (q *Queries) CreateProject(ctx context.Context, project *models.Project) error {
	query := `INSERT INTO projects (id, job_id, bid_id, employer_id, worker_id, agreed_centavos, fee_centavos, net_centavos, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()) RETURNING created_at`
	return q.db.QueryRow(ctx, query,
		project.ID, project.JobID, project.BidID, project.EmployerID, project.WorkerID,
		project.AgreedCentavos, project.FeeCentavos, project.NetCentavos, project.Status).Scan(&project.CreatedAt)
}

const projectColumns = `id, job_id, bid_id, employer_id, worker_id, agreed_centavos, fee_centavos, net_centavos, status, created_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(&p.ID, &p.JobID, &p.BidID, &p.EmployerID, &p.WorkerID,
		&p.AgreedCentavos, &p.FeeCentavos, &p.NetCentavos, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (q *Queries) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return scanProject(q.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

func (q *Queries) GetProjectForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return scanProject(q.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) GetProjectByBidID(ctx context.Context, bidID uuid.UUID) (*models.Project, error) {
	return scanProject(q.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE bid_id = $1`, bidID))
}

type UpdateProjectStatusParams struct {
	Status domain.ProjectStatus
	ID     uuid.UUID
}

func (q *Queries) UpdateProjectStatus(ctx context.Context, arg UpdateProjectStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE projects SET status = $1 WHERE id = $2`, arg.Status, arg.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type ProjectImbalanceRow struct {
	ProjectID      uuid.UUID
	AgreedCentavos int64
	EscrowIn       int64
	PaidOut        int64
}

// ListProjectImbalances returns projects whose escrow inflow minus outflow is
// neither the full agreed amount (funds still held) nor zero (fully released
// or refunded). A non-empty result means a settlement invariant was broken.
func (q *Queries) ListProjectImbalances(ctx context.Context) ([]ProjectImbalanceRow, error) {
	// Escrow rows carry the full agreed amount with the fee as an
	// informational breakdown; release rows carry the worker net with the
	// withheld fee, so amount+fee restores the agreed total.
	rows, err := q.db.Query(ctx, `
		SELECT p.id, p.agreed_centavos,
			COALESCE(SUM(t.amount_centavos) FILTER (WHERE t.type = $1), 0) AS escrow_in,
			COALESCE(SUM(t.amount_centavos + t.fee_centavos) FILTER (WHERE t.type IN ($2, $3)), 0) AS paid_out
		FROM projects p
		LEFT JOIN transactions t ON t.project_id = p.id AND t.status = $4
		GROUP BY p.id, p.agreed_centavos
		HAVING COALESCE(SUM(t.amount_centavos) FILTER (WHERE t.type = $1), 0)
		     - COALESCE(SUM(t.amount_centavos + t.fee_centavos) FILTER (WHERE t.type IN ($2, $3)), 0)
		     NOT IN (0, p.agreed_centavos)`,
		domain.TxTypeEscrow, domain.TxTypeRelease, domain.TxTypeRefund, domain.TxStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectImbalanceRow
	for rows.Next() {
		var row ProjectImbalanceRow
		if err := rows.Scan(&row.ProjectID, &row.AgreedCentavos, &row.EscrowIn, &row.PaidOut); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
