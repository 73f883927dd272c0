package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/models"
)

func (q *Queries) CreateJob(ctx context.Context, job *models.Job) error {
	query := `INSERT INTO jobs (id, employer_id, title, description, duration_days, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	return q.db.QueryRow(ctx, query,
		job.ID, job.EmployerID, job.Title, job.Description, job.DurationDays, job.Status).Scan(&job.CreatedAt)
}

const jobColumns = `id, employer_id, title, description, duration_days, status, created_at`

func scanJob(row interface{ Scan(...any) error }) (*models.Job, error) {
	job := &models.Job{}
	err := row.Scan(&job.ID, &job.EmployerID, &job.Title, &job.Description, &job.DurationDays, &job.Status, &job.CreatedAt)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (q *Queries) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return scanJob(q.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

// GetJobForUpdate locks the job row. This lock is what serializes racing
// acceptance attempts on the same job across server instances.
func (q *Queries) GetJobForUpdate(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return scanJob(q.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
}

type UpdateJobStatusParams struct {
	Status domain.JobStatus
	ID     uuid.UUID
}

func (q *Queries) UpdateJobStatus(ctx context.Context, arg UpdateJobStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE jobs SET status = $1 WHERE id = $2`, arg.Status, arg.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
