package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/models"
)

func (q *Queries) CreateBid(ctx context.Context, bid *models.Bid) error {
	query := `INSERT INTO bids (id, job_id, worker_id, amount_centavos, cover_note, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING created_at, updated_at`
	return q.db.QueryRow(ctx, query,
		bid.ID, bid.JobID, bid.WorkerID, bid.AmountCentavos, bid.CoverNote, bid.Status).Scan(&bid.CreatedAt, &bid.UpdatedAt)
}

const bidColumns = `id, job_id, worker_id, amount_centavos, cover_note, status, created_at, updated_at`

func scanBid(row interface{ Scan(...any) error }) (*models.Bid, error) {
	bid := &models.Bid{}
	err := row.Scan(&bid.ID, &bid.JobID, &bid.WorkerID, &bid.AmountCentavos, &bid.CoverNote, &bid.Status, &bid.CreatedAt, &bid.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return bid, nil
}

func (q *Queries) GetBid(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	return scanBid(q.db.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id))
}

// GetBidForUpdate locks the bid row inside the ambient transaction.
func (q *Queries) GetBidForUpdate(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	return scanBid(q.db.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) ListBidsByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error) {
	rows, err := q.db.Query(ctx, `SELECT `+bidColumns+` FROM bids WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *bid)
	}
	return bids, rows.Err()
}

type UpdateBidStatusParams struct {
	Status domain.BidStatus
	ID     uuid.UUID
}

func (q *Queries) UpdateBidStatus(ctx context.Context, arg UpdateBidStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE bids SET status = $1, updated_at = NOW() WHERE id = $2`, arg.Status, arg.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type RejectPendingBidsParams struct {
	JobID       uuid.UUID
	ExceptBidID uuid.UUID
}

type RejectedBidRow struct {
	ID       uuid.UUID
	WorkerID uuid.UUID
}

// RejectPendingBids transitions every other pending bid on the job to
// rejected. Re-running on a settled job matches zero rows, so the operation
// is idempotent by construction.
func (q *Queries) RejectPendingBids(ctx context.Context, arg RejectPendingBidsParams) ([]RejectedBidRow, error) {
	rows, err := q.db.Query(ctx,
		`UPDATE bids SET status = $1, updated_at = NOW()
		 WHERE job_id = $2 AND id <> $3 AND status = $4
		 RETURNING id, worker_id`,
		domain.BidStatusRejected, arg.JobID, arg.ExceptBidID, domain.BidStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rejected []RejectedBidRow
	for rows.Next() {
		var row RejectedBidRow
		if err := rows.Scan(&row.ID, &row.WorkerID); err != nil {
			return nil, err
		}
		rejected = append(rejected, row)
	}
	return rejected, rows.Err()
}

// CountMultiAcceptedJobs counts jobs violating the at-most-one-accepted-bid
// invariant. Reconciliation expects zero.
func (q *Queries) CountMultiAcceptedJobs(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM (
			SELECT job_id FROM bids WHERE status = $1 GROUP BY job_id HAVING COUNT(*) > 1
		) violations`, domain.BidStatusAccepted).Scan(&count)
	return count, err
}
