package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/models"
	"github.com/jackc/pgx/v5"
)

// JobService covers the marketplace surface that feeds settlement: posting
// jobs and placing bids.
type JobService struct {
	store QueryStore
}

func NewJobService(store QueryStore) *JobService {
	return &JobService{store: store}
}

type CreateJobCmd struct {
	EmployerID   uuid.UUID
	Title        string
	Description  string
	DurationDays int32
}

func (s *JobService) CreateJob(ctx context.Context, cmd CreateJobCmd) (*models.Job, error) {
	if strings.TrimSpace(cmd.Title) == "" {
		return nil, errors.New("title is required")
	}
	if cmd.DurationDays <= 0 {
		return nil, fmt.Errorf("invalid duration: %d days", cmd.DurationDays)
	}

	job := &models.Job{
		ID:           uuid.New(),
		EmployerID:   cmd.EmployerID,
		Title:        strings.TrimSpace(cmd.Title),
		Description:  cmd.Description,
		DurationDays: cmd.DurationDays,
		Status:       domain.JobStatusOpen,
	}
	if err := s.store.Queries().CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := s.store.Queries().GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

type PlaceBidCmd struct {
	WorkerID       uuid.UUID
	JobID          uuid.UUID
	AmountCentavos int64
	CoverNote      string
}

// PlaceBid records a pending bid on an open job. Employers cannot bid on
// their own postings.
func (s *JobService) PlaceBid(ctx context.Context, cmd PlaceBidCmd) (*models.Bid, error) {
	if cmd.AmountCentavos <= 0 {
		return nil, fmt.Errorf("invalid bid amount: %d", cmd.AmountCentavos)
	}

	job, err := s.GetJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusOpen {
		return nil, domain.ErrJobNotOpen
	}
	if job.EmployerID == cmd.WorkerID {
		return nil, domain.ErrUnauthorized
	}

	bid := &models.Bid{
		ID:             uuid.New(),
		JobID:          cmd.JobID,
		WorkerID:       cmd.WorkerID,
		AmountCentavos: cmd.AmountCentavos,
		CoverNote:      cmd.CoverNote,
		Status:         domain.BidStatusPending,
	}
	if err := s.store.Queries().CreateBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("create bid: %w", err)
	}
	return bid, nil
}

// ListBids returns every bid on a job. Only the employer sees the full list.
func (s *JobService) ListBids(ctx context.Context, actorID, jobID uuid.UUID) ([]models.Bid, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.EmployerID != actorID {
		return nil, domain.ErrUnauthorized
	}

	bids, err := s.store.Queries().ListBidsByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}

// GetBid returns a bid visible to its worker or the job's employer.
func (s *JobService) GetBid(ctx context.Context, actorID, bidID uuid.UUID) (*models.Bid, error) {
	bid, err := s.store.Queries().GetBid(ctx, bidID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBidNotFound
		}
		return nil, fmt.Errorf("get bid: %w", err)
	}

	if bid.WorkerID != actorID {
		job, err := s.GetJob(ctx, bid.JobID)
		if err != nil {
			return nil, err
		}
		if job.EmployerID != actorID {
			return nil, domain.ErrUnauthorized
		}
	}
	return bid, nil
}
