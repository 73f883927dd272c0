package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/ledger"
	"github.com/hanapgigs/escrow-engine/internal/models"
	"github.com/hanapgigs/escrow-engine/internal/observability"
	"github.com/hanapgigs/escrow-engine/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementService orchestrates bid acceptance: funds move to escrow, the
// winning bid is accepted, competitors are rejected and a contract is issued,
// all inside one database transaction.
type SettlementService struct {
	store   QueryStore
	ledger  *ledger.Ledger
	issuer  *ContractIssuer
	feeRate decimal.Decimal
}

func NewSettlementService(store QueryStore, l *ledger.Ledger, issuer *ContractIssuer, feeRate decimal.Decimal) *SettlementService {
	return &SettlementService{
		store:   store,
		ledger:  l,
		issuer:  issuer,
		feeRate: feeRate,
	}
}

// Settlement is the result of a successful bid acceptance.
type Settlement struct {
	Project     *models.Project     `json:"project"`
	Contract    *models.Contract    `json:"contract"`
	Transaction *models.Transaction `json:"transaction"`
	Fees        domain.FeeBreakdown `json:"fees"`
}

type AcceptBidCmd struct {
	ActorID     uuid.UUID
	BidID       uuid.UUID
	ReferenceID string
}

// AcceptBid settles a bid. The job row lock serializes racing acceptances;
// every precondition is re-checked after the lock is held. A repeated call
// with the same reference id replays the original settlement.
func (s *SettlementService) AcceptBid(ctx context.Context, cmd AcceptBidCmd) (*Settlement, error) {
	refID := cmd.ReferenceID
	if refID == "" {
		// Deterministic per bid, so a blind retry settles nothing twice.
		refID = fmt.Sprintf("settlement:%s", cmd.BidID)
	}

	if existing, err := s.replaySettlement(ctx, cmd.BidID, refID); err != nil {
		return nil, err
	} else if existing != nil {
		observability.IncrementSettlement("replayed")
		return existing, nil
	}

	var result *Settlement
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		bid, err := q.GetBid(ctx, cmd.BidID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrBidNotFound
			}
			return fmt.Errorf("get bid: %w", err)
		}

		// Lock the job first. Everything below runs under that lock, so a
		// concurrent acceptance of any bid on this job waits here and then
		// fails the re-validation.
		job, err := q.GetJobForUpdate(ctx, bid.JobID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrJobNotFound
			}
			return fmt.Errorf("lock job: %w", err)
		}
		if job.EmployerID != cmd.ActorID {
			return domain.ErrUnauthorized
		}
		if job.Status != domain.JobStatusOpen {
			return domain.ErrJobNotOpen
		}

		bid, err = q.GetBidForUpdate(ctx, cmd.BidID)
		if err != nil {
			return fmt.Errorf("lock bid: %w", err)
		}
		if !bid.Status.CanTransitionTo(domain.BidStatusAccepted) {
			return domain.ErrInvalidBidState
		}

		account, err := q.GetAccountByUserID(ctx, job.EmployerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrAccountNotFound
			}
			return fmt.Errorf("get employer account: %w", err)
		}

		fees := domain.ComputeFee(bid.AmountCentavos, s.feeRate)

		project := &models.Project{
			ID:             uuid.New(),
			JobID:          job.ID,
			BidID:          bid.ID,
			EmployerID:     job.EmployerID,
			WorkerID:       bid.WorkerID,
			AgreedCentavos: fees.AgreedCentavos,
			FeeCentavos:    fees.FeeCentavos,
			NetCentavos:    fees.NetCentavos,
			Status:         domain.ProjectStatusPendingContract,
		}
		if err := q.CreateProject(ctx, project); err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		tx, err := s.ledger.Debit(ctx, q, account.ID, fees.AgreedCentavos, ledger.Entry{
			ProjectID:   &project.ID,
			FeeCentavos: fees.FeeCentavos,
			Type:        domain.TxTypeEscrow,
			ReferenceID: refID,
		})
		if err != nil {
			return err
		}

		rows, err := q.UpdateBidStatus(ctx, repository.UpdateBidStatusParams{
			Status: domain.BidStatusAccepted,
			ID:     bid.ID,
		})
		if err != nil {
			return fmt.Errorf("accept bid: %w", err)
		}
		if err := requireExactlyOne(rows, "accept bid"); err != nil {
			return err
		}

		rejected, err := q.RejectPendingBids(ctx, repository.RejectPendingBidsParams{
			JobID:       job.ID,
			ExceptBidID: bid.ID,
		})
		if err != nil {
			return fmt.Errorf("reject competing bids: %w", err)
		}

		rows, err = q.UpdateJobStatus(ctx, repository.UpdateJobStatusParams{
			Status: domain.JobStatusInProgress,
			ID:     job.ID,
		})
		if err != nil {
			return fmt.Errorf("update job status: %w", err)
		}
		if err := requireExactlyOne(rows, "update job status"); err != nil {
			return err
		}

		contract, err := s.issuer.Issue(ctx, q, project, job.DurationDays)
		if err != nil {
			return err
		}

		if err := s.enqueueSettlementNotifications(ctx, q, project, contract, rejected); err != nil {
			return err
		}

		result = &Settlement{
			Project:     project,
			Contract:    contract,
			Transaction: tx,
			Fees:        fees,
		}
		return nil
	})
	if err != nil {
		if _, ok := domain.IsInsufficientFunds(err); ok {
			observability.IncrementInsufficientFunds()
			observability.IncrementSettlement("insufficient_funds")
		} else {
			observability.IncrementSettlement("failed")
		}
		return nil, err
	}

	observability.IncrementSettlement("accepted")
	zap.L().Info("bid settled",
		zap.String("bid_id", cmd.BidID.String()),
		zap.String("project_id", result.Project.ID.String()),
		zap.Int64("agreed_centavos", result.Fees.AgreedCentavos),
		zap.Int64("fee_centavos", result.Fees.FeeCentavos))
	return result, nil
}

// replaySettlement returns the prior settlement when the reference id has
// already been recorded, nil when this is a first attempt. A reference id
// that belongs to a different transaction kind or project is a conflict, not
// a replay.
func (s *SettlementService) replaySettlement(ctx context.Context, bidID uuid.UUID, refID string) (*Settlement, error) {
	q := s.store.Queries()
	tx, err := q.GetTransactionByReferenceID(ctx, refID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("check settlement reference: %w", err)
	}
	if tx.Type != domain.TxTypeEscrow {
		return nil, domain.ErrReferenceInUse
	}

	project, err := q.GetProjectByBidID(ctx, bidID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReferenceInUse
		}
		return nil, fmt.Errorf("load settled project: %w", err)
	}
	if tx.ProjectID == nil || *tx.ProjectID != project.ID {
		return nil, domain.ErrReferenceInUse
	}
	contract, err := q.GetContractByProjectID(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("load settled contract: %w", err)
	}
	return &Settlement{
		Project:     project,
		Contract:    contract,
		Transaction: tx,
		Fees: domain.FeeBreakdown{
			AgreedCentavos: project.AgreedCentavos,
			FeeCentavos:    project.FeeCentavos,
			NetCentavos:    project.NetCentavos,
		},
	}, nil
}

func (s *SettlementService) enqueueSettlementNotifications(ctx context.Context, q repository.Querier, project *models.Project, contract *models.Contract, rejected []repository.RejectedBidRow) error {
	contractReady, _ := json.Marshal(map[string]string{
		"contract_id": contract.ID.String(),
		"project_id":  project.ID.String(),
		"job_id":      project.JobID.String(),
	})
	if err := q.CreateNotification(ctx, &models.Notification{
		ID:        uuid.New(),
		UserID:    project.WorkerID,
		EventType: domain.EventContractReady,
		Payload:   contractReady,
		Status:    domain.NotificationStatusPending,
	}); err != nil {
		return fmt.Errorf("enqueue contract.ready: %w", err)
	}

	for _, loser := range rejected {
		payload, _ := json.Marshal(map[string]string{
			"bid_id": loser.ID.String(),
			"job_id": project.JobID.String(),
		})
		if err := q.CreateNotification(ctx, &models.Notification{
			ID:        uuid.New(),
			UserID:    loser.WorkerID,
			EventType: domain.EventBidRejected,
			Payload:   payload,
			Status:    domain.NotificationStatusPending,
		}); err != nil {
			return fmt.Errorf("enqueue bid.rejected: %w", err)
		}
	}
	return nil
}

// RejectBid declines a pending bid. Rejecting a bid that is already rejected
// is a no-op so employer retries are safe.
func (s *SettlementService) RejectBid(ctx context.Context, actorID, bidID uuid.UUID) (*models.Bid, error) {
	var result *models.Bid
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		bid, err := q.GetBidForUpdate(ctx, bidID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrBidNotFound
			}
			return fmt.Errorf("lock bid: %w", err)
		}

		job, err := q.GetJob(ctx, bid.JobID)
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		if job.EmployerID != actorID {
			return domain.ErrUnauthorized
		}

		if bid.Status == domain.BidStatusRejected {
			result = bid
			return nil
		}
		if !bid.Status.CanTransitionTo(domain.BidStatusRejected) {
			return domain.ErrInvalidBidState
		}

		rows, err := q.UpdateBidStatus(ctx, repository.UpdateBidStatusParams{
			Status: domain.BidStatusRejected,
			ID:     bid.ID,
		})
		if err != nil {
			return fmt.Errorf("reject bid: %w", err)
		}
		if err := requireExactlyOne(rows, "reject bid"); err != nil {
			return err
		}
		bid.Status = domain.BidStatusRejected

		payload, _ := json.Marshal(map[string]string{
			"bid_id": bid.ID.String(),
			"job_id": bid.JobID.String(),
		})
		if err := q.CreateNotification(ctx, &models.Notification{
			ID:        uuid.New(),
			UserID:    bid.WorkerID,
			EventType: domain.EventBidRejected,
			Payload:   payload,
			Status:    domain.NotificationStatusPending,
		}); err != nil {
			return fmt.Errorf("enqueue bid.rejected: %w", err)
		}

		result = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// WithdrawBid lets the bidding worker pull a pending bid. Withdrawing an
// already-withdrawn bid is a no-op.
func (s *SettlementService) WithdrawBid(ctx context.Context, actorID, bidID uuid.UUID) (*models.Bid, error) {
	var result *models.Bid
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		bid, err := q.GetBidForUpdate(ctx, bidID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrBidNotFound
			}
			return fmt.Errorf("lock bid: %w", err)
		}
		if bid.WorkerID != actorID {
			return domain.ErrUnauthorized
		}

		if bid.Status == domain.BidStatusWithdrawn {
			result = bid
			return nil
		}
		if !bid.Status.CanTransitionTo(domain.BidStatusWithdrawn) {
			return domain.ErrInvalidBidState
		}

		rows, err := q.UpdateBidStatus(ctx, repository.UpdateBidStatusParams{
			Status: domain.BidStatusWithdrawn,
			ID:     bid.ID,
		})
		if err != nil {
			return fmt.Errorf("withdraw bid: %w", err)
		}
		if err := requireExactlyOne(rows, "withdraw bid"); err != nil {
			return err
		}
		bid.Status = domain.BidStatusWithdrawn

		result = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
