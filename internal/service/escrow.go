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
	"github.com/hanapgigs/escrow-engine/internal/repository"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// EscrowService settles held project funds after the work concludes. Release
// pays the worker; refund returns the employer's money during a dispute.
type EscrowService struct {
	store             QueryStore
	ledger            *ledger.Ledger
	platformAccountID uuid.UUID
}

func NewEscrowService(store QueryStore, l *ledger.Ledger) *EscrowService {
	return &EscrowService{
		store:             store,
		ledger:            l,
		platformAccountID: uuid.MustParse(domain.PlatformFeeAccountID),
	}
}

type ReleaseEscrowCmd struct {
	ActorID     uuid.UUID
	ProjectID   uuid.UUID
	ReferenceID string
}

// ReleaseEscrow pays the worker their net amount and the platform its fee,
// then completes the project and its job. Only the employer of an active
// project may release. Retries with the same reference id replay.
func (s *EscrowService) ReleaseEscrow(ctx context.Context, cmd ReleaseEscrowCmd) (*models.Transaction, error) {
	refID := cmd.ReferenceID
	if refID == "" {
		refID = fmt.Sprintf("release:%s", cmd.ProjectID)
	}

	if tx, err := s.priorTransaction(ctx, refID, domain.TxTypeRelease, cmd.ProjectID); err != nil {
		return nil, err
	} else if tx != nil {
		return tx, nil
	}

	var result *models.Transaction
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		project, err := q.GetProjectForUpdate(ctx, cmd.ProjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrProjectNotFound
			}
			return fmt.Errorf("lock project: %w", err)
		}
		if project.EmployerID != cmd.ActorID {
			return domain.ErrUnauthorized
		}
		if !project.Status.CanTransitionTo(domain.ProjectStatusCompleted) {
			return domain.ErrInvalidProjectState
		}

		workerAccount, err := q.GetAccountByUserID(ctx, project.WorkerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrAccountNotFound
			}
			return fmt.Errorf("get worker account: %w", err)
		}

		tx, err := s.ledger.Release(ctx, q, workerAccount.ID, s.platformAccountID,
			domain.FeeBreakdown{
				AgreedCentavos: project.AgreedCentavos,
				FeeCentavos:    project.FeeCentavos,
				NetCentavos:    project.NetCentavos,
			},
			ledger.Entry{
				ProjectID:   &project.ID,
				ReferenceID: refID,
			})
		if err != nil {
			return err
		}

		if err := s.transitionProject(ctx, q, project, domain.ProjectStatusCompleted); err != nil {
			return err
		}
		if err := s.transitionJob(ctx, q, project.JobID, domain.JobStatusCompleted); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]any{
			"project_id":   project.ID.String(),
			"net_centavos": project.NetCentavos,
		})
		if err := q.CreateNotification(ctx, &models.Notification{
			ID:        uuid.New(),
			UserID:    project.WorkerID,
			EventType: domain.EventEscrowReleased,
			Payload:   payload,
			Status:    domain.NotificationStatusPending,
		}); err != nil {
			return fmt.Errorf("enqueue escrow.released: %w", err)
		}

		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("escrow released",
		zap.String("project_id", cmd.ProjectID.String()),
		zap.Int64("net_centavos", result.AmountCentavos),
		zap.Int64("fee_centavos", result.FeeCentavos))
	return result, nil
}

type RefundEscrowCmd struct {
	ActorID     uuid.UUID
	ActorRole   string
	ProjectID   uuid.UUID
	ReferenceID string
}

// RefundEscrow returns the full agreed amount to the employer and marks the
// project disputed. Admin only; no fee is taken on a refund.
func (s *EscrowService) RefundEscrow(ctx context.Context, cmd RefundEscrowCmd) (*models.Transaction, error) {
	if cmd.ActorRole != "admin" {
		return nil, domain.ErrUnauthorized
	}

	refID := cmd.ReferenceID
	if refID == "" {
		refID = fmt.Sprintf("refund:%s", cmd.ProjectID)
	}

	if tx, err := s.priorTransaction(ctx, refID, domain.TxTypeRefund, cmd.ProjectID); err != nil {
		return nil, err
	} else if tx != nil {
		return tx, nil
	}

	var result *models.Transaction
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		project, err := q.GetProjectForUpdate(ctx, cmd.ProjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrProjectNotFound
			}
			return fmt.Errorf("lock project: %w", err)
		}
		if !project.Status.CanTransitionTo(domain.ProjectStatusDisputed) {
			return domain.ErrInvalidProjectState
		}

		employerAccount, err := q.GetAccountByUserID(ctx, project.EmployerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrAccountNotFound
			}
			return fmt.Errorf("get employer account: %w", err)
		}

		tx, err := s.ledger.Credit(ctx, q, employerAccount.ID, project.AgreedCentavos, ledger.Entry{
			ProjectID:   &project.ID,
			Type:        domain.TxTypeRefund,
			ReferenceID: refID,
		})
		if err != nil {
			return err
		}

		if err := s.transitionProject(ctx, q, project, domain.ProjectStatusDisputed); err != nil {
			return err
		}
		if err := s.transitionJob(ctx, q, project.JobID, domain.JobStatusCancelled); err != nil {
			return err
		}
		if err := s.cancelContract(ctx, q, project.ID); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]any{
			"project_id":      project.ID.String(),
			"agreed_centavos": project.AgreedCentavos,
		})
		for _, userID := range []uuid.UUID{project.EmployerID, project.WorkerID} {
			if err := q.CreateNotification(ctx, &models.Notification{
				ID:        uuid.New(),
				UserID:    userID,
				EventType: domain.EventEscrowRefunded,
				Payload:   payload,
				Status:    domain.NotificationStatusPending,
			}); err != nil {
				return fmt.Errorf("enqueue escrow.refunded: %w", err)
			}
		}

		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Warn("escrow refunded",
		zap.String("project_id", cmd.ProjectID.String()),
		zap.Int64("agreed_centavos", result.AmountCentavos))
	return result, nil
}

// priorTransaction replays a recorded reference id. The row must match the
// expected transaction kind and project; anything else is a conflict.
func (s *EscrowService) priorTransaction(ctx context.Context, refID string, want domain.TxType, projectID uuid.UUID) (*models.Transaction, error) {
	tx, err := s.store.Queries().GetTransactionByReferenceID(ctx, refID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("check settlement reference: %w", err)
	}
	if tx.Type != want || tx.ProjectID == nil || *tx.ProjectID != projectID {
		return nil, domain.ErrReferenceInUse
	}
	return tx, nil
}

func (s *EscrowService) transitionProject(ctx context.Context, q repository.Querier, project *models.Project, next domain.ProjectStatus) error {
	rows, err := q.UpdateProjectStatus(ctx, repository.UpdateProjectStatusParams{Status: next, ID: project.ID})
	if err != nil {
		return fmt.Errorf("transition project to %s: %w", next, err)
	}
	if err := requireExactlyOne(rows, "transition project"); err != nil {
		return err
	}
	project.Status = next
	return nil
}

func (s *EscrowService) transitionJob(ctx context.Context, q repository.Querier, jobID uuid.UUID, next domain.JobStatus) error {
	job, err := q.GetJobForUpdate(ctx, jobID)
	if err != nil {
		return fmt.Errorf("lock job: %w", err)
	}
	if !job.Status.CanTransitionTo(next) {
		// A cancelled or completed job stays where it is; the project row is
		// the financial source of truth.
		return nil
	}
	rows, err := q.UpdateJobStatus(ctx, repository.UpdateJobStatusParams{Status: next, ID: jobID})
	if err != nil {
		return fmt.Errorf("transition job to %s: %w", next, err)
	}
	return requireExactlyOne(rows, "transition job")
}

func (s *EscrowService) cancelContract(ctx context.Context, q repository.Querier, projectID uuid.UUID) error {
	contract, err := q.GetContractByProjectID(ctx, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("get contract: %w", err)
	}
	if !contract.Status.CanTransitionTo(domain.ContractStatusCancelled) {
		return nil
	}
	rows, err := q.UpdateContractStatus(ctx, repository.UpdateContractStatusParams{
		Status: domain.ContractStatusCancelled,
		ID:     contract.ID,
	})
	if err != nil {
		return fmt.Errorf("cancel contract: %w", err)
	}
	return requireExactlyOne(rows, "cancel contract")
}
