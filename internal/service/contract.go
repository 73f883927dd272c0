package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/models"
	"github.com/hanapgigs/escrow-engine/internal/repository"
	"github.com/jackc/pgx/v5"
)

// ContractIssuer generates the contract for a freshly settled project. It
// runs inside the settlement transaction, so a contract failure rolls the
// whole acceptance back.
type ContractIssuer struct {
	clock Clock
}

func NewContractIssuer(clock Clock) *ContractIssuer {
	return &ContractIssuer{clock: clock}
}

// Issue creates a pending-signatures contract covering the job's duration,
// starting now.
func (i *ContractIssuer) Issue(ctx context.Context, q repository.Querier, project *models.Project, durationDays int32) (*models.Contract, error) {
	if durationDays <= 0 {
		return nil, fmt.Errorf("invalid contract duration: %d days", durationDays)
	}

	start := i.clock.Now().UTC()
	contract := &models.Contract{
		ID:             uuid.New(),
		ProjectID:      project.ID,
		BidID:          project.BidID,
		AgreedCentavos: project.AgreedCentavos,
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, int(durationDays)),
		Status:         domain.ContractStatusPendingSignatures,
	}
	if err := q.CreateContract(ctx, contract); err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	return contract, nil
}

// ContractService handles the signing flow after settlement.
type ContractService struct {
	store QueryStore
	clock Clock
}

func NewContractService(store QueryStore, clock Clock) *ContractService {
	return &ContractService{store: store, clock: clock}
}

// GetContract loads a contract visible to either party of its project.
func (s *ContractService) GetContract(ctx context.Context, actorID, contractID uuid.UUID) (*models.Contract, error) {
	q := s.store.Queries()
	contract, err := q.GetContract(ctx, contractID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContractNotFound
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}
	project, err := q.GetProject(ctx, contract.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get contract project: %w", err)
	}
	if actorID != project.EmployerID && actorID != project.WorkerID {
		return nil, domain.ErrUnauthorized
	}
	return contract, nil
}

// Sign records the actor's signature. When both parties have signed, the
// contract and its project both become active.
func (s *ContractService) Sign(ctx context.Context, actorID, contractID uuid.UUID) (*models.Contract, error) {
	var signed *models.Contract

	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		contract, err := q.GetContractForUpdate(ctx, contractID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrContractNotFound
			}
			return fmt.Errorf("lock contract: %w", err)
		}
		if contract.Status != domain.ContractStatusPendingSignatures {
			return domain.ErrInvalidContractState
		}

		project, err := q.GetProject(ctx, contract.ProjectID)
		if err != nil {
			return fmt.Errorf("get contract project: %w", err)
		}

		now := s.clock.Now().UTC()
		var rows int64
		switch actorID {
		case project.EmployerID:
			rows, err = q.SetContractEmployerSigned(ctx, repository.SetContractSignatureParams{SignedAt: now, ID: contract.ID})
			contract.EmployerSignedAt = &now
		case project.WorkerID:
			rows, err = q.SetContractWorkerSigned(ctx, repository.SetContractSignatureParams{SignedAt: now, ID: contract.ID})
			contract.WorkerSignedAt = &now
		default:
			return domain.ErrUnauthorized
		}
		if err != nil {
			return fmt.Errorf("record signature: %w", err)
		}
		if rows == 0 {
			return domain.ErrAlreadySigned
		}

		if contract.EmployerSignedAt != nil && contract.WorkerSignedAt != nil {
			if err := s.activate(ctx, q, contract, project); err != nil {
				return err
			}
		}

		signed = contract
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signed, nil
}

func (s *ContractService) activate(ctx context.Context, q repository.Querier, contract *models.Contract, project *models.Project) error {
	if !contract.Status.CanTransitionTo(domain.ContractStatusActive) {
		return domain.ErrInvalidContractState
	}
	rows, err := q.UpdateContractStatus(ctx, repository.UpdateContractStatusParams{
		Status: domain.ContractStatusActive,
		ID:     contract.ID,
	})
	if err != nil {
		return fmt.Errorf("activate contract: %w", err)
	}
	if err := requireExactlyOne(rows, "activate contract"); err != nil {
		return err
	}
	contract.Status = domain.ContractStatusActive

	if !project.Status.CanTransitionTo(domain.ProjectStatusActive) {
		return domain.ErrInvalidProjectState
	}
	rows, err = q.UpdateProjectStatus(ctx, repository.UpdateProjectStatusParams{
		Status: domain.ProjectStatusActive,
		ID:     project.ID,
	})
	if err != nil {
		return fmt.Errorf("activate project: %w", err)
	}
	if err := requireExactlyOne(rows, "activate project"); err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]string{
		"contract_id": contract.ID.String(),
		"project_id":  project.ID.String(),
	})
	for _, userID := range []uuid.UUID{project.EmployerID, project.WorkerID} {
		if err := q.CreateNotification(ctx, &models.Notification{
			ID:        uuid.New(),
			UserID:    userID,
			EventType: domain.EventContractActive,
			Payload:   payload,
			Status:    domain.NotificationStatusPending,
		}); err != nil {
			return fmt.Errorf("enqueue activation notification: %w", err)
		}
	}
	return nil
}
