package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/models"
)

// Querier is the data-access contract implemented by *Queries. Services
// depend on this interface so tests can substitute an in-memory fake.
type Querier interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	AddToAccountBalance(ctx context.Context, arg AdjustAccountBalanceParams) (int64, error)
	DebitAccountBalance(ctx context.Context, arg AdjustAccountBalanceParams) (int64, error)
	CountNegativeBalances(ctx context.Context) (int64, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetJobForUpdate(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, arg UpdateJobStatusParams) (int64, error)

	CreateBid(ctx context.Context, bid *models.Bid) error
	GetBid(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	GetBidForUpdate(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	ListBidsByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error)
	UpdateBidStatus(ctx context.Context, arg UpdateBidStatusParams) (int64, error)
	RejectPendingBids(ctx context.Context, arg RejectPendingBidsParams) ([]RejectedBidRow, error)
	CountMultiAcceptedJobs(ctx context.Context) (int64, error)

	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetProjectForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetProjectByBidID(ctx context.Context, bidID uuid.UUID) (*models.Project, error)
	UpdateProjectStatus(ctx context.Context, arg UpdateProjectStatusParams) (int64, error)
	ListProjectImbalances(ctx context.Context) ([]ProjectImbalanceRow, error)

	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransactionByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, arg ListTransactionsByAccountParams) ([]models.Transaction, error)
	ListTransactionsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Transaction, error)

	CreateContract(ctx context.Context, contract *models.Contract) error
	GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetContractForUpdate(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetContractByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Contract, error)
	SetContractEmployerSigned(ctx context.Context, arg SetContractSignatureParams) (int64, error)
	SetContractWorkerSigned(ctx context.Context, arg SetContractSignatureParams) (int64, error)
	UpdateContractStatus(ctx context.Context, arg UpdateContractStatusParams) (int64, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	GetPendingNotifications(ctx context.Context, limit int32) ([]models.Notification, error)
	MarkNotificationSent(ctx context.Context, id uuid.UUID) (int64, error)
	MarkNotificationFailed(ctx context.Context, arg MarkNotificationFailedParams) (int64, error)

	GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKeyRow, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKeyRow, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKeyRow, error)
}

var _ Querier = (*Queries)(nil)
