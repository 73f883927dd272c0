package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/models"
	"github.com/hanapgigs/escrow-engine/internal/repository"
	"github.com/jackc/pgx/v5"
)

// fakeDB is an in-memory stand-in for postgres. It implements the exact
// row-count and ErrNoRows semantics the services depend on, and RunInTx
// restores a snapshot on error so rollback behavior is observable.
type fakeDB struct {
	users         map[uuid.UUID]models.User
	accounts      map[uuid.UUID]models.Account
	jobs          map[uuid.UUID]models.Job
	bids          map[uuid.UUID]models.Bid
	projects      map[uuid.UUID]models.Project
	contracts     map[uuid.UUID]models.Contract
	transactions  []models.Transaction
	notifications []models.Notification

	// Fault injection for atomicity tests.
	createContractErr     error
	createNotificationErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:     map[uuid.UUID]models.User{},
		accounts:  map[uuid.UUID]models.Account{},
		jobs:      map[uuid.UUID]models.Job{},
		bids:      map[uuid.UUID]models.Bid{},
		projects:  map[uuid.UUID]models.Project{},
		contracts: map[uuid.UUID]models.Contract{},
	}
}

func (f *fakeDB) snapshot() *fakeDB {
	clone := newFakeDB()
	for k, v := range f.users {
		clone.users[k] = v
	}
	for k, v := range f.accounts {
		clone.accounts[k] = v
	}
	for k, v := range f.jobs {
		clone.jobs[k] = v
	}
	for k, v := range f.bids {
		clone.bids[k] = v
	}
	for k, v := range f.projects {
		clone.projects[k] = v
	}
	for k, v := range f.contracts {
		clone.contracts[k] = v
	}
	clone.transactions = append([]models.Transaction(nil), f.transactions...)
	clone.notifications = append([]models.Notification(nil), f.notifications...)
	clone.createContractErr = f.createContractErr
	clone.createNotificationErr = f.createNotificationErr
	return clone
}

func (f *fakeDB) restore(snap *fakeDB) { *f = *snap }

// Seed helpers.

func (f *fakeDB) addUser(role string) uuid.UUID {
	id := uuid.New()
	f.users[id] = models.User{
		ID:       id,
		Username: fmt.Sprintf("user-%s", id.String()[:8]),
		Email:    fmt.Sprintf("%s@example.com", id.String()[:8]),
		Role:     role,
	}
	return id
}

func (f *fakeDB) addAccount(userID uuid.UUID, balanceCentavos int64) uuid.UUID {
	id := uuid.New()
	f.accounts[id] = models.Account{
		ID:              id,
		UserID:          userID,
		BalanceCentavos: balanceCentavos,
		Currency:        domain.CurrencyPHP,
	}
	return id
}

func (f *fakeDB) addJob(employerID uuid.UUID, status domain.JobStatus, durationDays int32) uuid.UUID {
	id := uuid.New()
	f.jobs[id] = models.Job{
		ID:           id,
		EmployerID:   employerID,
		Title:        "build a website",
		DurationDays: durationDays,
		Status:       status,
	}
	return id
}

func (f *fakeDB) addBid(jobID, workerID uuid.UUID, amountCentavos int64, status domain.BidStatus) uuid.UUID {
	id := uuid.New()
	f.bids[id] = models.Bid{
		ID:             id,
		JobID:          jobID,
		WorkerID:       workerID,
		AmountCentavos: amountCentavos,
		Status:         status,
	}
	return id
}

func (f *fakeDB) balance(accountID uuid.UUID) int64 {
	return f.accounts[accountID].BalanceCentavos
}

func (f *fakeDB) notificationsFor(userID uuid.UUID, eventType string) []models.Notification {
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID && n.EventType == eventType {
			out = append(out, n)
		}
	}
	return out
}

// fakeStore satisfies QueryStore. The fake has no real transaction scope;
// rollback is simulated by restoring the pre-call snapshot.
type fakeStore struct {
	db *fakeDB
}

func newFakeStore(db *fakeDB) *fakeStore { return &fakeStore{db: db} }

func (s *fakeStore) Queries() repository.Querier { return &fakeQuerier{db: s.db} }

func (s *fakeStore) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	snap := s.db.snapshot()
	if err := fn(&fakeQuerier{db: s.db}); err != nil {
		s.db.restore(snap)
		return err
	}
	return nil
}

type fakeQuerier struct {
	db *fakeDB
}

var _ repository.Querier = (*fakeQuerier)(nil)

func (f *fakeQuerier) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	f.db.users[user.ID] = *user
	return nil
}

func (f *fakeQuerier) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (f *fakeQuerier) CreateAccount(ctx context.Context, account *models.Account) error {
	for _, a := range f.db.accounts {
		if a.UserID == account.UserID {
			return errors.New("duplicate key value violates unique constraint \"accounts_user_id_key\"")
		}
	}
	account.CreatedAt = time.Now()
	f.db.accounts[account.ID] = *account
	return nil
}

func (f *fakeQuerier) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	a, ok := f.db.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (f *fakeQuerier) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	for _, a := range f.db.accounts {
		if a.UserID == userID {
			a := a
			return &a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeQuerier) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return f.GetAccount(ctx, id)
}

func (f *fakeQuerier) AddToAccountBalance(ctx context.Context, arg repository.AdjustAccountBalanceParams) (int64, error) {
	a, ok := f.db.accounts[arg.ID]
	if !ok {
		return 0, nil
	}
	a.BalanceCentavos += arg.AmountCentavos
	f.db.accounts[arg.ID] = a
	return 1, nil
}

func (f *fakeQuerier) DebitAccountBalance(ctx context.Context, arg repository.AdjustAccountBalanceParams) (int64, error) {
	a, ok := f.db.accounts[arg.ID]
	if !ok || a.BalanceCentavos < arg.AmountCentavos {
		return 0, nil
	}
	a.BalanceCentavos -= arg.AmountCentavos
	f.db.accounts[arg.ID] = a
	return 1, nil
}

func (f *fakeQuerier) CountNegativeBalances(ctx context.Context) (int64, error) {
	var count int64
	for _, a := range f.db.accounts {
		if a.BalanceCentavos < 0 {
			count++
		}
	}
	return count, nil
}

func (f *fakeQuerier) CreateJob(ctx context.Context, job *models.Job) error {
	job.CreatedAt = time.Now()
	f.db.jobs[job.ID] = *job
	return nil
}

func (f *fakeQuerier) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, ok := f.db.jobs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &j, nil
}

func (f *fakeQuerier) GetJobForUpdate(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return f.GetJob(ctx, id)
}

func (f *fakeQuerier) UpdateJobStatus(ctx context.Context, arg repository.UpdateJobStatusParams) (int64, error) {
	j, ok := f.db.jobs[arg.ID]
	if !ok {
		return 0, nil
	}
	j.Status = arg.Status
	f.db.jobs[arg.ID] = j
	return 1, nil
}

func (f *fakeQuerier) CreateBid(ctx context.Context, bid *models.Bid) error {
	bid.CreatedAt = time.Now()
	bid.UpdatedAt = bid.CreatedAt
	f.db.bids[bid.ID] = *bid
	return nil
}

func (f *fakeQuerier) GetBid(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	b, ok := f.db.bids[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &b, nil
}

func (f *fakeQuerier) GetBidForUpdate(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	return f.GetBid(ctx, id)
}

func (f *fakeQuerier) ListBidsByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error) {
	var out []models.Bid
	for _, b := range f.db.bids {
		if b.JobID == jobID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeQuerier) UpdateBidStatus(ctx context.Context, arg repository.UpdateBidStatusParams) (int64, error) {
	b, ok := f.db.bids[arg.ID]
	if !ok {
		return 0, nil
	}
	b.Status = arg.Status
	b.UpdatedAt = time.Now()
	f.db.bids[arg.ID] = b
	return 1, nil
}

func (f *fakeQuerier) RejectPendingBids(ctx context.Context, arg repository.RejectPendingBidsParams) ([]repository.RejectedBidRow, error) {
	var rejected []repository.RejectedBidRow
	for id, b := range f.db.bids {
		if b.JobID == arg.JobID && id != arg.ExceptBidID && b.Status == domain.BidStatusPending {
			b.Status = domain.BidStatusRejected
			b.UpdatedAt = time.Now()
			f.db.bids[id] = b
			rejected = append(rejected, repository.RejectedBidRow{ID: id, WorkerID: b.WorkerID})
		}
	}
	return rejected, nil
}

func (f *fakeQuerier) CountMultiAcceptedJobs(ctx context.Context) (int64, error) {
	accepted := map[uuid.UUID]int{}
	for _, b := range f.db.bids {
		if b.Status == domain.BidStatusAccepted {
			accepted[b.JobID]++
		}
	}
	var count int64
	for _, n := range accepted {
		if n > 1 {
			count++
		}
	}
	return count, nil
}

func (f *fakeQuerier) CreateProject(ctx context.Context, project *models.Project) error {
	for _, p := range f.db.projects {
		if p.BidID == project.BidID {
			return errors.New("duplicate key value violates unique constraint \"projects_bid_id_key\"")
		}
	}
	project.CreatedAt = time.Now()
	f.db.projects[project.ID] = *project
	return nil
}

func (f *fakeQuerier) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, ok := f.db.projects[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (f *fakeQuerier) GetProjectForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return f.GetProject(ctx, id)
}

func (f *fakeQuerier) GetProjectByBidID(ctx context.Context, bidID uuid.UUID) (*models.Project, error) {
	for _, p := range f.db.projects {
		if p.BidID == bidID {
			p := p
			return &p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeQuerier) UpdateProjectStatus(ctx context.Context, arg repository.UpdateProjectStatusParams) (int64, error) {
	p, ok := f.db.projects[arg.ID]
	if !ok {
		return 0, nil
	}
	p.Status = arg.Status
	f.db.projects[arg.ID] = p
	return 1, nil
}

func (f *fakeQuerier) ListProjectImbalances(ctx context.Context) ([]repository.ProjectImbalanceRow, error) {
	var out []repository.ProjectImbalanceRow
	for id, p := range f.db.projects {
		var escrowIn, paidOut int64
		for _, tx := range f.db.transactions {
			if tx.ProjectID == nil || *tx.ProjectID != id || tx.Status != domain.TxStatusCompleted {
				continue
			}
			switch tx.Type {
			case domain.TxTypeEscrow:
				escrowIn += tx.AmountCentavos
			case domain.TxTypeRelease, domain.TxTypeRefund:
				paidOut += tx.AmountCentavos + tx.FeeCentavos
			}
		}
		held := escrowIn - paidOut
		if held != 0 && held != p.AgreedCentavos {
			out = append(out, repository.ProjectImbalanceRow{
				ProjectID:      id,
				AgreedCentavos: p.AgreedCentavos,
				EscrowIn:       escrowIn,
				PaidOut:        paidOut,
			})
		}
	}
	return out, nil
}

func (f *fakeQuerier) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	for _, existing := range f.db.transactions {
		if existing.ReferenceID == tx.ReferenceID {
			return errors.New("duplicate key value violates unique constraint \"transactions_reference_id_key\"")
		}
	}
	tx.CreatedAt = time.Now()
	f.db.transactions = append(f.db.transactions, *tx)
	return nil
}

func (f *fakeQuerier) GetTransactionByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error) {
	for _, tx := range f.db.transactions {
		if tx.ReferenceID == referenceID {
			tx := tx
			return &tx, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeQuerier) ListTransactionsByAccount(ctx context.Context, arg repository.ListTransactionsByAccountParams) ([]models.Transaction, error) {
	var matched []models.Transaction
	for i := len(f.db.transactions) - 1; i >= 0; i-- {
		tx := f.db.transactions[i]
		if (tx.PayerAccountID != nil && *tx.PayerAccountID == arg.AccountID) ||
			(tx.PayeeAccountID != nil && *tx.PayeeAccountID == arg.AccountID) {
			matched = append(matched, tx)
		}
	}
	if int(arg.Offset) >= len(matched) {
		return nil, nil
	}
	matched = matched[arg.Offset:]
	if int(arg.Limit) < len(matched) {
		matched = matched[:arg.Limit]
	}
	return matched, nil
}

func (f *fakeQuerier) ListTransactionsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range f.db.transactions {
		if tx.ProjectID != nil && *tx.ProjectID == projectID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeQuerier) CreateContract(ctx context.Context, contract *models.Contract) error {
	if f.db.createContractErr != nil {
		return f.db.createContractErr
	}
	contract.CreatedAt = time.Now()
	f.db.contracts[contract.ID] = *contract
	return nil
}

func (f *fakeQuerier) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	c, ok := f.db.contracts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (f *fakeQuerier) GetContractForUpdate(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return f.GetContract(ctx, id)
}

func (f *fakeQuerier) GetContractByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Contract, error) {
	for _, c := range f.db.contracts {
		if c.ProjectID == projectID {
			c := c
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeQuerier) SetContractEmployerSigned(ctx context.Context, arg repository.SetContractSignatureParams) (int64, error) {
	c, ok := f.db.contracts[arg.ID]
	if !ok || c.EmployerSignedAt != nil {
		return 0, nil
	}
	signedAt := arg.SignedAt
	c.EmployerSignedAt = &signedAt
	f.db.contracts[arg.ID] = c
	return 1, nil
}

func (f *fakeQuerier) SetContractWorkerSigned(ctx context.Context, arg repository.SetContractSignatureParams) (int64, error) {
	c, ok := f.db.contracts[arg.ID]
	if !ok || c.WorkerSignedAt != nil {
		return 0, nil
	}
	signedAt := arg.SignedAt
	c.WorkerSignedAt = &signedAt
	f.db.contracts[arg.ID] = c
	return 1, nil
}

func (f *fakeQuerier) UpdateContractStatus(ctx context.Context, arg repository.UpdateContractStatusParams) (int64, error) {
	c, ok := f.db.contracts[arg.ID]
	if !ok {
		return 0, nil
	}
	c.Status = arg.Status
	f.db.contracts[arg.ID] = c
	return 1, nil
}

func (f *fakeQuerier) CreateNotification(ctx context.Context, n *models.Notification) error {
	if f.db.createNotificationErr != nil {
		return f.db.createNotificationErr
	}
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	f.db.notifications = append(f.db.notifications, *n)
	return nil
}

func (f *fakeQuerier) GetPendingNotifications(ctx context.Context, limit int32) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.db.notifications {
		if n.Status == domain.NotificationStatusPending {
			out = append(out, n)
			if int32(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeQuerier) MarkNotificationSent(ctx context.Context, id uuid.UUID) (int64, error) {
	for i, n := range f.db.notifications {
		if n.ID == id {
			f.db.notifications[i].Status = domain.NotificationStatusSent
			f.db.notifications[i].UpdatedAt = time.Now()
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeQuerier) MarkNotificationFailed(ctx context.Context, arg repository.MarkNotificationFailedParams) (int64, error) {
	for i, n := range f.db.notifications {
		if n.ID == arg.ID {
			f.db.notifications[i].Attempts++
			if f.db.notifications[i].Attempts >= arg.MaxAttempts {
				f.db.notifications[i].Status = domain.NotificationStatusFailed
			} else {
				f.db.notifications[i].Status = domain.NotificationStatusPending
			}
			f.db.notifications[i].UpdatedAt = time.Now()
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeQuerier) GetIdempotencyKey(ctx context.Context, key string) (repository.IdempotencyKeyRow, error) {
	return repository.IdempotencyKeyRow{}, pgx.ErrNoRows
}

func (f *fakeQuerier) ReserveIdempotencyKey(ctx context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKeyRow, error) {
	return repository.IdempotencyKeyRow{}, errors.New("not supported by fake")
}

func (f *fakeQuerier) FinalizeIdempotencyKey(ctx context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKeyRow, error) {
	return repository.IdempotencyKeyRow{}, errors.New("not supported by fake")
}

// fixedClock pins contract dates for deterministic assertions.
type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }
