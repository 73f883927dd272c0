package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to the migrated test database named by DATABASE_URL
// and wipes application tables. Tests are skipped when the variable is unset
// so the hermetic suite stays runnable without postgres.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(),
		`TRUNCATE idempotency_keys, notifications, contracts, transactions, projects, bids, jobs, accounts, users CASCADE`)
	require.NoError(t, err)

	seedSystemAccounts(t, pool)
	return pool
}

func seedSystemAccounts(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, username, email, role) VALUES ($1, 'system', 'system@hanapgigs.com', 'system')`,
		domain.SystemUserID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO accounts (id, user_id, balance_centavos, currency) VALUES ($1, $2, 0, 'PHP')`,
		domain.PlatformFeeAccountID, domain.SystemUserID)
	require.NoError(t, err)
}

func seedUser(t *testing.T, q Querier, role string) *models.User {
	t.Helper()
	id := uuid.New()
	user := &models.User{
		ID:       id,
		Username: fmt.Sprintf("%s-%s", role, id.String()[:8]),
		Email:    fmt.Sprintf("%s@example.com", id.String()[:8]),
		Role:     role,
	}
	require.NoError(t, q.CreateUser(context.Background(), user))
	return user
}

func seedAccount(t *testing.T, q Querier, userID uuid.UUID, balance int64) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:              uuid.New(),
		UserID:          userID,
		BalanceCentavos: balance,
		Currency:        domain.CurrencyPHP,
	}
	require.NoError(t, q.CreateAccount(context.Background(), account))
	return account
}

func TestDebitAccountBalanceGuard(t *testing.T) {
	pool := setupTestDB(t)
	q := New(pool)
	ctx := context.Background()

	user := seedUser(t, q, "employer")
	account := seedAccount(t, q, user.ID, 10000)

	// A debit within the balance succeeds.
	rows, err := q.DebitAccountBalance(ctx, AdjustAccountBalanceParams{AmountCentavos: 4000, ID: account.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// One beyond it matches zero rows and leaves the balance alone.
	rows, err = q.DebitAccountBalance(ctx, AdjustAccountBalanceParams{AmountCentavos: 7000, ID: account.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	got, err := q.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), got.BalanceCentavos)
}

func TestRunInTxRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	store := NewStore(pool)
	ctx := context.Background()

	user := seedUser(t, store.Queries(), "employer")
	account := seedAccount(t, store.Queries(), user.ID, 10000)

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(q Querier) error {
		rows, err := q.DebitAccountBalance(ctx, AdjustAccountBalanceParams{AmountCentavos: 5000, ID: account.ID})
		require.NoError(t, err)
		require.Equal(t, int64(1), rows)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Queries().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.BalanceCentavos)
}

func TestRejectPendingBids(t *testing.T) {
	pool := setupTestDB(t)
	q := New(pool)
	ctx := context.Background()

	employer := seedUser(t, q, "employer")
	job := &models.Job{ID: uuid.New(), EmployerID: employer.ID, Title: "t", DurationDays: 7, Status: domain.JobStatusOpen}
	require.NoError(t, q.CreateJob(ctx, job))

	var bids []*models.Bid
	for i := 0; i < 3; i++ {
		worker := seedUser(t, q, "worker")
		bid := &models.Bid{ID: uuid.New(), JobID: job.ID, WorkerID: worker.ID, AmountCentavos: 10000, Status: domain.BidStatusPending}
		require.NoError(t, q.CreateBid(ctx, bid))
		bids = append(bids, bid)
	}

	rejected, err := q.RejectPendingBids(ctx, RejectPendingBidsParams{JobID: job.ID, ExceptBidID: bids[0].ID})
	require.NoError(t, err)
	assert.Len(t, rejected, 2)

	// Re-running matches nothing.
	rejected, err = q.RejectPendingBids(ctx, RejectPendingBidsParams{JobID: job.ID, ExceptBidID: bids[0].ID})
	require.NoError(t, err)
	assert.Empty(t, rejected)

	kept, err := q.GetBid(ctx, bids[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusPending, kept.Status)
}

func TestOneAcceptedBidPerJobIndex(t *testing.T) {
	pool := setupTestDB(t)
	q := New(pool)
	ctx := context.Background()

	employer := seedUser(t, q, "employer")
	job := &models.Job{ID: uuid.New(), EmployerID: employer.ID, Title: "t", DurationDays: 7, Status: domain.JobStatusOpen}
	require.NoError(t, q.CreateJob(ctx, job))

	first := &models.Bid{ID: uuid.New(), JobID: job.ID, WorkerID: seedUser(t, q, "worker").ID, AmountCentavos: 10000, Status: domain.BidStatusAccepted}
	require.NoError(t, q.CreateBid(ctx, first))

	second := &models.Bid{ID: uuid.New(), JobID: job.ID, WorkerID: seedUser(t, q, "worker").ID, AmountCentavos: 12000, Status: domain.BidStatusAccepted}
	err := q.CreateBid(ctx, second)
	require.Error(t, err)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "23505", pgErr.Code)
}

func TestTransactionReferenceUnique(t *testing.T) {
	pool := setupTestDB(t)
	q := New(pool)
	ctx := context.Background()

	user := seedUser(t, q, "employer")
	account := seedAccount(t, q, user.ID, 0)

	payee := account.ID
	tx := &models.Transaction{
		ID:             uuid.New(),
		PayeeAccountID: &payee,
		AmountCentavos: 10000,
		Type:           domain.TxTypeDeposit,
		Status:         domain.TxStatusCompleted,
		ReferenceID:    "dep-unique",
	}
	require.NoError(t, q.CreateTransaction(ctx, tx))

	dup := *tx
	dup.ID = uuid.New()
	err := q.CreateTransaction(ctx, &dup)
	require.Error(t, err)

	got, err := q.GetTransactionByReferenceID(ctx, "dep-unique")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)

	_, err = q.GetTransactionByReferenceID(ctx, "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestContractSignatureGuards(t *testing.T) {
	pool := setupTestDB(t)
	store := NewStore(pool)
	q := store.Queries()
	ctx := context.Background()

	employer := seedUser(t, q, "employer")
	worker := seedUser(t, q, "worker")
	job := &models.Job{ID: uuid.New(), EmployerID: employer.ID, Title: "t", DurationDays: 7, Status: domain.JobStatusInProgress}
	require.NoError(t, q.CreateJob(ctx, job))
	bid := &models.Bid{ID: uuid.New(), JobID: job.ID, WorkerID: worker.ID, AmountCentavos: 50000, Status: domain.BidStatusAccepted}
	require.NoError(t, q.CreateBid(ctx, bid))
	project := &models.Project{
		ID: uuid.New(), JobID: job.ID, BidID: bid.ID,
		EmployerID: employer.ID, WorkerID: worker.ID,
		AgreedCentavos: 50000, FeeCentavos: 2500, NetCentavos: 47500,
		Status: domain.ProjectStatusPendingContract,
	}
	require.NoError(t, q.CreateProject(ctx, project))

	contract := &models.Contract{
		ID: uuid.New(), ProjectID: project.ID, BidID: bid.ID,
		AgreedCentavos: 50000,
		StartDate:      project.CreatedAt,
		EndDate:        project.CreatedAt.AddDate(0, 0, 7),
		Status:         domain.ContractStatusPendingSignatures,
	}
	require.NoError(t, q.CreateContract(ctx, contract))

	now := project.CreatedAt
	rows, err := q.SetContractEmployerSigned(ctx, SetContractSignatureParams{SignedAt: now, ID: contract.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	// The IS NULL guard makes a second signature a zero-row update.
	rows, err = q.SetContractEmployerSigned(ctx, SetContractSignatureParams{SignedAt: now, ID: contract.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestNotificationOutboxLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	store := NewStore(pool)
	q := store.Queries()
	ctx := context.Background()

	worker := seedUser(t, q, "worker")
	n := &models.Notification{
		ID:        uuid.New(),
		UserID:    worker.ID,
		EventType: domain.EventContractReady,
		Payload:   []byte(`{"contract_id":"x"}`),
		Status:    domain.NotificationStatusPending,
	}
	require.NoError(t, q.CreateNotification(ctx, n))

	// Claiming happens under a transaction since the query locks rows.
	err := store.RunInTx(ctx, func(q Querier) error {
		batch, err := q.GetPendingNotifications(ctx, 10)
		if err != nil {
			return err
		}
		require.Len(t, batch, 1)

		// Two failures against MaxAttempts=2 park the row.
		for i := 0; i < 2; i++ {
			if _, err := q.MarkNotificationFailed(ctx, MarkNotificationFailedParams{ID: n.ID, MaxAttempts: 2}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = store.RunInTx(ctx, func(q Querier) error {
		batch, err := q.GetPendingNotifications(ctx, 10)
		if err != nil {
			return err
		}
		assert.Empty(t, batch)
		return nil
	})
	require.NoError(t, err)
}

func TestIdempotencyKeyReserveFinalize(t *testing.T) {
	pool := setupTestDB(t)
	q := New(pool)
	ctx := context.Background()

	_, err := q.GetIdempotencyKey(ctx, "key-1")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	row, err := q.ReserveIdempotencyKey(ctx, ReserveIdempotencyKeyParams{
		IdempotencyKey: "key-1",
		RequestHash:    "abc",
		Method:         "POST",
		Path:           "/v1/accounts/deposits",
	})
	require.NoError(t, err)
	assert.True(t, row.InProgress)

	row, err = q.FinalizeIdempotencyKey(ctx, FinalizeIdempotencyKeyParams{
		IdempotencyKey: "key-1",
		RequestHash:    "abc",
		ResponseStatus: 201,
		ResponseBody:   []byte(`{"ok":true}`),
		ContentType:    "application/json",
	})
	require.NoError(t, err)
	assert.False(t, row.InProgress)
	assert.Equal(t, 201, int(row.ResponseStatus))
}
