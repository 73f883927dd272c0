package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"` // "employer", "worker", "admin", "system"
	CreatedAt time.Time `json:"created_at"`
}

// Account holds a user's escrow balance. The balance is mutated only by
// ledger operations running under an ambient transaction.
type Account struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	BalanceCentavos int64     `json:"balance_centavos"`
	Currency        string    `json:"currency"`
	CreatedAt       time.Time `json:"created_at"`
}

type Job struct {
	ID           uuid.UUID        `json:"id"`
	EmployerID   uuid.UUID        `json:"employer_id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	DurationDays int32            `json:"duration_days"`
	Status       domain.JobStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

type Bid struct {
	ID             uuid.UUID        `json:"id"`
	JobID          uuid.UUID        `json:"job_id"`
	WorkerID       uuid.UUID        `json:"worker_id"`
	AmountCentavos int64            `json:"amount_centavos"`
	CoverNote      string           `json:"cover_note,omitempty"`
	Status         domain.BidStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Project is created exactly once per accepted bid and owns the financial
// record of the engagement.
type Project struct {
	ID             uuid.UUID            `json:"id"`
	JobID          uuid.UUID            `json:"job_id"`
	BidID          uuid.UUID            `json:"bid_id"`
	EmployerID     uuid.UUID            `json:"employer_id"`
	WorkerID       uuid.UUID            `json:"worker_id"`
	AgreedCentavos int64                `json:"agreed_centavos"`
	FeeCentavos    int64                `json:"fee_centavos"`
	NetCentavos    int64                `json:"net_centavos"`
	Status         domain.ProjectStatus `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Transaction is an immutable ledger entry. Payer/payee are nil when funds
// move between an account and project escrow rather than between accounts.
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	ProjectID      *uuid.UUID      `json:"project_id,omitempty"`
	PayerAccountID *uuid.UUID      `json:"payer_account_id,omitempty"`
	PayeeAccountID *uuid.UUID      `json:"payee_account_id,omitempty"`
	AmountCentavos int64           `json:"amount_centavos"`
	FeeCentavos    int64           `json:"fee_centavos"`
	Type           domain.TxType   `json:"type"`
	Status         domain.TxStatus `json:"status"`
	ReferenceID    string          `json:"reference_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Contract struct {
	ID               uuid.UUID             `json:"id"`
	ProjectID        uuid.UUID             `json:"project_id"`
	BidID            uuid.UUID             `json:"bid_id"`
	AgreedCentavos   int64                 `json:"agreed_centavos"`
	StartDate        time.Time             `json:"start_date"`
	EndDate          time.Time             `json:"end_date"`
	EmployerSignedAt *time.Time            `json:"employer_signed_at,omitempty"`
	WorkerSignedAt   *time.Time            `json:"worker_signed_at,omitempty"`
	Status           domain.ContractStatus `json:"status"`
	CreatedAt        time.Time             `json:"created_at"`
}

// Notification is an outbox row dispatched to the notification sink after
// the settlement transaction commits.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	EventType string    `json:"event_type"`
	Payload   []byte    `json:"payload"`
	Status    string    `json:"status"`
	Attempts  int32     `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
