package domain

// System IDs (must match migration 0002).
const (
	SystemUserID = "11111111-1111-1111-1111-111111111111"

	// PlatformFeeAccountID accumulates platform fees withheld at release time.
	PlatformFeeAccountID = "22222222-2222-2222-2222-222222222222"
)

// CurrencyPHP is the only currency the platform settles in. Amounts are
// stored as int64 centavos.
const CurrencyPHP = "PHP"

// TxType classifies ledger transactions.
type TxType string

const (
	TxTypeDeposit TxType = "deposit"
	TxTypeEscrow  TxType = "escrow"
	TxTypeRelease TxType = "release"
	TxTypeRefund  TxType = "refund"
)

// TxStatus is the terminal outcome of a ledger transaction. Rows are written
// once with their final status and never mutated.
type TxStatus string

const (
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
)

// Notification event types emitted by the settlement workflow.
const (
	EventContractReady  = "contract.ready"
	EventBidRejected    = "bid.rejected"
	EventEscrowReleased = "escrow.released"
	EventEscrowRefunded = "escrow.refunded"
	EventContractActive = "contract.active"
)

// Notification delivery states for the outbox worker.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)
