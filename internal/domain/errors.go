package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the settlement workflow. Handlers translate
// these into RFC 7807 responses; none of them are retried automatically.
var (
	ErrUnauthorized    = errors.New("actor does not own this resource")
	ErrInvalidBidState = errors.New("bid is not in a state that allows this transition")
	ErrJobNotOpen      = errors.New("job is not open for acceptance")

	ErrBidNotFound      = errors.New("bid not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrAccountNotFound  = errors.New("account not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrContractNotFound = errors.New("contract not found")

	ErrInvalidProjectState  = errors.New("project is not in a state that allows this operation")
	ErrInvalidContractState = errors.New("contract is not in a state that allows this operation")
	ErrAlreadySigned        = errors.New("party has already signed this contract")
	ErrDepositBelowMinimum  = errors.New("deposit amount is below the platform minimum")
	ErrReferenceInUse       = errors.New("reference id already belongs to a different transaction")
)

// InsufficientFundsError is a recoverable, user-actionable condition. It
// carries the amounts the UI needs to prompt a top-up.
type InsufficientFundsError struct {
	RequiredCentavos int64
	CurrentCentavos  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient escrow balance: required %s, available %s",
		NewMoney(e.RequiredCentavos), NewMoney(e.CurrentCentavos))
}

// IsInsufficientFunds reports whether err wraps an InsufficientFundsError.
func IsInsufficientFunds(err error) (*InsufficientFundsError, bool) {
	var ife *InsufficientFundsError
	if errors.As(err, &ife) {
		return ife, true
	}
	return nil, false
}
