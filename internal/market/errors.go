package market

import "errors"

var (
	// ErrValidation reports a malformed request, such as a non-positive quantity.
	ErrValidation = errors.New("invalid request")
	// ErrNotFound reports an unknown user or company.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientFunds reports a buy the player cannot pay for.
	ErrInsufficientFunds = errors.New("insufficient balance")
	// ErrInsufficientShares reports a sell larger than the position, or a buy
	// larger than the remaining public float.
	ErrInsufficientShares = errors.New("not enough shares")
	// ErrConflict reports a transaction the store aborted because of a
	// concurrent writer. The whole operation can be retried.
	ErrConflict = errors.New("transaction conflict")
)
