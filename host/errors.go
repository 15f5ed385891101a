package host

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a state item or map entry is missing
	ErrNotFound = errors.New("not found")
	// ErrContractNotFound is returned when a message targets an unknown address
	ErrContractNotFound = errors.New("contract not found")
	// ErrContractExists is returned when instantiating over an existing address
	ErrContractExists = errors.New("contract already exists")
	// ErrInsufficientBalance is returned when a transfer exceeds the sender balance
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount is returned for coin amounts that are not 128 bit unsigned decimals
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnsupportedMessage is returned for sub-messages the host does not route
	ErrUnsupportedMessage = errors.New("unsupported message")
	// ErrCallDepthExceeded is returned when sub-messages nest too deeply
	ErrCallDepthExceeded = errors.New("call depth exceeded")
	// ErrInvalidSignature is returned when a signature cannot be recovered
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrUnknownMessage is returned by contracts for messages they do not handle
	ErrUnknownMessage = errors.New("unknown message")
	// ErrBlockNotFound is returned for heights that have not been sealed
	ErrBlockNotFound = errors.New("block not found")
)

// ContractError is the failure of a contract entry point. The transaction,
// or the failed sub-message branch, is reverted.
type ContractError struct {
	Contract string
	Err      error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract %s: %v", e.Contract, e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}
