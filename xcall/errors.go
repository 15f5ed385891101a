package xcall

import "errors"

var (
	// ErrUnauthorized is returned when a message arrives from a connection the call did not name
	ErrUnauthorized = errors.New("unauthorized")
	// ErrOnlyAdmin is returned for admin messages from other senders
	ErrOnlyAdmin = errors.New("only admin")
	// ErrAdminAddressCannotBeNull is returned when setting an empty admin
	ErrAdminAddressCannotBeNull = errors.New("admin address cannot be null")
	// ErrInsufficientFunds is returned when the attached funds do not cover the fees
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrMaxDataSizeExceeded is returned for call payloads above MaxDataSize
	ErrMaxDataSizeExceeded = errors.New("max data size exceeded")
	// ErrMaxRollbackSizeExceeded is returned for rollback payloads above MaxRollbackSize
	ErrMaxRollbackSizeExceeded = errors.New("max rollback size exceeded")
	// ErrRollbackNotPossible is returned when a non contract asks for a rollback
	ErrRollbackNotPossible = errors.New("rollback not possible")
	// ErrRollbackNotEnabled is returned when rolling back a call that did not fail
	ErrRollbackNotEnabled = errors.New("rollback not enabled")
	// ErrInvalidRequestId is returned for unknown request ids
	ErrInvalidRequestId = errors.New("invalid request id") //nolint:revive,stylecheck
	// ErrInvalidSequenceId is returned for unknown sequence numbers
	ErrInvalidSequenceId = errors.New("invalid sequence id") //nolint:revive,stylecheck
	// ErrDuplicateMessage is returned when a connection delivers the same message twice
	ErrDuplicateMessage = errors.New("duplicate message")
	// ErrDataMismatch is returned when the executed data is not the data received
	ErrDataMismatch = errors.New("data mismatch")
	// ErrNoDefaultConnection is returned when no sources are given and the network has no default
	ErrNoDefaultConnection = errors.New("no default connection")
	// ErrInvalidMessage is returned for CSMessages that do not decode
	ErrInvalidMessage = errors.New("invalid message")
	// ErrInvalidReplyID is returned for replies the dispatcher did not ask for
	ErrInvalidReplyID = errors.New("invalid reply id")
)
