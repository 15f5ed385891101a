package connection

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned for IBC callbacks that do not come from the ibc host
	ErrUnauthorized = errors.New("unauthorized")
	// ErrOnlyXcallHandler is returned when SendMessage does not come from the xcall host
	ErrOnlyXcallHandler = errors.New("only xcall handler")
	// ErrOnlyAdmin is returned for admin messages from other senders
	ErrOnlyAdmin = errors.New("only admin")
	// ErrAdminAddressCannotBeNull is returned when setting an empty address
	ErrAdminAddressCannotBeNull = errors.New("admin address cannot be null")
	// ErrInsufficientFunds is returned when the attached funds do not cover the fee
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnOrderedChannel is returned for ordered channels
	ErrUnOrderedChannel = errors.New("only unordered channels are supported")
	// ErrConnectionNotConfigured is returned for channels on connections the admin did not configure
	ErrConnectionNotConfigured = errors.New("connection not configured")
	// ErrChannelNotFound is returned when no channel is open toward a network
	ErrChannelNotFound = errors.New("channel not found")
	// ErrChannelExists is returned when opening a second channel toward a network
	ErrChannelExists = errors.New("channel exists")
	// ErrChannelClosed is returned when sending on a closed channel
	ErrChannelClosed = errors.New("channel closed")
	// ErrIncomingPacketNotFound is returned when answering a request that was not received
	ErrIncomingPacketNotFound = errors.New("incoming packet not found")
	// ErrInvalidMessage is returned for packet bodies that do not decode
	ErrInvalidMessage = errors.New("invalid message")
	// ErrNoFeesToClaim is returned when the caller has nothing to claim
	ErrNoFeesToClaim = errors.New("no fees to claim")
	// ErrInvalidReplyID is returned for replies the connection did not ask for
	ErrInvalidReplyID = errors.New("invalid reply id")
)

// InvalidVersionError is returned when a channel does not speak Version
type InvalidVersionError struct {
	Actual   string
	Expected string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version: %q, expected %q", e.Actual, e.Expected)
}
