package ibccore

import "errors"

var (
	// ErrUnauthorized is returned for admin messages from another sender
	ErrUnauthorized = errors.New("Unauthorized")
	// ErrClientExists is returned when registering a client id twice
	ErrClientExists = errors.New("ClientAlreadyExists")
	// ErrClientNotFound is returned for unknown client ids
	ErrClientNotFound = errors.New("ClientNotFound")
	// ErrConnectionNotFound is returned for unknown connection ids
	ErrConnectionNotFound = errors.New("ConnectionNotFound")
	// ErrChannelNotFound is returned for unknown port and channel pairs
	ErrChannelNotFound = errors.New("ChannelNotFound")
	// ErrInvalidChannelState is returned when a handshake step does not apply
	ErrInvalidChannelState = errors.New("InvalidChannelState")
	// ErrChannelClosed is returned for packets on a closed channel
	ErrChannelClosed = errors.New("ChannelClosed")
	// ErrInvalidPacket is returned for packets that do not match their channel
	ErrInvalidPacket = errors.New("InvalidPacket")
	// ErrInvalidTimeout is returned for packets without any timeout
	ErrInvalidTimeout = errors.New("InvalidTimeout")
	// ErrPacketTimedOut is returned when receiving a packet past its deadline
	ErrPacketTimedOut = errors.New("PacketTimedOut")
	// ErrPacketNotTimedOut is returned for a timeout proof before the deadline
	ErrPacketNotTimedOut = errors.New("PacketNotTimedOut")
	// ErrPacketAlreadyReceived is returned when a packet is delivered twice
	ErrPacketAlreadyReceived = errors.New("PacketAlreadyReceived")
	// ErrPacketTimeoutRecorded is returned when receiving a packet recorded as timed out
	ErrPacketTimeoutRecorded = errors.New("PacketTimeoutRecorded")
	// ErrPacketReceiptNotFound is returned when acknowledging a packet never received
	ErrPacketReceiptNotFound = errors.New("PacketReceiptNotFound")
	// ErrAcknowledgementExists is returned when acknowledging a packet twice
	ErrAcknowledgementExists = errors.New("AcknowledgementExists")
	// ErrPacketCommitmentNotFound is returned for acks or timeouts of unknown packets
	ErrPacketCommitmentNotFound = errors.New("PacketCommitmentNotFound")
)
