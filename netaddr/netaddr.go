// Package netaddr implements the "nid/account" network address used to
// name an account on a specific chain.
package netaddr

import (
	"errors"
	"fmt"
	"strings"
)

const separator = "/"

// ErrInvalidNetworkAddress is returned when a string is not of the form nid/account
var ErrInvalidNetworkAddress = errors.New("invalid network address")

// NetworkAddress is an account qualified by the network it lives on
type NetworkAddress struct {
	nid     string
	account string
}

// New builds a NetworkAddress from its parts
func New(nid, account string) (NetworkAddress, error) {
	if nid == "" || account == "" || strings.Contains(nid, separator) || strings.Contains(account, separator) {
		return NetworkAddress{}, fmt.Errorf("%w: nid %q account %q", ErrInvalidNetworkAddress, nid, account)
	}
	return NetworkAddress{nid: nid, account: account}, nil
}

// Parse decodes the wire form "nid/account". Exactly one separator is required.
func Parse(s string) (NetworkAddress, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 2 { //nolint:gomnd
		return NetworkAddress{}, fmt.Errorf("%w: %q", ErrInvalidNetworkAddress, s)
	}
	return New(parts[0], parts[1])
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) NetworkAddress {
	na, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return na
}

// NetID returns the network identifier
func (na NetworkAddress) NetID() string {
	return na.nid
}

// Account returns the chain local address
func (na NetworkAddress) Account() string {
	return na.account
}

// IsZero reports whether na is the zero value
func (na NetworkAddress) IsZero() bool {
	return na.nid == "" && na.account == ""
}

func (na NetworkAddress) String() string {
	return na.nid + separator + na.account
}

// MarshalText implements encoding.TextMarshaler
func (na NetworkAddress) MarshalText() ([]byte, error) {
	return []byte(na.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (na *NetworkAddress) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*na = parsed
	return nil
}
