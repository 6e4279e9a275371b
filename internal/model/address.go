package model

import (
	"errors"
	"net/netip"
	"strings"
)

// Address errors.
var (
	// ErrEmptyAddress is returned when the address is empty.
	ErrEmptyAddress = errors.New("address cannot be empty")
	// ErrInvalidAddress is returned when the address is not an IPv4 address.
	ErrInvalidAddress = errors.New("invalid IPv4 address")
)

// Address is an immutable IPv4 host address observed on the wire.
type Address struct {
	addr netip.Addr
}

// NewAddress parses and normalizes a dotted-quad IPv4 address.
// An optional ":port" suffix and an "ftp://" scheme are accepted and dropped.
func NewAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, ErrEmptyAddress
	}

	s = strings.TrimPrefix(s, "ftp://")
	if idx := strings.Index(s, "/"); idx != -1 {
		s = s[:idx]
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		s = ap.Addr().String()
	}

	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return Address{}, ErrInvalidAddress
	}

	return Address{addr: addr}, nil
}

// MustNewAddress creates an Address or panics if invalid.
// Use only for known-valid addresses in tests or initialization.
func MustNewAddress(s string) Address {
	a, err := NewAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes builds an Address from a 4-byte protocol address as
// carried in ARP packets. It returns false for any other length.
func AddressFromBytes(b []byte) (Address, bool) {
	addr, ok := netip.AddrFromSlice(b)
	if !ok || !addr.Is4() {
		return Address{}, false
	}
	return Address{addr: addr}, true
}

// String returns the dotted-quad form.
func (a Address) String() string {
	if !a.addr.IsValid() {
		return ""
	}
	return a.addr.String()
}

// IsZero reports whether the Address is the zero value.
func (a Address) IsZero() bool {
	return !a.addr.IsValid()
}

// IsUnspecified reports whether the address is 0.0.0.0, which ARP probes
// use as their sender address.
func (a Address) IsUnspecified() bool {
	return a.addr.IsUnspecified()
}

// HostPort returns "addr:port".
func (a Address) HostPort(port uint16) string {
	return netip.AddrPortFrom(a.addr, port).String()
}
