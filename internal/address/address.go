// Package address canonicalizes externally supplied ledger addresses.
package address

import (
	"bytes"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dapp-bridge/internal/apperror"
)

// Status describes how an address string was resolved.
type Status int

const (
	// StatusCanonical means the input was well-formed (all lower, all upper, or correctly checksummed).
	StatusCanonical Status = iota
	// StatusRecovered means the input was hex of the right length but carried a bad
	// mixed-case checksum. The bytes are trusted, the casing is not.
	StatusRecovered
	// StatusFallback means the input could not be parsed; the value is the lower-cased input.
	StatusFallback
)

// String returns the status label.
func (s Status) String() string {
	switch s {
	case StatusCanonical:
		return "canonical"
	case StatusRecovered:
		return "recovered"
	default:
		return "fallback"
	}
}

// Address is a normalized address. Valid values carry the 20-byte form and the
// EIP-55 rendering. Fallback values carry only the lower-cased input text.
type Address struct {
	raw    common.Address
	text   string
	status Status
}

// Normalize trims and canonicalizes raw. It never panics: invalid input yields
// a fallback value with Valid() == false.
func Normalize(raw string) Address {
	trimmed := strings.TrimSpace(raw)

	if !common.IsHexAddress(trimmed) {
		return Address{text: strings.ToLower(trimmed), status: StatusFallback}
	}

	addr := common.HexToAddress(trimmed)
	canonical := addr.Hex()

	status := StatusCanonical
	if hasMixedCase(trimmed) && strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X") != canonical[2:] {
		status = StatusRecovered
	}

	return Address{raw: addr, text: canonical, status: status}
}

// FromCommon wraps an already parsed address.
func FromCommon(a common.Address) Address {
	return Address{raw: a, text: a.Hex(), status: StatusCanonical}
}

// Zero is the fallback for an empty input.
var Zero = Address{status: StatusFallback}

func hasMixedCase(s string) bool {
	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strings.ToLower(body) != body && strings.ToUpper(body) != body
}

// Valid reports whether the address was canonicalized.
func (a Address) Valid() bool {
	return a.status != StatusFallback
}

// Status returns how the address was resolved.
func (a Address) Status() Status {
	return a.status
}

// Degraded reports whether the value should be logged as not fully validated.
func (a Address) Degraded() bool {
	return a.status != StatusCanonical
}

// Err returns an InvalidAddress error for fallback values, nil otherwise.
func (a Address) Err() error {
	if a.Valid() {
		return nil
	}
	return apperror.New(apperror.CodeInvalidAddress, apperror.WithContext(a.text))
}

// String returns the canonical rendering (or the fallback text).
func (a Address) String() string {
	return a.text
}

// Common returns the 20-byte form. Fallback values return the zero address.
func (a Address) Common() common.Address {
	return a.raw
}

// Bytes returns a copy of the 20-byte form.
func (a Address) Bytes() []byte {
	return a.raw.Bytes()
}

// Equal compares two addresses by bytes when both are valid and by text otherwise.
func (a Address) Equal(b Address) bool {
	if a.Valid() && b.Valid() {
		return bytes.Equal(a.raw[:], b.raw[:])
	}
	return a.text == b.text
}

// Short renders the address as 0x1234...abcd for display.
func (a Address) Short() string {
	if len(a.text) <= 12 {
		return a.text
	}
	return a.text[:6] + "..." + a.text[len(a.text)-4:]
}
