// Package domain contains the core domain types for the contract context.
package domain

// BindingMode selects the connection a proxy is bound to.
type BindingMode int

const (
	ReadOnly BindingMode = iota
	Writable
)

// String implements fmt.Stringer.
func (m BindingMode) String() string {
	switch m {
	case ReadOnly:
		return "read_only"
	case Writable:
		return "writable"
	default:
		return "unknown"
	}
}

// Valid reports whether m is a known mode.
func (m BindingMode) Valid() bool {
	return m == ReadOnly || m == Writable
}
