// Package asset models fungible tokens and amounts denominated in them.
package asset

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is the metadata of a token contract. Identity is the contract address;
// the symbol is display metadata only.
type Asset struct {
	address  common.Address
	symbol   string
	name     string
	decimals uint8
}

// NewAsset creates a new Asset with the given parameters.
func NewAsset(address common.Address, symbol string, decimals uint8) *Asset {
	if strings.TrimSpace(symbol) == "" {
		symbol = "???"
	}
	if decimals > 36 {
		panic("asset: suspicious decimals (>36)")
	}

	return &Asset{
		address:  address,
		symbol:   symbol,
		decimals: decimals,
	}
}

// NewAssetWithName creates a new Asset with a human-readable name.
func NewAssetWithName(address common.Address, symbol, name string, decimals uint8) *Asset {
	a := NewAsset(address, symbol, decimals)
	a.name = name
	return a
}

// Address returns the token contract address.
func (a *Asset) Address() common.Address {
	return a.address
}

// Symbol returns the ticker symbol (e.g., "SIM").
func (a *Asset) Symbol() string {
	return a.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Decimals returns the number of decimal places.
func (a *Asset) Decimals() uint8 {
	return a.decimals
}

// String returns a human-readable representation.
func (a *Asset) String() string {
	return a.symbol
}

// Equals compares two Assets by contract address.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.address == other.address
}
