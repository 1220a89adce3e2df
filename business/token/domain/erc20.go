// Package domain contains the ERC-20 interface and token balance types.
package domain

import (
	"math/big"

	contract "github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/internal/address"
	"github.com/fd1az/dapp-bridge/internal/asset"
)

// Contract members.
const (
	MethodName      = "name"
	MethodSymbol    = "symbol"
	MethodDecimals  = "decimals"
	MethodBalanceOf = "balanceOf"
	MethodTransfer  = "transfer"
	EventTransfer   = "Transfer"
)

const abiJSON = `[
	{"type":"function","name":"name","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"type":"function","name":"symbol","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"},
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}]}
]`

// Interface is the ERC-20 subset the dashboard uses.
var Interface = contract.MustParseInterface("ERC20", abiJSON)

// TokenInfo is a holder's balance together with the token metadata.
type TokenInfo struct {
	Token     address.Address
	Holder    address.Address
	Name      string
	Symbol    string
	Decimals  uint8
	Raw       *big.Int
	Formatted string // Raw scaled by Decimals, e.g. "12.5"
}

// NewTokenInfo builds the info for holder from a balance amount.
func NewTokenInfo(token, holder address.Address, a *asset.Asset, balance asset.Amount) TokenInfo {
	return TokenInfo{
		Token:     token,
		Holder:    holder,
		Name:      a.Name(),
		Symbol:    a.Symbol(),
		Decimals:  a.Decimals(),
		Raw:       balance.Raw(),
		Formatted: balance.Formatted(),
	}
}

// String renders the balance with its symbol.
func (i TokenInfo) String() string {
	return i.Formatted + " " + i.Symbol
}
