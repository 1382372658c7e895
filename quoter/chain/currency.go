package chain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Currency is either a chain's native currency or an ERC-20 token
type Currency interface {
	ChainID() ChainID
	Decimals() uint8
	Symbol() string
	Name() string
	IsNative() bool
	// Wrapped returns the token that stands in for this currency inside pools
	Wrapped() *Token
	Equals(other Currency) bool
}

// Token is an ERC-20 token. Identity is chain id plus address.
type Token struct {
	chainID  ChainID
	address  common.Address
	decimals uint8
	symbol   string
	name     string
}

func NewToken(chainID ChainID, address common.Address, decimals uint8, symbol, name string) *Token {
	return &Token{
		chainID:  chainID,
		address:  address,
		decimals: decimals,
		symbol:   symbol,
		name:     name,
	}
}

func (t *Token) ChainID() ChainID        { return t.chainID }
func (t *Token) Address() common.Address { return t.address }
func (t *Token) Decimals() uint8         { return t.decimals }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Name() string            { return t.name }
func (t *Token) IsNative() bool          { return false }
func (t *Token) Wrapped() *Token         { return t }

// Key is the lower-cased address, used for cache keys and map lookups
func (t *Token) Key() string {
	return strings.ToLower(t.address.Hex())
}

func (t *Token) Equals(other Currency) bool {
	o, ok := other.(*Token)
	if !ok || o == nil {
		return false
	}
	return t.chainID == o.chainID && t.address == o.address
}

func (t *Token) String() string {
	return fmt.Sprintf("%s(%s)", t.symbol, t.address.Hex())
}

type currencyJSON struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address,omitempty"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	IsNative bool   `json:"isNative"`
}

func (t *Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(currencyJSON{
		ChainID:  uint64(t.chainID),
		Address:  t.address.Hex(),
		Decimals: t.decimals,
		Symbol:   t.symbol,
		Name:     t.name,
	})
}

// NativeCurrency is the gas currency of a chain, e.g. ETH on mainnet
type NativeCurrency struct {
	chainID ChainID
	symbol  string
	name    string
	wrapped *Token
}

// Native returns the native currency of id
func Native(id ChainID) (*NativeCurrency, error) {
	info, ok := supported[id]
	if !ok {
		return nil, fmt.Errorf("chain %d is not supported", uint64(id))
	}
	return &NativeCurrency{
		chainID: id,
		symbol:  info.NativeSymbol,
		name:    info.NativeName,
		wrapped: NewToken(id, info.WrappedNative, 18, info.WrappedSymbol, info.WrappedName),
	}, nil
}

func (n *NativeCurrency) ChainID() ChainID { return n.chainID }
func (n *NativeCurrency) Decimals() uint8  { return 18 }
func (n *NativeCurrency) Symbol() string   { return n.symbol }
func (n *NativeCurrency) Name() string     { return n.name }
func (n *NativeCurrency) IsNative() bool   { return true }
func (n *NativeCurrency) Wrapped() *Token  { return n.wrapped }

func (n *NativeCurrency) Equals(other Currency) bool {
	o, ok := other.(*NativeCurrency)
	return ok && o != nil && o.chainID == n.chainID
}

func (n *NativeCurrency) String() string { return n.symbol }

func (n *NativeCurrency) MarshalJSON() ([]byte, error) {
	return json.Marshal(currencyJSON{
		ChainID:  uint64(n.chainID),
		Decimals: 18,
		Symbol:   n.symbol,
		Name:     n.name,
		IsNative: true,
	})
}
