package providers

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/anz-io/smart-order-router/quoter/cache"
	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/multicall"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

// Some older tokens (MKR, SAI) return bytes32 instead of string
const erc20Bytes32ABIJSON = `[
  {"inputs":[],"name":"symbol","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"name","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"}
]`

var (
	ERC20ABI        = multicall.MustParseABI(erc20ABIJSON)
	erc20Bytes32ABI = multicall.MustParseABI(erc20Bytes32ABIJSON)
)

// TokenAccessor is the result of a token lookup
type TokenAccessor struct {
	byAddress map[string]*chain.Token
	bySymbol  map[string]*chain.Token
}

func NewTokenAccessor(tokens ...*chain.Token) *TokenAccessor {
	a := &TokenAccessor{
		byAddress: make(map[string]*chain.Token, len(tokens)),
		bySymbol:  make(map[string]*chain.Token, len(tokens)),
	}
	for _, t := range tokens {
		a.add(t)
	}
	return a
}

func (a *TokenAccessor) add(t *chain.Token) {
	a.byAddress[t.Key()] = t
	if _, taken := a.bySymbol[t.Symbol()]; !taken {
		a.bySymbol[t.Symbol()] = t
	}
}

// ByAddress matches addresses case-insensitively
func (a *TokenAccessor) ByAddress(address string) (*chain.Token, bool) {
	t, ok := a.byAddress[strings.ToLower(address)]
	return t, ok
}

// BySymbol matches symbols exactly
func (a *TokenAccessor) BySymbol(symbol string) (*chain.Token, bool) {
	t, ok := a.bySymbol[symbol]
	return t, ok
}

func (a *TokenAccessor) All() []*chain.Token {
	out := make([]*chain.Token, 0, len(a.byAddress))
	for _, t := range a.byAddress {
		out = append(out, t)
	}
	return out
}

// TokenProvider looks tokens up by address or symbol. Identifiers it cannot resolve
// are absent from the accessor rather than reported as errors.
type TokenProvider interface {
	GetTokens(ctx context.Context, identifiers []string) (*TokenAccessor, error)
}

// TokenListProvider answers from a token list, restricted to one chain
type TokenListProvider struct {
	chainID   chain.ChainID
	byAddress map[string]*chain.Token
	bySymbol  map[string]*chain.Token
}

func NewTokenListProvider(chainID chain.ChainID, list *TokenList) *TokenListProvider {
	p := &TokenListProvider{
		chainID:   chainID,
		byAddress: make(map[string]*chain.Token),
		bySymbol:  make(map[string]*chain.Token),
	}
	if list == nil {
		return p
	}
	for _, info := range list.Tokens {
		if chain.ChainID(info.ChainID) != chainID {
			continue
		}
		t := chain.NewToken(chainID, common.HexToAddress(info.Address), info.Decimals, info.Symbol, info.Name)
		p.byAddress[t.Key()] = t
		if _, taken := p.bySymbol[t.Symbol()]; !taken {
			p.bySymbol[t.Symbol()] = t
		}
	}
	return p
}

func (p *TokenListProvider) GetTokens(_ context.Context, identifiers []string) (*TokenAccessor, error) {
	acc := NewTokenAccessor()
	for _, id := range identifiers {
		if t, ok := p.byAddress[strings.ToLower(id)]; ok {
			acc.add(t)
			continue
		}
		if t, ok := p.bySymbol[id]; ok {
			acc.add(t)
		}
	}
	return acc, nil
}

// OnChainTokenProvider reads ERC-20 metadata through multicall. Only addresses are resolvable.
type OnChainTokenProvider struct {
	chainID   chain.ChainID
	multicall *multicall.Provider
}

func NewOnChainTokenProvider(chainID chain.ChainID, mc *multicall.Provider) *OnChainTokenProvider {
	return &OnChainTokenProvider{chainID: chainID, multicall: mc}
}

func (p *OnChainTokenProvider) GetTokens(ctx context.Context, identifiers []string) (*TokenAccessor, error) {
	acc := NewTokenAccessor()
	var addresses []common.Address
	for _, id := range identifiers {
		if common.IsHexAddress(id) {
			addresses = append(addresses, common.HexToAddress(id))
		}
	}
	if len(addresses) == 0 {
		return acc, nil
	}

	decimalsData, _ := ERC20ABI.Pack("decimals")
	symbolData, _ := ERC20ABI.Pack("symbol")
	nameData, _ := ERC20ABI.Pack("name")

	calls := make([]multicall.Call, 0, len(addresses)*3)
	for _, addr := range addresses {
		calls = append(calls,
			multicall.Call{Target: addr, AllowFailure: true, CallData: decimalsData},
			multicall.Call{Target: addr, AllowFailure: true, CallData: symbolData},
			multicall.Call{Target: addr, AllowFailure: true, CallData: nameData},
		)
	}
	results, err := p.multicall.Aggregate(ctx, calls, nil)
	if err != nil {
		return nil, fmt.Errorf("load token metadata: %w", err)
	}

	for i, addr := range addresses {
		dec, sym, name := results[3*i], results[3*i+1], results[3*i+2]
		if !dec.Success || !sym.Success {
			log.Debug().Str("address", addr.Hex()).Msg("Token metadata unavailable on-chain")
			continue
		}
		decimals, err := unpackDecimals(dec.ReturnData)
		if err != nil {
			log.Debug().Err(err).Str("address", addr.Hex()).Msg("Token decimals decode failed")
			continue
		}
		symbol := unpackText("symbol", sym.ReturnData)
		if symbol == "" {
			continue
		}
		tokenName := ""
		if name.Success {
			tokenName = unpackText("name", name.ReturnData)
		}
		acc.add(chain.NewToken(p.chainID, addr, decimals, symbol, tokenName))
	}
	return acc, nil
}

func unpackDecimals(raw []byte) (uint8, error) {
	out, err := ERC20ABI.Unpack("decimals", raw)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("unexpected decimals output length %d", len(out))
	}
	switch v := out[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > math.MaxUint8 {
			return 0, fmt.Errorf("decimals %s out of range", v)
		}
		return uint8(v.Uint64()), nil
	}
	return 0, fmt.Errorf("unexpected decimals type %T", out[0])
}

func unpackText(method string, raw []byte) string {
	if out, err := ERC20ABI.Unpack(method, raw); err == nil && len(out) == 1 {
		if s, ok := out[0].(string); ok {
			return s
		}
	}
	if out, err := erc20Bytes32ABI.Unpack(method, raw); err == nil && len(out) == 1 {
		if b, ok := out[0].([32]byte); ok {
			return strings.TrimRight(string(b[:]), "\x00")
		}
	}
	return ""
}

// CachingTokenProviderWithFallback checks the token cache, then the primary provider,
// then the fallback for whatever is still missing. Hits from either provider are cached
// by address; symbol lookups always go to the providers.
type CachingTokenProviderWithFallback struct {
	cache    *cache.Cache[*chain.Token]
	primary  TokenProvider
	fallback TokenProvider
}

func NewCachingTokenProviderWithFallback(c *cache.Cache[*chain.Token], primary, fallback TokenProvider) *CachingTokenProviderWithFallback {
	return &CachingTokenProviderWithFallback{cache: c, primary: primary, fallback: fallback}
}

func (p *CachingTokenProviderWithFallback) GetTokens(ctx context.Context, identifiers []string) (*TokenAccessor, error) {
	acc := NewTokenAccessor()
	var remaining []string
	for _, id := range identifiers {
		if common.IsHexAddress(id) {
			if t, ok := p.cache.Get(id); ok {
				acc.add(t)
				continue
			}
		}
		remaining = append(remaining, id)
	}
	if len(remaining) == 0 {
		return acc, nil
	}

	remaining, err := p.collect(ctx, p.primary, remaining, acc)
	if err != nil {
		return nil, err
	}
	if len(remaining) > 0 && p.fallback != nil {
		if _, err := p.collect(ctx, p.fallback, remaining, acc); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (p *CachingTokenProviderWithFallback) collect(ctx context.Context, provider TokenProvider, ids []string, acc *TokenAccessor) ([]string, error) {
	found, err := provider.GetTokens(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		t, ok := found.ByAddress(id)
		if !ok {
			t, ok = found.BySymbol(id)
		}
		if !ok {
			missing = append(missing, id)
			continue
		}
		acc.add(t)
		p.cache.Set(t, t.Key())
	}
	return missing, nil
}

// NewTokenCache builds the token cache. Entries are shared by reference.
func NewTokenCache(chainID uint64, ttl time.Duration) *cache.Cache[*chain.Token] {
	return cache.New[*chain.Token](chainID, ttl)
}
