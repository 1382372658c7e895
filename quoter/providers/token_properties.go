package providers

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/anz-io/smart-order-router/quoter/cache"
	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/multicall"
	"github.com/ethereum/go-ethereum/common"
)

const feeDetectorABIJSON = `[
  {"inputs":[
    {"internalType":"address","name":"token","type":"address"},
    {"internalType":"address","name":"baseToken","type":"address"},
    {"internalType":"uint256","name":"amountToBorrow","type":"uint256"}],
   "name":"validate","outputs":[
    {"internalType":"uint256","name":"buyFeeBps","type":"uint256"},
    {"internalType":"uint256","name":"sellFeeBps","type":"uint256"}],
   "stateMutability":"nonpayable","type":"function"}
]`

// FeeDetectorABI is the fee-on-transfer detector. validate flash-borrows the token from its
// V2 pair against baseToken and reports the transfer tax in each direction.
var FeeDetectorABI = multicall.MustParseABI(feeDetectorABIJSON)

// DefaultFeeDetectorAddress is where the detector is deployed
var DefaultFeeDetectorAddress = common.HexToAddress("0x19C97dc2a25845C7f9d1d519c8C2d4809c58b43f")

// amountToFlashBorrow is small enough for any pair holding the token
var amountToFlashBorrow = big.NewInt(100_000)

// TokenProperties describes how a token behaves on transfer
type TokenProperties struct {
	Address    common.Address `json:"address"`
	BuyFeeBps  *big.Int       `json:"buyFeeBps"`
	SellFeeBps *big.Int       `json:"sellFeeBps"`
}

// FeeOnTransfer reports whether either direction is taxed
func (p *TokenProperties) FeeOnTransfer() bool {
	return (p.BuyFeeBps != nil && p.BuyFeeBps.Sign() > 0) || (p.SellFeeBps != nil && p.SellFeeBps.Sign() > 0)
}

// TokenPropertiesProvider reports transfer fees. Tokens the detector cannot validate are
// absent from the result.
type TokenPropertiesProvider interface {
	GetTokensProperties(ctx context.Context, tokens []common.Address, blockNumber uint64) (map[common.Address]*TokenProperties, error)
}

// OnChainTokenPropertiesProvider runs the fee detector for every token in one multicall
type OnChainTokenPropertiesProvider struct {
	multicall *multicall.Provider
	detector  common.Address
	baseToken common.Address
}

// NewOnChainTokenPropertiesProvider validates against the chain's wrapped native token.
// A zero detector address selects the default deployment.
func NewOnChainTokenPropertiesProvider(chainID chain.ChainID, mc *multicall.Provider, detector common.Address) (*OnChainTokenPropertiesProvider, error) {
	native, err := chain.Native(chainID)
	if err != nil {
		return nil, err
	}
	if detector == (common.Address{}) {
		detector = DefaultFeeDetectorAddress
	}
	return &OnChainTokenPropertiesProvider{
		multicall: mc,
		detector:  detector,
		baseToken: native.Wrapped().Address(),
	}, nil
}

func (p *OnChainTokenPropertiesProvider) GetTokensProperties(ctx context.Context, tokens []common.Address, blockNumber uint64) (map[common.Address]*TokenProperties, error) {
	props := make(map[common.Address]*TokenProperties, len(tokens))
	calls := make([]multicall.Call, 0, len(tokens))
	var targets []common.Address
	for _, token := range tokens {
		// the base token cannot be borrowed against itself
		if token == p.baseToken {
			props[token] = &TokenProperties{Address: token, BuyFeeBps: new(big.Int), SellFeeBps: new(big.Int)}
			continue
		}
		data, err := FeeDetectorABI.Pack("validate", token, p.baseToken, amountToFlashBorrow)
		if err != nil {
			return nil, fmt.Errorf("pack validate: %w", err)
		}
		calls = append(calls, multicall.Call{Target: p.detector, AllowFailure: true, CallData: data})
		targets = append(targets, token)
	}
	if len(calls) == 0 {
		return props, nil
	}

	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}
	results, err := p.multicall.Aggregate(ctx, calls, block)
	if err != nil {
		return nil, fmt.Errorf("detect token fees: %w", err)
	}

	for i, token := range targets {
		if !results[i].Success {
			log.Debug().Str("token", token.Hex()).Msg("Fee detection reverted, token properties unknown")
			continue
		}
		out, err := FeeDetectorABI.Unpack("validate", results[i].ReturnData)
		if err != nil || len(out) != 2 {
			log.Debug().Err(err).Str("token", token.Hex()).Msg("Fee detection decode failed")
			continue
		}
		buy, ok0 := out[0].(*big.Int)
		sell, ok1 := out[1].(*big.Int)
		if !ok0 || !ok1 {
			continue
		}
		props[token] = &TokenProperties{Address: token, BuyFeeBps: buy, SellFeeBps: sell}
	}
	return props, nil
}

// CachingTokenPropertiesProvider keeps detected fees per token. Unknown tokens are not
// cached and are retried on the next request.
type CachingTokenPropertiesProvider struct {
	inner TokenPropertiesProvider
	cache *cache.Cache[*TokenProperties]
}

func NewCachingTokenPropertiesProvider(inner TokenPropertiesProvider, c *cache.Cache[*TokenProperties]) *CachingTokenPropertiesProvider {
	return &CachingTokenPropertiesProvider{inner: inner, cache: c}
}

func (p *CachingTokenPropertiesProvider) GetTokensProperties(ctx context.Context, tokens []common.Address, blockNumber uint64) (map[common.Address]*TokenProperties, error) {
	props := make(map[common.Address]*TokenProperties, len(tokens))
	var missing []common.Address
	for _, token := range tokens {
		if cached, ok := p.cache.Get(token.Hex()); ok {
			props[token] = cached
			continue
		}
		missing = append(missing, token)
	}
	if len(missing) == 0 {
		return props, nil
	}

	fetched, err := p.inner.GetTokensProperties(ctx, missing, blockNumber)
	if err != nil {
		return nil, err
	}
	for token, prop := range fetched {
		p.cache.Set(prop, token.Hex())
		props[token] = prop
	}
	return props, nil
}

// NewTokenPropertiesCache builds the token properties cache; it lives as long as pool state
func NewTokenPropertiesCache(chainID uint64, ttl time.Duration) *cache.Cache[*TokenProperties] {
	return cache.New[*TokenProperties](chainID, ttl)
}
