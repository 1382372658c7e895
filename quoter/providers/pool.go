package providers

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/anz-io/smart-order-router/quoter/cache"
	"github.com/anz-io/smart-order-router/quoter/multicall"
	"github.com/ethereum/go-ethereum/common"
)

const v3PoolABIJSON = `[
  {"inputs":[],"name":"slot0","outputs":[
    {"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
    {"internalType":"int24","name":"tick","type":"int24"},
    {"internalType":"uint16","name":"observationIndex","type":"uint16"},
    {"internalType":"uint16","name":"observationCardinality","type":"uint16"},
    {"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
    {"internalType":"uint8","name":"feeProtocol","type":"uint8"},
    {"internalType":"bool","name":"unlocked","type":"bool"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[],"name":"liquidity","outputs":[
    {"internalType":"uint128","name":"","type":"uint128"}],
   "stateMutability":"view","type":"function"}
]`

const v2PairABIJSON = `[
  {"inputs":[],"name":"getReserves","outputs":[
    {"internalType":"uint112","name":"reserve0","type":"uint112"},
    {"internalType":"uint112","name":"reserve1","type":"uint112"},
    {"internalType":"uint32","name":"blockTimestampLast","type":"uint32"}],
   "stateMutability":"view","type":"function"}
]`

var (
	// V3PoolABI is the read-only slice of the Uniswap V3 pool interface used for pool state
	V3PoolABI = multicall.MustParseABI(v3PoolABIJSON)
	// V2PairABI covers the reserves read of a Uniswap V2 pair
	V2PairABI = multicall.MustParseABI(v2PairABIJSON)
)

const (
	ProtocolV2 = "V2"
	ProtocolV3 = "V3"
)

// PoolState is a pool snapshot at a block. V3 pools fill the price fields, V2 pairs the reserves.
type PoolState struct {
	Address      common.Address `json:"address"`
	Protocol     string         `json:"protocol"`
	SqrtPriceX96 *big.Int       `json:"sqrtPriceX96,omitempty"`
	Tick         int64          `json:"tick"`
	Liquidity    *big.Int       `json:"liquidity,omitempty"`
	Reserve0     *big.Int       `json:"reserve0,omitempty"`
	Reserve1     *big.Int       `json:"reserve1,omitempty"`
	BlockNumber  uint64         `json:"blockNumber"`
}

// HasLiquidity reports whether a swap through the pool can fill at all
func (s *PoolState) HasLiquidity() bool {
	if s.Protocol == ProtocolV2 {
		return s.Reserve0 != nil && s.Reserve0.Sign() > 0 && s.Reserve1 != nil && s.Reserve1.Sign() > 0
	}
	return s.Liquidity != nil && s.Liquidity.Sign() > 0
}

// PoolProvider loads pool snapshots. Pools that cannot be read are left out of the result.
type PoolProvider interface {
	GetPools(ctx context.Context, addresses []common.Address, blockNumber uint64) (map[common.Address]*PoolState, error)
}

// V3PoolProvider reads slot0 and liquidity for each pool in one multicall
type V3PoolProvider struct {
	multicall *multicall.Provider
}

func NewV3PoolProvider(mc *multicall.Provider) *V3PoolProvider {
	return &V3PoolProvider{multicall: mc}
}

func (p *V3PoolProvider) GetPools(ctx context.Context, addresses []common.Address, blockNumber uint64) (map[common.Address]*PoolState, error) {
	if len(addresses) == 0 {
		return map[common.Address]*PoolState{}, nil
	}
	slot0Data, err := V3PoolABI.Pack("slot0")
	if err != nil {
		return nil, fmt.Errorf("pack slot0: %w", err)
	}
	liquidityData, err := V3PoolABI.Pack("liquidity")
	if err != nil {
		return nil, fmt.Errorf("pack liquidity: %w", err)
	}

	calls := make([]multicall.Call, 0, len(addresses)*2)
	for _, addr := range addresses {
		calls = append(calls,
			multicall.Call{Target: addr, AllowFailure: true, CallData: slot0Data},
			multicall.Call{Target: addr, AllowFailure: true, CallData: liquidityData},
		)
	}

	results, err := p.multicall.Aggregate(ctx, calls, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("load pool state: %w", err)
	}

	pools := make(map[common.Address]*PoolState, len(addresses))
	for i, addr := range addresses {
		slot0, liq := results[2*i], results[2*i+1]
		if !slot0.Success || !liq.Success {
			log.Debug().Str("pool", addr.Hex()).Msg("Pool state call failed, skipping")
			continue
		}
		state, err := decodePoolState(addr, slot0.ReturnData, liq.ReturnData)
		if err != nil {
			log.Debug().Err(err).Str("pool", addr.Hex()).Msg("Pool state decode failed, skipping")
			continue
		}
		state.BlockNumber = blockNumber
		pools[addr] = state
	}
	return pools, nil
}

func decodePoolState(addr common.Address, slot0Raw, liquidityRaw []byte) (*PoolState, error) {
	slot0, err := V3PoolABI.Unpack("slot0", slot0Raw)
	if err != nil {
		return nil, fmt.Errorf("unpack slot0: %w", err)
	}
	liquidity, err := V3PoolABI.Unpack("liquidity", liquidityRaw)
	if err != nil {
		return nil, fmt.Errorf("unpack liquidity: %w", err)
	}
	if len(slot0) < 2 || len(liquidity) != 1 {
		return nil, fmt.Errorf("unexpected pool state output lengths %d/%d", len(slot0), len(liquidity))
	}
	sqrtPrice, ok := slot0[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected sqrtPriceX96 type %T", slot0[0])
	}
	tick, ok := slot0[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected tick type %T", slot0[1])
	}
	liq, ok := liquidity[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected liquidity type %T", liquidity[0])
	}
	return &PoolState{
		Address:      addr,
		Protocol:     ProtocolV3,
		SqrtPriceX96: sqrtPrice,
		Tick:         tick.Int64(),
		Liquidity:    liq,
	}, nil
}

// V2PoolProvider reads getReserves for each pair in one multicall
type V2PoolProvider struct {
	multicall *multicall.Provider
}

func NewV2PoolProvider(mc *multicall.Provider) *V2PoolProvider {
	return &V2PoolProvider{multicall: mc}
}

func (p *V2PoolProvider) GetPools(ctx context.Context, addresses []common.Address, blockNumber uint64) (map[common.Address]*PoolState, error) {
	if len(addresses) == 0 {
		return map[common.Address]*PoolState{}, nil
	}
	data, err := V2PairABI.Pack("getReserves")
	if err != nil {
		return nil, fmt.Errorf("pack getReserves: %w", err)
	}
	calls := make([]multicall.Call, len(addresses))
	for i, addr := range addresses {
		calls[i] = multicall.Call{Target: addr, AllowFailure: true, CallData: data}
	}

	results, err := p.multicall.Aggregate(ctx, calls, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("load pair reserves: %w", err)
	}

	pools := make(map[common.Address]*PoolState, len(addresses))
	for i, addr := range addresses {
		if !results[i].Success {
			log.Debug().Str("pair", addr.Hex()).Msg("Pair reserves call failed, skipping")
			continue
		}
		out, err := V2PairABI.Unpack("getReserves", results[i].ReturnData)
		if err != nil || len(out) != 3 {
			log.Debug().Err(err).Str("pair", addr.Hex()).Msg("Pair reserves decode failed, skipping")
			continue
		}
		r0, ok0 := out[0].(*big.Int)
		r1, ok1 := out[1].(*big.Int)
		if !ok0 || !ok1 {
			continue
		}
		pools[addr] = &PoolState{
			Address:     addr,
			Protocol:    ProtocolV2,
			Reserve0:    r0,
			Reserve1:    r1,
			BlockNumber: blockNumber,
		}
	}
	return pools, nil
}

// CompositePoolProvider asks each provider in turn for the pools the earlier ones did not return
type CompositePoolProvider struct {
	providers []PoolProvider
}

func NewCompositePoolProvider(providers ...PoolProvider) *CompositePoolProvider {
	return &CompositePoolProvider{providers: providers}
}

func (p *CompositePoolProvider) GetPools(ctx context.Context, addresses []common.Address, blockNumber uint64) (map[common.Address]*PoolState, error) {
	pools := make(map[common.Address]*PoolState, len(addresses))
	missing := addresses
	for _, provider := range p.providers {
		if len(missing) == 0 {
			break
		}
		found, err := provider.GetPools(ctx, missing, blockNumber)
		if err != nil {
			return nil, err
		}
		var next []common.Address
		for _, addr := range missing {
			if state, ok := found[addr]; ok {
				pools[addr] = state
				continue
			}
			next = append(next, addr)
		}
		missing = next
	}
	return pools, nil
}

// CachingPoolProvider serves snapshots from the chain's pool cache, keyed by pool and block
type CachingPoolProvider struct {
	inner PoolProvider
	cache *cache.Cache[*PoolState]
}

func NewCachingPoolProvider(inner PoolProvider, c *cache.Cache[*PoolState]) *CachingPoolProvider {
	return &CachingPoolProvider{inner: inner, cache: c}
}

func (p *CachingPoolProvider) GetPools(ctx context.Context, addresses []common.Address, blockNumber uint64) (map[common.Address]*PoolState, error) {
	block := strconv.FormatUint(blockNumber, 10)
	pools := make(map[common.Address]*PoolState, len(addresses))
	var missing []common.Address
	for _, addr := range addresses {
		if state, ok := p.cache.Get(addr.Hex(), block); ok {
			pools[addr] = state
			continue
		}
		missing = append(missing, addr)
	}
	if len(missing) == 0 {
		return pools, nil
	}

	fetched, err := p.inner.GetPools(ctx, missing, blockNumber)
	if err != nil {
		return nil, err
	}
	for addr, state := range fetched {
		p.cache.Set(state, addr.Hex(), block)
		pools[addr] = state
	}
	log.Debug().
		Int("cached", len(addresses)-len(missing)).
		Int("fetched", len(fetched)).
		Msg("Pool state lookup")
	return pools, nil
}

// NewPoolCache builds the pool cache. Entries are shared by reference.
func NewPoolCache(chainID uint64, ttl time.Duration) *cache.Cache[*PoolState] {
	return cache.New[*PoolState](chainID, ttl)
}
