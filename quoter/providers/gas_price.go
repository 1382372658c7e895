package providers

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"slices"
	"time"

	"github.com/anz-io/smart-order-router/quoter/cache"
	"github.com/ethereum/go-ethereum"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "providers").Logger()
}

// SetLogger replaces the package logger
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "providers").Logger()
}

// GasPrice is a gas price sample. BaseFeeWei and PriorityFeeWei are nil for legacy sources.
type GasPrice struct {
	GasPriceWei    *big.Int `json:"gasPriceWei"`
	BaseFeeWei     *big.Int `json:"baseFeeWei,omitempty"`
	PriorityFeeWei *big.Int `json:"priorityFeeWei,omitempty"`
	Source         string   `json:"source"`
}

// Clone deep-copies the sample so cached values cannot be mutated through a reader
func (g *GasPrice) Clone() *GasPrice {
	if g == nil {
		return nil
	}
	return &GasPrice{
		GasPriceWei:    cloneBig(g.GasPriceWei),
		BaseFeeWei:     cloneBig(g.BaseFeeWei),
		PriorityFeeWei: cloneBig(g.PriorityFeeWei),
		Source:         g.Source,
	}
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// GasPriceProvider returns the gas price to price routes with
type GasPriceProvider interface {
	GasPrice(ctx context.Context) (*GasPrice, error)
}

// FeeHistoryReader is the eth_feeHistory part of an RPC client
type FeeHistoryReader interface {
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
}

// LegacyGasReader is the eth_gasPrice part of an RPC client
type LegacyGasReader interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// ErrNoBaseFee is returned by the EIP-1559 source on chains whose blocks carry no base fee
var ErrNoBaseFee = errors.New("chain reports no base fee")

const (
	feeHistoryBlocks      = 5
	priorityFeePercentile = 50
)

// EIP1559GasPriceProvider prices gas as the next block's base fee plus the median recent tip
type EIP1559GasPriceProvider struct {
	client FeeHistoryReader
}

func NewEIP1559GasPriceProvider(client FeeHistoryReader) *EIP1559GasPriceProvider {
	return &EIP1559GasPriceProvider{client: client}
}

func (p *EIP1559GasPriceProvider) GasPrice(ctx context.Context) (*GasPrice, error) {
	history, err := p.client.FeeHistory(ctx, feeHistoryBlocks, nil, []float64{priorityFeePercentile})
	if err != nil {
		return nil, fmt.Errorf("eth_feeHistory: %w", err)
	}
	if history == nil || len(history.BaseFee) == 0 {
		return nil, ErrNoBaseFee
	}

	// BaseFee has one more entry than blocks requested; the last is the pending block
	nextBaseFee := history.BaseFee[len(history.BaseFee)-1]
	if nextBaseFee == nil || nextBaseFee.Sign() == 0 {
		return nil, ErrNoBaseFee
	}

	tips := make([]*big.Int, 0, len(history.Reward))
	for _, rewards := range history.Reward {
		if len(rewards) > 0 && rewards[0] != nil {
			tips = append(tips, rewards[0])
		}
	}
	tip := median(tips)

	return &GasPrice{
		GasPriceWei:    new(big.Int).Add(nextBaseFee, tip),
		BaseFeeWei:     new(big.Int).Set(nextBaseFee),
		PriorityFeeWei: tip,
		Source:         "eip1559",
	}, nil
}

func median(values []*big.Int) *big.Int {
	if len(values) == 0 {
		return new(big.Int)
	}
	sorted := slices.Clone(values)
	slices.SortFunc(sorted, func(a, b *big.Int) int { return a.Cmp(b) })
	return new(big.Int).Set(sorted[len(sorted)/2])
}

// LegacyGasPriceProvider uses the node's eth_gasPrice suggestion
type LegacyGasPriceProvider struct {
	client LegacyGasReader
}

func NewLegacyGasPriceProvider(client LegacyGasReader) *LegacyGasPriceProvider {
	return &LegacyGasPriceProvider{client: client}
}

func (p *LegacyGasPriceProvider) GasPrice(ctx context.Context) (*GasPrice, error) {
	price, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}
	return &GasPrice{GasPriceWei: price, Source: "legacy"}, nil
}

// FallbackGasPriceProvider asks each source in order and returns the first answer
type FallbackGasPriceProvider struct {
	sources []GasPriceProvider
}

func NewFallbackGasPriceProvider(sources ...GasPriceProvider) *FallbackGasPriceProvider {
	return &FallbackGasPriceProvider{sources: sources}
}

func (p *FallbackGasPriceProvider) GasPrice(ctx context.Context) (*GasPrice, error) {
	var errs []error
	for i, source := range p.sources {
		price, err := source.GasPrice(ctx)
		if err == nil {
			return price, nil
		}
		log.Debug().Err(err).Int("source", i).Msg("Gas price source failed, trying next")
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no gas price sources configured")
	}
	return nil, fmt.Errorf("all gas price sources failed: %w", errors.Join(errs...))
}

const gasPriceCacheKey = "gas-price"

// CachingGasPriceProvider serves gas prices from the chain's gas cache while they are fresh
type CachingGasPriceProvider struct {
	inner GasPriceProvider
	cache *cache.Cache[*GasPrice]
}

func NewCachingGasPriceProvider(inner GasPriceProvider, c *cache.Cache[*GasPrice]) *CachingGasPriceProvider {
	return &CachingGasPriceProvider{inner: inner, cache: c}
}

func (p *CachingGasPriceProvider) GasPrice(ctx context.Context) (*GasPrice, error) {
	if cached, ok := p.cache.Get(gasPriceCacheKey); ok {
		return cached, nil
	}
	price, err := p.inner.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	p.cache.Set(price.Clone(), gasPriceCacheKey)
	return price, nil
}

// NewGasPriceCache builds the gas cache with clone-on-read semantics
func NewGasPriceCache(chainID uint64, ttl time.Duration) *cache.Cache[*GasPrice] {
	return cache.New[*GasPrice](chainID, ttl, cache.WithCloneOnRead((*GasPrice).Clone))
}
