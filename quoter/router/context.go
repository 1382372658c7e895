package router

import (
	"context"
	"math/big"
	"os"
	"time"

	"github.com/anz-io/smart-order-router/quoter/cache"
	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/multicall"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/anz-io/smart-order-router/quoter/qerr"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "router").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "router").Logger()
}

// ChainClient is everything the pipeline and its providers read from a node.
// *ethclient.Client satisfies it.
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	EstimateGasAtBlock(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) (uint64, error)
	Close()
}

// Dialer opens a ChainClient for an RPC endpoint
type Dialer func(ctx context.Context, url string) (ChainClient, error)

// DialEthClient dials with go-ethereum's ethclient
func DialEthClient(ctx context.Context, url string) (ChainClient, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// CacheTTLs are the lifetimes of the per-chain caches. Token properties share the pool ttl.
// Gas prices must expire before pool state and token metadata.
type CacheTTLs struct {
	Token    time.Duration
	GasPrice time.Duration
	Pool     time.Duration
}

func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		Token:    time.Hour,
		GasPrice: 15 * time.Second,
		Pool:     6 * time.Minute,
	}
}

// ChainContext is the per-request bundle of chain access: one RPC client, its multicall
// facade, the per-chain caches and the block height the request is anchored to.
type ChainContext struct {
	ChainID              chain.ChainID
	Client               ChainClient
	Multicall            *multicall.Provider
	TokenCache           *cache.Cache[*chain.Token]
	GasCache             *cache.Cache[*providers.GasPrice]
	PoolCache            *cache.Cache[*providers.PoolState]
	TokenPropertiesCache *cache.Cache[*providers.TokenProperties]
	BlockNumber          uint64
}

// Close releases the RPC client
func (c *ChainContext) Close() {
	if c != nil && c.Client != nil {
		c.Client.Close()
	}
}

// ContextFactory builds a fresh ChainContext for every request
type ContextFactory struct {
	registry *chain.Registry
	dial     Dialer
	ttls     CacheTTLs
}

func NewContextFactory(registry *chain.Registry, dial Dialer, ttls CacheTTLs) *ContextFactory {
	if dial == nil {
		dial = DialEthClient
	}
	return &ContextFactory{registry: registry, dial: dial, ttls: ttls}
}

// Build connects to the chain's RPC endpoint and reads the current block height.
// Any failure here is reported as unavailable; nothing is retried.
func (f *ContextFactory) Build(ctx context.Context, chainID chain.ChainID) (*ChainContext, error) {
	url, err := f.registry.Endpoint(chainID)
	if err != nil {
		return nil, qerr.Wrap(qerr.CodeValidation, "unsupported chain", err)
	}

	client, err := f.dial(ctx, url)
	if err != nil {
		return nil, qerr.Wrap(qerr.CodeUnavailable, "connect to chain rpc", err)
	}

	block, err := client.BlockNumber(ctx)
	if err != nil {
		client.Close()
		return nil, qerr.Wrap(qerr.CodeUnavailable, "fetch current block number", err)
	}

	id := uint64(chainID)
	return &ChainContext{
		ChainID:              chainID,
		Client:               client,
		Multicall:            multicall.NewProvider(client),
		TokenCache:           providers.NewTokenCache(id, f.ttls.Token),
		GasCache:             providers.NewGasPriceCache(id, f.ttls.GasPrice),
		PoolCache:            providers.NewPoolCache(id, f.ttls.Pool),
		TokenPropertiesCache: providers.NewTokenPropertiesCache(id, f.ttls.Pool),
		BlockNumber:          block,
	}, nil
}
