package router

import (
	"net/http"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/ethereum/go-ethereum/common"
)

// Environment is what a routing engine is built from: the chain context plus the
// provider chains assembled on top of it.
type Environment struct {
	Chain     *ChainContext
	GasPrice  providers.GasPriceProvider
	Simulator providers.Simulator
	Tokens    providers.TokenProvider
	Pools     providers.PoolProvider
	// TokenProperties is nil on chains without a wrapped native token
	TokenProperties providers.TokenPropertiesProvider
}

// ProviderAssembler wires provider chains over a ChainContext
type ProviderAssembler struct {
	tenderly    providers.TenderlyConfig
	tokenLists  map[chain.ChainID]*providers.TokenListProvider
	httpClient  *http.Client
	feeDetector common.Address
}

// NewProviderAssembler takes the process-wide, read-only inputs: Tenderly settings and the
// token list index. httpClient may be nil.
func NewProviderAssembler(tenderly providers.TenderlyConfig, tokenLists map[chain.ChainID]*providers.TokenListProvider, httpClient *http.Client) *ProviderAssembler {
	if tokenLists == nil {
		tokenLists = map[chain.ChainID]*providers.TokenListProvider{}
	}
	return &ProviderAssembler{tenderly: tenderly, tokenLists: tokenLists, httpClient: httpClient}
}

// WithFeeDetector overrides the fee-on-transfer detector contract
func (a *ProviderAssembler) WithFeeDetector(addr common.Address) *ProviderAssembler {
	a.feeDetector = addr
	return a
}

// Assemble builds:
//   - gas price: cache -> EIP-1559 fee history -> legacy eth_gasPrice
//   - simulation: route pool check -> Tenderly -> eth_estimateGas
//   - tokens: token cache -> token list -> on-chain ERC-20 reads
//   - pools: pool cache -> on-chain V3 reads -> on-chain V2 reads
//   - token properties: properties cache -> on-chain fee detector
func (a *ProviderAssembler) Assemble(cc *ChainContext) *Environment {
	gasPrice := providers.NewCachingGasPriceProvider(
		providers.NewFallbackGasPriceProvider(
			providers.NewEIP1559GasPriceProvider(cc.Client),
			providers.NewLegacyGasPriceProvider(cc.Client),
		),
		cc.GasCache,
	)

	pools := providers.NewCachingPoolProvider(
		providers.NewCompositePoolProvider(
			providers.NewV3PoolProvider(cc.Multicall),
			providers.NewV2PoolProvider(cc.Multicall),
		),
		cc.PoolCache,
	)

	simulator := providers.NewFallbackSimulator(pools,
		providers.NewTenderlySimulator(cc.ChainID, a.tenderly, a.httpClient),
		providers.NewEthEstimateGasSimulator(cc.Client),
	)

	var tokenList providers.TokenProvider = providers.NewTokenListProvider(cc.ChainID, nil)
	if indexed, ok := a.tokenLists[cc.ChainID]; ok {
		tokenList = indexed
	}
	tokens := providers.NewCachingTokenProviderWithFallback(
		cc.TokenCache,
		tokenList,
		providers.NewOnChainTokenProvider(cc.ChainID, cc.Multicall),
	)

	var tokenProperties providers.TokenPropertiesProvider
	if detector, err := providers.NewOnChainTokenPropertiesProvider(cc.ChainID, cc.Multicall, a.feeDetector); err == nil {
		tokenProperties = providers.NewCachingTokenPropertiesProvider(detector, cc.TokenPropertiesCache)
	} else {
		log.Debug().Err(err).Uint64("chain", uint64(cc.ChainID)).Msg("Token properties unavailable")
	}

	return &Environment{
		Chain:           cc,
		GasPrice:        gasPrice,
		Simulator:       simulator,
		Tokens:          tokens,
		Pools:           pools,
		TokenProperties: tokenProperties,
	}
}
