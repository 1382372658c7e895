package providers_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/multicall"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/assert"
)

var weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

func feeAnswers(m *MockContracts, token common.Address, buy, sell int64) {
	in, _ := providers.FeeDetectorABI.Pack("validate", token, weth, big.NewInt(100_000))
	out, _ := providers.FeeDetectorABI.Methods["validate"].Outputs.Pack(big.NewInt(buy), big.NewInt(sell))
	m.AnswerCall(providers.DefaultFeeDetectorAddress, in, out)
}

func TestOnChainTokenPropertiesProvider(t *testing.T) {
	contracts := NewMockContracts()
	fot := common.HexToAddress(mkrAddr)
	dai := common.HexToAddress(daiAddr)
	feeAnswers(contracts, fot, 100, 300)
	feeAnswers(contracts, dai, 0, 0)

	p, err := providers.NewOnChainTokenPropertiesProvider(chain.Mainnet, multicall.NewProvider(contracts), common.Address{})
	assert.NoError(t, err)

	unknown := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	props, err := p.GetTokensProperties(context.Background(), []common.Address{fot, dai, unknown, weth}, 19_000_000)
	assert.NoError(t, err)
	assert.Equal(t, contracts.batches, 1)
	assert.Equal(t, len(props), 3)

	assert.True(t, props[fot].FeeOnTransfer())
	assert.Equal(t, props[fot].SellFeeBps.Int64(), int64(300))
	assert.False(t, props[dai].FeeOnTransfer())
	assert.False(t, props[weth].FeeOnTransfer())
	_, ok := props[unknown]
	assert.False(t, ok)
}

func TestOnChainTokenPropertiesProviderNeedsWrappedNative(t *testing.T) {
	_, err := providers.NewOnChainTokenPropertiesProvider(chain.ChainID(999_999), multicall.NewProvider(NewMockContracts()), common.Address{})
	assert.Error(t, err)
}

func TestCachingTokenPropertiesProvider(t *testing.T) {
	contracts := NewMockContracts()
	fot := common.HexToAddress(mkrAddr)
	feeAnswers(contracts, fot, 0, 500)

	inner, err := providers.NewOnChainTokenPropertiesProvider(chain.Mainnet, multicall.NewProvider(contracts), common.Address{})
	assert.NoError(t, err)
	propsCache := providers.NewTokenPropertiesCache(1, 6*time.Minute)
	p := providers.NewCachingTokenPropertiesProvider(inner, propsCache)

	unknown := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	tokens := []common.Address{fot, unknown}
	props, err := p.GetTokensProperties(context.Background(), tokens, 100)
	assert.NoError(t, err)
	assert.Equal(t, len(props), 1)
	assert.Equal(t, propsCache.Len(), 1)

	// the known token is cached; only the unknown one is fetched again
	props, err = p.GetTokensProperties(context.Background(), tokens, 101)
	assert.NoError(t, err)
	assert.Equal(t, props[fot].SellFeeBps.Int64(), int64(500))
	assert.Equal(t, contracts.batches, 2)

	props, err = p.GetTokensProperties(context.Background(), []common.Address{fot}, 102)
	assert.NoError(t, err)
	assert.Equal(t, len(props), 1)
	assert.Equal(t, contracts.batches, 2)
}
