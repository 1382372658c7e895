package providers_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/anz-io/smart-order-router/quoter/multicall"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/assert"
)

var (
	poolA = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	poolB = common.HexToAddress("0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8")
	pairA = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	pairB = common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852")
)

func pairAnswers(m *MockContracts, pair common.Address, reserve0, reserve1 *big.Int) {
	out, _ := providers.V2PairABI.Methods["getReserves"].Outputs.Pack(reserve0, reserve1, uint32(1_700_000_000))
	m.Answer(pair, providers.V2PairABI.Methods["getReserves"], out)
}

func poolAnswers(m *MockContracts, pool common.Address, sqrtPrice, tick, liquidity *big.Int) {
	slot0, _ := providers.V3PoolABI.Methods["slot0"].Outputs.Pack(
		sqrtPrice, tick, uint16(0), uint16(1), uint16(1), uint8(0), true,
	)
	liq, _ := providers.V3PoolABI.Methods["liquidity"].Outputs.Pack(liquidity)
	m.Answer(pool, providers.V3PoolABI.Methods["slot0"], slot0)
	m.Answer(pool, providers.V3PoolABI.Methods["liquidity"], liq)
}

func TestV3PoolProvider(t *testing.T) {
	contracts := NewMockContracts()
	sqrtPrice, _ := new(big.Int).SetString("1461446703485210103287273052203988822378723970341", 10)
	poolAnswers(contracts, poolA, sqrtPrice, big.NewInt(-201000), big.NewInt(5_000_000))

	p := providers.NewV3PoolProvider(multicall.NewProvider(contracts))
	pools, err := p.GetPools(context.Background(), []common.Address{poolA, poolB}, 19_000_000)
	assert.NoError(t, err)
	assert.Equal(t, len(pools), 1)

	state := pools[poolA]
	assert.NotNil(t, state)
	assert.Equal(t, state.Tick, int64(-201000))
	assert.Equal(t, state.Liquidity.Int64(), int64(5_000_000))
	assert.Equal(t, state.SqrtPriceX96.Cmp(sqrtPrice), 0)
	assert.Equal(t, state.BlockNumber, uint64(19_000_000))
	assert.Equal(t, state.Protocol, providers.ProtocolV3)
}

func TestV2PoolProvider(t *testing.T) {
	contracts := NewMockContracts()
	pairAnswers(contracts, pairA, big.NewInt(40_000_000_000), big.NewInt(20_000))

	p := providers.NewV2PoolProvider(multicall.NewProvider(contracts))
	pools, err := p.GetPools(context.Background(), []common.Address{pairA, poolA}, 19_000_000)
	assert.NoError(t, err)
	assert.Equal(t, len(pools), 1)

	state := pools[pairA]
	assert.NotNil(t, state)
	assert.Equal(t, state.Protocol, providers.ProtocolV2)
	assert.Equal(t, state.Reserve0.Int64(), int64(40_000_000_000))
	assert.Equal(t, state.Reserve1.Int64(), int64(20_000))
	assert.True(t, state.HasLiquidity())
}

func TestCompositePoolProvider(t *testing.T) {
	contracts := NewMockContracts()
	poolAnswers(contracts, poolA, big.NewInt(1<<40), big.NewInt(10), big.NewInt(100))
	pairAnswers(contracts, pairA, big.NewInt(7), big.NewInt(9))
	mc := multicall.NewProvider(contracts)

	p := providers.NewCompositePoolProvider(providers.NewV3PoolProvider(mc), providers.NewV2PoolProvider(mc))
	pools, err := p.GetPools(context.Background(), []common.Address{poolA, pairA, poolB}, 100)
	assert.NoError(t, err)
	assert.Equal(t, len(pools), 2)
	assert.Equal(t, pools[poolA].Protocol, providers.ProtocolV3)
	assert.Equal(t, pools[pairA].Protocol, providers.ProtocolV2)
	// V3 batch for all three, V2 batch only for the two V3 missed
	assert.Equal(t, contracts.batches, 2)

	contracts.err = errors.New("connection refused")
	_, err = p.GetPools(context.Background(), []common.Address{poolA}, 101)
	assert.Error(t, err)
}

func TestCachingPoolProviderKeysByBlock(t *testing.T) {
	contracts := NewMockContracts()
	poolAnswers(contracts, poolA, big.NewInt(1<<40), big.NewInt(10), big.NewInt(100))

	poolCache := providers.NewPoolCache(1, 6*time.Minute)
	p := providers.NewCachingPoolProvider(providers.NewV3PoolProvider(multicall.NewProvider(contracts)), poolCache)

	_, err := p.GetPools(context.Background(), []common.Address{poolA}, 100)
	assert.NoError(t, err)
	_, err = p.GetPools(context.Background(), []common.Address{poolA}, 100)
	assert.NoError(t, err)
	assert.Equal(t, contracts.batches, 1)

	_, err = p.GetPools(context.Background(), []common.Address{poolA}, 101)
	assert.NoError(t, err)
	assert.Equal(t, contracts.batches, 2)
	assert.Equal(t, poolCache.Len(), 2)
}
