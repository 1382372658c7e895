package router_test

import (
	"testing"

	"github.com/anz-io/smart-order-router/quoter/models"
	"github.com/anz-io/smart-order-router/quoter/router"
	"github.com/zeebo/assert"
)

func TestRouteRequestBuilderDefaults(t *testing.T) {
	b := router.NewRouteRequestBuilder(router.DefaultSearchDefaults())

	cfg, err := b.Build(models.ExactInput, nil, 100)
	assert.NoError(t, err)
	assert.Equal(t, cfg.BlockNumber, uint64(100))
	assert.Equal(t, cfg.TopN, 3)
	assert.Equal(t, cfg.TopNDirectSwaps, 2)
	assert.Equal(t, cfg.TopNTokenInOut, 2)
	assert.Equal(t, cfg.TopNSecondHop, 2)
	assert.Equal(t, len(cfg.TopNSecondHopForTokenAddress), 0)
	assert.Equal(t, cfg.TopNWithEachBaseToken, 2)
	assert.Equal(t, cfg.TopNWithBaseToken, 6)
	assert.False(t, cfg.TopNWithBaseTokenInSet)
	assert.Equal(t, cfg.MaxSwapsPerPath, 3)
	assert.Equal(t, cfg.MinSplits, 1)
	assert.Equal(t, cfg.MaxSplits, 3)
	assert.Equal(t, cfg.DistributionPercent, 5)
	assert.False(t, cfg.ForceCrossProtocol)
	assert.False(t, cfg.ForceMixedRoutes)
	assert.True(t, cfg.DebugRouting)
	assert.False(t, cfg.EnableFeeOnTransferFeeFetching)
	assert.Equal(t, len(cfg.Protocols), 0)
}

func TestRouteRequestBuilderReferenceBlock(t *testing.T) {
	b := router.NewRouteRequestBuilder(router.DefaultSearchDefaults())

	for _, current := range []uint64{10, 11, 19_000_000} {
		in, err := b.Build(models.ExactInput, nil, current)
		assert.NoError(t, err)
		out, err := b.Build(models.ExactOutput, nil, current)
		assert.NoError(t, err)
		assert.Equal(t, in.BlockNumber, current)
		assert.Equal(t, out.BlockNumber, current-router.ExactOutputBlockOffset)
	}

	_, err := b.Build(models.ExactOutput, nil, 9)
	assert.Error(t, err)
	_, err = b.Build(models.ExactInput, nil, 9)
	assert.NoError(t, err)
}

func TestRouteRequestBuilderDoesNotShareState(t *testing.T) {
	defaults := router.DefaultSearchDefaults()
	defaults.TopNSecondHopForTokenAddress["0xabc"] = 4
	b := router.NewRouteRequestBuilder(defaults)

	protocols := []models.Protocol{models.ProtocolV3}
	first, err := b.Build(models.ExactInput, protocols, 1)
	assert.NoError(t, err)
	first.TopNSecondHopForTokenAddress["0xabc"] = 99
	first.Protocols[0] = models.ProtocolV2

	second, err := b.Build(models.ExactInput, nil, 1)
	assert.NoError(t, err)
	assert.Equal(t, second.TopNSecondHopForTokenAddress["0xabc"], 4)
	assert.Equal(t, protocols[0], models.ProtocolV3)
}
