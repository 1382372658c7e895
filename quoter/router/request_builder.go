package router

import (
	"maps"

	"github.com/anz-io/smart-order-router/quoter/models"
	"github.com/anz-io/smart-order-router/quoter/qerr"
)

// ExactOutputBlockOffset is how far behind the chain head exact-output quotes are anchored
const ExactOutputBlockOffset = 10

// SearchDefaults is the fixed search policy every request starts from
type SearchDefaults struct {
	TopN                           int
	TopNDirectSwaps                int
	TopNTokenInOut                 int
	TopNSecondHop                  int
	TopNSecondHopForTokenAddress   map[string]int
	TopNWithEachBaseToken          int
	TopNWithBaseToken              int
	TopNWithBaseTokenInSet         bool
	MaxSwapsPerPath                int
	MinSplits                      int
	MaxSplits                      int
	DistributionPercent            int
	ForceCrossProtocol             bool
	ForceMixedRoutes               bool
	DebugRouting                   bool
	EnableFeeOnTransferFeeFetching bool
}

func DefaultSearchDefaults() SearchDefaults {
	return SearchDefaults{
		TopN:                         3,
		TopNDirectSwaps:              2,
		TopNTokenInOut:               2,
		TopNSecondHop:                2,
		TopNSecondHopForTokenAddress: map[string]int{},
		TopNWithEachBaseToken:        2,
		TopNWithBaseToken:            6,
		MaxSwapsPerPath:              3,
		MinSplits:                    1,
		MaxSplits:                    3,
		DistributionPercent:          5,
		DebugRouting:                 true,
	}
}

// RouteRequestBuilder turns the search policy plus per-request inputs into a RouteSearchConfig
type RouteRequestBuilder struct {
	defaults SearchDefaults
}

func NewRouteRequestBuilder(defaults SearchDefaults) *RouteRequestBuilder {
	return &RouteRequestBuilder{defaults: defaults}
}

// Build anchors exact-input searches at currentBlock and exact-output searches
// ExactOutputBlockOffset blocks earlier. The returned config shares no state with the builder.
func (b *RouteRequestBuilder) Build(tradeType models.TradeType, protocols []models.Protocol, currentBlock uint64) (models.RouteSearchConfig, error) {
	block := currentBlock
	if tradeType == models.ExactOutput {
		if currentBlock < ExactOutputBlockOffset {
			return models.RouteSearchConfig{}, qerr.Newf(qerr.CodeUnavailable,
				"chain height %d is below the exact-output block offset", currentBlock)
		}
		block = currentBlock - ExactOutputBlockOffset
	}

	d := b.defaults
	secondHop := make(map[string]int, len(d.TopNSecondHopForTokenAddress))
	maps.Copy(secondHop, d.TopNSecondHopForTokenAddress)

	var protos []models.Protocol
	if len(protocols) > 0 {
		protos = append(protos, protocols...)
	}

	return models.RouteSearchConfig{
		BlockNumber: block,
		V3PoolSelection: models.V3PoolSelection{
			TopN:                         d.TopN,
			TopNDirectSwaps:              d.TopNDirectSwaps,
			TopNTokenInOut:               d.TopNTokenInOut,
			TopNSecondHop:                d.TopNSecondHop,
			TopNSecondHopForTokenAddress: secondHop,
			TopNWithEachBaseToken:        d.TopNWithEachBaseToken,
			TopNWithBaseToken:            d.TopNWithBaseToken,
			TopNWithBaseTokenInSet:       d.TopNWithBaseTokenInSet,
		},
		MaxSwapsPerPath:                d.MaxSwapsPerPath,
		MinSplits:                      d.MinSplits,
		MaxSplits:                      d.MaxSplits,
		DistributionPercent:            d.DistributionPercent,
		Protocols:                      protos,
		ForceCrossProtocol:             d.ForceCrossProtocol,
		ForceMixedRoutes:               d.ForceMixedRoutes,
		DebugRouting:                   d.DebugRouting,
		EnableFeeOnTransferFeeFetching: d.EnableFeeOnTransferFeeFetching,
	}, nil
}
