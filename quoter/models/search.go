package models

// V3PoolSelection bounds how many candidate pools each selection heuristic contributes
type V3PoolSelection struct {
	TopN                         int            `json:"topN"`
	TopNDirectSwaps              int            `json:"topNDirectSwaps"`
	TopNTokenInOut               int            `json:"topNTokenInOut"`
	TopNSecondHop                int            `json:"topNSecondHop"`
	TopNSecondHopForTokenAddress map[string]int `json:"topNSecondHopForTokenAddress"`
	TopNWithEachBaseToken        int            `json:"topNWithEachBaseToken"`
	TopNWithBaseToken            int            `json:"topNWithBaseToken"`
	TopNWithBaseTokenInSet       bool           `json:"topNWithBaseTokenInSet"`
}

// RouteSearchConfig is built fresh for every request and handed to the routing engine as-is
type RouteSearchConfig struct {
	BlockNumber                    uint64          `json:"blockNumber"`
	V3PoolSelection                V3PoolSelection `json:"v3PoolSelection"`
	MaxSwapsPerPath                int             `json:"maxSwapsPerPath"`
	MinSplits                      int             `json:"minSplits"`
	MaxSplits                      int             `json:"maxSplits"`
	DistributionPercent            int             `json:"distributionPercent"`
	Protocols                      []Protocol      `json:"protocols,omitempty"`
	ForceCrossProtocol             bool            `json:"forceCrossProtocol"`
	ForceMixedRoutes               bool            `json:"forceMixedRoutes"`
	DebugRouting                   bool            `json:"debugRouting"`
	EnableFeeOnTransferFeeFetching bool            `json:"enableFeeOnTransferFeeFetching"`
}
