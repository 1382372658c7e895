package config

import (
	"time"

	"github.com/anz-io/smart-order-router/quoter/engine"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/anz-io/smart-order-router/quoter/router"
	"github.com/ethereum/go-ethereum/common"
)

type QuoterConfig struct {
	// rpc configs
	Port int    `toml:"port" mapstructure:"port"`
	Host string `toml:"host" mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `toml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`

	// OpenTelemetry configs
	ServiceName    string `toml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `toml:"service_version" mapstructure:"service_version"`
	Environment    string `toml:"environment" mapstructure:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `toml:"enable_tracing" mapstructure:"enable_tracing"`
	UseOTLPTraces  bool   `toml:"use_otlp_traces" mapstructure:"use_otlp_traces"`
	OTLPTracesURL  string `toml:"otlp_traces_url" mapstructure:"otlp_traces_url"`
	EnableMetrics  bool   `toml:"enable_metrics" mapstructure:"enable_metrics"`
	UsePrometheus  bool   `toml:"use_prometheus" mapstructure:"use_prometheus"`
	UseOTLPMetrics bool   `toml:"use_otlp_metrics" mapstructure:"use_otlp_metrics"`
	OTLPMetricsURL string `toml:"otlp_metrics_url" mapstructure:"otlp_metrics_url"`
	EnableLogs     bool   `toml:"enable_logs" mapstructure:"enable_logs"`
	UseOTLPLogs    bool   `toml:"use_otlp_logs" mapstructure:"use_otlp_logs"`
	OTLPLogsURL    string `toml:"otlp_logs_url" mapstructure:"otlp_logs_url"`

	InsecureOTLP bool `toml:"insecure_otlp" mapstructure:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `toml:"development_mode" mapstructure:"development_mode"`

	// Routing engine, first url is the primary
	EngineURLs           []string `toml:"engine_urls" mapstructure:"engine_urls"`
	EngineTimeoutSeconds int      `toml:"engine_timeout_seconds" mapstructure:"engine_timeout_seconds"`
	EngineMaxRetries     int      `toml:"engine_max_retries" mapstructure:"engine_max_retries"`
	// re-post a failed request to the backup picked by failover; off means one dispatch per quote
	EngineResendOnFailover bool `toml:"engine_resend_on_failover" mapstructure:"engine_resend_on_failover"`

	// Token list, a local path or any go-getter source
	TokenListSource string `toml:"token_list_source" mapstructure:"token_list_source"`

	// Tenderly simulation, disabled when any credential is empty
	TenderlyBaseURL   string `toml:"tenderly_base_url" mapstructure:"tenderly_base_url"`
	TenderlyUser      string `toml:"tenderly_user" mapstructure:"tenderly_user"`
	TenderlyProject   string `toml:"tenderly_project" mapstructure:"tenderly_project"`
	TenderlyAccessKey string `toml:"tenderly_access_key" mapstructure:"tenderly_access_key"`

	// Fee-on-transfer detector contract, empty for the default deployment
	FeeDetectorAddress string `toml:"fee_detector_address" mapstructure:"fee_detector_address"`

	// per-request cache lifetimes
	TokenCacheTTLSeconds int `toml:"token_cache_ttl_seconds" mapstructure:"token_cache_ttl_seconds"`
	GasCacheTTLSeconds   int `toml:"gas_cache_ttl_seconds" mapstructure:"gas_cache_ttl_seconds"`
	PoolCacheTTLSeconds  int `toml:"pool_cache_ttl_seconds" mapstructure:"pool_cache_ttl_seconds"`

	Search SearchConfig `toml:"search" mapstructure:"search"`
}

// SearchConfig is the [search] table, the route search policy
type SearchConfig struct {
	TopN                           int            `toml:"top_n" mapstructure:"top_n"`
	TopNDirectSwaps                int            `toml:"top_n_direct_swaps" mapstructure:"top_n_direct_swaps"`
	TopNTokenInOut                 int            `toml:"top_n_token_in_out" mapstructure:"top_n_token_in_out"`
	TopNSecondHop                  int            `toml:"top_n_second_hop" mapstructure:"top_n_second_hop"`
	TopNSecondHopForTokenAddress   map[string]int `toml:"top_n_second_hop_for_token_address" mapstructure:"top_n_second_hop_for_token_address"`
	TopNWithEachBaseToken          int            `toml:"top_n_with_each_base_token" mapstructure:"top_n_with_each_base_token"`
	TopNWithBaseToken              int            `toml:"top_n_with_base_token" mapstructure:"top_n_with_base_token"`
	TopNWithBaseTokenInSet         bool           `toml:"top_n_with_base_token_in_set" mapstructure:"top_n_with_base_token_in_set"`
	MaxSwapsPerPath                int            `toml:"max_swaps_per_path" mapstructure:"max_swaps_per_path"`
	MinSplits                      int            `toml:"min_splits" mapstructure:"min_splits"`
	MaxSplits                      int            `toml:"max_splits" mapstructure:"max_splits"`
	DistributionPercent            int            `toml:"distribution_percent" mapstructure:"distribution_percent"`
	ForceCrossProtocol             bool           `toml:"force_cross_protocol" mapstructure:"force_cross_protocol"`
	ForceMixedRoutes               bool           `toml:"force_mixed_routes" mapstructure:"force_mixed_routes"`
	DebugRouting                   bool           `toml:"debug_routing" mapstructure:"debug_routing"`
	EnableFeeOnTransferFeeFetching bool           `toml:"enable_fee_on_transfer_fee_fetching" mapstructure:"enable_fee_on_transfer_fee_fetching"`
}

func (c *QuoterConfig) CacheTTLs() router.CacheTTLs {
	return router.CacheTTLs{
		Token:    time.Duration(c.TokenCacheTTLSeconds) * time.Second,
		GasPrice: time.Duration(c.GasCacheTTLSeconds) * time.Second,
		Pool:     time.Duration(c.PoolCacheTTLSeconds) * time.Second,
	}
}

func (c *QuoterConfig) EngineTimeout() time.Duration {
	return time.Duration(c.EngineTimeoutSeconds) * time.Second
}

func (c *QuoterConfig) FailoverConfig() engine.FailoverConfig {
	cfg := engine.DefaultFailoverConfig()
	cfg.MaxRetries = c.EngineMaxRetries
	cfg.Timeout = c.EngineTimeout()
	cfg.ResendOnFailover = c.EngineResendOnFailover
	return cfg
}

// FeeDetector is the zero address when unset
func (c *QuoterConfig) FeeDetector() common.Address {
	if c.FeeDetectorAddress == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.FeeDetectorAddress)
}

func (c *QuoterConfig) TenderlyConfig() providers.TenderlyConfig {
	cfg := providers.DefaultTenderlyConfig()
	if c.TenderlyBaseURL != "" {
		cfg.BaseURL = c.TenderlyBaseURL
	}
	cfg.User = c.TenderlyUser
	cfg.Project = c.TenderlyProject
	cfg.AccessKey = c.TenderlyAccessKey
	return cfg
}

func (c *QuoterConfig) SearchDefaults() router.SearchDefaults {
	s := c.Search
	perToken := make(map[string]int, len(s.TopNSecondHopForTokenAddress))
	for addr, n := range s.TopNSecondHopForTokenAddress {
		perToken[addr] = n
	}
	return router.SearchDefaults{
		TopN:                           s.TopN,
		TopNDirectSwaps:                s.TopNDirectSwaps,
		TopNTokenInOut:                 s.TopNTokenInOut,
		TopNSecondHop:                  s.TopNSecondHop,
		TopNSecondHopForTokenAddress:   perToken,
		TopNWithEachBaseToken:          s.TopNWithEachBaseToken,
		TopNWithBaseToken:              s.TopNWithBaseToken,
		TopNWithBaseTokenInSet:         s.TopNWithBaseTokenInSet,
		MaxSwapsPerPath:                s.MaxSwapsPerPath,
		MinSplits:                      s.MinSplits,
		MaxSplits:                      s.MaxSplits,
		DistributionPercent:            s.DistributionPercent,
		ForceCrossProtocol:             s.ForceCrossProtocol,
		ForceMixedRoutes:               s.ForceMixedRoutes,
		DebugRouting:                   s.DebugRouting,
		EnableFeeOnTransferFeeFetching: s.EnableFeeOnTransferFeeFetching,
	}
}
