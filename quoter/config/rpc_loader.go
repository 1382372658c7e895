package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadQuoterConfig loads the quoter config from the given path, or from QUOTER_* env vars when path is nil
func LoadQuoterConfig(configPath *string) (*QuoterConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		// if no file expect envs
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}
	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "smart-order-router")
	v.SetDefault("rate_per_minute", 300)
	v.SetDefault("max_concurrent_requests", 100)
	v.SetDefault("engine_timeout_seconds", 30)
	v.SetDefault("engine_max_retries", 0)
	v.SetDefault("engine_resend_on_failover", false)
	v.SetDefault("token_cache_ttl_seconds", 3600)
	v.SetDefault("gas_cache_ttl_seconds", 15)
	v.SetDefault("pool_cache_ttl_seconds", 360)

	v.SetDefault("search.top_n", 3)
	v.SetDefault("search.top_n_direct_swaps", 2)
	v.SetDefault("search.top_n_token_in_out", 2)
	v.SetDefault("search.top_n_second_hop", 2)
	v.SetDefault("search.top_n_with_each_base_token", 2)
	v.SetDefault("search.top_n_with_base_token", 6)
	v.SetDefault("search.top_n_with_base_token_in_set", false)
	v.SetDefault("search.max_swaps_per_path", 3)
	v.SetDefault("search.min_splits", 1)
	v.SetDefault("search.max_splits", 3)
	v.SetDefault("search.distribution_percent", 5)
	v.SetDefault("search.force_cross_protocol", false)
	v.SetDefault("search.force_mixed_routes", false)
	v.SetDefault("search.debug_routing", true)
	v.SetDefault("search.enable_fee_on_transfer_fee_fetching", false)
}

func loadEnv(v *viper.Viper) (*QuoterConfig, error) {
	// godot might fail if .env file is missing but
	// env can be applied through docker, systemd or other means, so skip error
	_ = godotenv.Load()
	v.SetEnvPrefix("QUOTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config QuoterConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded (env-only mode).
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp", "development_mode",
		"engine_urls", "engine_timeout_seconds", "engine_max_retries", "engine_resend_on_failover",
		"token_list_source",
		"tenderly_base_url", "tenderly_user", "tenderly_project", "tenderly_access_key",
		"fee_detector_address",
		"token_cache_ttl_seconds", "gas_cache_ttl_seconds", "pool_cache_ttl_seconds",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*QuoterConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config QuoterConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}

	return &config, nil
}

func verifyConfig(config *QuoterConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if config.Host == "" {
		return fmt.Errorf("host is required")
	}

	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}

	if len(config.EngineURLs) == 0 {
		return fmt.Errorf("engine_urls is required")
	}
	for _, raw := range config.EngineURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("engine_urls contains an invalid url %q", raw)
		}
	}

	if config.EngineTimeoutSeconds <= 0 {
		return fmt.Errorf("engine_timeout_seconds must be positive")
	}
	if config.EngineMaxRetries < 0 {
		return fmt.Errorf("engine_max_retries must not be negative")
	}

	if config.FeeDetectorAddress != "" && !common.IsHexAddress(config.FeeDetectorAddress) {
		return fmt.Errorf("fee_detector_address %q is not an address", config.FeeDetectorAddress)
	}

	if config.GasCacheTTLSeconds <= 0 || config.PoolCacheTTLSeconds <= 0 || config.TokenCacheTTLSeconds <= 0 {
		return fmt.Errorf("cache ttls must be positive")
	}
	// gas prices go stale first
	if config.GasCacheTTLSeconds >= config.PoolCacheTTLSeconds || config.GasCacheTTLSeconds >= config.TokenCacheTTLSeconds {
		return fmt.Errorf("gas_cache_ttl_seconds must be shorter than the pool and token ttls")
	}

	return verifySearch(&config.Search)
}

func verifySearch(s *SearchConfig) error {
	if s.TopN <= 0 {
		return fmt.Errorf("search.top_n must be positive")
	}
	if s.MaxSwapsPerPath <= 0 {
		return fmt.Errorf("search.max_swaps_per_path must be positive")
	}
	if s.MinSplits <= 0 || s.MaxSplits < s.MinSplits {
		return fmt.Errorf("search splits must satisfy 0 < min_splits <= max_splits")
	}
	if s.DistributionPercent <= 0 || s.DistributionPercent > 100 || 100%s.DistributionPercent != 0 {
		return fmt.Errorf("search.distribution_percent must divide 100")
	}
	for addr, n := range s.TopNSecondHopForTokenAddress {
		if n < 0 {
			return fmt.Errorf("search.top_n_second_hop_for_token_address[%s] must not be negative", addr)
		}
	}
	return nil
}
