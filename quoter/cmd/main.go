package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/config"
	"github.com/anz-io/smart-order-router/quoter/engine"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/anz-io/smart-order-router/quoter/router"
	"github.com/anz-io/smart-order-router/quoter/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()
	shareLogger(log)
}

// shareLogger hands one logger to every package that logs
func shareLogger(l zerolog.Logger) {
	rpc.SetLogger(l)
	router.SetLogger(l)
	providers.SetLogger(l)
	engine.SetLogger(l)
}

func main() {
	configPath := flag.String("config", "", "quoter config file (.toml); empty reads QUOTER_* environment variables")
	chainsPath := flag.String("chains", "", "optional chain override file (.toml)")
	flag.Parse()

	var cfgPath *string
	if *configPath != "" {
		cfgPath = configPath
	}
	cfg, err := config.LoadQuoterConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load quoter config")
	}

	// production logs are JSON lines
	if !cfg.DevelopmentMode {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
		shareLogger(log)
	}

	log.Info().
		Str("config", *configPath).
		Str("chains", *chainsPath).
		Msg("Starting smart order router quoter")

	registry, err := config.NewDefaultChainConfigLoader().LoadRegistry(*chainsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load chain config")
	}
	log.Info().Msg("Chain registry ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokenLists := loadTokenLists(ctx, cfg.TokenListSource)

	engineClient, err := engine.NewClient(cfg.EngineURLs[0], cfg.EngineURLs[1:], cfg.FailoverConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create routing engine client")
	}
	defer engineClient.Close()

	quoter, err := router.NewQuoter(router.Options{
		Registry:      registry,
		Dialer:        router.DialEthClient,
		TTLs:          cfg.CacheTTLs(),
		Assembler:     router.NewProviderAssembler(cfg.TenderlyConfig(), tokenLists, nil).WithFeeDetector(cfg.FeeDetector()),
		Search:        cfg.SearchDefaults(),
		Engine:        engineClient,
		EngineTimeout: cfg.EngineTimeout(),
		Metrics:       router.NewMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create quoter")
	}

	server, err := rpc.NewServer(ctx, buildServerConfig(cfg), quoter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create quote server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

// loadTokenLists indexes the configured token list once for the whole process.
// A missing or broken list is not fatal; tokens then resolve on-chain.
func loadTokenLists(ctx context.Context, source string) map[chain.ChainID]*providers.TokenListProvider {
	if source == "" {
		log.Info().Msg("No token list configured, resolving tokens on-chain only")
		return nil
	}

	dir, err := os.MkdirTemp("", "quoter-tokenlist-*")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create token list directory")
		return nil
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	list, err := providers.FetchTokenList(ctx, source, dir)
	if err != nil {
		log.Warn().Err(err).Str("source", source).Msg("Failed to load token list")
		return nil
	}
	log.Info().Int("tokens", len(list.Tokens)).Str("source", source).Msg("Loaded token list")
	return providers.IndexTokenList(list)
}

// buildServerConfig converts the loaded QuoterConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.QuoterConfig) *rpc.ServerConfig {
	serverConfig := &rpc.ServerConfig{
		Address:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  cfg.UsePrometheus,
	}

	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	if cfg.EnableTracing || cfg.EnableMetrics || cfg.EnableLogs || cfg.UsePrometheus {
		serverConfig.OTelConfig = &rpc.OTelConfig{
			ServiceName:     defaultString(cfg.ServiceName, "smart-order-router"),
			ServiceVersion:  defaultString(cfg.ServiceVersion, "1.0.0"),
			Environment:     defaultString(cfg.Environment, "development"),
			EnableTracing:   cfg.EnableTracing,
			UseOTLPTraces:   cfg.UseOTLPTraces,
			OTLPTracesURL:   cfg.OTLPTracesURL,
			EnableMetrics:   cfg.EnableMetrics,
			UsePrometheus:   cfg.UsePrometheus,
			UseOTLPMetrics:  cfg.UseOTLPMetrics,
			OTLPMetricsURL:  cfg.OTLPMetricsURL,
			EnableLogs:      cfg.EnableLogs,
			UseOTLPLogs:     cfg.UseOTLPLogs,
			OTLPLogsURL:     cfg.OTLPLogsURL,
			InsecureOTLP:    cfg.InsecureOTLP,
			DevelopmentMode: cfg.DevelopmentMode,
		}
	}

	return serverConfig
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
