package rpc

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/anz-io/smart-order-router/quoter/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

// QuoteService computes a route for one quote request. A nil route with a nil error means no route.
type QuoteService interface {
	Quote(ctx context.Context, req models.QuoteRequest) (models.SwapRoute, error)
}

// Handler-level deadline. Kept above the engine timeout so a slow engine surfaces as 504
// from the quoter rather than a dropped connection.
const requestTimeout = 60 * time.Second

type ServerConfig struct {
	Address               string
	AllowedOrigins        []string
	EnableMetrics         bool
	RatePerMinute         *int
	MaxConcurrentRequests *int
	OTelConfig            *OTelConfig
}

func DefaultServerConfig() *ServerConfig {
	maxConcurrentRequests := 100
	return &ServerConfig{
		Address:               "localhost:8080",
		AllowedOrigins:        []string{"http://localhost:3000", "http://localhost:8080"},
		EnableMetrics:         true,
		MaxConcurrentRequests: &maxConcurrentRequests,
		OTelConfig:            DefaultOTelConfig(),
	}
}

func (c *ServerConfig) metricsEnabled() bool {
	return c.EnableMetrics || (c.OTelConfig != nil && c.OTelConfig.UsePrometheus)
}

func (c *ServerConfig) tracingEnabled() bool {
	return c.OTelConfig != nil && c.OTelConfig.EnableTracing
}

// Server serves the quote API and the /server probes
type Server struct {
	config       *ServerConfig
	httpServer   *http.Server
	otelShutdown func(context.Context) error
}

func NewServer(ctx context.Context, config *ServerConfig, quoter QuoteService) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}

	var otelShutdown func(context.Context) error
	if config.OTelConfig.enabled() {
		shutdown, err := NewOTelSDK(ctx, config.OTelConfig)
		if err != nil {
			// quotes still work without telemetry
			Logger.Error().Err(err).Msg("Failed to initialize OpenTelemetry")
		} else {
			otelShutdown = shutdown
		}
	}

	mux := newRouter(config, quoter)

	return &Server{
		config: config,
		httpServer: &http.Server{
			Addr:              config.Address,
			Handler:           h2c.NewHandler(newCORSHandler(config.AllowedOrigins, mux), &http2.Server{}),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      requestTimeout + 5*time.Second,
			IdleTimeout:       120 * time.Second,
		},
		otelShutdown: otelShutdown,
	}, nil
}

func newRouter(config *ServerConfig, quoter QuoteService) *chi.Mux {
	mux := chi.NewMux()

	mux.Use(
		middleware.RequestID,
		zerologMiddleware,
		zerologRecoverer,
		middleware.RealIP,
		realIPMiddleware,
		middleware.Compress(5),
		middleware.Timeout(requestTimeout),
	)
	if config.tracingEnabled() {
		mux.Use(otelHTTPMiddleware(config.OTelConfig.ServiceName))
	}
	if config.RatePerMinute != nil && *config.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(*config.RatePerMinute, time.Minute))
	}
	if config.MaxConcurrentRequests != nil && *config.MaxConcurrentRequests > 0 {
		mux.Use(middleware.Throttle(*config.MaxConcurrentRequests))
	}

	mux.Route("/server", func(r chi.Router) {
		r.Get("/health", staticJSON(`{"status":"healthy","service":"smart-order-router"}`))
		r.Get("/ready", staticJSON(`{"status":"ready"}`))
		if config.metricsEnabled() {
			r.Handle("/metrics", promhttp.Handler())
		}
	})

	h := newQuoteHandler(quoter)
	mux.Route("/api", func(r chi.Router) {
		r.Use(noCacheMiddleware)
		r.Get("/test", h.test)
		r.Post("/quote", h.quote)
	})

	return mux
}

func staticJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

// Handler returns the complete handler chain, CORS and h2c included
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logEndpoints("http")
	return s.httpServer.ListenAndServe()
}

func (s *Server) StartTLS(certFile, keyFile string) error {
	s.logEndpoints("https")
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) logEndpoints(protocol string) {
	endpoints := []string{"POST /api/quote", "GET /api/test", "GET /server/health", "GET /server/ready"}
	if s.config.metricsEnabled() {
		endpoints = append(endpoints, "GET /server/metrics")
	}
	Logger.Info().
		Str("address", s.config.Address).
		Str("protocol", protocol).
		Strs("endpoints", endpoints).
		Bool("tracing", s.config.tracingEnabled()).
		Msg("Quote server starting")
}

// Shutdown drains in-flight quotes, then flushes telemetry
func (s *Server) Shutdown(ctx context.Context) error {
	Logger.Info().Msg("Shutting down quote server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		Logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	if s.otelShutdown != nil {
		if err := s.otelShutdown(ctx); err != nil {
			Logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
			return err
		}
	}

	Logger.Info().Msg("Server shutdown complete")
	return nil
}
