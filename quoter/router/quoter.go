package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/models"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/anz-io/smart-order-router/quoter/qerr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultEngineTimeout bounds a single route computation
const DefaultEngineTimeout = 30 * time.Second

// RoutingEngine computes a swap route. The amount is denominated in the input currency for
// exact-input trades and in the output currency for exact-output trades; quoteCurrency is the other side.
// A nil route with a nil error means no route exists.
type RoutingEngine interface {
	Route(ctx context.Context, amount chain.CurrencyAmount, quoteCurrency chain.Currency, tradeType models.TradeType,
		swapOptions *models.SwapOptions, cfg models.RouteSearchConfig) (models.SwapRoute, error)
}

// EngineFactory builds a routing engine over an assembled Environment
type EngineFactory interface {
	NewRoutingEngine(env *Environment) (RoutingEngine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory
type EngineFactoryFunc func(env *Environment) (RoutingEngine, error)

func (f EngineFactoryFunc) NewRoutingEngine(env *Environment) (RoutingEngine, error) {
	return f(env)
}

// Options configures a Quoter. Registry and Engine are required.
type Options struct {
	Registry      *chain.Registry
	Dialer        Dialer
	TTLs          CacheTTLs
	Assembler     *ProviderAssembler
	Search        SearchDefaults
	Engine        EngineFactory
	EngineTimeout time.Duration
	Metrics       *Metrics
}

// Quoter runs the quote pipeline for one request at a time; it holds no per-request state
// and is safe for concurrent use.
type Quoter struct {
	registry  *chain.Registry
	contexts  *ContextFactory
	assembler *ProviderAssembler
	builder   *RouteRequestBuilder
	engines   EngineFactory
	timeout   time.Duration
	metrics   *Metrics
	tracer    trace.Tracer
}

func NewQuoter(opts Options) (*Quoter, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("quoter: chain registry is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("quoter: routing engine factory is required")
	}

	ttls := opts.TTLs
	if ttls == (CacheTTLs{}) {
		ttls = DefaultCacheTTLs()
	}
	assembler := opts.Assembler
	if assembler == nil {
		assembler = NewProviderAssembler(providers.DefaultTenderlyConfig(), nil, nil)
	}
	search := opts.Search
	if search.TopN == 0 && search.MaxSplits == 0 {
		search = DefaultSearchDefaults()
	}
	timeout := opts.EngineTimeout
	if timeout <= 0 {
		timeout = DefaultEngineTimeout
	}

	return &Quoter{
		registry:  opts.Registry,
		contexts:  NewContextFactory(opts.Registry, opts.Dialer, ttls),
		assembler: assembler,
		builder:   NewRouteRequestBuilder(search),
		engines:   opts.Engine,
		timeout:   timeout,
		metrics:   opts.Metrics,
		tracer:    otel.Tracer("quoter/router"),
	}, nil
}

// Quote validates req, resolves both currencies against a fresh chain context and asks
// the routing engine for a route. Every failure is logged here and nowhere else: rejections
// at debug level, everything else at error level.
func (q *Quoter) Quote(ctx context.Context, req models.QuoteRequest) (route models.SwapRoute, err error) {
	start := time.Now()
	ctx, span := q.tracer.Start(ctx, "quoter.quote",
		trace.WithAttributes(attribute.Int64("chain.id", int64(req.ChainIdNumb))))
	defer span.End()

	defer func() {
		outcome := outcomeOf(route, err)
		q.metrics.observe(strconv.FormatUint(req.ChainIdNumb, 10), outcome, time.Since(start).Seconds())
		span.SetAttributes(attribute.String("quote.outcome", outcome))

		if err == nil {
			span.SetStatus(codes.Ok, outcome)
			log.Debug().
				Uint64("chain_id", req.ChainIdNumb).
				Str("outcome", outcome).
				Dur("elapsed", time.Since(start)).
				Msg("Quote completed")
			return
		}
		if qerr.IsValidation(err) {
			log.Debug().Err(err).Uint64("chain_id", req.ChainIdNumb).Msg("Quote request rejected")
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().
			Err(err).
			Uint64("chain_id", req.ChainIdNumb).
			Str("token_in", req.TokenInStr).
			Str("token_out", req.TokenOutStr).
			Str("amount", req.AmountStr).
			Str("code", qerr.CodeOf(err).String()).
			Msg("Quote failed")
	}()

	return q.quote(ctx, req)
}

func (q *Quoter) quote(ctx context.Context, req models.QuoteRequest) (models.SwapRoute, error) {
	chainID, err := ValidateChain(req.ChainIdNumb)
	if err != nil {
		return nil, err
	}
	tradeType, err := ValidateTradeDirection(req.ExactIn, req.ExactOut)
	if err != nil {
		return nil, err
	}
	protocols, err := ParseProtocols(req.ProtocolsStr)
	if err != nil {
		return nil, err
	}
	if err := ValidateSwapOptions(req.SwapOptions); err != nil {
		return nil, err
	}

	cc, err := q.contexts.Build(ctx, chainID)
	if err != nil {
		return nil, err
	}
	defer cc.Close()

	env := q.assembler.Assemble(cc)
	resolver := NewTokenResolver(chainID, q.registry, env.Tokens)

	var tokenIn, tokenOut chain.Currency
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := resolver.Resolve(gctx, req.TokenInStr)
		tokenIn = c
		return err
	})
	g.Go(func() error {
		c, err := resolver.Resolve(gctx, req.TokenOutStr)
		tokenOut = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	amountCurrency, quoteCurrency := tokenIn, tokenOut
	if tradeType == models.ExactOutput {
		amountCurrency, quoteCurrency = tokenOut, tokenIn
	}
	amount, err := chain.ParseAmount(req.AmountStr, amountCurrency)
	if err != nil {
		return nil, qerr.Wrap(qerr.CodeValidation, "invalid amount", err)
	}
	if amount.Raw.Sign() <= 0 {
		return nil, qerr.Newf(qerr.CodeValidation, "amount must be positive, got %q", req.AmountStr)
	}

	cfg, err := q.builder.Build(tradeType, protocols, cc.BlockNumber)
	if err != nil {
		return nil, err
	}

	engine, err := q.engines.NewRoutingEngine(env)
	if err != nil {
		return nil, fmt.Errorf("create routing engine: %w", err)
	}

	routeCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	route, err := engine.Route(routeCtx, amount, quoteCurrency, tradeType, req.SwapOptions, cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, qerr.Wrap(qerr.CodeTimeout, fmt.Sprintf("route computation exceeded %s", q.timeout), err)
		}
		return nil, fmt.Errorf("route computation: %w", err)
	}
	if isNullRoute(route) {
		return nil, nil
	}
	return route, nil
}

func isNullRoute(route models.SwapRoute) bool {
	trimmed := bytes.TrimSpace(route)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func outcomeOf(route models.SwapRoute, err error) string {
	switch {
	case err == nil && route == nil:
		return OutcomeNoRoute
	case err == nil:
		return OutcomeSuccess
	case qerr.IsValidation(err):
		return OutcomeRejected
	case qerr.CodeOf(err) == qerr.CodeTimeout:
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
