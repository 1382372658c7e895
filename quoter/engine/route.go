package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/models"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/anz-io/smart-order-router/quoter/router"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RoutePath is the engine endpoint that computes routes
const RoutePath = "/route"

// RouteRequest is the body posted to the engine
type RouteRequest struct {
	ChainID       uint64                   `json:"chainId"`
	Amount        chain.CurrencyAmount     `json:"amount"`
	QuoteCurrency chain.Currency           `json:"quoteCurrency"`
	TradeType     models.TradeType         `json:"tradeType"`
	SwapOptions   *models.SwapOptions      `json:"swapOptions,omitempty"`
	Config        models.RouteSearchConfig `json:"config"`
	GasPriceWei   string                   `json:"gasPriceWei"`
	// TokenProperties is keyed by lowercase token address. Only sent when fee-on-transfer
	// fetching is enabled.
	TokenProperties map[string]*providers.TokenProperties `json:"tokenProperties,omitempty"`
}

// methodParameters is the part of a route the simulator needs
type methodParameters struct {
	To       string `json:"to"`
	Calldata string `json:"calldata"`
	Value    string `json:"value"`
}

type routeEnvelope struct {
	MethodParameters *methodParameters `json:"methodParameters"`
	PoolAddresses    []string          `json:"poolAddresses"`
}

// NewRoutingEngine binds the client to one request's environment
func (c *Client) NewRoutingEngine(env *router.Environment) (router.RoutingEngine, error) {
	if env == nil || env.Chain == nil {
		return nil, fmt.Errorf("routing engine needs a chain context")
	}
	return &boundEngine{client: c, env: env}, nil
}

type boundEngine struct {
	client *Client
	env    *router.Environment
}

func (e *boundEngine) Route(ctx context.Context, amount chain.CurrencyAmount, quoteCurrency chain.Currency, tradeType models.TradeType,
	swapOptions *models.SwapOptions, cfg models.RouteSearchConfig) (models.SwapRoute, error) {
	gas, err := e.env.GasPrice.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch gas price: %w", err)
	}

	var tokenProps map[string]*providers.TokenProperties
	if cfg.EnableFeeOnTransferFeeFetching {
		tokenProps = e.tokenProperties(ctx, cfg.BlockNumber, amount.Currency, quoteCurrency)
	}

	payload, err := json.Marshal(RouteRequest{
		ChainID:         uint64(e.env.Chain.ChainID),
		Amount:          amount,
		QuoteCurrency:   quoteCurrency,
		TradeType:       tradeType,
		SwapOptions:     swapOptions,
		Config:          cfg,
		GasPriceWei:     gas.GasPriceWei.String(),
		TokenProperties: tokenProps,
	})
	if err != nil {
		return nil, fmt.Errorf("encode engine request: %w", err)
	}

	body, err := e.client.send(ctx, RoutePath, payload)
	if err != nil {
		return nil, err
	}
	if isNull(body) {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("engine returned invalid JSON")
	}

	if swapOptions != nil && swapOptions.SimulateFromAddress != nil && e.env.Simulator != nil {
		return e.simulate(ctx, body, common.HexToAddress(*swapOptions.SimulateFromAddress), cfg.BlockNumber), nil
	}
	return body, nil
}

// tokenProperties looks up transfer fees for the non-native currencies of the trade.
// A failed lookup leaves the tokens out; the engine then treats them as fee-free.
func (e *boundEngine) tokenProperties(ctx context.Context, block uint64, currencies ...chain.Currency) map[string]*providers.TokenProperties {
	if e.env.TokenProperties == nil {
		return nil
	}
	var tokens []common.Address
	for _, c := range currencies {
		if c == nil || c.IsNative() {
			continue
		}
		tokens = append(tokens, c.Wrapped().Address())
	}
	if len(tokens) == 0 {
		return nil
	}
	props, err := e.env.TokenProperties.GetTokensProperties(ctx, tokens, block)
	if err != nil {
		log.Warn().Err(err).Msg("Token properties lookup failed, routing without fee data")
		return nil
	}
	out := make(map[string]*providers.TokenProperties, len(props))
	for addr, p := range props {
		out[strings.ToLower(addr.Hex())] = p
	}
	return out
}

// simulate annotates the route with a "simulation" field. Simulation problems never fail the quote;
// the route is returned untouched instead.
func (e *boundEngine) simulate(ctx context.Context, route []byte, from common.Address, block uint64) models.SwapRoute {
	var env routeEnvelope
	if err := json.Unmarshal(route, &env); err != nil || env.MethodParameters == nil {
		return route
	}
	req, err := simulationRequest(from, env, block)
	if err != nil {
		log.Warn().Err(err).Msg("Route method parameters unusable, skipping simulation")
		return route
	}

	result, err := e.env.Simulator.Simulate(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("Route simulation failed")
		return route
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(route, &fields); err != nil {
		return route
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return route
	}
	fields["simulation"] = encoded
	annotated, err := json.Marshal(fields)
	if err != nil {
		return route
	}
	return annotated
}

func simulationRequest(from common.Address, env routeEnvelope, block uint64) (providers.SimulationRequest, error) {
	mp := env.MethodParameters
	if !common.IsHexAddress(mp.To) {
		return providers.SimulationRequest{}, fmt.Errorf("invalid router address %q", mp.To)
	}
	data, err := hexutil.Decode(mp.Calldata)
	if err != nil {
		return providers.SimulationRequest{}, fmt.Errorf("invalid calldata: %w", err)
	}
	value := new(big.Int)
	if mp.Value != "" {
		v, err := hexutil.DecodeBig(mp.Value)
		if err != nil {
			return providers.SimulationRequest{}, fmt.Errorf("invalid value %q: %w", mp.Value, err)
		}
		value = v
	}
	pools := make([]common.Address, 0, len(env.PoolAddresses))
	for _, p := range env.PoolAddresses {
		if common.IsHexAddress(p) {
			pools = append(pools, common.HexToAddress(p))
		}
	}
	return providers.SimulationRequest{
		From:        from,
		To:          common.HexToAddress(mp.To),
		Data:        data,
		Value:       value,
		BlockNumber: block,
		Pools:       pools,
	}, nil
}

func isNull(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
