package router_test

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/models"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/anz-io/smart-order-router/quoter/router"
	"github.com/ethereum/go-ethereum"
)

// MockChainClient serves a fixed block height and counts every read
type MockChainClient struct {
	mu            sync.Mutex
	block         uint64
	blockErr      error
	blockCalls    int
	contractCalls int
	closed        int
}

func (m *MockChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockCalls++
	return m.block, m.blockErr
}

func (m *MockChainClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contractCalls++
	return nil, errors.New("no contracts deployed")
}

func (m *MockChainClient) FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error) {
	return nil, errors.New("fee history unsupported")
}

func (m *MockChainClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(20_000_000_000), nil
}

func (m *MockChainClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 150_000, nil
}

func (m *MockChainClient) EstimateGasAtBlock(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) (uint64, error) {
	return 150_000, nil
}

func (m *MockChainClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *MockChainClient) Dialer() router.Dialer {
	return func(ctx context.Context, url string) (router.ChainClient, error) {
		return m, nil
	}
}

// StubEngine records each Route call and answers with a canned route
type StubEngine struct {
	mu    sync.Mutex
	route models.SwapRoute
	err   error
	block bool
	calls []RouteCall
	envs  []*router.Environment
}

type RouteCall struct {
	Amount        chain.CurrencyAmount
	QuoteCurrency chain.Currency
	TradeType     models.TradeType
	SwapOptions   *models.SwapOptions
	Config        models.RouteSearchConfig
}

func (s *StubEngine) NewRoutingEngine(env *router.Environment) (router.RoutingEngine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs = append(s.envs, env)
	return s, nil
}

func (s *StubEngine) Route(ctx context.Context, amount chain.CurrencyAmount, quoteCurrency chain.Currency, tradeType models.TradeType,
	swapOptions *models.SwapOptions, cfg models.RouteSearchConfig) (models.SwapRoute, error) {
	s.mu.Lock()
	s.calls = append(s.calls, RouteCall{amount, quoteCurrency, tradeType, swapOptions, cfg})
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.route, s.err
}

func (s *StubEngine) Calls() []RouteCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RouteCall(nil), s.calls...)
}

// CountingTokenProvider counts lookups and answers from a fixed accessor
type CountingTokenProvider struct {
	mu     sync.Mutex
	tokens []*chain.Token
	calls  int
}

func (p *CountingTokenProvider) GetTokens(ctx context.Context, identifiers []string) (*providers.TokenAccessor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return providers.NewTokenAccessor(p.tokens...), nil
}
