package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/multicall"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/assert"
)

var swapTx = providers.SimulationRequest{
	From:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
	To:          common.HexToAddress("0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD"),
	Data:        []byte{0x35, 0x93, 0x56, 0x4c},
	Value:       big.NewInt(0),
	BlockNumber: 19_000_000,
}

func TestTenderlySimulatorRequiresCredentials(t *testing.T) {
	sim := providers.NewTenderlySimulator(chain.Mainnet, providers.DefaultTenderlyConfig(), nil)
	_, err := sim.Simulate(context.Background(), swapTx)
	assert.True(t, errors.Is(err, providers.ErrSimulatorNotConfigured))
}

func TestTenderlySimulator(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Access-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"simulation":{"status":true,"gas_used":143210}}`))
	}))
	defer server.Close()

	cfg := providers.DefaultTenderlyConfig()
	cfg.BaseURL = server.URL
	cfg.User, cfg.Project, cfg.AccessKey = "acme", "router", "secret"

	result, err := providers.NewTenderlySimulator(chain.Mainnet, cfg, server.Client()).Simulate(context.Background(), swapTx)
	assert.NoError(t, err)
	assert.Equal(t, result.Status, providers.SimulationSucceeded)
	assert.Equal(t, result.GasEstimate, uint64(143210))
	assert.Equal(t, gotPath, "/api/v1/account/acme/project/router/simulate")
	assert.Equal(t, gotKey, "secret")
	assert.Equal(t, gotBody["network_id"], "1")
	assert.Equal(t, gotBody["input"], "0x3593564c")
}

func TestTenderlySimulatorHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := providers.TenderlyConfig{BaseURL: server.URL, User: "u", Project: "p", AccessKey: "k"}
	_, err := providers.NewTenderlySimulator(chain.Mainnet, cfg, server.Client()).Simulate(context.Background(), swapTx)
	assert.Error(t, err)
}

func TestEthEstimateGasSimulator(t *testing.T) {
	client := &MockGasClient{EstimateGasFunc: func(msg ethereum.CallMsg, block *big.Int) (uint64, error) {
		assert.Equal(t, *msg.To, swapTx.To)
		return 150_000, nil
	}}
	result, err := providers.NewEthEstimateGasSimulator(client).Simulate(context.Background(), swapTx)
	assert.NoError(t, err)
	assert.Equal(t, result.GasEstimate, uint64(150_000))

	client.EstimateGasFunc = func(ethereum.CallMsg, *big.Int) (uint64, error) {
		return 0, errors.New("execution reverted: Too little received")
	}
	result, err = providers.NewEthEstimateGasSimulator(client).Simulate(context.Background(), swapTx)
	assert.NoError(t, err)
	assert.Equal(t, result.Status, providers.SimulationFailed)
}

func TestEthEstimateGasSimulatorPinsBlock(t *testing.T) {
	var got *big.Int
	client := &MockGasClient{EstimateGasFunc: func(msg ethereum.CallMsg, block *big.Int) (uint64, error) {
		got = block
		return 150_000, nil
	}}
	sim := providers.NewEthEstimateGasSimulator(client)

	_, err := sim.Simulate(context.Background(), swapTx)
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, got.Uint64(), swapTx.BlockNumber)

	latest := swapTx
	latest.BlockNumber = 0
	_, err = sim.Simulate(context.Background(), latest)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestFallbackSimulatorFallsBackToEstimateGas(t *testing.T) {
	client := &MockGasClient{EstimateGasFunc: func(ethereum.CallMsg, *big.Int) (uint64, error) { return 120_000, nil }}
	sim := providers.NewFallbackSimulator(nil,
		providers.NewTenderlySimulator(chain.Mainnet, providers.DefaultTenderlyConfig(), nil),
		providers.NewEthEstimateGasSimulator(client),
	)

	result, err := sim.Simulate(context.Background(), swapTx)
	assert.NoError(t, err)
	assert.Equal(t, result.Simulator, "eth_estimateGas")
	assert.Equal(t, result.GasEstimate, uint64(120_000))
}

func TestFallbackSimulatorChecksRoutePools(t *testing.T) {
	contracts := NewMockContracts()
	poolAnswers(contracts, poolA, big.NewInt(1<<40), big.NewInt(1), big.NewInt(1000))
	poolAnswers(contracts, poolB, big.NewInt(1<<40), big.NewInt(1), big.NewInt(0))
	pools := providers.NewV3PoolProvider(multicall.NewProvider(contracts))
	client := &MockGasClient{EstimateGasFunc: func(ethereum.CallMsg, *big.Int) (uint64, error) { return 120_000, nil }}
	sim := providers.NewFallbackSimulator(pools, providers.NewEthEstimateGasSimulator(client))

	req := swapTx
	req.Pools = []common.Address{poolA}
	result, err := sim.Simulate(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, len(result.Pools), 1)

	req.Pools = []common.Address{poolA, poolB}
	_, err = sim.Simulate(context.Background(), req)
	assert.Error(t, err)
}

func TestFallbackSimulatorV2Route(t *testing.T) {
	contracts := NewMockContracts()
	poolAnswers(contracts, poolA, big.NewInt(1<<40), big.NewInt(1), big.NewInt(1000))
	pairAnswers(contracts, pairA, big.NewInt(5_000_000), big.NewInt(2_000))
	mc := multicall.NewProvider(contracts)
	pools := providers.NewCompositePoolProvider(providers.NewV3PoolProvider(mc), providers.NewV2PoolProvider(mc))

	estimated := false
	client := &MockGasClient{EstimateGasFunc: func(ethereum.CallMsg, *big.Int) (uint64, error) {
		estimated = true
		return 180_000, nil
	}}
	sim := providers.NewFallbackSimulator(pools,
		providers.NewTenderlySimulator(chain.Mainnet, providers.DefaultTenderlyConfig(), nil),
		providers.NewEthEstimateGasSimulator(client),
	)

	req := swapTx
	req.Pools = []common.Address{poolA, pairA}
	result, err := sim.Simulate(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, estimated)
	assert.Equal(t, result.Simulator, "eth_estimateGas")
	assert.Equal(t, len(result.Pools), 2)
	assert.Equal(t, result.Pools[1].Protocol, providers.ProtocolV2)

	pairAnswers(contracts, pairB, big.NewInt(0), big.NewInt(2_000))
	req.Pools = []common.Address{pairB}
	_, err = sim.Simulate(context.Background(), req)
	assert.Error(t, err)
}
