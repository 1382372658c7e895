package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SimulationStatus is the outcome of a transaction simulation
type SimulationStatus string

const (
	SimulationSucceeded SimulationStatus = "SUCCEEDED"
	SimulationFailed    SimulationStatus = "FAILED"
)

// SimulationRequest describes the swap transaction to simulate
type SimulationRequest struct {
	From        common.Address
	To          common.Address
	Data        []byte
	Value       *big.Int
	BlockNumber uint64
	// Pools the route trades through; they must hold liquidity at BlockNumber
	Pools []common.Address
}

// SimulationResult is what a simulator reports back
type SimulationResult struct {
	Simulator   string           `json:"simulator"`
	Status      SimulationStatus `json:"status"`
	GasEstimate uint64           `json:"gasEstimate"`
	Pools       []*PoolState     `json:"pools,omitempty"`
}

// Simulator estimates the gas a swap transaction will use
type Simulator interface {
	Name() string
	Simulate(ctx context.Context, req SimulationRequest) (*SimulationResult, error)
}

// ErrSimulatorNotConfigured is returned by simulators missing credentials
var ErrSimulatorNotConfigured = errors.New("simulator not configured")

// TenderlyConfig holds the Tenderly API settings. Empty credentials disable the simulator.
type TenderlyConfig struct {
	BaseURL   string
	User      string
	Project   string
	AccessKey string
	Timeout   time.Duration
}

// DefaultTenderlyConfig returns the public API base with no credentials
func DefaultTenderlyConfig() TenderlyConfig {
	return TenderlyConfig{
		BaseURL: "https://api.tenderly.co",
		Timeout: 10 * time.Second,
	}
}

func (c TenderlyConfig) configured() bool {
	return c.BaseURL != "" && c.User != "" && c.Project != "" && c.AccessKey != ""
}

// TenderlySimulator simulates against Tenderly's hosted simulation API
type TenderlySimulator struct {
	chainID    chain.ChainID
	config     TenderlyConfig
	httpClient *http.Client
}

func NewTenderlySimulator(chainID chain.ChainID, config TenderlyConfig, httpClient *http.Client) *TenderlySimulator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &TenderlySimulator{chainID: chainID, config: config, httpClient: httpClient}
}

func (s *TenderlySimulator) Name() string { return "tenderly" }

type tenderlyRequest struct {
	NetworkID      string `json:"network_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	Input          string `json:"input"`
	Value          string `json:"value"`
	BlockNumber    uint64 `json:"block_number,omitempty"`
	Save           bool   `json:"save"`
	SimulationType string `json:"simulation_type"`
}

type tenderlyResponse struct {
	Simulation struct {
		Status  bool   `json:"status"`
		GasUsed uint64 `json:"gas_used"`
	} `json:"simulation"`
}

func (s *TenderlySimulator) Simulate(ctx context.Context, req SimulationRequest) (*SimulationResult, error) {
	if !s.config.configured() {
		return nil, ErrSimulatorNotConfigured
	}

	value := "0"
	if req.Value != nil {
		value = req.Value.String()
	}
	body, err := json.Marshal(tenderlyRequest{
		NetworkID:      strconv.FormatUint(uint64(s.chainID), 10),
		From:           req.From.Hex(),
		To:             req.To.Hex(),
		Input:          hexutil.Encode(req.Data),
		Value:          value,
		BlockNumber:    req.BlockNumber,
		SimulationType: "quick",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tenderly request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/account/%s/project/%s/simulate",
		strings.TrimRight(s.config.BaseURL, "/"), s.config.User, s.config.Project)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tenderly request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Access-Key", s.config.AccessKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tenderly request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tenderly response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tenderly HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var decoded tenderlyResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parse tenderly response: %w", err)
	}
	status := SimulationSucceeded
	if !decoded.Simulation.Status {
		status = SimulationFailed
	}
	return &SimulationResult{
		Simulator:   s.Name(),
		Status:      status,
		GasEstimate: decoded.Simulation.GasUsed,
	}, nil
}

// GasEstimator is the eth_estimateGas part of an RPC client
type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	EstimateGasAtBlock(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) (uint64, error)
}

// EthEstimateGasSimulator asks the node to estimate the swap transaction at the request's block,
// or at latest when no block is set. A revert during estimation is reported as a failed simulation, not an error.
type EthEstimateGasSimulator struct {
	client GasEstimator
}

func NewEthEstimateGasSimulator(client GasEstimator) *EthEstimateGasSimulator {
	return &EthEstimateGasSimulator{client: client}
}

func (s *EthEstimateGasSimulator) Name() string { return "eth_estimateGas" }

func (s *EthEstimateGasSimulator) Simulate(ctx context.Context, req SimulationRequest) (*SimulationResult, error) {
	to := req.To
	msg := ethereum.CallMsg{
		From:  req.From,
		To:    &to,
		Data:  req.Data,
		Value: req.Value,
	}
	var (
		gas uint64
		err error
	)
	if req.BlockNumber > 0 {
		gas, err = s.client.EstimateGasAtBlock(ctx, msg, new(big.Int).SetUint64(req.BlockNumber))
	} else {
		gas, err = s.client.EstimateGas(ctx, msg)
	}
	if err != nil {
		if isRevert(err) {
			return &SimulationResult{Simulator: s.Name(), Status: SimulationFailed}, nil
		}
		return nil, fmt.Errorf("eth_estimateGas: %w", err)
	}
	return &SimulationResult{Simulator: s.Name(), Status: SimulationSucceeded, GasEstimate: gas}, nil
}

func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// FallbackSimulator checks route pools once, then tries each simulator in order.
// A failing simulator only moves the request on to the next one.
type FallbackSimulator struct {
	pools      PoolProvider
	simulators []Simulator
}

func NewFallbackSimulator(pools PoolProvider, simulators ...Simulator) *FallbackSimulator {
	return &FallbackSimulator{pools: pools, simulators: simulators}
}

func (s *FallbackSimulator) Name() string { return "fallback" }

func (s *FallbackSimulator) Simulate(ctx context.Context, req SimulationRequest) (*SimulationResult, error) {
	snapshot, err := s.checkPools(ctx, req)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, sim := range s.simulators {
		result, err := sim.Simulate(ctx, req)
		if err == nil {
			result.Pools = snapshot
			return result, nil
		}
		if errors.Is(err, ErrSimulatorNotConfigured) {
			log.Debug().Str("simulator", sim.Name()).Msg("Simulator not configured, skipping")
		} else {
			log.Warn().Err(err).Str("simulator", sim.Name()).Msg("Simulation failed, trying next")
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("all simulators failed: %w", errors.Join(errs...))
}

func (s *FallbackSimulator) checkPools(ctx context.Context, req SimulationRequest) ([]*PoolState, error) {
	if s.pools == nil || len(req.Pools) == 0 {
		return nil, nil
	}
	states, err := s.pools.GetPools(ctx, req.Pools, req.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("load route pools: %w", err)
	}
	snapshot := make([]*PoolState, 0, len(req.Pools))
	for _, addr := range req.Pools {
		state, ok := states[addr]
		if !ok {
			return nil, fmt.Errorf("route pool %s not found at block %d", addr.Hex(), req.BlockNumber)
		}
		if !state.HasLiquidity() {
			return nil, fmt.Errorf("route pool %s has no liquidity at block %d", addr.Hex(), req.BlockNumber)
		}
		snapshot = append(snapshot, state)
	}
	return snapshot, nil
}
