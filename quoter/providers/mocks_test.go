package providers_test

import (
	"context"
	"errors"
	"math/big"

	"github.com/anz-io/smart-order-router/quoter/multicall"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MockContracts serves aggregate3 batches from canned per-contract answers, matched on the
// full calldata first and then on the selector
type MockContracts struct {
	answers map[common.Address]map[string][]byte
	batches int
	err     error
}

func NewMockContracts() *MockContracts {
	return &MockContracts{answers: make(map[common.Address]map[string][]byte)}
}

func (m *MockContracts) Answer(target common.Address, method abi.Method, out []byte) {
	if m.answers[target] == nil {
		m.answers[target] = make(map[string][]byte)
	}
	m.answers[target][string(method.ID)] = out
}

// AnswerCall answers one exact calldata, for methods whose result depends on arguments
func (m *MockContracts) AnswerCall(target common.Address, calldata []byte, out []byte) {
	if m.answers[target] == nil {
		m.answers[target] = make(map[string][]byte)
	}
	m.answers[target][string(calldata)] = out
}

func (m *MockContracts) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.batches++
	if m.err != nil {
		return nil, m.err
	}
	method := multicall.ABI.Methods["aggregate3"]
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(args[0], new([]multicall.Call)).(*[]multicall.Call)
	results := make([]multicall.Result, len(calls))
	for i, call := range calls {
		out, ok := m.answers[call.Target][string(call.CallData)]
		if !ok {
			out, ok = m.answers[call.Target][string(call.CallData[:4])]
		}
		if !ok {
			if !call.AllowFailure {
				return nil, errors.New("execution reverted")
			}
			results[i] = multicall.Result{Success: false, ReturnData: []byte{}}
			continue
		}
		results[i] = multicall.Result{Success: true, ReturnData: out}
	}
	return method.Outputs.Pack(results)
}

// MockGasClient implements the fee history, gas price and estimate reads.
// EstimateGasFunc receives the estimate block, nil meaning latest.
type MockGasClient struct {
	FeeHistoryFunc      func() (*ethereum.FeeHistory, error)
	SuggestGasPriceFunc func() (*big.Int, error)
	EstimateGasFunc     func(msg ethereum.CallMsg, block *big.Int) (uint64, error)
	feeHistoryCalls     int
	gasPriceCalls       int
}

func (m *MockGasClient) FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error) {
	m.feeHistoryCalls++
	return m.FeeHistoryFunc()
}

func (m *MockGasClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	m.gasPriceCalls++
	return m.SuggestGasPriceFunc()
}

func (m *MockGasClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return m.EstimateGasFunc(msg, nil)
}

func (m *MockGasClient) EstimateGasAtBlock(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) (uint64, error) {
	return m.EstimateGasFunc(msg, blockNumber)
}
