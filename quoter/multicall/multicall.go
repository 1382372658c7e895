// Package multicall batches contract reads into a single eth_call through Multicall3.
package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Multicall3 is deployed at the same address on every supported chain
var DefaultAddress = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

const multicall3ABI = `[
  {"inputs":[{"components":[
      {"internalType":"address","name":"target","type":"address"},
      {"internalType":"bool","name":"allowFailure","type":"bool"},
      {"internalType":"bytes","name":"callData","type":"bytes"}],
    "internalType":"struct Multicall3.Call3[]","name":"calls","type":"tuple[]"}],
   "name":"aggregate3",
   "outputs":[{"components":[
      {"internalType":"bool","name":"success","type":"bool"},
      {"internalType":"bytes","name":"returnData","type":"bytes"}],
    "internalType":"struct Multicall3.Result[]","name":"returnData","type":"tuple[]"}],
   "stateMutability":"payable","type":"function"}
]`

// ABI is the parsed Multicall3 aggregate3 interface
var ABI = MustParseABI(multicall3ABI)

// Caller is the subset of an RPC client needed to run a batch
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Call is one read in a batch
type Call struct {
	Target       common.Address `abi:"target"`
	AllowFailure bool           `abi:"allowFailure"`
	CallData     []byte         `abi:"callData"`
}

// Result is the outcome of one Call, in request order
type Result struct {
	Success    bool   `abi:"success"`
	ReturnData []byte `abi:"returnData"`
}

// Provider sends batches for one chain
type Provider struct {
	client  Caller
	address common.Address
}

func NewProvider(client Caller) *Provider {
	return NewProviderAt(client, DefaultAddress)
}

func NewProviderAt(client Caller, address common.Address) *Provider {
	return &Provider{client: client, address: address}
}

// Address returns the Multicall3 contract this provider targets
func (p *Provider) Address() common.Address {
	return p.address
}

// Aggregate runs calls in one eth_call at blockNumber (nil means latest).
// A failed call with AllowFailure unset reverts the whole batch.
func (p *Provider) Aggregate(ctx context.Context, calls []Call, blockNumber *big.Int) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	data, err := ABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}
	raw, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &p.address, Data: data}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("multicall eth_call: %w", err)
	}
	out, err := ABI.Unpack("aggregate3", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected aggregate3 output length %d", len(out))
	}
	results := *abi.ConvertType(out[0], new([]Result)).(*[]Result)
	if len(results) != len(calls) {
		return nil, fmt.Errorf("multicall returned %d results for %d calls", len(results), len(calls))
	}
	return results, nil
}

// MustParseABI parses a JSON ABI known at compile time and panics if it is malformed
func MustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
