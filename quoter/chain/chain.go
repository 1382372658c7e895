package chain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ChainID is an EVM chain id
type ChainID uint64

const (
	Mainnet     ChainID = 1
	Optimism    ChainID = 10
	BNB         ChainID = 56
	Polygon     ChainID = 137
	Base        ChainID = 8453
	ArbitrumOne ChainID = 42161
	Celo        ChainID = 42220
	Avalanche   ChainID = 43114
	Sepolia     ChainID = 11155111
)

// NativeSentinelAddress is the placeholder address many clients send for the native currency
const NativeSentinelAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// Info is the static description of a supported chain
type Info struct {
	ID            ChainID
	Name          string
	RPCURL        string
	NativeSymbol  string
	NativeName    string
	NativeAliases []string
	WrappedNative common.Address
	WrappedSymbol string
	WrappedName   string
}

var ethAliases = []string{"ETH", "ETHER", NativeSentinelAddress}

var supported = map[ChainID]Info{
	Mainnet: {
		ID: Mainnet, Name: "mainnet", RPCURL: "https://eth.llamarpc.com",
		NativeSymbol: "ETH", NativeName: "Ether", NativeAliases: ethAliases,
		WrappedNative: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		WrappedSymbol: "WETH", WrappedName: "Wrapped Ether",
	},
	Optimism: {
		ID: Optimism, Name: "optimism", RPCURL: "https://mainnet.optimism.io",
		NativeSymbol: "ETH", NativeName: "Ether", NativeAliases: ethAliases,
		WrappedNative: common.HexToAddress("0x4200000000000000000000000000000000000006"),
		WrappedSymbol: "WETH", WrappedName: "Wrapped Ether",
	},
	BNB: {
		ID: BNB, Name: "bnb", RPCURL: "https://bsc-dataseed.bnbchain.org",
		NativeSymbol: "BNB", NativeName: "BNB", NativeAliases: []string{"BNB", NativeSentinelAddress},
		WrappedNative: common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"),
		WrappedSymbol: "WBNB", WrappedName: "Wrapped BNB",
	},
	Polygon: {
		ID: Polygon, Name: "polygon", RPCURL: "https://polygon-rpc.com",
		NativeSymbol: "MATIC", NativeName: "Polygon Matic", NativeAliases: []string{"MATIC", NativeSentinelAddress},
		WrappedNative: common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"),
		WrappedSymbol: "WMATIC", WrappedName: "Wrapped MATIC",
	},
	Base: {
		ID: Base, Name: "base", RPCURL: "https://mainnet.base.org",
		NativeSymbol: "ETH", NativeName: "Ether", NativeAliases: ethAliases,
		WrappedNative: common.HexToAddress("0x4200000000000000000000000000000000000006"),
		WrappedSymbol: "WETH", WrappedName: "Wrapped Ether",
	},
	ArbitrumOne: {
		ID: ArbitrumOne, Name: "arbitrum", RPCURL: "https://arb1.arbitrum.io/rpc",
		NativeSymbol: "ETH", NativeName: "Ether", NativeAliases: ethAliases,
		WrappedNative: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
		WrappedSymbol: "WETH", WrappedName: "Wrapped Ether",
	},
	Celo: {
		ID: Celo, Name: "celo", RPCURL: "https://forno.celo.org",
		NativeSymbol: "CELO", NativeName: "Celo", NativeAliases: []string{"CELO"},
		WrappedNative: common.HexToAddress("0x471EcE3750Da237f93B8E339c536989b8978a438"),
		WrappedSymbol: "CELO", WrappedName: "Celo native asset",
	},
	Avalanche: {
		ID: Avalanche, Name: "avalanche", RPCURL: "https://api.avax.network/ext/bc/C/rpc",
		NativeSymbol: "AVAX", NativeName: "Avalanche", NativeAliases: []string{"AVAX", "AVALANCHE", NativeSentinelAddress},
		WrappedNative: common.HexToAddress("0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7"),
		WrappedSymbol: "WAVAX", WrappedName: "Wrapped AVAX",
	},
	Sepolia: {
		ID: Sepolia, Name: "sepolia", RPCURL: "https://rpc.sepolia.org",
		NativeSymbol: "ETH", NativeName: "Ether", NativeAliases: ethAliases,
		WrappedNative: common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14"),
		WrappedSymbol: "WETH", WrappedName: "Wrapped Ether",
	},
}

// Lookup returns the static description for id
func Lookup(id ChainID) (Info, bool) {
	info, ok := supported[id]
	return info, ok
}

// Supported returns every known chain id in ascending order
func Supported() []ChainID {
	ids := make([]ChainID, 0, len(supported))
	for id := range supported {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (id ChainID) String() string {
	if info, ok := supported[id]; ok {
		return info.Name
	}
	return fmt.Sprintf("chain-%d", uint64(id))
}

// Registry holds the per-process chain settings: RPC endpoints and native aliases,
// seeded from the built-in table and optionally overridden from config.
type Registry struct {
	endpoints map[ChainID]string
	aliases   map[ChainID][]string
}

// NewRegistry returns a registry populated with the built-in defaults
func NewRegistry() *Registry {
	r := &Registry{
		endpoints: make(map[ChainID]string, len(supported)),
		aliases:   make(map[ChainID][]string, len(supported)),
	}
	for id, info := range supported {
		r.endpoints[id] = info.RPCURL
		r.aliases[id] = slices.Clone(info.NativeAliases)
	}
	return r
}

// SetEndpoint overrides the RPC endpoint for a supported chain
func (r *Registry) SetEndpoint(id ChainID, url string) error {
	if _, ok := supported[id]; !ok {
		return fmt.Errorf("chain %d is not supported", uint64(id))
	}
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("empty rpc url for chain %s", id)
	}
	r.endpoints[id] = url
	return nil
}

// AddNativeAliases appends extra identifiers that resolve to the native currency of id
func (r *Registry) AddNativeAliases(id ChainID, aliases ...string) error {
	if _, ok := supported[id]; !ok {
		return fmt.Errorf("chain %d is not supported", uint64(id))
	}
	for _, a := range aliases {
		if a == "" || slices.Contains(r.aliases[id], a) {
			continue
		}
		r.aliases[id] = append(r.aliases[id], a)
	}
	return nil
}

// Endpoint returns the RPC endpoint for id
func (r *Registry) Endpoint(id ChainID) (string, error) {
	url, ok := r.endpoints[id]
	if !ok || url == "" {
		return "", fmt.Errorf("no rpc endpoint for chain %d", uint64(id))
	}
	return url, nil
}

// IsNativeAlias reports whether raw names the native currency of id.
// The comparison is exact, so "eth" is not an alias where "ETH" is.
func (r *Registry) IsNativeAlias(id ChainID, raw string) bool {
	return slices.Contains(r.aliases[id], raw)
}
