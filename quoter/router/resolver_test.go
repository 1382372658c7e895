package router_test

import (
	"context"
	"testing"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/qerr"
	"github.com/anz-io/smart-order-router/quoter/router"
	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/assert"
)

func TestResolveNativeAliasSkipsLookups(t *testing.T) {
	for _, tc := range []struct {
		chainID chain.ChainID
		alias   string
		symbol  string
	}{
		{chain.Mainnet, "ETH", "ETH"},
		{chain.Mainnet, chain.NativeSentinelAddress, "ETH"},
		{chain.BNB, "BNB", "BNB"},
		{chain.Polygon, "MATIC", "MATIC"},
		{chain.Avalanche, "AVAX", "AVAX"},
		{chain.Celo, "CELO", "CELO"},
	} {
		tokens := &CountingTokenProvider{}
		r := router.NewTokenResolver(tc.chainID, chain.NewRegistry(), tokens)

		c, err := r.Resolve(context.Background(), tc.alias)
		assert.NoError(t, err)
		assert.True(t, c.IsNative())
		assert.Equal(t, c.ChainID(), tc.chainID)
		assert.Equal(t, c.Symbol(), tc.symbol)
		assert.Equal(t, tokens.calls, 0)
	}
}

func TestResolveAliasIsCaseSensitive(t *testing.T) {
	tokens := &CountingTokenProvider{}
	r := router.NewTokenResolver(chain.Mainnet, chain.NewRegistry(), tokens)

	_, err := r.Resolve(context.Background(), "eth")
	assert.True(t, qerr.IsValidation(err))
	assert.Equal(t, tokens.calls, 1)
}

func TestResolveTokenByAddressAndSymbol(t *testing.T) {
	usdc := chain.NewToken(chain.Mainnet, common.HexToAddress(usdcAddr), 6, "USDC", "USD Coin")
	tokens := &CountingTokenProvider{tokens: []*chain.Token{usdc}}
	r := router.NewTokenResolver(chain.Mainnet, chain.NewRegistry(), tokens)

	byAddr, err := r.Resolve(context.Background(), "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	assert.NoError(t, err)
	assert.True(t, byAddr.Equals(usdc))

	bySym, err := r.Resolve(context.Background(), "USDC")
	assert.NoError(t, err)
	assert.True(t, bySym.Equals(usdc))
	assert.Equal(t, tokens.calls, 2)
}

func TestResolveExtraAliasFromRegistry(t *testing.T) {
	reg := chain.NewRegistry()
	assert.NoError(t, reg.AddNativeAliases(chain.Base, "WEI"))
	r := router.NewTokenResolver(chain.Base, reg, &CountingTokenProvider{})

	c, err := r.Resolve(context.Background(), "WEI")
	assert.NoError(t, err)
	assert.True(t, c.IsNative())
}
