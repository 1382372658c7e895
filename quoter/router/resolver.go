package router

import (
	"context"
	"fmt"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/providers"
	"github.com/anz-io/smart-order-router/quoter/qerr"
)

// TokenResolver turns a raw identifier (native alias, symbol or address) into a Currency
type TokenResolver struct {
	chainID  chain.ChainID
	registry *chain.Registry
	tokens   providers.TokenProvider
}

func NewTokenResolver(chainID chain.ChainID, registry *chain.Registry, tokens providers.TokenProvider) *TokenResolver {
	return &TokenResolver{chainID: chainID, registry: registry, tokens: tokens}
}

// Resolve checks the chain's native aliases first, without touching any provider.
// Identifiers no provider knows yield an unknown-currency validation error.
func (r *TokenResolver) Resolve(ctx context.Context, raw string) (chain.Currency, error) {
	if r.registry.IsNativeAlias(r.chainID, raw) {
		native, err := chain.Native(r.chainID)
		if err != nil {
			return nil, qerr.Wrap(qerr.CodeValidation, "unsupported chain", err)
		}
		return native, nil
	}

	acc, err := r.tokens.GetTokens(ctx, []string{raw})
	if err != nil {
		return nil, fmt.Errorf("lookup token %q: %w", raw, err)
	}
	if t, ok := acc.ByAddress(raw); ok {
		return t, nil
	}
	if t, ok := acc.BySymbol(raw); ok {
		return t, nil
	}
	return nil, qerr.Newf(qerr.CodeValidation, "unknown currency %q on chain %d", raw, uint64(r.chainID))
}
