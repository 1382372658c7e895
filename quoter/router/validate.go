package router

import (
	"strings"

	"github.com/anz-io/smart-order-router/quoter/chain"
	"github.com/anz-io/smart-order-router/quoter/models"
	"github.com/anz-io/smart-order-router/quoter/qerr"
	"github.com/ethereum/go-ethereum/common"
)

// ValidateChain rejects chain ids with no built-in description
func ValidateChain(id uint64) (chain.ChainID, error) {
	chainID := chain.ChainID(id)
	if _, ok := chain.Lookup(chainID); !ok {
		return 0, qerr.Newf(qerr.CodeValidation, "unsupported chain id %d", id)
	}
	return chainID, nil
}

// ValidateTradeDirection requires exactly one of exactIn and exactOut
func ValidateTradeDirection(exactIn, exactOut bool) (models.TradeType, error) {
	switch {
	case exactIn && !exactOut:
		return models.ExactInput, nil
	case exactOut && !exactIn:
		return models.ExactOutput, nil
	}
	return 0, qerr.New(qerr.CodeValidation, "ambiguous trade direction: set exactly one of exactIn or exactOut")
}

// ParseProtocols parses an optional comma-separated, case-insensitive protocol list.
// Nil or blank input means no filter. Any unknown entry fails the whole list.
func ParseProtocols(raw *string) ([]models.Protocol, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parts := strings.Split(*raw, ",")
	out := make([]models.Protocol, 0, len(parts))
	for _, part := range parts {
		p, ok := models.ParseProtocol(part)
		if !ok {
			log.Debug().Str("protocol", strings.TrimSpace(part)).Msg("unknown protocol in filter")
			return nil, qerr.Newf(qerr.CodeValidation, "Protocols invalid. Valid options: %s", validProtocols())
		}
		out = append(out, p)
	}
	return out, nil
}

func validProtocols() string {
	names := make([]string, len(models.AllProtocols))
	for i, p := range models.AllProtocols {
		names[i] = string(p)
	}
	return strings.Join(names, ",")
}

// ValidateSwapOptions checks the optional swap settings. Nil options are valid.
func ValidateSwapOptions(opts *models.SwapOptions) error {
	if opts == nil {
		return nil
	}
	if !common.IsHexAddress(opts.Recipient) {
		return qerr.Newf(qerr.CodeValidation, "swapOptions.recipient %q is not an address", opts.Recipient)
	}
	if opts.SlippageToleranceBps > 10_000 {
		return qerr.Newf(qerr.CodeValidation, "swapOptions.slippageToleranceBps %d exceeds 10000", opts.SlippageToleranceBps)
	}
	if opts.SimulateFromAddress != nil && !common.IsHexAddress(*opts.SimulateFromAddress) {
		return qerr.Newf(qerr.CodeValidation, "swapOptions.simulateFromAddress %q is not an address", *opts.SimulateFromAddress)
	}
	return nil
}
