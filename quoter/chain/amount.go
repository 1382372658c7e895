package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// maxUint256Digits is the decimal length of 2^256-1
const maxUint256Digits = 78

// CurrencyAmount is a raw fixed-point amount of a currency
type CurrencyAmount struct {
	Currency Currency
	Raw      *big.Int
}

// ParseAmount converts a human decimal string ("1.5") into raw units of c.
// Precision beyond the currency's decimals is an error rather than a silent truncation.
func ParseAmount(value string, c Currency) (CurrencyAmount, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return CurrencyAmount{}, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return CurrencyAmount{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}

	if d.Sign() == 0 {
		return CurrencyAmount{Currency: c, Raw: new(big.Int)}, nil
	}
	// Bound the exponent before scaling; 10^exp is materialized otherwise.
	exp := int64(d.Exponent()) + int64(c.Decimals())
	digits := int64(d.NumDigits())
	if digits+exp > maxUint256Digits {
		return CurrencyAmount{}, fmt.Errorf("amount %q exceeds uint256", value)
	}
	if exp <= -digits {
		return CurrencyAmount{}, fmt.Errorf("amount %q has more than %d decimals", value, c.Decimals())
	}

	scaled := d.Shift(int32(c.Decimals()))
	if !scaled.IsInteger() {
		return CurrencyAmount{}, fmt.Errorf("amount %q has more than %d decimals", value, c.Decimals())
	}

	raw := scaled.BigInt()
	if new(big.Int).Abs(raw).Cmp(math.MaxBig256) > 0 {
		return CurrencyAmount{}, fmt.Errorf("amount %q exceeds uint256", value)
	}
	return CurrencyAmount{Currency: c, Raw: raw}, nil
}

// Decimal renders the amount back in human units
func (a CurrencyAmount) Decimal() decimal.Decimal {
	if a.Raw == nil || a.Currency == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.Raw, -int32(a.Currency.Decimals()))
}

func (a CurrencyAmount) String() string {
	if a.Currency == nil {
		return a.Decimal().String()
	}
	return a.Decimal().String() + " " + a.Currency.Symbol()
}

func (a CurrencyAmount) MarshalJSON() ([]byte, error) {
	raw := "0"
	if a.Raw != nil {
		raw = a.Raw.String()
	}
	return json.Marshal(struct {
		Currency Currency `json:"currency"`
		Raw      string   `json:"raw"`
	}{a.Currency, raw})
}
