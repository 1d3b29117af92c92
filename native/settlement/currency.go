package settlement

import (
	"fmt"
	"strings"
)

// NativeSymbol is the reserved display symbol of the chain's native coin.
const NativeSymbol = "AGO"

// Currency is a tagged variant over the two accepted payment kinds: the
// native coin and fungible tokens identified by symbol. The zero value is not
// valid; construct through NativeCurrency or TokenCurrency.
type Currency struct {
	symbol string
	native bool
}

// NativeCurrency returns the native coin variant.
func NativeCurrency() Currency {
	return Currency{symbol: NativeSymbol, native: true}
}

// TokenCurrency returns the fungible token variant for symbol. The native
// symbol is rejected so the two kinds cannot be conflated.
func TokenCurrency(symbol string) (Currency, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return Currency{}, fmt.Errorf("settlement: empty token symbol")
	}
	if trimmed == NativeSymbol {
		return Currency{}, fmt.Errorf("settlement: %s is the native coin, not a token", NativeSymbol)
	}
	return Currency{symbol: trimmed}, nil
}

// ParseCurrency resolves a display symbol into the matching variant.
func ParseCurrency(symbol string) (Currency, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == NativeSymbol {
		return NativeCurrency(), nil
	}
	return TokenCurrency(trimmed)
}

// IsNative reports whether the currency is the native coin.
func (c Currency) IsNative() bool { return c.native }

// Symbol returns the display symbol; NativeSymbol for the native coin.
func (c Currency) Symbol() string {
	if c.native {
		return NativeSymbol
	}
	return c.symbol
}

func (c Currency) String() string { return c.Symbol() }

// Valid reports whether the currency was built through a constructor.
func (c Currency) Valid() bool {
	return c.native || c.symbol != ""
}

// Equal reports whether both values denote the same currency.
func (c Currency) Equal(o Currency) bool {
	return c.native == o.native && c.Symbol() == o.Symbol()
}

// MarshalText encodes the currency as its display symbol.
func (c Currency) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("settlement: cannot encode zero currency")
	}
	return []byte(c.Symbol()), nil
}

// UnmarshalText decodes a display symbol.
func (c *Currency) UnmarshalText(data []byte) error {
	parsed, err := ParseCurrency(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
