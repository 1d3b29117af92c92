package registry

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var errNilPriceState = errors.New("price feed: state not configured")

// quoteUnit scales quotes by one whole token (18 decimals), matching the
// denomination the feed stores unit prices in.
var quoteUnit = uint256.NewInt(1_000_000_000_000_000_000)

type priceState interface {
	PriceGet(symbol string) (*big.Int, bool)
	PricePut(symbol string, price *big.Int) error
}

// PriceFeed reports informational unit prices for telemetry. It is never on
// the settlement critical path: a missing or malformed quote yields zero, not
// an error.
type PriceFeed struct {
	state priceState
	admin [20]byte
}

// NewPriceFeed creates a price feed.
func NewPriceFeed() *PriceFeed {
	return &PriceFeed{}
}

// SetState configures the state backend.
func (f *PriceFeed) SetState(state priceState) { f.state = state }

// SetAdmin configures the account allowed to push quotes.
func (f *PriceFeed) SetAdmin(addr [20]byte) { f.admin = addr }

// SetUnitPrice stores the oracle quote for symbol. Admin only.
func (f *PriceFeed) SetUnitPrice(caller [20]byte, symbol string, price *big.Int) error {
	if f == nil || f.state == nil {
		return errNilPriceState
	}
	if caller != f.admin || f.admin == ([20]byte{}) {
		return ErrNotAdmin
	}
	if price == nil || price.Sign() < 0 {
		return errors.New("pricefeed: price must be non-negative")
	}
	return f.state.PricePut(normalizeSymbol(symbol), new(big.Int).Set(price))
}

// UnitPrice returns the stored quote for symbol, zero when absent.
func (f *PriceFeed) UnitPrice(symbol string) *big.Int {
	if f == nil || f.state == nil {
		return big.NewInt(0)
	}
	price, ok := f.state.PriceGet(normalizeSymbol(symbol))
	if !ok || price == nil || price.Sign() < 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(price)
}

// Quote converts an amount of symbol into the feed's reference denomination.
// Overflow or a missing quote reports zero rather than failing the caller.
func (f *PriceFeed) Quote(symbol string, amount *big.Int) *big.Int {
	unit := f.UnitPrice(symbol)
	if unit.Sign() == 0 || amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	amt, overflow := uint256.FromBig(amount)
	if overflow {
		return big.NewInt(0)
	}
	quote, overflow := uint256.FromBig(unit)
	if overflow {
		return big.NewInt(0)
	}
	product, overflow := new(uint256.Int).MulOverflow(amt, quote)
	if overflow {
		return big.NewInt(0)
	}
	product.Div(product, quoteUnit)
	return product.ToBig()
}
