package registry

import (
	"errors"
	"math/big"
	"testing"
)

func newTestFeed() (*PriceFeed, *memState) {
	state := newMemState()
	feed := NewPriceFeed()
	feed.SetState(state)
	feed.SetAdmin(admin)
	return feed, state
}

func TestSetUnitPriceAdminOnly(t *testing.T) {
	feed, _ := newTestFeed()
	price := big.NewInt(2_500)
	if err := feed.SetUnitPrice(alice, "WAGO", price); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("err = %v, want ErrNotAdmin", err)
	}
	if err := feed.SetUnitPrice(admin, "wago", price); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := feed.UnitPrice("WAGO"); got.Cmp(price) != 0 {
		t.Fatalf("unit price = %s, want %s", got, price)
	}
}

func TestSetUnitPriceRejectsNegative(t *testing.T) {
	feed, _ := newTestFeed()
	if err := feed.SetUnitPrice(admin, "WAGO", big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative price rejection")
	}
	if err := feed.SetUnitPrice(admin, "WAGO", nil); err == nil {
		t.Fatalf("expected nil price rejection")
	}
}

func TestUnitPriceMissingIsZero(t *testing.T) {
	feed, _ := newTestFeed()
	if got := feed.UnitPrice("WAGO"); got.Sign() != 0 {
		t.Fatalf("unit price = %s, want 0", got)
	}
}

func TestQuoteScalesByUnitPrice(t *testing.T) {
	feed, _ := newTestFeed()
	// 2 reference units per token, 18 decimals.
	unit := new(big.Int).Mul(big.NewInt(2), big.NewInt(1_000_000_000_000_000_000))
	if err := feed.SetUnitPrice(admin, "WAGO", unit); err != nil {
		t.Fatalf("set: %v", err)
	}
	amount := new(big.Int).Mul(big.NewInt(3), big.NewInt(1_000_000_000_000_000_000))
	want := new(big.Int).Mul(big.NewInt(6), big.NewInt(1_000_000_000_000_000_000))
	if got := feed.Quote("WAGO", amount); got.Cmp(want) != 0 {
		t.Fatalf("quote = %s, want %s", got, want)
	}
}

func TestQuoteDegradesToZero(t *testing.T) {
	feed, _ := newTestFeed()
	if got := feed.Quote("WAGO", big.NewInt(100)); got.Sign() != 0 {
		t.Fatalf("missing quote = %s, want 0", got)
	}
	if err := feed.SetUnitPrice(admin, "WAGO", big.NewInt(1)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := feed.Quote("WAGO", nil); got.Sign() != 0 {
		t.Fatalf("nil amount quote = %s, want 0", got)
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 300)
	if err := feed.SetUnitPrice(admin, "WAGO", huge); err != nil {
		t.Fatalf("set huge: %v", err)
	}
	if got := feed.Quote("WAGO", huge); got.Sign() != 0 {
		t.Fatalf("overflowing quote = %s, want 0", got)
	}
}
