package market

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"agora/core/types"
	"agora/native/settlement"
)

type accountStore struct {
	accounts map[[20]byte]*types.Account
}

func newAccountStore() *accountStore {
	return &accountStore{accounts: make(map[[20]byte]*types.Account)}
}

func (s *accountStore) GetAccount(addr [20]byte) (*types.Account, error) {
	if acc, ok := s.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return types.NewAccount(), nil
}

func (s *accountStore) PutAccount(addr [20]byte, account *types.Account) error {
	s.accounts[addr] = account.Clone()
	return nil
}

func (s *accountStore) fund(addr [20]byte, native *big.Int, tokens, allowances map[string]*big.Int) {
	acc := types.NewAccount()
	if native != nil {
		acc.BalanceNative = new(big.Int).Set(native)
	}
	for sym, v := range tokens {
		acc.TokenBalances[sym] = new(big.Int).Set(v)
	}
	for sym, v := range allowances {
		acc.Allowances[sym] = new(big.Int).Set(v)
	}
	s.accounts[addr] = acc
}

func (s *accountStore) native(addr [20]byte) *big.Int {
	acc, _ := s.GetAccount(addr)
	return acc.BalanceNative
}

type itemStore struct {
	balances  map[string]uint64
	approvals map[[40]byte]bool
}

func newItemStore() *itemStore {
	return &itemStore{
		balances:  make(map[string]uint64),
		approvals: make(map[[40]byte]bool),
	}
}

func holdingKey(owner, collection [20]byte, item uint64) string {
	return fmt.Sprintf("%x/%x/%d", owner, collection, item)
}

func (s *itemStore) set(owner, collection [20]byte, item uint64, quantity uint64) {
	s.balances[holdingKey(owner, collection, item)] = quantity
}

func (s *itemStore) approve(owner, operator [20]byte) {
	var key [40]byte
	copy(key[:20], owner[:])
	copy(key[20:], operator[:])
	s.approvals[key] = true
}

func (s *itemStore) revoke(owner, operator [20]byte) {
	var key [40]byte
	copy(key[:20], owner[:])
	copy(key[20:], operator[:])
	delete(s.approvals, key)
}

func (s *itemStore) OwnerOf([20]byte, uint64) ([20]byte, bool, error) {
	return [20]byte{}, false, nil
}

func (s *itemStore) BalanceOf(owner [20]byte, collection [20]byte, item uint64) (uint64, error) {
	return s.balances[holdingKey(owner, collection, item)], nil
}

func (s *itemStore) IsApprovedForAll(owner, operator [20]byte) bool {
	var key [40]byte
	copy(key[:20], owner[:])
	copy(key[20:], operator[:])
	return s.approvals[key]
}

func (s *itemStore) Transfer(collection [20]byte, item uint64, from, to [20]byte, quantity uint64) error {
	fromKey := holdingKey(from, collection, item)
	if s.balances[fromKey] < quantity {
		return errors.New("insufficient item balance")
	}
	s.balances[fromKey] -= quantity
	s.balances[holdingKey(to, collection, item)] += quantity
	return nil
}

type listingStore struct {
	listings map[string]*Listing
	offers   map[string]*Offer
}

func newListingStore() *listingStore {
	return &listingStore{
		listings: make(map[string]*Listing),
		offers:   make(map[string]*Offer),
	}
}

func (s *listingStore) ListingGet(collection [20]byte, item uint64, seller [20]byte) (*Listing, bool) {
	l, ok := s.listings[holdingKey(seller, collection, item)]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

func (s *listingStore) ListingPut(l *Listing) error {
	s.listings[holdingKey(l.Seller, l.Collection, l.ItemID)] = l.Clone()
	return nil
}

func (s *listingStore) ListingDelete(collection [20]byte, item uint64, seller [20]byte) error {
	delete(s.listings, holdingKey(seller, collection, item))
	return nil
}

func (s *listingStore) OfferGet(collection [20]byte, item uint64, buyer [20]byte) (*Offer, bool) {
	o, ok := s.offers[holdingKey(buyer, collection, item)]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

func (s *listingStore) OfferPut(o *Offer) error {
	s.offers[holdingKey(o.Buyer, o.Collection, o.ItemID)] = o.Clone()
	return nil
}

func (s *listingStore) OfferDelete(collection [20]byte, item uint64, buyer [20]byte) error {
	delete(s.offers, holdingKey(buyer, collection, item))
	return nil
}

type acceptedTokens map[string]bool

func (t acceptedTokens) IsAccepted(symbol string) bool { return t[symbol] }

var (
	seller     = [20]byte{0x01}
	buyer      = [20]byte{0x02}
	rival      = [20]byte{0x03}
	feeAccount = [20]byte{0x04}
	collection = [20]byte{0xc0}
)

const testNow int64 = 1_700_000_000

type testEnv struct {
	engine   *Engine
	accounts *accountStore
	items    *itemStore
	store    *listingStore
	now      int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	accounts := newAccountStore()
	items := newItemStore()
	store := newListingStore()

	settle := settlement.NewEngine()
	settle.SetState(accounts)
	settle.SetItems(items)
	settle.SetTokens(acceptedTokens{"WAGO": true, "USDA": true})
	settle.SetWrappedSymbol("WAGO")
	if err := settle.SetPlatformFee(200, feeAccount); err != nil {
		t.Fatalf("set platform fee: %v", err)
	}

	engine := NewEngine(settle)
	engine.SetState(store)
	engine.SetItems(items)

	env := &testEnv{engine: engine, accounts: accounts, items: items, store: store, now: testNow}
	engine.SetNowFunc(func() int64 { return env.now })
	return env
}

func (env *testEnv) list(t *testing.T, quantity uint64, price *big.Int) {
	t.Helper()
	env.items.approve(seller, ModuleAddress)
	if err := env.engine.ListItem(seller, collection, 1, quantity, settlement.NativeCurrency(), price, env.now); err != nil {
		t.Fatalf("list item: %v", err)
	}
}

func TestListItemRequiresBalanceAndApproval(t *testing.T) {
	env := newTestEnv(t)
	price := big.NewInt(1000)

	err := env.engine.ListItem(seller, collection, 1, 1, settlement.NativeCurrency(), price, env.now)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}

	env.items.set(seller, collection, 1, 1)
	err = env.engine.ListItem(seller, collection, 1, 1, settlement.NativeCurrency(), price, env.now)
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("err = %v, want ErrNotApproved", err)
	}

	env.items.approve(seller, ModuleAddress)
	if err := env.engine.ListItem(seller, collection, 1, 1, settlement.NativeCurrency(), price, env.now); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, ok := env.engine.Listing(collection, 1, seller); !ok {
		t.Fatalf("listing not stored")
	}
}

func TestListItemRejectsUnacceptedToken(t *testing.T) {
	env := newTestEnv(t)
	env.items.set(seller, collection, 1, 1)
	env.items.approve(seller, ModuleAddress)
	bogus, err := settlement.TokenCurrency("BOGUS")
	if err != nil {
		t.Fatalf("token currency: %v", err)
	}
	if err := env.engine.ListItem(seller, collection, 1, 1, bogus, big.NewInt(1000), env.now); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("err = %v, want ErrInvalidCurrency", err)
	}
}

func TestUpdateListingOwnerMismatchIsNotListed(t *testing.T) {
	env := newTestEnv(t)
	env.items.set(seller, collection, 1, 1)
	env.list(t, 1, big.NewInt(1000))

	// A caller with no listing of their own sees ErrNotListed, not an
	// ownership error.
	err := env.engine.UpdateListing(rival, collection, 1, settlement.NativeCurrency(), big.NewInt(2000))
	if !errors.Is(err, ErrNotListed) {
		t.Fatalf("err = %v, want ErrNotListed", err)
	}

	if err := env.engine.UpdateListing(seller, collection, 1, settlement.NativeCurrency(), big.NewInt(2000)); err != nil {
		t.Fatalf("update: %v", err)
	}
	listing, _ := env.engine.Listing(collection, 1, seller)
	if listing.UnitPrice.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("price = %s, want 2000", listing.UnitPrice)
	}
}

func TestCancelListing(t *testing.T) {
	env := newTestEnv(t)
	env.items.set(seller, collection, 1, 1)
	env.list(t, 1, big.NewInt(1000))

	if err := env.engine.CancelListing(rival, collection, 1); !errors.Is(err, ErrNotListed) {
		t.Fatalf("err = %v, want ErrNotListed", err)
	}
	if err := env.engine.CancelListing(seller, collection, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok := env.engine.Listing(collection, 1, seller); ok {
		t.Fatalf("listing survived cancel")
	}
	if err := env.engine.CancelListing(seller, collection, 1); !errors.Is(err, ErrNotListed) {
		t.Fatalf("second cancel err = %v, want ErrNotListed", err)
	}
}

func TestBuyItemSettlesAndConsumesListing(t *testing.T) {
	env := newTestEnv(t)
	env.items.set(seller, collection, 1, 1)
	price := big.NewInt(10_000)
	env.list(t, 1, price)
	env.accounts.fund(buyer, price, nil, nil)

	receipt, err := env.engine.BuyItem(buyer, collection, 1, settlement.NativeCurrency(), seller, price)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if receipt.Proceeds.Cmp(big.NewInt(9800)) != 0 {
		t.Fatalf("proceeds = %s, want 9800", receipt.Proceeds)
	}
	if got, _ := env.items.BalanceOf(buyer, collection, 1); got != 1 {
		t.Fatalf("buyer holds %d, want 1", got)
	}
	if _, ok := env.engine.Listing(collection, 1, seller); ok {
		t.Fatalf("listing survived sale")
	}
	if got := env.accounts.native(feeAccount); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("fee account = %s, want 200", got)
	}
}

func TestBuyItemBeforeStartTimeIsNotBuyable(t *testing.T) {
	env := newTestEnv(t)
	env.items.set(seller, collection, 1, 1)
	env.items.approve(seller, ModuleAddress)
	price := big.NewInt(1000)
	if err := env.engine.ListItem(seller, collection, 1, 1, settlement.NativeCurrency(), price, env.now+3600); err != nil {
		t.Fatalf("list: %v", err)
	}
	env.accounts.fund(buyer, price, nil, nil)

	if _, err := env.engine.BuyItem(buyer, collection, 1, settlement.NativeCurrency(), seller, price); !errors.Is(err, ErrNotBuyable) {
		t.Fatalf("err = %v, want ErrNotBuyable", err)
	}

	env.now += 3600
	if _, err := env.engine.BuyItem(buyer, collection, 1, settlement.NativeCurrency(), seller, price); err != nil {
		t.Fatalf("buy after start: %v", err)
	}
}

func TestBuyItemCurrencyMustMatchListing(t *testing.T) {
	env := newTestEnv(t)
	env.items.set(seller, collection, 1, 1)
	price := big.NewInt(1000)
	env.list(t, 1, price)
	env.accounts.fund(buyer, price, map[string]*big.Int{"USDA": price}, map[string]*big.Int{"USDA": price})

	usda, err := settlement.TokenCurrency("USDA")
	if err != nil {
		t.Fatalf("token currency: %v", err)
	}
	if _, err := env.engine.BuyItem(buyer, collection, 1, usda, seller, nil); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("err = %v, want ErrInvalidCurrency", err)
	}
}

func TestBuyItemSellerNoLongerHoldingIsNotOwner(t *testing.T) {
	env := newTestEnv(t)
	env.items.set(seller, collection, 1, 1)
	price := big.NewInt(1000)
	env.list(t, 1, price)
	env.accounts.fund(buyer, price, nil, nil)

	// The seller moved the item away after listing.
	env.items.set(seller, collection, 1, 0)
	if _, err := env.engine.BuyItem(buyer, collection, 1, settlement.NativeCurrency(), seller, price); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestBuyItemRevokedApprovalIsNotApproved(t *testing.T) {
	env := newTestEnv(t)
	env.items.set(seller, collection, 1, 1)
	price := big.NewInt(10_000)
	env.list(t, 1, price)
	env.accounts.fund(buyer, price, nil, nil)

	// The seller pulled the module's approval after listing; the sale must
	// not go through against their will.
	env.items.revoke(seller, ModuleAddress)
	if _, err := env.engine.BuyItem(buyer, collection, 1, settlement.NativeCurrency(), seller, price); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("err = %v, want ErrNotApproved", err)
	}
	if _, ok := env.engine.Listing(collection, 1, seller); !ok {
		t.Fatalf("listing consumed by rejected buy")
	}
	if got := env.accounts.native(buyer); got.Cmp(price) != 0 {
		t.Fatalf("buyer balance = %s, want %s", got, price)
	}
	if got, _ := env.items.BalanceOf(seller, collection, 1); got != 1 {
		t.Fatalf("seller holds %d, want 1", got)
	}
}

func TestBuyItemUnknownListing(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.BuyItem(buyer, collection, 9, settlement.NativeCurrency(), seller, big.NewInt(1)); !errors.Is(err, ErrNotListed) {
		t.Fatalf("err = %v, want ErrNotListed", err)
	}
}

func TestBuyItemInsufficientFundsKeepsListing(t *testing.T) {
	env := newTestEnv(t)
	env.items.set(seller, collection, 1, 1)
	price := big.NewInt(1000)
	env.list(t, 1, price)
	env.accounts.fund(buyer, big.NewInt(10), nil, nil)

	if _, err := env.engine.BuyItem(buyer, collection, 1, settlement.NativeCurrency(), seller, big.NewInt(10)); !errors.Is(err, settlement.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want settlement.ErrInsufficientFunds", err)
	}
	if _, ok := env.engine.Listing(collection, 1, seller); !ok {
		t.Fatalf("listing consumed by failed buy")
	}
}
