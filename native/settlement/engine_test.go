package settlement

import (
	"errors"
	"math/big"
	"testing"

	"agora/core/types"
)

type mockState struct {
	accounts map[[20]byte]*types.Account
	puts     int
	failPut  int // fail the Nth PutAccount (1-based); zero disables
}

func newMockState() *mockState {
	return &mockState{accounts: make(map[[20]byte]*types.Account)}
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return types.NewAccount(), nil
}

func (m *mockState) PutAccount(addr [20]byte, account *types.Account) error {
	m.puts++
	if m.failPut > 0 && m.puts == m.failPut {
		return errors.New("account store write refused")
	}
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockState) native(addr [20]byte) *big.Int {
	acc, _ := m.GetAccount(addr)
	return acc.BalanceNative
}

func (m *mockState) token(addr [20]byte, symbol string) *big.Int {
	acc, _ := m.GetAccount(addr)
	return acc.TokenBalance(symbol)
}

type mockItems struct {
	balances  map[[20]byte]uint64
	transfers int
	failNext  error
}

func newMockItems() *mockItems {
	return &mockItems{balances: make(map[[20]byte]uint64)}
}

func (m *mockItems) BalanceOf(owner [20]byte, _ [20]byte, _ uint64) (uint64, error) {
	return m.balances[owner], nil
}

func (m *mockItems) Transfer(_ [20]byte, _ uint64, from, to [20]byte, quantity uint64) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	if m.balances[from] < quantity {
		return errors.New("insufficient item balance")
	}
	m.balances[from] -= quantity
	m.balances[to] += quantity
	m.transfers++
	return nil
}

type mockTokens struct {
	accepted map[string]bool
}

func (m *mockTokens) IsAccepted(symbol string) bool { return m.accepted[symbol] }

type mockRoyalty struct {
	bps       uint32
	recipient [20]byte
	ok        bool
}

func (m *mockRoyalty) RoyaltyFor([20]byte, uint64) (uint32, [20]byte, bool) {
	return m.bps, m.recipient, m.ok
}

type mockFeed struct {
	prices map[string]*big.Int
}

func (m *mockFeed) UnitPrice(symbol string) *big.Int {
	if p, ok := m.prices[symbol]; ok {
		return p
	}
	return big.NewInt(0)
}

var (
	seller       = [20]byte{0x01}
	buyer        = [20]byte{0x02}
	feeAccount   = [20]byte{0x03}
	minter       = [20]byte{0x04}
	adminAccount = [20]byte{0x0a}
	collection   = [20]byte{0xc0}
)

func unit(n int64) *big.Int {
	v := big.NewInt(n)
	return v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil))
}

func newTestEngine(t *testing.T) (*Engine, *mockState, *mockItems, *mockRoyalty) {
	t.Helper()
	state := newMockState()
	items := newMockItems()
	roy := &mockRoyalty{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetItems(items)
	engine.SetTokens(&mockTokens{accepted: map[string]bool{"WAGO": true, "USDA": true}})
	engine.SetRoyalties(roy)
	engine.SetAdmin(adminAccount)
	engine.SetWrappedSymbol("WAGO")
	if err := engine.SetPlatformFee(200, feeAccount); err != nil {
		t.Fatalf("set platform fee: %v", err)
	}
	return engine, state, items, roy
}

func fund(state *mockState, addr [20]byte, native *big.Int, tokens map[string]*big.Int, allowances map[string]*big.Int) {
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
	state.accounts[addr] = acc
}

func TestSettleNativeSplitsFeeAndProceeds(t *testing.T) {
	engine, state, items, _ := newTestEngine(t)
	items.balances[seller] = 1
	price := unit(100)
	fund(state, buyer, price, nil, nil)

	receipt, err := engine.Settle(Sale{
		Collection: collection,
		ItemID:     1,
		Quantity:   1,
		UnitPrice:  price,
		Currency:   NativeCurrency(),
		Seller:     seller,
		Buyer:      buyer,
		Value:      price,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	// 2% platform fee on a one-unit sale.
	if got, want := receipt.PlatformFee, unit(2); got.Cmp(want) != 0 {
		t.Fatalf("platform fee = %s, want %s", got, want)
	}
	if got, want := receipt.Proceeds, unit(98); got.Cmp(want) != 0 {
		t.Fatalf("proceeds = %s, want %s", got, want)
	}
	if got := state.native(seller); got.Cmp(unit(98)) != 0 {
		t.Fatalf("seller balance = %s, want %s", got, unit(98))
	}
	if got := state.native(feeAccount); got.Cmp(unit(2)) != 0 {
		t.Fatalf("fee account balance = %s, want %s", got, unit(2))
	}
	if got := state.native(buyer); got.Sign() != 0 {
		t.Fatalf("buyer balance = %s, want 0", got)
	}
	if items.balances[buyer] != 1 || items.balances[seller] != 0 {
		t.Fatalf("item not transferred: seller=%d buyer=%d", items.balances[seller], items.balances[buyer])
	}
}

func TestSettleWithRoyaltySplitsThreeWays(t *testing.T) {
	engine, state, items, roy := newTestEngine(t)
	items.balances[seller] = 1
	roy.bps, roy.recipient, roy.ok = 1000, minter, true
	price := unit(100)
	fund(state, buyer, price, nil, nil)

	receipt, err := engine.Settle(Sale{
		Collection: collection,
		ItemID:     1,
		Quantity:   1,
		UnitPrice:  price,
		Currency:   NativeCurrency(),
		Seller:     seller,
		Buyer:      buyer,
		Value:      price,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if receipt.Royalty.Cmp(unit(10)) != 0 {
		t.Fatalf("royalty = %s, want %s", receipt.Royalty, unit(10))
	}
	if receipt.Proceeds.Cmp(unit(88)) != 0 {
		t.Fatalf("proceeds = %s, want %s", receipt.Proceeds, unit(88))
	}
	if got := state.native(minter); got.Cmp(unit(10)) != 0 {
		t.Fatalf("minter balance = %s, want %s", got, unit(10))
	}
	sum := new(big.Int).Add(receipt.PlatformFee, receipt.Royalty)
	sum.Add(sum, receipt.Proceeds)
	if sum.Cmp(receipt.Price) != 0 {
		t.Fatalf("split does not sum to price: %s != %s", sum, receipt.Price)
	}
}

func TestSettleSplitAlwaysSumsToPrice(t *testing.T) {
	for _, tc := range []struct {
		feeBps     uint32
		royaltyBps uint32
		price      int64
	}{
		{0, 0, 1},
		{200, 1000, 3},
		{9999, 1, 7},
		{1, 1999, 999999999},
		{2500, 2000, 123456789},
	} {
		engine, state, items, roy := newTestEngine(t)
		items.balances[seller] = 1
		if err := engine.SetPlatformFee(tc.feeBps, feeAccount); err != nil {
			t.Fatalf("set fee %d: %v", tc.feeBps, err)
		}
		roy.bps, roy.recipient, roy.ok = tc.royaltyBps, minter, tc.royaltyBps > 0
		price := big.NewInt(tc.price)
		fund(state, buyer, price, nil, nil)
		receipt, err := engine.Settle(Sale{
			Collection: collection,
			ItemID:     1,
			Quantity:   1,
			UnitPrice:  price,
			Currency:   NativeCurrency(),
			Seller:     seller,
			Buyer:      buyer,
			Value:      price,
		})
		if err != nil {
			t.Fatalf("fee=%d royalty=%d: %v", tc.feeBps, tc.royaltyBps, err)
		}
		sum := new(big.Int).Add(receipt.PlatformFee, receipt.Royalty)
		sum.Add(sum, receipt.Proceeds)
		if sum.Cmp(price) != 0 {
			t.Fatalf("fee=%d royalty=%d: split sums to %s, want %s", tc.feeBps, tc.royaltyBps, sum, price)
		}
	}
}

func TestSettleNativeRequiresExactValue(t *testing.T) {
	engine, state, items, _ := newTestEngine(t)
	items.balances[seller] = 1
	price := unit(100)
	fund(state, buyer, unit(200), nil, nil)

	for _, value := range []*big.Int{nil, unit(99), unit(101)} {
		_, err := engine.Settle(Sale{
			Collection: collection,
			ItemID:     1,
			Quantity:   1,
			UnitPrice:  price,
			Currency:   NativeCurrency(),
			Seller:     seller,
			Buyer:      buyer,
			Value:      value,
		})
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("value %v: err = %v, want ErrInsufficientFunds", value, err)
		}
	}
	if items.transfers != 0 {
		t.Fatalf("item transferred on failed settlement")
	}
}

func TestSettleTokenRequiresBalanceAndAllowance(t *testing.T) {
	engine, state, items, _ := newTestEngine(t)
	items.balances[seller] = 1
	price := unit(100)
	usda, err := TokenCurrency("USDA")
	if err != nil {
		t.Fatalf("token currency: %v", err)
	}
	sale := Sale{
		Collection: collection,
		ItemID:     1,
		Quantity:   1,
		UnitPrice:  price,
		Currency:   usda,
		Seller:     seller,
		Buyer:      buyer,
	}

	fund(state, buyer, nil, map[string]*big.Int{"USDA": unit(50)}, map[string]*big.Int{"USDA": price})
	if _, err := engine.Settle(sale); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("short balance: err = %v, want ErrInsufficientFunds", err)
	}

	fund(state, buyer, nil, map[string]*big.Int{"USDA": price}, map[string]*big.Int{"USDA": unit(50)})
	if _, err := engine.Settle(sale); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("short allowance: err = %v, want ErrInsufficientFunds", err)
	}

	fund(state, buyer, nil, map[string]*big.Int{"USDA": price}, map[string]*big.Int{"USDA": price})
	receipt, err := engine.Settle(sale)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if receipt.Proceeds.Cmp(unit(98)) != 0 {
		t.Fatalf("proceeds = %s, want %s", receipt.Proceeds, unit(98))
	}
	if got := state.token(seller, "USDA"); got.Cmp(unit(98)) != 0 {
		t.Fatalf("seller USDA = %s, want %s", got, unit(98))
	}
}

func TestSettleRejectsUnacceptedToken(t *testing.T) {
	engine, state, items, _ := newTestEngine(t)
	items.balances[seller] = 1
	fund(state, buyer, nil, map[string]*big.Int{"BOGUS": unit(100)}, map[string]*big.Int{"BOGUS": unit(100)})
	bogus, err := TokenCurrency("BOGUS")
	if err != nil {
		t.Fatalf("token currency: %v", err)
	}
	_, err = engine.Settle(Sale{
		Collection: collection,
		ItemID:     1,
		Quantity:   1,
		UnitPrice:  unit(100),
		Currency:   bogus,
		Seller:     seller,
		Buyer:      buyer,
	})
	if !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("err = %v, want ErrInvalidCurrency", err)
	}
}

func TestSettleWrapPathConvertsNativeValue(t *testing.T) {
	engine, state, items, _ := newTestEngine(t)
	items.balances[seller] = 1
	price := unit(100)
	fund(state, buyer, price, nil, nil)
	wago, err := TokenCurrency("WAGO")
	if err != nil {
		t.Fatalf("token currency: %v", err)
	}

	receipt, err := engine.Settle(Sale{
		Collection: collection,
		ItemID:     1,
		Quantity:   1,
		UnitPrice:  price,
		Currency:   wago,
		Seller:     seller,
		Buyer:      buyer,
		Value:      price,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got := state.native(buyer); got.Sign() != 0 {
		t.Fatalf("buyer native = %s, want 0", got)
	}
	if got := state.token(buyer, "WAGO"); got.Sign() != 0 {
		t.Fatalf("buyer WAGO = %s, want 0 after spend", got)
	}
	if got := state.token(seller, "WAGO"); got.Cmp(receipt.Proceeds) != 0 {
		t.Fatalf("seller WAGO = %s, want %s", got, receipt.Proceeds)
	}
	if got := state.token(feeAccount, "WAGO"); got.Cmp(unit(2)) != 0 {
		t.Fatalf("fee WAGO = %s, want %s", got, unit(2))
	}
}

func TestSettleQuantityScalesPrice(t *testing.T) {
	engine, state, items, _ := newTestEngine(t)
	items.balances[seller] = 5
	unitPrice := unit(10)
	total := unit(50)
	fund(state, buyer, total, nil, nil)

	receipt, err := engine.Settle(Sale{
		Collection: collection,
		ItemID:     1,
		Quantity:   5,
		UnitPrice:  unitPrice,
		Currency:   NativeCurrency(),
		Seller:     seller,
		Buyer:      buyer,
		Value:      total,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if receipt.Price.Cmp(total) != 0 {
		t.Fatalf("price = %s, want %s", receipt.Price, total)
	}
	if items.balances[buyer] != 5 {
		t.Fatalf("buyer holds %d, want 5", items.balances[buyer])
	}
}

func TestSettleGrossPriceOverridesUnitPrice(t *testing.T) {
	engine, state, items, _ := newTestEngine(t)
	items.balances[seller] = 2
	gross := unit(77)
	fund(state, VaultAddress, gross, nil, nil)

	receipt, err := engine.Settle(Sale{
		Collection: collection,
		ItemID:     1,
		Quantity:   2,
		GrossPrice: gross,
		Currency:   NativeCurrency(),
		Seller:     seller,
		Buyer:      buyer,
		FundsHeld:  true,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if receipt.Price.Cmp(gross) != 0 {
		t.Fatalf("price = %s, want %s", receipt.Price, gross)
	}
	if got := state.native(VaultAddress); got.Sign() != 0 {
		t.Fatalf("vault balance = %s, want 0", got)
	}
	if items.balances[buyer] != 2 {
		t.Fatalf("buyer holds %d, want 2", items.balances[buyer])
	}
}

func TestSettleFailedTransferLeavesFundsUntouched(t *testing.T) {
	engine, state, items, _ := newTestEngine(t)
	items.balances[seller] = 1
	items.failNext = errors.New("transfer refused")
	price := unit(100)
	fund(state, buyer, price, nil, nil)

	_, err := engine.Settle(Sale{
		Collection: collection,
		ItemID:     1,
		Quantity:   1,
		UnitPrice:  price,
		Currency:   NativeCurrency(),
		Seller:     seller,
		Buyer:      buyer,
		Value:      price,
	})
	if err == nil {
		t.Fatalf("expected transfer failure")
	}
	if got := state.native(buyer); got.Cmp(price) != 0 {
		t.Fatalf("buyer balance changed: %s", got)
	}
	if got := state.native(seller); got.Sign() != 0 {
		t.Fatalf("seller balance changed: %s", got)
	}
}

func TestSettleWriteFailureRollsEverythingBack(t *testing.T) {
	engine, state, items, _ := newTestEngine(t)
	items.balances[seller] = 1
	price := unit(100)
	fund(state, buyer, price, nil, nil)
	// The buyer debit lands, then the fee credit write fails mid-flush.
	state.failPut = 2

	_, err := engine.Settle(Sale{
		Collection: collection,
		ItemID:     1,
		Quantity:   1,
		UnitPrice:  price,
		Currency:   NativeCurrency(),
		Seller:     seller,
		Buyer:      buyer,
		Value:      price,
	})
	if err == nil {
		t.Fatalf("expected write failure")
	}
	if got := state.native(buyer); got.Cmp(price) != 0 {
		t.Fatalf("buyer balance = %s, want %s restored", got, price)
	}
	if got := state.native(feeAccount); got.Sign() != 0 {
		t.Fatalf("fee account balance = %s, want 0", got)
	}
	if got := state.native(seller); got.Sign() != 0 {
		t.Fatalf("seller balance = %s, want 0", got)
	}
	if items.balances[seller] != 1 || items.balances[buyer] != 0 {
		t.Fatalf("item not returned: seller=%d buyer=%d", items.balances[seller], items.balances[buyer])
	}
}

func TestCollectWriteFailureRestoresPayer(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	amount := unit(30)
	fund(state, buyer, amount, nil, nil)
	// The payer debit lands, then the vault credit write fails.
	state.failPut = 2

	if err := engine.Collect(NativeCurrency(), buyer, amount, amount); err == nil {
		t.Fatalf("expected write failure")
	}
	if got := state.native(buyer); got.Cmp(amount) != 0 {
		t.Fatalf("buyer balance = %s, want %s restored", got, amount)
	}
	if got := state.native(VaultAddress); got.Sign() != 0 {
		t.Fatalf("vault balance = %s, want 0", got)
	}
}

func TestCollectAndRefundRoundTrip(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	amount := unit(30)
	fund(state, buyer, amount, nil, nil)

	if err := engine.Collect(NativeCurrency(), buyer, amount, amount); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got := state.native(VaultAddress); got.Cmp(amount) != 0 {
		t.Fatalf("vault = %s, want %s", got, amount)
	}
	if got := state.native(buyer); got.Sign() != 0 {
		t.Fatalf("buyer = %s, want 0", got)
	}

	if err := engine.Refund(NativeCurrency(), buyer, amount); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got := state.native(buyer); got.Cmp(amount) != 0 {
		t.Fatalf("buyer = %s, want %s after refund", got, amount)
	}
	if got := state.native(VaultAddress); got.Sign() != 0 {
		t.Fatalf("vault = %s, want 0 after refund", got)
	}
}

func TestCollectNativeRequiresExactValue(t *testing.T) {
	engine, state, _, _ := newTestEngine(t)
	fund(state, buyer, unit(30), nil, nil)
	if err := engine.Collect(NativeCurrency(), buyer, unit(30), unit(10)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestUpdatePlatformFeeAdminOnly(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	if err := engine.UpdatePlatformFee(buyer, 300); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("err = %v, want ErrNotAdmin", err)
	}
	if err := engine.UpdatePlatformFee(adminAccount, 300); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	bps, _ := engine.PlatformFee()
	if bps != 300 {
		t.Fatalf("bps = %d, want 300", bps)
	}
	if err := engine.UpdatePlatformFee(adminAccount, 10_001); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("err = %v, want ErrInvalidFee", err)
	}
}

func TestUpdateFeeRecipientAdminOnly(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	if err := engine.UpdateFeeRecipient(buyer, minter); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("err = %v, want ErrNotAdmin", err)
	}
	if err := engine.UpdateFeeRecipient(adminAccount, [20]byte{}); err == nil {
		t.Fatalf("zero recipient accepted")
	}
	if err := engine.UpdateFeeRecipient(adminAccount, minter); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	_, recipient := engine.PlatformFee()
	if recipient != minter {
		t.Fatalf("recipient not updated")
	}
}
