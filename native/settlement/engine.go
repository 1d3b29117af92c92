package settlement

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"agora/core/events"
	"agora/core/types"
)

var (
	errNilState          = errors.New("settlement engine: state not configured")
	errNilItems          = errors.New("settlement engine: item ledger not configured")
	errNilFeeAccount     = errors.New("settlement engine: fee recipient not configured")
	ErrInsufficientFunds = errors.New("settlement: insufficient funds")
	ErrInvalidCurrency   = errors.New("settlement: invalid pay token")
	ErrNotAdmin          = errors.New("settlement: caller is not the admin")
	ErrInvalidFee        = errors.New("settlement: invalid platform fee")
)

// feeDenominator converts basis points into proportions.
var feeDenominator = big.NewInt(10_000)

// VaultAddress is the module account holding escrowed auction bids until the
// sale results or the bid is refunded.
var VaultAddress = func() [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte("agora/settlement/vault"))
	copy(addr[:], hash[12:])
	return addr
}()

type engineState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// ItemMover is the slice of the item ledger the settlement engine needs to
// reassign ownership during a sale.
type ItemMover interface {
	BalanceOf(owner [20]byte, collection [20]byte, item uint64) (uint64, error)
	Transfer(collection [20]byte, item uint64, from, to [20]byte, quantity uint64) error
}

// TokenView answers whether a fungible token is on the accepted list.
type TokenView interface {
	IsAccepted(symbol string) bool
}

// PriceView reports an informational unit price for a currency. A missing
// quote must surface as zero, never as an error.
type PriceView interface {
	UnitPrice(symbol string) *big.Int
}

// RoyaltyView resolves the royalty share owed on a sale. Item-level royalties
// take precedence over collection-level ones.
type RoyaltyView interface {
	RoyaltyFor(collection [20]byte, item uint64) (bps uint32, recipient [20]byte, ok bool)
}

// Sale describes one settlement request handed over by a sale path.
type Sale struct {
	Collection [20]byte
	ItemID     uint64
	Quantity   uint64
	UnitPrice  *big.Int
	Currency   Currency
	Seller     [20]byte
	Buyer      [20]byte
	// GrossPrice, when set, is the total sale price and overrides
	// UnitPrice x Quantity. Auction settlements price the whole stack by the
	// winning bid amount.
	GrossPrice *big.Int
	// Value is the native coin amount attached to the call, if any.
	Value *big.Int
	// FundsHeld marks sales whose payment already sits in the module vault
	// (auction settlement). The vault is debited instead of the buyer.
	FundsHeld bool
}

// Receipt summarises an executed settlement.
type Receipt struct {
	Price            *big.Int
	PlatformFee      *big.Int
	Royalty          *big.Int
	Proceeds         *big.Int
	RoyaltyRecipient [20]byte
	// UnitPriceQuote is the informational oracle price of the pay currency,
	// zero when no feed is configured.
	UnitPriceQuote *big.Int
}

// Engine computes and executes the fee/royalty/proceeds split for every sale
// path. A settlement either fully reassigns ownership and distributes funds,
// or fails with prior state unchanged: every precondition is verified before
// the first balance is touched.
type Engine struct {
	state   engineState
	items   ItemMover
	tokens  TokenView
	royalty RoyaltyView
	feed    PriceView
	emitter events.Emitter

	mu            sync.RWMutex
	admin         [20]byte
	feeBps        uint32
	feeRecipient  [20]byte
	wrappedSymbol string
}

// NewEngine creates a settlement engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the account state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetItems configures the item ledger used for ownership transfers.
func (e *Engine) SetItems(items ItemMover) { e.items = items }

// SetTokens configures the accepted-token view.
func (e *Engine) SetTokens(tokens TokenView) { e.tokens = tokens }

// SetRoyalties configures the royalty resolver.
func (e *Engine) SetRoyalties(view RoyaltyView) { e.royalty = view }

// SetPriceFeed configures the informational price oracle.
func (e *Engine) SetPriceFeed(feed PriceView) { e.feed = feed }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetAdmin configures the privileged account allowed to change platform
// parameters.
func (e *Engine) SetAdmin(addr [20]byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.admin = addr
}

// SetWrappedSymbol configures the wrapped-native token recognised by the
// same-call conversion path.
func (e *Engine) SetWrappedSymbol(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wrappedSymbol = symbol
}

// SetPlatformFee installs the initial fee policy without an admin check. Used
// during boot; runtime changes go through UpdatePlatformFee.
func (e *Engine) SetPlatformFee(bps uint32, recipient [20]byte) error {
	if bps > 10_000 {
		return ErrInvalidFee
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feeBps = bps
	e.feeRecipient = recipient
	return nil
}

// PlatformFee returns the current fee policy.
func (e *Engine) PlatformFee() (uint32, [20]byte) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feeBps, e.feeRecipient
}

// UpdatePlatformFee changes the platform fee share. Admin only.
func (e *Engine) UpdatePlatformFee(caller [20]byte, bps uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.admin {
		return ErrNotAdmin
	}
	if bps > 10_000 {
		return ErrInvalidFee
	}
	e.feeBps = bps
	return nil
}

// UpdateFeeRecipient changes where the platform share is routed. Admin only.
func (e *Engine) UpdateFeeRecipient(caller, recipient [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.admin {
		return ErrNotAdmin
	}
	if recipient == ([20]byte{}) {
		return fmt.Errorf("settlement: zero fee recipient")
	}
	e.feeRecipient = recipient
	return nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(settlementEvent{evt: evt})
}

// ValidateCurrency checks that the currency is payable: the native coin is
// always accepted, tokens must be on the registry allow-list.
func (e *Engine) ValidateCurrency(currency Currency) error {
	if !currency.Valid() {
		return ErrInvalidCurrency
	}
	if currency.IsNative() {
		return nil
	}
	if e.tokens == nil || !e.tokens.IsAccepted(currency.Symbol()) {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, currency.Symbol())
	}
	return nil
}

// Settle executes the sale: it verifies funds, splits the price into platform
// fee, royalty and seller proceeds, moves the item, then applies every
// balance change. No balance is mutated before all checks have passed.
func (e *Engine) Settle(sale Sale) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.items == nil {
		return nil, errNilItems
	}
	e.mu.RLock()
	feeBps := e.feeBps
	feeRecipient := e.feeRecipient
	wrapped := e.wrappedSymbol
	e.mu.RUnlock()
	if feeBps > 0 && feeRecipient == ([20]byte{}) {
		return nil, errNilFeeAccount
	}
	if sale.Quantity == 0 {
		return nil, fmt.Errorf("settlement: quantity must be positive")
	}
	var price *big.Int
	if sale.GrossPrice != nil {
		if sale.GrossPrice.Sign() <= 0 {
			return nil, fmt.Errorf("settlement: gross price must be positive")
		}
		price = new(big.Int).Set(sale.GrossPrice)
	} else {
		if sale.UnitPrice == nil || sale.UnitPrice.Sign() <= 0 {
			return nil, fmt.Errorf("settlement: unit price must be positive")
		}
		price = new(big.Int).Mul(sale.UnitPrice, new(big.Int).SetUint64(sale.Quantity))
	}
	if err := e.ValidateCurrency(sale.Currency); err != nil {
		return nil, err
	}
	value := big.NewInt(0)
	if sale.Value != nil {
		value = new(big.Int).Set(sale.Value)
	}

	// Decide how the price is funded before touching anything.
	symbol := sale.Currency.Symbol()
	wrapValue := false
	skipAllowance := false
	payer := sale.Buyer
	switch {
	case sale.FundsHeld:
		payer = VaultAddress
		skipAllowance = true
		if value.Sign() != 0 {
			return nil, fmt.Errorf("settlement: attached value on held funds")
		}
	case sale.Currency.IsNative():
		if value.Cmp(price) != 0 {
			return nil, fmt.Errorf("%w: attached value %s, price %s", ErrInsufficientFunds, value, price)
		}
	case !sale.Currency.IsNative() && symbol == wrapped && value.Sign() > 0:
		// Same-call conversion: the native payment is wrapped for the buyer
		// first, then the standard token split runs against the new balance.
		if value.Cmp(price) != 0 {
			return nil, fmt.Errorf("%w: attached value %s, price %s", ErrInsufficientFunds, value, price)
		}
		wrapValue = true
		skipAllowance = true
	default:
		if value.Sign() != 0 {
			return nil, fmt.Errorf("%w: native value attached to token sale", ErrInvalidCurrency)
		}
	}

	tx := newAccountTx(e.state)
	payerAcc, err := tx.account(payer)
	if err != nil {
		return nil, err
	}
	if sale.Currency.IsNative() || wrapValue {
		// Exact native funding, either spent directly or wrapped below.
		if payerAcc.BalanceNative.Cmp(price) < 0 {
			return nil, fmt.Errorf("%w: native balance %s below %s", ErrInsufficientFunds, payerAcc.BalanceNative, price)
		}
	} else {
		if payerAcc.TokenBalance(symbol).Cmp(price) < 0 {
			return nil, fmt.Errorf("%w: %s balance below %s", ErrInsufficientFunds, symbol, price)
		}
		if !skipAllowance && payerAcc.Allowance(symbol).Cmp(price) < 0 {
			return nil, fmt.Errorf("%w: %s allowance below %s", ErrInsufficientFunds, symbol, price)
		}
	}

	// Split. Item royalty takes precedence; zero when nothing is registered.
	royaltyBps := uint32(0)
	var royaltyRecipient [20]byte
	if e.royalty != nil {
		if bps, recipient, ok := e.royalty.RoyaltyFor(sale.Collection, sale.ItemID); ok {
			royaltyBps = bps
			royaltyRecipient = recipient
		}
	}
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(uint64(feeBps)))
	fee.Div(fee, feeDenominator)
	royaltyCut := new(big.Int).Mul(price, new(big.Int).SetUint64(uint64(royaltyBps)))
	royaltyCut.Div(royaltyCut, feeDenominator)
	proceeds := new(big.Int).Sub(price, fee)
	proceeds.Sub(proceeds, royaltyCut)
	if proceeds.Sign() < 0 {
		return nil, fmt.Errorf("settlement: fee and royalty exceed price")
	}

	// Every balance change is staged in memory first; nothing is written
	// until the split is complete.
	if wrapValue {
		payerAcc.BalanceNative = new(big.Int).Sub(payerAcc.BalanceNative, price)
		e.creditToken(payerAcc, symbol, price)
	}
	if sale.Currency.IsNative() && !wrapValue {
		payerAcc.BalanceNative = new(big.Int).Sub(payerAcc.BalanceNative, price)
	} else {
		payerAcc.TokenBalances[symbol] = new(big.Int).Sub(payerAcc.TokenBalance(symbol), price)
		if !skipAllowance {
			payerAcc.Allowances[symbol] = new(big.Int).Sub(payerAcc.Allowance(symbol), price)
		}
	}
	if fee.Sign() > 0 {
		if err := tx.credit(feeRecipient, sale.Currency, fee); err != nil {
			return nil, err
		}
	}
	if royaltyCut.Sign() > 0 {
		if err := tx.credit(royaltyRecipient, sale.Currency, royaltyCut); err != nil {
			return nil, err
		}
	}
	if proceeds.Sign() > 0 {
		if err := tx.credit(sale.Seller, sale.Currency, proceeds); err != nil {
			return nil, err
		}
	}

	// Move the item, then flush the staged balances. A failed flush rolls the
	// written accounts back and returns the item to the seller, so a storage
	// error mid-apply cannot leave a partial sale behind.
	if err := e.items.Transfer(sale.Collection, sale.ItemID, sale.Seller, sale.Buyer, sale.Quantity); err != nil {
		return nil, err
	}
	if err := tx.commit(); err != nil {
		if rerr := e.items.Transfer(sale.Collection, sale.ItemID, sale.Buyer, sale.Seller, sale.Quantity); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}

	receipt := &Receipt{
		Price:            price,
		PlatformFee:      fee,
		Royalty:          royaltyCut,
		Proceeds:         proceeds,
		RoyaltyRecipient: royaltyRecipient,
		UnitPriceQuote:   e.quote(symbol),
	}
	e.emit(NewSettledEvent(&sale, receipt))
	return receipt, nil
}

// Collect escrows amount of currency from the payer into the module vault.
// Used by the auction engine to hold bids against a live top-bid guarantee.
func (e *Engine) Collect(currency Currency, from [20]byte, amount, value *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("settlement: collect amount must be positive")
	}
	if err := e.ValidateCurrency(currency); err != nil {
		return err
	}
	attached := big.NewInt(0)
	if value != nil {
		attached = new(big.Int).Set(value)
	}
	tx := newAccountTx(e.state)
	acc, err := tx.account(from)
	if err != nil {
		return err
	}
	symbol := currency.Symbol()
	if currency.IsNative() {
		if attached.Cmp(amount) != 0 {
			return fmt.Errorf("%w: attached value %s, bid %s", ErrInsufficientFunds, attached, amount)
		}
		if acc.BalanceNative.Cmp(amount) < 0 {
			return fmt.Errorf("%w: native balance below %s", ErrInsufficientFunds, amount)
		}
		acc.BalanceNative = new(big.Int).Sub(acc.BalanceNative, amount)
	} else {
		if attached.Sign() != 0 {
			return fmt.Errorf("%w: native value attached to token bid", ErrInvalidCurrency)
		}
		if acc.TokenBalance(symbol).Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s balance below %s", ErrInsufficientFunds, symbol, amount)
		}
		if acc.Allowance(symbol).Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s allowance below %s", ErrInsufficientFunds, symbol, amount)
		}
		acc.TokenBalances[symbol] = new(big.Int).Sub(acc.TokenBalance(symbol), amount)
		acc.Allowances[symbol] = new(big.Int).Sub(acc.Allowance(symbol), amount)
	}
	if err := tx.credit(VaultAddress, currency, amount); err != nil {
		return err
	}
	return tx.commit()
}

// Refund returns amount of currency from the module vault to the recipient.
func (e *Engine) Refund(currency Currency, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("settlement: refund amount must be positive")
	}
	tx := newAccountTx(e.state)
	vault, err := tx.account(VaultAddress)
	if err != nil {
		return err
	}
	symbol := currency.Symbol()
	if currency.IsNative() {
		if vault.BalanceNative.Cmp(amount) < 0 {
			return fmt.Errorf("%w: vault native balance below %s", ErrInsufficientFunds, amount)
		}
		vault.BalanceNative = new(big.Int).Sub(vault.BalanceNative, amount)
	} else {
		if vault.TokenBalance(symbol).Cmp(amount) < 0 {
			return fmt.Errorf("%w: vault %s balance below %s", ErrInsufficientFunds, symbol, amount)
		}
		vault.TokenBalances[symbol] = new(big.Int).Sub(vault.TokenBalance(symbol), amount)
	}
	if err := tx.credit(to, currency, amount); err != nil {
		return err
	}
	return tx.commit()
}

// accountTx stages account mutations in memory so a settlement either writes
// every touched account or none of them. Accounts are cached on first load,
// mutated in place, and flushed by commit; a failed write rolls the already
// written accounts back to their loaded state.
type accountTx struct {
	state  engineState
	order  [][20]byte
	staged map[[20]byte]*types.Account
	priors map[[20]byte]*types.Account
}

func newAccountTx(state engineState) *accountTx {
	return &accountTx{
		state:  state,
		staged: make(map[[20]byte]*types.Account),
		priors: make(map[[20]byte]*types.Account),
	}
}

func (tx *accountTx) account(addr [20]byte) (*types.Account, error) {
	if acc, ok := tx.staged[addr]; ok {
		return acc, nil
	}
	acc, err := tx.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	acc = acc.Normalize()
	tx.order = append(tx.order, addr)
	tx.staged[addr] = acc
	tx.priors[addr] = acc.Clone()
	return acc, nil
}

func (tx *accountTx) credit(addr [20]byte, currency Currency, amount *big.Int) error {
	acc, err := tx.account(addr)
	if err != nil {
		return err
	}
	if currency.IsNative() {
		acc.BalanceNative = new(big.Int).Add(acc.BalanceNative, amount)
	} else {
		symbol := currency.Symbol()
		acc.TokenBalances[symbol] = new(big.Int).Add(acc.TokenBalance(symbol), amount)
	}
	return nil
}

func (tx *accountTx) commit() error {
	for i, addr := range tx.order {
		if err := tx.state.PutAccount(addr, tx.staged[addr]); err != nil {
			var rollback error
			for j := 0; j < i; j++ {
				written := tx.order[j]
				if rerr := tx.state.PutAccount(written, tx.priors[written]); rerr != nil {
					rollback = errors.Join(rollback, rerr)
				}
			}
			if rollback != nil {
				return errors.Join(err, rollback)
			}
			return err
		}
	}
	return nil
}

func (e *Engine) creditToken(acc *types.Account, symbol string, amount *big.Int) {
	acc.TokenBalances[symbol] = new(big.Int).Add(acc.TokenBalance(symbol), amount)
}

func (e *Engine) quote(symbol string) *big.Int {
	if e == nil || e.feed == nil {
		return big.NewInt(0)
	}
	quote := e.feed.UnitPrice(symbol)
	if quote == nil || quote.Sign() < 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(quote)
}
