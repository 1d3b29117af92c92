package market

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"agora/core/events"
	"agora/core/types"
	"agora/native/common"
	"agora/native/settlement"
	"agora/observability/metrics"
)

var (
	errNilState      = errors.New("market engine: state not configured")
	errNilItems      = errors.New("market engine: item ledger not configured")
	errNilSettlement = errors.New("market engine: settlement engine not configured")

	ErrNotOwner          = errors.New("market: not owning item")
	ErrNotApproved       = errors.New("market: item not approved")
	ErrNotListed         = errors.New("market: not listed item")
	ErrNotBuyable        = errors.New("market: item not buyable")
	ErrInvalidCurrency   = errors.New("market: invalid pay token")
	ErrInvalidExpiration = errors.New("market: invalid expiration")
	ErrDuplicateOffer    = errors.New("market: offer already created")
	ErrOfferNotFound     = errors.New("market: offer not exists or expired")
)

// ModuleAddress identifies the marketplace module itself. Sellers grant this
// address transfer approval so the engine can move items at settlement time.
var ModuleAddress = func() [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte("agora/market/module"))
	copy(addr[:], hash[12:])
	return addr
}()

type marketState interface {
	ListingGet(collection [20]byte, item uint64, seller [20]byte) (*Listing, bool)
	ListingPut(*Listing) error
	ListingDelete(collection [20]byte, item uint64, seller [20]byte) error
	OfferGet(collection [20]byte, item uint64, buyer [20]byte) (*Offer, bool)
	OfferPut(*Offer) error
	OfferDelete(collection [20]byte, item uint64, buyer [20]byte) error
}

// ItemLedger is the slice of the item registry the market engine validates
// against before touching its own records.
type ItemLedger interface {
	OwnerOf(collection [20]byte, item uint64) ([20]byte, bool, error)
	BalanceOf(owner [20]byte, collection [20]byte, item uint64) (uint64, error)
	IsApprovedForAll(owner, operator [20]byte) bool
}

// Engine owns the listing and offer registries and drives their lifecycles.
// All writes serialize per (collection, item) through the shared keyed mutex.
type Engine struct {
	state   marketState
	items   ItemLedger
	settle  *settlement.Engine
	emitter events.Emitter
	locks   *common.KeyedMutex
	nowFn   func() int64
}

// NewEngine creates a market engine bound to the supplied settlement engine.
func NewEngine(settle *settlement.Engine) *Engine {
	return &Engine{
		settle:  settle,
		emitter: events.NoopEmitter{},
		locks:   common.NewKeyedMutex(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend.
func (e *Engine) SetState(state marketState) { e.state = state }

// SetItems configures the item ledger.
func (e *Engine) SetItems(items ItemLedger) { e.items = items }

// SetLocks shares a keyed mutex with other engines so the same item record
// serializes across the listing, offer and auction paths.
func (e *Engine) SetLocks(locks *common.KeyedMutex) {
	if locks != nil {
		e.locks = locks
	}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.items == nil {
		return errNilItems
	}
	if e.settle == nil {
		return errNilSettlement
	}
	return nil
}

func lockKey(collection [20]byte, item uint64) string {
	return fmt.Sprintf("%x/%d", collection, item)
}

// ListItem creates or overwrites the seller's listing for the item. The
// seller must hold at least quantity units and have granted the module
// transfer approval.
func (e *Engine) ListItem(seller, collection [20]byte, item uint64, quantity uint64, currency settlement.Currency, unitPrice *big.Int, startTime int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if quantity == 0 {
		return fmt.Errorf("market: quantity must be positive")
	}
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		return fmt.Errorf("market: unit price must be positive")
	}
	if err := e.settle.ValidateCurrency(currency); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, currency.Symbol())
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	held, err := e.items.BalanceOf(seller, collection, item)
	if err != nil {
		return err
	}
	if held < quantity {
		return ErrNotOwner
	}
	if !e.items.IsApprovedForAll(seller, ModuleAddress) {
		return ErrNotApproved
	}
	listing := &Listing{
		Collection: collection,
		ItemID:     item,
		Seller:     seller,
		Quantity:   quantity,
		UnitPrice:  new(big.Int).Set(unitPrice),
		Currency:   currency,
		StartTime:  startTime,
	}
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	e.emit(NewItemListedEvent(listing))
	return nil
}

// UpdateListing changes the price and currency of an active listing. Lookup
// runs against the stored seller, so a caller without a listing of their own
// is rejected with ErrNotListed regardless of who listed the item.
func (e *Engine) UpdateListing(seller, collection [20]byte, item uint64, currency settlement.Currency, newPrice *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return fmt.Errorf("market: unit price must be positive")
	}
	if err := e.settle.ValidateCurrency(currency); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, currency.Symbol())
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	listing, ok := e.state.ListingGet(collection, item, seller)
	if !ok {
		return ErrNotListed
	}
	listing.UnitPrice = new(big.Int).Set(newPrice)
	listing.Currency = currency
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	e.emit(NewItemUpdatedEvent(listing))
	return nil
}

// CancelListing removes the seller's listing for the item.
func (e *Engine) CancelListing(seller, collection [20]byte, item uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	listing, ok := e.state.ListingGet(collection, item, seller)
	if !ok {
		return ErrNotListed
	}
	if err := e.state.ListingDelete(collection, item, seller); err != nil {
		return err
	}
	e.emit(NewItemCanceledEvent(listing))
	return nil
}

// BuyItem purchases the expected seller's listing. The payment currency must
// match the listing, the start time must have elapsed, and the seller must
// still hold the listed quantity with the module approved to move it. A
// successful buy settles funds, reassigns ownership and consumes the listing
// in one atomic step.
func (e *Engine) BuyItem(buyer, collection [20]byte, item uint64, currency settlement.Currency, expectedSeller [20]byte, value *big.Int) (*settlement.Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	listing, ok := e.state.ListingGet(collection, item, expectedSeller)
	if !ok {
		return nil, ErrNotListed
	}
	held, err := e.items.BalanceOf(expectedSeller, collection, item)
	if err != nil {
		return nil, err
	}
	if held < listing.Quantity {
		return nil, ErrNotOwner
	}
	// A listing is only valid while the module still holds transfer approval;
	// a seller who revoked since listing cannot be settled against.
	if !e.items.IsApprovedForAll(expectedSeller, ModuleAddress) {
		return nil, ErrNotApproved
	}
	if !currency.Equal(listing.Currency) {
		return nil, fmt.Errorf("%w: listing wants %s", ErrInvalidCurrency, listing.Currency.Symbol())
	}
	if e.now() < listing.StartTime {
		return nil, ErrNotBuyable
	}
	receipt, err := e.settle.Settle(settlement.Sale{
		Collection: collection,
		ItemID:     item,
		Quantity:   listing.Quantity,
		UnitPrice:  listing.UnitPrice,
		Currency:   listing.Currency,
		Seller:     expectedSeller,
		Buyer:      buyer,
		Value:      value,
	})
	if err != nil {
		return nil, err
	}
	if err := e.state.ListingDelete(collection, item, expectedSeller); err != nil {
		return nil, err
	}
	metrics.Market().ItemSold(listing.Currency.Symbol())
	e.emit(NewItemSoldEvent(listing, buyer, receipt))
	return receipt, nil
}

// Listing returns the stored listing for (collection, item, seller).
func (e *Engine) Listing(collection [20]byte, item uint64, seller [20]byte) (*Listing, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	listing, ok := e.state.ListingGet(collection, item, seller)
	if !ok {
		return nil, false
	}
	return listing.Clone(), true
}
