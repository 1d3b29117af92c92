package auction

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
	errNilState      = errors.New("auction engine: state not configured")
	errNilItems      = errors.New("auction engine: item ledger not configured")
	errNilSettlement = errors.New("auction engine: settlement engine not configured")

	ErrNotOwner        = errors.New("auction: not owning item")
	ErrNotApproved     = errors.New("auction: item not approved")
	ErrAuctionExists   = errors.New("auction: auction already created")
	ErrAuctionNotFound = errors.New("auction: no auction exists")
	ErrInvalidWindow   = errors.New("auction: end time must follow start time")
	ErrNotLive         = errors.New("auction: bidding outside auction window")
	ErrBidTooLow       = errors.New("auction: bid too low")
	ErrAuctionHasBids  = errors.New("auction: auction has open bids")
	ErrNotEnded        = errors.New("auction: auction not ended")
	ErrNoBids          = errors.New("auction: no open bids")
	ErrReserveNotMet   = errors.New("auction: reserve price not met")
	ErrAlreadyResulted = errors.New("auction: auction already resulted")
)

// ModuleAddress identifies the auction module for item transfer approvals.
var ModuleAddress = func() [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte("agora/auction/module"))
	copy(addr[:], hash[12:])
	return addr
}()

type auctionState interface {
	AuctionGet(collection [20]byte, item uint64) (*Auction, bool)
	AuctionPut(*Auction) error
	AuctionDelete(collection [20]byte, item uint64) error
}

// ItemLedger is the slice of the item registry the auction engine validates
// against.
type ItemLedger interface {
	BalanceOf(owner [20]byte, collection [20]byte, item uint64) (uint64, error)
	IsApprovedForAll(owner, operator [20]byte) bool
}

// Engine runs time-boxed competitive-bid sales. Each accepted bid escrows the
// bidder's funds in the module vault and refunds the previous top bidder in
// the same atomic step, so no bidder's funds are ever held without a live
// top-bid guarantee.
type Engine struct {
	state   auctionState
	items   ItemLedger
	settle  *settlement.Engine
	emitter events.Emitter
	locks   *common.KeyedMutex
	nowFn   func() int64

	minBidIncrement *big.Int
	snipeWindow     int64
}

// NewEngine creates an auction engine bound to the supplied settlement
// engine, with a one-unit minimum bid increment and a ten-minute anti-snipe
// window by default.
func NewEngine(settle *settlement.Engine) *Engine {
	return &Engine{
		settle:          settle,
		emitter:         events.NoopEmitter{},
		locks:           common.NewKeyedMutex(),
		nowFn:           func() int64 { return time.Now().Unix() },
		minBidIncrement: big.NewInt(1),
		snipeWindow:     600,
	}
}

// SetState configures the state backend.
func (e *Engine) SetState(state auctionState) { e.state = state }

// SetItems configures the item ledger.
func (e *Engine) SetItems(items ItemLedger) { e.items = items }

// SetLocks shares a keyed mutex with the market engine so listing and
// auction operations on the same item serialize together.
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

// SetMinBidIncrement configures the smallest amount a bid must exceed the
// previous one by.
func (e *Engine) SetMinBidIncrement(increment *big.Int) {
	if increment == nil || increment.Sign() <= 0 {
		e.minBidIncrement = big.NewInt(1)
		return
	}
	e.minBidIncrement = new(big.Int).Set(increment)
}

// SetSnipeWindow configures the anti-snipe window in seconds. A bid landing
// within the window of the end time extends the auction by the window.
func (e *Engine) SetSnipeWindow(secs int64) {
	if secs < 0 {
		secs = 0
	}
	e.snipeWindow = secs
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: evt})
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

// CreateAuction opens an auction over the seller's whole holding of the
// item. The seller must hold the item and have approved the module.
func (e *Engine) CreateAuction(seller, collection [20]byte, item uint64, currency settlement.Currency, reservePrice *big.Int, startTime int64, reserveEnabled bool, endTime int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if reservePrice == nil || reservePrice.Sign() < 0 {
		return fmt.Errorf("auction: reserve price must be non-negative")
	}
	if endTime <= startTime {
		return ErrInvalidWindow
	}
	if err := e.settle.ValidateCurrency(currency); err != nil {
		return err
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	if existing, ok := e.state.AuctionGet(collection, item); ok && !existing.Resulted {
		return ErrAuctionExists
	}
	held, err := e.items.BalanceOf(seller, collection, item)
	if err != nil {
		return err
	}
	if held == 0 {
		return ErrNotOwner
	}
	if !e.items.IsApprovedForAll(seller, ModuleAddress) {
		return ErrNotApproved
	}
	auction := &Auction{
		Collection:     collection,
		ItemID:         item,
		Seller:         seller,
		Quantity:       held,
		Currency:       currency,
		ReservePrice:   new(big.Int).Set(reservePrice),
		StartTime:      startTime,
		EndTime:        endTime,
		ReserveEnabled: reserveEnabled,
	}
	if err := e.state.AuctionPut(auction); err != nil {
		return err
	}
	e.emit(NewAuctionCreatedEvent(auction))
	return nil
}

// PlaceBid escrows the bidder's funds and installs them as highest bidder,
// refunding the previous top bidder in full within the same step. Bids
// landing inside the anti-snipe window extend the end time.
func (e *Engine) PlaceBid(bidder, collection [20]byte, item uint64, amount, value *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	auction, ok := e.state.AuctionGet(collection, item)
	if !ok {
		return ErrAuctionNotFound
	}
	now := e.now()
	if !auction.Live(now) {
		return ErrNotLive
	}
	required := new(big.Int).Set(e.minBidIncrement)
	if auction.HighestBid != nil {
		required.Add(auction.HighestBid.Amount, e.minBidIncrement)
	}
	if amount == nil || amount.Cmp(required) < 0 {
		return fmt.Errorf("%w: minimum bid is %s", ErrBidTooLow, required)
	}
	prior := auction.Clone()
	if err := e.settle.Collect(auction.Currency, bidder, amount, value); err != nil {
		return err
	}
	previous := auction.HighestBid
	if e.snipeWindow > 0 && auction.EndTime-now <= e.snipeWindow {
		auction.EndTime = auction.EndTime + e.snipeWindow
	}
	auction.HighestBid = &Bid{Bidder: bidder, Amount: new(big.Int).Set(amount), BidTime: now}
	if err := e.state.AuctionPut(auction); err != nil {
		// The bid never took effect; hand the escrowed funds back.
		if rerr := e.settle.Refund(auction.Currency, bidder, amount); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	if previous != nil {
		if err := e.settle.Refund(auction.Currency, previous.Bidder, previous.Amount); err != nil {
			// Restore the previous top bid so their escrow claim survives,
			// then return the new bidder's funds.
			if perr := e.state.AuctionPut(prior); perr != nil {
				return errors.Join(err, perr)
			}
			if rerr := e.settle.Refund(auction.Currency, bidder, amount); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
		metrics.Market().BidRefunded(auction.Currency.Symbol())
	}
	metrics.Market().BidPlaced(auction.Currency.Symbol())
	e.emit(NewBidPlacedEvent(auction, auction.HighestBid))
	if previous != nil {
		e.emit(NewBidRefundedEvent(auction, previous))
	}
	return nil
}

// CancelAuction removes an auction that has not yet received a bid.
func (e *Engine) CancelAuction(seller, collection [20]byte, item uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	auction, ok := e.state.AuctionGet(collection, item)
	if !ok || auction.Seller != seller {
		return ErrAuctionNotFound
	}
	if auction.Resulted {
		return ErrAlreadyResulted
	}
	if auction.HighestBid != nil {
		return ErrAuctionHasBids
	}
	if err := e.state.AuctionDelete(collection, item); err != nil {
		return err
	}
	e.emit(NewAuctionCancelledEvent(auction))
	return nil
}

// UpdateReservePrice changes the reserve before any bid lands. Seller only.
func (e *Engine) UpdateReservePrice(seller, collection [20]byte, item uint64, reservePrice *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if reservePrice == nil || reservePrice.Sign() < 0 {
		return fmt.Errorf("auction: reserve price must be non-negative")
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	auction, ok := e.state.AuctionGet(collection, item)
	if !ok || auction.Seller != seller {
		return ErrAuctionNotFound
	}
	if auction.Resulted {
		return ErrAlreadyResulted
	}
	if auction.HighestBid != nil {
		return ErrAuctionHasBids
	}
	auction.ReservePrice = new(big.Int).Set(reservePrice)
	return e.state.AuctionPut(auction)
}

// UpdateWindow moves the auction window before any bid lands. Seller only.
func (e *Engine) UpdateWindow(seller, collection [20]byte, item uint64, startTime, endTime int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if endTime <= startTime {
		return ErrInvalidWindow
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	auction, ok := e.state.AuctionGet(collection, item)
	if !ok || auction.Seller != seller {
		return ErrAuctionNotFound
	}
	if auction.Resulted {
		return ErrAlreadyResulted
	}
	if auction.HighestBid != nil {
		return ErrAuctionHasBids
	}
	auction.StartTime = startTime
	auction.EndTime = endTime
	return e.state.AuctionPut(auction)
}

// ResultAuction finalizes an ended auction: the item moves to the highest
// bidder and the escrowed winning bid settles through the standard split.
// Only the seller or the winning bidder may result. The call is idempotent in
// the failing direction: a second invocation reports ErrAlreadyResulted.
func (e *Engine) ResultAuction(caller, collection [20]byte, item uint64) (*settlement.Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	auction, ok := e.state.AuctionGet(collection, item)
	if !ok {
		return nil, ErrAuctionNotFound
	}
	if auction.Resulted {
		return nil, ErrAlreadyResulted
	}
	// Bidding closes at EndTime exactly, so resulting opens at that instant.
	if e.now() < auction.EndTime {
		return nil, ErrNotEnded
	}
	highest := auction.HighestBid
	if highest == nil {
		return nil, ErrNoBids
	}
	if caller != auction.Seller && caller != highest.Bidder {
		return nil, ErrNotOwner
	}
	if auction.ReserveEnabled && highest.Amount.Cmp(auction.ReservePrice) < 0 {
		return nil, fmt.Errorf("%w: highest bid %s below reserve %s", ErrReserveNotMet, highest.Amount, auction.ReservePrice)
	}
	// The seller's approval must still stand when the item actually moves.
	if !e.items.IsApprovedForAll(auction.Seller, ModuleAddress) {
		return nil, ErrNotApproved
	}
	receipt, err := e.settle.Settle(settlement.Sale{
		Collection: collection,
		ItemID:     item,
		Quantity:   auction.Quantity,
		GrossPrice: highest.Amount,
		Currency:   auction.Currency,
		Seller:     auction.Seller,
		Buyer:      highest.Bidder,
		FundsHeld:  true,
	})
	if err != nil {
		return nil, err
	}
	auction.Resulted = true
	if err := e.state.AuctionPut(auction); err != nil {
		return nil, err
	}
	metrics.Market().AuctionResulted(auction.Currency.Symbol())
	e.emit(NewAuctionResultedEvent(auction, receipt))
	return receipt, nil
}

// Auction returns the stored auction for (collection, item).
func (e *Engine) Auction(collection [20]byte, item uint64) (*Auction, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	auction, ok := e.state.AuctionGet(collection, item)
	if !ok {
		return nil, false
	}
	return auction.Clone(), true
}
