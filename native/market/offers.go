package market

import (
	"fmt"
	"math/big"

	"agora/native/settlement"
	"agora/observability/metrics"
)

// CreateOffer records a buyer's conditional offer on an item. Offers are
// token-denominated: a buyer wanting to spend native coin offers in the
// wrapped token and the settlement wrap path converts on acceptance.
func (e *Engine) CreateOffer(buyer, collection [20]byte, item uint64, currency settlement.Currency, quantity uint64, unitPrice *big.Int, expiration int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if quantity == 0 {
		return fmt.Errorf("market: quantity must be positive")
	}
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		return fmt.Errorf("market: unit price must be positive")
	}
	if currency.IsNative() {
		return fmt.Errorf("%w: offers must be token denominated", ErrInvalidCurrency)
	}
	if err := e.settle.ValidateCurrency(currency); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, currency.Symbol())
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	now := e.now()
	if expiration <= now {
		return ErrInvalidExpiration
	}
	if existing, ok := e.state.OfferGet(collection, item, buyer); ok && !existing.Expired(now) {
		return ErrDuplicateOffer
	}
	offer := &Offer{
		Collection: collection,
		ItemID:     item,
		Buyer:      buyer,
		Quantity:   quantity,
		UnitPrice:  new(big.Int).Set(unitPrice),
		Currency:   currency,
		Expiration: expiration,
	}
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	e.emit(NewOfferCreatedEvent(offer))
	return nil
}

// CancelOffer withdraws the buyer's live offer. Expired offers count as
// non-existent.
func (e *Engine) CancelOffer(buyer, collection [20]byte, item uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	offer, ok := e.state.OfferGet(collection, item, buyer)
	if !ok || offer.Expired(e.now()) {
		return ErrOfferNotFound
	}
	if err := e.state.OfferDelete(collection, item, buyer); err != nil {
		return err
	}
	e.emit(NewOfferCanceledEvent(offer))
	return nil
}

// AcceptOffer settles the buyer's live offer at its stored terms. The seller
// must currently hold the offered quantity with the module approved to move
// it. Acceptance consumes the offer and any listing the seller had on the
// item.
func (e *Engine) AcceptOffer(seller, collection [20]byte, item uint64, buyer [20]byte) (*settlement.Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(lockKey(collection, item))
	defer unlock()

	offer, ok := e.state.OfferGet(collection, item, buyer)
	if !ok || offer.Expired(e.now()) {
		return nil, ErrOfferNotFound
	}
	held, err := e.items.BalanceOf(seller, collection, item)
	if err != nil {
		return nil, err
	}
	if held < offer.Quantity {
		return nil, ErrNotOwner
	}
	if !e.items.IsApprovedForAll(seller, ModuleAddress) {
		return nil, ErrNotApproved
	}
	receipt, err := e.settle.Settle(settlement.Sale{
		Collection: collection,
		ItemID:     item,
		Quantity:   offer.Quantity,
		UnitPrice:  offer.UnitPrice,
		Currency:   offer.Currency,
		Seller:     seller,
		Buyer:      buyer,
	})
	if err != nil {
		return nil, err
	}
	if err := e.state.OfferDelete(collection, item, buyer); err != nil {
		return nil, err
	}
	// A sale invalidates the seller's own listing on the item, if any.
	if _, ok := e.state.ListingGet(collection, item, seller); ok {
		if err := e.state.ListingDelete(collection, item, seller); err != nil {
			return nil, err
		}
	}
	metrics.Market().OfferAccepted(offer.Currency.Symbol())
	e.emit(NewItemSoldEvent(&Listing{
		Collection: collection,
		ItemID:     item,
		Seller:     seller,
		Quantity:   offer.Quantity,
		UnitPrice:  offer.UnitPrice,
		Currency:   offer.Currency,
	}, buyer, receipt))
	e.emit(NewOfferCanceledEvent(offer))
	return receipt, nil
}

// Offer returns the stored offer for (collection, item, buyer) if it is still
// live.
func (e *Engine) Offer(collection [20]byte, item uint64, buyer [20]byte) (*Offer, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	offer, ok := e.state.OfferGet(collection, item, buyer)
	if !ok || offer.Expired(e.now()) {
		return nil, false
	}
	return offer.Clone(), true
}
