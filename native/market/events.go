package market

import (
	"fmt"
	"math/big"

	"agora/core/types"
	"agora/crypto"
	"agora/native/settlement"
)

const (
	EventTypeItemListed    = "market.item.listed"
	EventTypeItemUpdated   = "market.item.updated"
	EventTypeItemCanceled  = "market.item.canceled"
	EventTypeItemSold      = "market.item.sold"
	EventTypeOfferCreated  = "market.offer.created"
	EventTypeOfferCanceled = "market.offer.canceled"
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

func listingAttrs(l *Listing) map[string]string {
	return map[string]string{
		"collection": crypto.MustNewAddress(crypto.ColPrefix, l.Collection[:]).String(),
		"itemId":     fmt.Sprintf("%d", l.ItemID),
		"seller":     crypto.MustNewAddress(crypto.AgoPrefix, l.Seller[:]).String(),
		"quantity":   fmt.Sprintf("%d", l.Quantity),
		"unitPrice":  formatAmount(l.UnitPrice),
		"currency":   l.Currency.Symbol(),
	}
}

// NewItemListedEvent returns the payload emitted when a listing is created.
func NewItemListedEvent(l *Listing) *types.Event {
	if l == nil {
		return nil
	}
	attrs := listingAttrs(l)
	attrs["startTime"] = fmt.Sprintf("%d", l.StartTime)
	return &types.Event{Type: EventTypeItemListed, Attributes: attrs}
}

// NewItemUpdatedEvent returns the payload emitted when a listing's terms
// change.
func NewItemUpdatedEvent(l *Listing) *types.Event {
	if l == nil {
		return nil
	}
	return &types.Event{Type: EventTypeItemUpdated, Attributes: listingAttrs(l)}
}

// NewItemCanceledEvent returns the payload emitted when a listing is removed.
func NewItemCanceledEvent(l *Listing) *types.Event {
	if l == nil {
		return nil
	}
	return &types.Event{Type: EventTypeItemCanceled, Attributes: listingAttrs(l)}
}

// NewItemSoldEvent returns the payload emitted when a sale settles, carrying
// the split amounts and the informational oracle unit price.
func NewItemSoldEvent(l *Listing, buyer [20]byte, receipt *settlement.Receipt) *types.Event {
	if l == nil || receipt == nil {
		return nil
	}
	attrs := listingAttrs(l)
	attrs["buyer"] = crypto.MustNewAddress(crypto.AgoPrefix, buyer[:]).String()
	attrs["price"] = formatAmount(receipt.Price)
	attrs["platformFee"] = formatAmount(receipt.PlatformFee)
	attrs["royalty"] = formatAmount(receipt.Royalty)
	attrs["proceeds"] = formatAmount(receipt.Proceeds)
	attrs["oracleUnitPrice"] = formatAmount(receipt.UnitPriceQuote)
	return &types.Event{Type: EventTypeItemSold, Attributes: attrs}
}

func offerAttrs(o *Offer) map[string]string {
	return map[string]string{
		"collection": crypto.MustNewAddress(crypto.ColPrefix, o.Collection[:]).String(),
		"itemId":     fmt.Sprintf("%d", o.ItemID),
		"buyer":      crypto.MustNewAddress(crypto.AgoPrefix, o.Buyer[:]).String(),
		"quantity":   fmt.Sprintf("%d", o.Quantity),
		"unitPrice":  formatAmount(o.UnitPrice),
		"currency":   o.Currency.Symbol(),
	}
}

// NewOfferCreatedEvent returns the payload emitted when an offer is created.
func NewOfferCreatedEvent(o *Offer) *types.Event {
	if o == nil {
		return nil
	}
	attrs := offerAttrs(o)
	attrs["expiration"] = fmt.Sprintf("%d", o.Expiration)
	return &types.Event{Type: EventTypeOfferCreated, Attributes: attrs}
}

// NewOfferCanceledEvent returns the payload emitted when an offer is
// withdrawn or consumed.
func NewOfferCanceledEvent(o *Offer) *types.Event {
	if o == nil {
		return nil
	}
	return &types.Event{Type: EventTypeOfferCanceled, Attributes: offerAttrs(o)}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
