package auction

import (
	"fmt"
	"math/big"

	"agora/core/types"
	"agora/crypto"
	"agora/native/settlement"
)

const (
	EventTypeAuctionCreated   = "auction.created"
	EventTypeBidPlaced        = "auction.bid.placed"
	EventTypeBidRefunded      = "auction.bid.refunded"
	EventTypeAuctionCancelled = "auction.cancelled"
	EventTypeAuctionResulted  = "auction.resulted"
)

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

func auctionAttrs(a *Auction) map[string]string {
	return map[string]string{
		"collection": crypto.MustNewAddress(crypto.ColPrefix, a.Collection[:]).String(),
		"itemId":     fmt.Sprintf("%d", a.ItemID),
		"seller":     crypto.MustNewAddress(crypto.AgoPrefix, a.Seller[:]).String(),
		"quantity":   fmt.Sprintf("%d", a.Quantity),
		"currency":   a.Currency.Symbol(),
	}
}

// NewAuctionCreatedEvent returns the payload emitted when an auction opens.
func NewAuctionCreatedEvent(a *Auction) *types.Event {
	if a == nil {
		return nil
	}
	attrs := auctionAttrs(a)
	attrs["reservePrice"] = formatAmount(a.ReservePrice)
	attrs["startTime"] = fmt.Sprintf("%d", a.StartTime)
	attrs["endTime"] = fmt.Sprintf("%d", a.EndTime)
	return &types.Event{Type: EventTypeAuctionCreated, Attributes: attrs}
}

// NewBidPlacedEvent returns the payload emitted when a bid becomes the new
// highest bid. The end time attribute reflects any anti-snipe extension.
func NewBidPlacedEvent(a *Auction, b *Bid) *types.Event {
	if a == nil || b == nil {
		return nil
	}
	attrs := auctionAttrs(a)
	attrs["bidder"] = crypto.MustNewAddress(crypto.AgoPrefix, b.Bidder[:]).String()
	attrs["amount"] = formatAmount(b.Amount)
	attrs["endTime"] = fmt.Sprintf("%d", a.EndTime)
	return &types.Event{Type: EventTypeBidPlaced, Attributes: attrs}
}

// NewBidRefundedEvent returns the payload emitted when an outbid bidder's
// escrow is returned.
func NewBidRefundedEvent(a *Auction, b *Bid) *types.Event {
	if a == nil || b == nil {
		return nil
	}
	attrs := auctionAttrs(a)
	attrs["bidder"] = crypto.MustNewAddress(crypto.AgoPrefix, b.Bidder[:]).String()
	attrs["amount"] = formatAmount(b.Amount)
	return &types.Event{Type: EventTypeBidRefunded, Attributes: attrs}
}

// NewAuctionCancelledEvent returns the payload emitted when a bidless
// auction is withdrawn.
func NewAuctionCancelledEvent(a *Auction) *types.Event {
	if a == nil {
		return nil
	}
	return &types.Event{Type: EventTypeAuctionCancelled, Attributes: auctionAttrs(a)}
}

// NewAuctionResultedEvent returns the payload emitted when an auction
// settles, carrying the winner and the split amounts.
func NewAuctionResultedEvent(a *Auction, receipt *settlement.Receipt) *types.Event {
	if a == nil || a.HighestBid == nil || receipt == nil {
		return nil
	}
	attrs := auctionAttrs(a)
	attrs["winner"] = crypto.MustNewAddress(crypto.AgoPrefix, a.HighestBid.Bidder[:]).String()
	attrs["price"] = formatAmount(receipt.Price)
	attrs["platformFee"] = formatAmount(receipt.PlatformFee)
	attrs["royalty"] = formatAmount(receipt.Royalty)
	attrs["proceeds"] = formatAmount(receipt.Proceeds)
	return &types.Event{Type: EventTypeAuctionResulted, Attributes: attrs}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
