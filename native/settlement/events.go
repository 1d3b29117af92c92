package settlement

import (
	"fmt"
	"math/big"

	"agora/core/types"
	"agora/crypto"
)

const (
	// EventTypeSettled is emitted once a sale has fully distributed funds and
	// reassigned ownership.
	EventTypeSettled = "settlement.settled"
)

type settlementEvent struct {
	evt *types.Event
}

func (e settlementEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e settlementEvent) Event() *types.Event { return e.evt }

// NewSettledEvent returns the canonical payload describing an executed split.
func NewSettledEvent(sale *Sale, receipt *Receipt) *types.Event {
	if sale == nil || receipt == nil {
		return nil
	}
	attrs := map[string]string{
		"collection":  crypto.MustNewAddress(crypto.ColPrefix, sale.Collection[:]).String(),
		"itemId":      fmt.Sprintf("%d", sale.ItemID),
		"quantity":    fmt.Sprintf("%d", sale.Quantity),
		"currency":    sale.Currency.Symbol(),
		"seller":      crypto.MustNewAddress(crypto.AgoPrefix, sale.Seller[:]).String(),
		"buyer":       crypto.MustNewAddress(crypto.AgoPrefix, sale.Buyer[:]).String(),
		"price":       formatAmount(receipt.Price),
		"platformFee": formatAmount(receipt.PlatformFee),
		"royalty":     formatAmount(receipt.Royalty),
		"proceeds":    formatAmount(receipt.Proceeds),
		"unitPrice":   formatAmount(receipt.UnitPriceQuote),
	}
	if receipt.Royalty != nil && receipt.Royalty.Sign() > 0 {
		attrs["royaltyRecipient"] = crypto.MustNewAddress(crypto.AgoPrefix, receipt.RoyaltyRecipient[:]).String()
	}
	return &types.Event{Type: EventTypeSettled, Attributes: attrs}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
