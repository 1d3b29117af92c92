package royalty

import (
	"fmt"

	"agora/core/types"
	"agora/crypto"
)

const (
	EventTypeItemRoyaltySet       = "royalty.item.set"
	EventTypeCollectionRoyaltySet = "royalty.collection.set"
)

type royaltyEvent struct {
	evt *types.Event
}

func (e royaltyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e royaltyEvent) Event() *types.Event { return e.evt }

// NewItemRoyaltySetEvent returns the payload emitted when an item royalty is
// registered or updated.
func NewItemRoyaltySetEvent(record *ItemRoyalty) *types.Event {
	if record == nil {
		return nil
	}
	return &types.Event{Type: EventTypeItemRoyaltySet, Attributes: map[string]string{
		"collection": crypto.MustNewAddress(crypto.ColPrefix, record.Collection[:]).String(),
		"itemId":     fmt.Sprintf("%d", record.ItemID),
		"bps":        fmt.Sprintf("%d", record.Bps),
		"minter":     crypto.MustNewAddress(crypto.AgoPrefix, record.Minter[:]).String(),
	}}
}

// NewCollectionRoyaltySetEvent returns the payload emitted when a collection
// royalty is registered.
func NewCollectionRoyaltySetEvent(by [20]byte, record *CollectionRoyalty) *types.Event {
	if record == nil {
		return nil
	}
	return &types.Event{Type: EventTypeCollectionRoyaltySet, Attributes: map[string]string{
		"by":           crypto.MustNewAddress(crypto.AgoPrefix, by[:]).String(),
		"collection":   crypto.MustNewAddress(crypto.ColPrefix, record.Collection[:]).String(),
		"creator":      crypto.MustNewAddress(crypto.AgoPrefix, record.Creator[:]).String(),
		"feeRecipient": crypto.MustNewAddress(crypto.AgoPrefix, record.FeeRecipient[:]).String(),
		"bps":          fmt.Sprintf("%d", record.Bps),
	}}
}
