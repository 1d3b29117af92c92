package market

import (
	"math/big"

	"agora/native/settlement"
)

// Listing is a seller's standing offer to sell a fixed quantity of an item at
// a fixed unit price, valid from StartTime. At most one active listing exists
// per (collection, item, seller).
type Listing struct {
	Collection [20]byte            `json:"collection"`
	ItemID     uint64              `json:"itemId"`
	Seller     [20]byte            `json:"seller"`
	Quantity   uint64              `json:"quantity"`
	UnitPrice  *big.Int            `json:"unitPrice"`
	Currency   settlement.Currency `json:"currency"`
	StartTime  int64               `json:"startTime"`
}

// Clone returns a deep copy so callers can mutate without aliasing the stored
// record.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.UnitPrice != nil {
		clone.UnitPrice = new(big.Int).Set(l.UnitPrice)
	} else {
		clone.UnitPrice = big.NewInt(0)
	}
	return &clone
}

// Offer is a buyer's conditional bid on an item, requiring explicit seller
// acceptance before Expiration. At most one live offer exists per
// (collection, item, buyer).
type Offer struct {
	Collection [20]byte            `json:"collection"`
	ItemID     uint64              `json:"itemId"`
	Buyer      [20]byte            `json:"buyer"`
	Quantity   uint64              `json:"quantity"`
	UnitPrice  *big.Int            `json:"unitPrice"`
	Currency   settlement.Currency `json:"currency"`
	Expiration int64               `json:"expiration"`
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.UnitPrice != nil {
		clone.UnitPrice = new(big.Int).Set(o.UnitPrice)
	} else {
		clone.UnitPrice = big.NewInt(0)
	}
	return &clone
}

// Expired reports whether the offer has lapsed at the given wall-clock time.
// An expired offer is treated as non-existent by every operation.
func (o *Offer) Expired(now int64) bool {
	if o == nil {
		return true
	}
	return o.Expiration <= now
}
