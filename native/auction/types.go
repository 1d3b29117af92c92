package auction

import (
	"math/big"

	"agora/native/settlement"
)

// Bid records the current highest bid. Funds backing it sit in the module
// vault until the bidder is outbid (refund) or the auction results
// (settlement).
type Bid struct {
	Bidder  [20]byte `json:"bidder"`
	Amount  *big.Int `json:"amount"`
	BidTime int64    `json:"bidTime"`
}

// Clone returns a deep copy of the bid.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Amount != nil {
		clone.Amount = new(big.Int).Set(b.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Auction is a time-boxed competitive-bid sale. One auction exists per
// (collection, item); the seller is recorded on the auction itself.
type Auction struct {
	Collection     [20]byte            `json:"collection"`
	ItemID         uint64              `json:"itemId"`
	Seller         [20]byte            `json:"seller"`
	Quantity       uint64              `json:"quantity"`
	Currency       settlement.Currency `json:"currency"`
	ReservePrice   *big.Int            `json:"reservePrice"`
	StartTime      int64               `json:"startTime"`
	EndTime        int64               `json:"endTime"`
	ReserveEnabled bool                `json:"reserveEnabled"`
	Resulted       bool                `json:"resulted"`
	HighestBid     *Bid                `json:"highestBid,omitempty"`
}

// Clone returns a deep copy of the auction.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.ReservePrice != nil {
		clone.ReservePrice = new(big.Int).Set(a.ReservePrice)
	} else {
		clone.ReservePrice = big.NewInt(0)
	}
	clone.HighestBid = a.HighestBid.Clone()
	return &clone
}

// Live reports whether bids are accepted at the given wall-clock time.
func (a *Auction) Live(now int64) bool {
	if a == nil || a.Resulted {
		return false
	}
	return now >= a.StartTime && now < a.EndTime
}
