package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"agora/crypto"
	"agora/native/auction"
	"agora/native/market"
	"agora/native/royalty"
	"agora/native/settlement"
)

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) == 0 {
		return &RPCError{Code: codeInvalidParams, Message: "params required"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params", Data: err.Error()}
	}
	return nil
}

func parseAddress(encoded string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(encoded))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Array(), nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is not a non-negative decimal integer", raw)
	}
	return v, nil
}

func parseCurrency(symbol string) (settlement.Currency, error) {
	return settlement.ParseCurrency(strings.TrimSpace(symbol))
}

func formatAccount(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.AgoPrefix, addr[:]).String()
}

func formatCollection(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.ColPrefix, addr[:]).String()
}

// errorCode maps engine sentinels onto JSON-RPC error codes. Unknown errors
// fall through as server errors.
func errorCode(err error) int {
	switch {
	case errors.Is(err, market.ErrNotListed),
		errors.Is(err, market.ErrOfferNotFound),
		errors.Is(err, auction.ErrAuctionNotFound),
		errors.Is(err, royalty.ErrNotSet):
		return codeNotFound
	case errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrNotApproved),
		errors.Is(err, market.ErrNotBuyable),
		errors.Is(err, market.ErrInvalidCurrency),
		errors.Is(err, market.ErrInvalidExpiration),
		errors.Is(err, market.ErrDuplicateOffer),
		errors.Is(err, auction.ErrNotOwner),
		errors.Is(err, auction.ErrNotApproved),
		errors.Is(err, auction.ErrAuctionExists),
		errors.Is(err, auction.ErrInvalidWindow),
		errors.Is(err, auction.ErrNotLive),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrAuctionHasBids),
		errors.Is(err, auction.ErrNotEnded),
		errors.Is(err, auction.ErrNoBids),
		errors.Is(err, auction.ErrReserveNotMet),
		errors.Is(err, auction.ErrAlreadyResulted),
		errors.Is(err, royalty.ErrNotOwner),
		errors.Is(err, royalty.ErrNotMinter),
		errors.Is(err, royalty.ErrNotAdmin),
		errors.Is(err, royalty.ErrInvalidRoyalty),
		errors.Is(err, royalty.ErrInvalidCreator),
		errors.Is(err, royalty.ErrInvalidCollection),
		errors.Is(err, royalty.ErrAlreadySet),
		errors.Is(err, settlement.ErrInsufficientFunds),
		errors.Is(err, settlement.ErrInvalidCurrency),
		errors.Is(err, settlement.ErrNotAdmin),
		errors.Is(err, settlement.ErrInvalidFee):
		return codeRejected
	default:
		return codeServerError
	}
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusOK, id, errorCode(err), err.Error(), nil)
}

type receiptResult struct {
	Price            string `json:"price"`
	PlatformFee      string `json:"platformFee"`
	Royalty          string `json:"royalty"`
	Proceeds         string `json:"proceeds"`
	RoyaltyRecipient string `json:"royaltyRecipient,omitempty"`
	OracleUnitPrice  string `json:"oracleUnitPrice"`
}

func formatReceipt(receipt *settlement.Receipt) *receiptResult {
	if receipt == nil {
		return nil
	}
	out := &receiptResult{
		Price:           receipt.Price.String(),
		PlatformFee:     receipt.PlatformFee.String(),
		Royalty:         receipt.Royalty.String(),
		Proceeds:        receipt.Proceeds.String(),
		OracleUnitPrice: "0",
	}
	if receipt.Royalty.Sign() > 0 {
		out.RoyaltyRecipient = formatAccount(receipt.RoyaltyRecipient)
	}
	if receipt.UnitPriceQuote != nil {
		out.OracleUnitPrice = receipt.UnitPriceQuote.String()
	}
	return out
}

type listingResult struct {
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Seller     string `json:"seller"`
	Quantity   uint64 `json:"quantity"`
	UnitPrice  string `json:"unitPrice"`
	Currency   string `json:"currency"`
	StartTime  int64  `json:"startTime"`
}

func formatListing(l *market.Listing) *listingResult {
	if l == nil {
		return nil
	}
	return &listingResult{
		Collection: formatCollection(l.Collection),
		ItemID:     l.ItemID,
		Seller:     formatAccount(l.Seller),
		Quantity:   l.Quantity,
		UnitPrice:  l.UnitPrice.String(),
		Currency:   l.Currency.Symbol(),
		StartTime:  l.StartTime,
	}
}

type offerResult struct {
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Buyer      string `json:"buyer"`
	Quantity   uint64 `json:"quantity"`
	UnitPrice  string `json:"unitPrice"`
	Currency   string `json:"currency"`
	Expiration int64  `json:"expiration"`
}

func formatOffer(o *market.Offer) *offerResult {
	if o == nil {
		return nil
	}
	return &offerResult{
		Collection: formatCollection(o.Collection),
		ItemID:     o.ItemID,
		Buyer:      formatAccount(o.Buyer),
		Quantity:   o.Quantity,
		UnitPrice:  o.UnitPrice.String(),
		Currency:   o.Currency.Symbol(),
		Expiration: o.Expiration,
	}
}

type bidResult struct {
	Bidder  string `json:"bidder"`
	Amount  string `json:"amount"`
	BidTime int64  `json:"bidTime"`
}

type auctionResult struct {
	Collection     string     `json:"collection"`
	ItemID         uint64     `json:"itemId"`
	Seller         string     `json:"seller"`
	Quantity       uint64     `json:"quantity"`
	Currency       string     `json:"currency"`
	ReservePrice   string     `json:"reservePrice"`
	StartTime      int64      `json:"startTime"`
	EndTime        int64      `json:"endTime"`
	ReserveEnabled bool       `json:"reserveEnabled"`
	Resulted       bool       `json:"resulted"`
	HighestBid     *bidResult `json:"highestBid,omitempty"`
}

func formatAuction(a *auction.Auction) *auctionResult {
	if a == nil {
		return nil
	}
	out := &auctionResult{
		Collection:     formatCollection(a.Collection),
		ItemID:         a.ItemID,
		Seller:         formatAccount(a.Seller),
		Quantity:       a.Quantity,
		Currency:       a.Currency.Symbol(),
		ReservePrice:   a.ReservePrice.String(),
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		ReserveEnabled: a.ReserveEnabled,
		Resulted:       a.Resulted,
	}
	if a.HighestBid != nil {
		out.HighestBid = &bidResult{
			Bidder:  formatAccount(a.HighestBid.Bidder),
			Amount:  a.HighestBid.Amount.String(),
			BidTime: a.HighestBid.BidTime,
		}
	}
	return out
}
