package rpc

import (
	"net/http"
)

type listItemParams struct {
	Seller     string `json:"seller"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Quantity   uint64 `json:"quantity"`
	Currency   string `json:"currency"`
	UnitPrice  string `json:"unitPrice"`
	StartTime  int64  `json:"startTime"`
}

func (s *Server) handleListItem(w http.ResponseWriter, req *RPCRequest) {
	var params listItemParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid currency", err.Error())
		return
	}
	unitPrice, err := parseAmount(params.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid unit price", err.Error())
		return
	}
	if err := s.market.ListItem(seller, collection, params.ItemID, params.Quantity, currency, unitPrice, params.StartTime); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"listed": true})
}

type updateListingParams struct {
	Seller     string `json:"seller"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Currency   string `json:"currency"`
	UnitPrice  string `json:"unitPrice"`
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, req *RPCRequest) {
	var params updateListingParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid currency", err.Error())
		return
	}
	unitPrice, err := parseAmount(params.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid unit price", err.Error())
		return
	}
	if err := s.market.UpdateListing(seller, collection, params.ItemID, currency, unitPrice); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

type cancelListingParams struct {
	Seller     string `json:"seller"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
}

func (s *Server) handleCancelListing(w http.ResponseWriter, req *RPCRequest) {
	var params cancelListingParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	if err := s.market.CancelListing(seller, collection, params.ItemID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"canceled": true})
}

type buyItemParams struct {
	Buyer      string `json:"buyer"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Seller     string `json:"seller"`
	Currency   string `json:"currency"`
	Value      string `json:"value"`
}

func (s *Server) handleBuyItem(w http.ResponseWriter, req *RPCRequest) {
	var params buyItemParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address", err.Error())
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid currency", err.Error())
		return
	}
	value, err := parseAmount(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid value", err.Error())
		return
	}
	receipt, err := s.market.BuyItem(buyer, collection, params.ItemID, currency, seller, value)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatReceipt(receipt))
}

type getListingParams struct {
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Seller     string `json:"seller"`
}

func (s *Server) handleGetListing(w http.ResponseWriter, req *RPCRequest) {
	var params getListingParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address", err.Error())
		return
	}
	listing, ok := s.market.Listing(collection, params.ItemID, seller)
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeNotFound, "not listed item", nil)
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

type createOfferParams struct {
	Buyer      string `json:"buyer"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Quantity   uint64 `json:"quantity"`
	Currency   string `json:"currency"`
	UnitPrice  string `json:"unitPrice"`
	Expiration int64  `json:"expiration"`
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, req *RPCRequest) {
	var params createOfferParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid currency", err.Error())
		return
	}
	unitPrice, err := parseAmount(params.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid unit price", err.Error())
		return
	}
	if err := s.market.CreateOffer(buyer, collection, params.ItemID, currency, params.Quantity, unitPrice, params.Expiration); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"created": true})
}

type cancelOfferParams struct {
	Buyer      string `json:"buyer"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
}

func (s *Server) handleCancelOffer(w http.ResponseWriter, req *RPCRequest) {
	var params cancelOfferParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	if err := s.market.CancelOffer(buyer, collection, params.ItemID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"canceled": true})
}

type acceptOfferParams struct {
	Seller     string `json:"seller"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Buyer      string `json:"buyer"`
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, req *RPCRequest) {
	var params acceptOfferParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	receipt, err := s.market.AcceptOffer(seller, collection, params.ItemID, buyer)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatReceipt(receipt))
}

type getOfferParams struct {
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Buyer      string `json:"buyer"`
}

func (s *Server) handleGetOffer(w http.ResponseWriter, req *RPCRequest) {
	var params getOfferParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	offer, ok := s.market.Offer(collection, params.ItemID, buyer)
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeNotFound, "offer not exists or expired", nil)
		return
	}
	writeResult(w, req.ID, formatOffer(offer))
}
