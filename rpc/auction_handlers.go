package rpc

import (
	"net/http"
)

type auctionCreateParams struct {
	Seller         string `json:"seller"`
	Collection     string `json:"collection"`
	ItemID         uint64 `json:"itemId"`
	Currency       string `json:"currency"`
	ReservePrice   string `json:"reservePrice"`
	StartTime      int64  `json:"startTime"`
	EndTime        int64  `json:"endTime"`
	ReserveEnabled bool   `json:"reserveEnabled"`
}

func (s *Server) handleAuctionCreate(w http.ResponseWriter, req *RPCRequest) {
	var params auctionCreateParams
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
	reserve, err := parseAmount(params.ReservePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid reserve price", err.Error())
		return
	}
	if err := s.auctions.CreateAuction(seller, collection, params.ItemID, currency, reserve, params.StartTime, params.ReserveEnabled, params.EndTime); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"created": true})
}

type placeBidParams struct {
	Bidder     string `json:"bidder"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Amount     string `json:"amount"`
	Value      string `json:"value"`
}

func (s *Server) handleAuctionPlaceBid(w http.ResponseWriter, req *RPCRequest) {
	var params placeBidParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	bidder, err := parseAddress(params.Bidder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid bidder address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	value, err := parseAmount(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid value", err.Error())
		return
	}
	if err := s.auctions.PlaceBid(bidder, collection, params.ItemID, amount, value); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"placed": true})
}

type auctionKeyParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
}

func (s *Server) handleAuctionCancel(w http.ResponseWriter, req *RPCRequest) {
	var params auctionKeyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	if err := s.auctions.CancelAuction(caller, collection, params.ItemID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"canceled": true})
}

type updateReserveParams struct {
	Seller       string `json:"seller"`
	Collection   string `json:"collection"`
	ItemID       uint64 `json:"itemId"`
	ReservePrice string `json:"reservePrice"`
}

func (s *Server) handleAuctionUpdateReserve(w http.ResponseWriter, req *RPCRequest) {
	var params updateReserveParams
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
	reserve, err := parseAmount(params.ReservePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid reserve price", err.Error())
		return
	}
	if err := s.auctions.UpdateReservePrice(seller, collection, params.ItemID, reserve); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

type updateWindowParams struct {
	Seller     string `json:"seller"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	StartTime  int64  `json:"startTime"`
	EndTime    int64  `json:"endTime"`
}

func (s *Server) handleAuctionUpdateWindow(w http.ResponseWriter, req *RPCRequest) {
	var params updateWindowParams
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
	if err := s.auctions.UpdateWindow(seller, collection, params.ItemID, params.StartTime, params.EndTime); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleAuctionResult(w http.ResponseWriter, req *RPCRequest) {
	var params auctionKeyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	receipt, err := s.auctions.ResultAuction(caller, collection, params.ItemID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatReceipt(receipt))
}

type auctionGetParams struct {
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
}

func (s *Server) handleAuctionGet(w http.ResponseWriter, req *RPCRequest) {
	var params auctionGetParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	auc, ok := s.auctions.Auction(collection, params.ItemID)
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeNotFound, "no auction exists", nil)
		return
	}
	writeResult(w, req.ID, formatAuction(auc))
}
