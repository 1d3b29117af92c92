package rpc

import (
	"net/http"

	"agora/native/registry"
)

type itemMintParams struct {
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Owner      string `json:"owner"`
	Quantity   uint64 `json:"quantity"`
}

func (s *Server) handleItemMint(w http.ResponseWriter, req *RPCRequest) {
	var params itemMintParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	if err := s.items.Mint(collection, params.ItemID, owner, params.Quantity); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"minted": true})
}

type itemTransferParams struct {
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	From       string `json:"from"`
	To         string `json:"to"`
	Quantity   uint64 `json:"quantity"`
}

func (s *Server) handleItemTransfer(w http.ResponseWriter, req *RPCRequest) {
	var params itemTransferParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	from, err := parseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	to, err := parseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to address", err.Error())
		return
	}
	if err := s.items.Transfer(collection, params.ItemID, from, to, params.Quantity); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"transferred": true})
}

type setApprovalParams struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

func (s *Server) handleItemSetApproval(w http.ResponseWriter, req *RPCRequest) {
	var params setApprovalParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	operator, err := parseAddress(params.Operator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid operator address", err.Error())
		return
	}
	if err := s.items.SetApprovalForAll(owner, operator, params.Approved); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"approved": params.Approved})
}

type balanceOfParams struct {
	Owner      string `json:"owner"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
}

func (s *Server) handleItemBalanceOf(w http.ResponseWriter, req *RPCRequest) {
	var params balanceOfParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	balance, err := s.items.BalanceOf(owner, collection, params.ItemID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"balance": balance})
}

type ownerOfParams struct {
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
}

func (s *Server) handleItemOwnerOf(w http.ResponseWriter, req *RPCRequest) {
	var params ownerOfParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	owner, ok, err := s.items.OwnerOf(collection, params.ItemID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeNotFound, "item has no sole owner", nil)
		return
	}
	writeResult(w, req.ID, map[string]string{"owner": formatAccount(owner)})
}

type collectionRegisterParams struct {
	Collection string `json:"collection"`
	Internal   bool   `json:"internal"`
}

func (s *Server) handleCollectionRegister(w http.ResponseWriter, req *RPCRequest) {
	var params collectionRegisterParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	if err := s.items.RegisterCollection(collection, params.Internal); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"registered": true})
}

type tokenAddParams struct {
	Caller   string `json:"caller"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

func (s *Server) handleTokenAdd(w http.ResponseWriter, req *RPCRequest) {
	var params tokenAddParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	info := registry.TokenInfo{Symbol: params.Symbol, Name: params.Name, Decimals: params.Decimals}
	if err := s.tokens.Add(caller, info); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"added": true})
}

type tokenRemoveParams struct {
	Caller string `json:"caller"`
	Symbol string `json:"symbol"`
}

func (s *Server) handleTokenRemove(w http.ResponseWriter, req *RPCRequest) {
	var params tokenRemoveParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.tokens.Remove(caller, params.Symbol); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"removed": true})
}

func (s *Server) handleTokenList(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, map[string][]string{"tokens": s.tokens.Tokens()})
}

type feedSetPriceParams struct {
	Caller string `json:"caller"`
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (s *Server) handleFeedSetPrice(w http.ResponseWriter, req *RPCRequest) {
	var params feedSetPriceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid price", err.Error())
		return
	}
	if err := s.feed.SetUnitPrice(caller, params.Symbol, price); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

type feedGetPriceParams struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleFeedGetPrice(w http.ResponseWriter, req *RPCRequest) {
	var params feedGetPriceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	price := s.feed.UnitPrice(params.Symbol)
	writeResult(w, req.ID, map[string]string{"symbol": params.Symbol, "unitPrice": price.String()})
}
