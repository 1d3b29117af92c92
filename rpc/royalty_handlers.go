package rpc

import (
	"net/http"
)

type itemRoyaltyParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
	Bps        uint32 `json:"bps"`
}

func (s *Server) handleRoyaltyRegisterItem(w http.ResponseWriter, req *RPCRequest) {
	var params itemRoyaltyParams
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
	if err := s.royalties.RegisterItemRoyalty(caller, collection, params.ItemID, params.Bps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"registered": true})
}

func (s *Server) handleRoyaltyUpdateItem(w http.ResponseWriter, req *RPCRequest) {
	var params itemRoyaltyParams
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
	if err := s.royalties.UpdateItemRoyalty(caller, collection, params.ItemID, params.Bps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

type collectionRoyaltyParams struct {
	Caller       string `json:"caller"`
	Collection   string `json:"collection"`
	Creator      string `json:"creator"`
	FeeRecipient string `json:"feeRecipient"`
	Bps          uint32 `json:"bps"`
}

func (s *Server) handleRoyaltyRegisterCollection(w http.ResponseWriter, req *RPCRequest) {
	var params collectionRoyaltyParams
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
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	feeRecipient := creator
	if params.FeeRecipient != "" {
		feeRecipient, err = parseAddress(params.FeeRecipient)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid fee recipient address", err.Error())
			return
		}
	}
	if err := s.royalties.RegisterCollectionRoyalty(caller, collection, creator, feeRecipient, params.Bps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"registered": true})
}

type royaltyGetParams struct {
	Collection string `json:"collection"`
	ItemID     uint64 `json:"itemId"`
}

type royaltyGetResult struct {
	Bps       uint32 `json:"bps"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleRoyaltyGet(w http.ResponseWriter, req *RPCRequest) {
	var params royaltyGetParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid collection address", err.Error())
		return
	}
	bps, recipient, ok := s.royalties.RoyaltyFor(collection, params.ItemID)
	if !ok {
		writeError(w, http.StatusOK, req.ID, codeNotFound, "no royalty configured", nil)
		return
	}
	writeResult(w, req.ID, royaltyGetResult{Bps: bps, Recipient: formatAccount(recipient)})
}
