package rpc

import (
	"net/http"

	"agora/native/settlement"
)

type updatePlatformFeeParams struct {
	Caller string `json:"caller"`
	Bps    uint32 `json:"bps"`
}

func (s *Server) handleUpdatePlatformFee(w http.ResponseWriter, req *RPCRequest) {
	var params updatePlatformFeeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.settle.UpdatePlatformFee(caller, params.Bps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

type updateFeeRecipientParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleUpdateFeeRecipient(w http.ResponseWriter, req *RPCRequest) {
	var params updateFeeRecipientParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	if err := s.settle.UpdateFeeRecipient(caller, recipient); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handlePlatformFee(w http.ResponseWriter, req *RPCRequest) {
	bps, recipient := s.settle.PlatformFee()
	writeResult(w, req.ID, map[string]interface{}{
		"bps":       bps,
		"recipient": formatAccount(recipient),
	})
}

type getBalanceParams struct {
	Address string `json:"address"`
}

type balanceResult struct {
	Address       string            `json:"address"`
	BalanceNative string            `json:"balanceNative"`
	TokenBalances map[string]string `json:"tokenBalances"`
	Nonce         uint64            `json:"nonce"`
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params getBalanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	account, err := s.state.GetAccount(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	tokens := make(map[string]string, len(account.TokenBalances))
	for symbol, balance := range account.TokenBalances {
		tokens[symbol] = balance.String()
	}
	writeResult(w, req.ID, balanceResult{
		Address:       params.Address,
		BalanceNative: account.BalanceNative.String(),
		TokenBalances: tokens,
		Nonce:         account.Nonce,
	})
}

type eventsListParams struct {
	Prefix string `json:"prefix"`
}

func (s *Server) handleEventsList(w http.ResponseWriter, req *RPCRequest) {
	params := eventsListParams{}
	if len(req.Params) > 0 {
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
	}
	if s.sink == nil {
		writeResult(w, req.ID, []interface{}{})
		return
	}
	writeResult(w, req.ID, s.sink.Events(params.Prefix))
}

func (s *Server) handleVaultAddress(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, map[string]string{"vault": formatAccount(settlement.VaultAddress)})
}
