package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"agora/core/events"
	"agora/native/auction"
	"agora/native/market"
	"agora/native/registry"
	"agora/native/royalty"
	"agora/native/settlement"
	"agora/state"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
	codeNotFound       = -32030
	codeRejected       = -32040
)

// Server exposes the marketplace engines over JSON-RPC 2.0.
type Server struct {
	market    *market.Engine
	auctions  *auction.Engine
	royalties *royalty.Registry
	tokens    *registry.TokenRegistry
	feed      *registry.PriceFeed
	items     *registry.Ledger
	settle    *settlement.Engine
	state     *state.Manager
	sink      *events.Sink
	log       *slog.Logger

	jwtSecret []byte
	rateLimit rate.Limit
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Deps bundles the collaborators the server dispatches into.
type Deps struct {
	Market    *market.Engine
	Auctions  *auction.Engine
	Royalties *royalty.Registry
	Tokens    *registry.TokenRegistry
	Feed      *registry.PriceFeed
	Items     *registry.Ledger
	Settle    *settlement.Engine
	State     *state.Manager
	Sink      *events.Sink
}

// NewServer builds a server. A nil logger falls back to slog.Default; an
// empty JWT secret disables every privileged method.
func NewServer(deps Deps, jwtSecret []byte, ratePerSec int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if ratePerSec <= 0 {
		ratePerSec = 50
	}
	return &Server{
		market:    deps.Market,
		auctions:  deps.Auctions,
		royalties: deps.Royalties,
		tokens:    deps.Tokens,
		feed:      deps.Feed,
		items:     deps.Items,
		settle:    deps.Settle,
		state:     deps.State,
		sink:      deps.Sink,
		log:       log,
		jwtSecret: jwtSecret,
		rateLimit: rate.Limit(ratePerSec),
		burst:     ratePerSec * 2,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint plus health and
// metrics.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) limiter(client string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[client]
	if !ok {
		lim = rate.NewLimiter(s.rateLimit, s.burst)
		s.limiters[client] = lim
	}
	return lim
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.limiter(clientKey(r)).Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	requestID := uuid.NewString()
	s.log.Debug("rpc request", "method", req.Method, "requestId", requestID, "client", clientKey(r))

	switch req.Method {
	case "market_listItem":
		s.handleListItem(w, req)
	case "market_updateListing":
		s.handleUpdateListing(w, req)
	case "market_cancelListing":
		s.handleCancelListing(w, req)
	case "market_buyItem":
		s.handleBuyItem(w, req)
	case "market_getListing":
		s.handleGetListing(w, req)
	case "market_createOffer":
		s.handleCreateOffer(w, req)
	case "market_cancelOffer":
		s.handleCancelOffer(w, req)
	case "market_acceptOffer":
		s.handleAcceptOffer(w, req)
	case "market_getOffer":
		s.handleGetOffer(w, req)
	case "auction_create":
		s.handleAuctionCreate(w, req)
	case "auction_placeBid":
		s.handleAuctionPlaceBid(w, req)
	case "auction_cancel":
		s.handleAuctionCancel(w, req)
	case "auction_updateReserve":
		s.handleAuctionUpdateReserve(w, req)
	case "auction_updateWindow":
		s.handleAuctionUpdateWindow(w, req)
	case "auction_result":
		s.handleAuctionResult(w, req)
	case "auction_get":
		s.handleAuctionGet(w, req)
	case "royalty_registerItem":
		s.handleRoyaltyRegisterItem(w, req)
	case "royalty_updateItem":
		s.handleRoyaltyUpdateItem(w, req)
	case "royalty_registerCollection":
		s.handleRoyaltyRegisterCollection(w, req)
	case "royalty_get":
		s.handleRoyaltyGet(w, req)
	case "item_mint":
		s.handleItemMint(w, req)
	case "item_transfer":
		s.handleItemTransfer(w, req)
	case "item_setApprovalForAll":
		s.handleItemSetApproval(w, req)
	case "item_balanceOf":
		s.handleItemBalanceOf(w, req)
	case "item_ownerOf":
		s.handleItemOwnerOf(w, req)
	case "collection_register":
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleCollectionRegister(w, req)
	case "token_add":
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleTokenAdd(w, req)
	case "token_remove":
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleTokenRemove(w, req)
	case "token_list":
		s.handleTokenList(w, req)
	case "feed_setPrice":
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleFeedSetPrice(w, req)
	case "feed_getPrice":
		s.handleFeedGetPrice(w, req)
	case "settlement_updatePlatformFee":
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdatePlatformFee(w, req)
	case "settlement_updateFeeRecipient":
		if authErr := s.requireAdmin(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdateFeeRecipient(w, req)
	case "settlement_platformFee":
		s.handlePlatformFee(w, req)
	case "settlement_vaultAddress":
		s.handleVaultAddress(w, req)
	case "account_getBalance":
		s.handleGetBalance(w, req)
	case "events_list":
		s.handleEventsList(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}
