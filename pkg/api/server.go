// Package api exposes the exchange over REST and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/metaexchange/pkg/app/core"
	"github.com/uhyunpark/metaexchange/pkg/app/core/allocation"
	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
	"github.com/uhyunpark/metaexchange/pkg/storage"
)

const (
	defaultAllocationsLimit = 50
	maxAllocationsLimit     = 1000
)

// Options configures optional parts of the server
type Options struct {
	Journal        storage.Store // nil disables /allocations
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server handles REST API and WebSocket connections
type Server struct {
	ex      *core.Exchange
	journal storage.Store
	router  *mux.Router
	handler http.Handler
	hub     *Hub
	metrics *Metrics
	logger  *zap.SugaredLogger

	srvMu   sync.Mutex
	httpSrv *http.Server
	closed  bool
}

// NewServer creates a new API server and subscribes it to ex's allocations
func NewServer(ex *core.Exchange, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		ex:      ex,
		journal: opts.Journal,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		metrics: NewMetrics(),
		logger:  logger.Sugar(),
	}
	s.setupRoutes()

	// CORS configuration
	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	s.handler = c.Handler(s.router)

	ex.OnAllocation(s.onAllocation)
	go s.hub.Run()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Account endpoints
	api.HandleFunc("/accounts", s.handleGetAccounts).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}/balances", s.handleSetAccountBalances).Methods("PUT")
	api.HandleFunc("/balances", s.handleSetBalances).Methods("PUT")

	// Allocation endpoints
	api.HandleFunc("/buy", s.handleAllocate(orderbook.Buy)).Methods("POST")
	api.HandleFunc("/sell", s.handleAllocate(orderbook.Sell)).Methods("POST")
	api.HandleFunc("/allocations", s.handleGetAllocations).Methods("GET")
	api.HandleFunc("/allocations/{id}", s.handleGetAllocation).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check and metrics
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
}

// Handler returns the CORS-wrapped router
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves until Shutdown is called. Returns nil on a clean shutdown,
// including when Shutdown ran before Start.
func (s *Server) Start(addr string) error {
	s.srvMu.Lock()
	if s.closed {
		s.srvMu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpSrv = srv
	s.srvMu.Unlock()

	s.logger.Infow("api_started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes WebSocket clients.
// A later Start returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	s.closed = true
	srv := s.httpSrv
	s.srvMu.Unlock()

	s.hub.Close()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// onAllocation runs after every allocation, whichever surface triggered it
func (s *Server) onAllocation(res allocation.Result) {
	s.metrics.Observe(res)
	s.hub.BroadcastToChannel(ChannelFills, FillsUpdate{
		Type:               ChannelFills,
		AllocationResponse: NewAllocationResponse(res),
		Timestamp:          time.Now().UnixMilli(),
	})
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) accountInfo(id int) (AccountInfo, error) {
	bal, err := s.ex.Account(id)
	if err != nil {
		return AccountInfo{}, err
	}
	book, err := s.ex.Book(id)
	if err != nil {
		return AccountInfo{}, err
	}

	info := AccountInfo{
		AccountID: bal.ID,
		Money:     bal.Money,
		Asset:     bal.Asset,
		Bids:      len(book.Bids),
		Asks:      len(book.Asks),
	}
	info.BidDepth, info.AskDepth = book.Depth()
	if p, ok := book.BestBid(); ok {
		info.BestBid = &p
	}
	if p, ok := book.BestAsk(); ok {
		info.BestAsk = &p
	}
	return info, nil
}

func (s *Server) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	balances := s.ex.Accounts()
	response := make([]AccountInfo, 0, len(balances))
	for _, b := range balances {
		info, err := s.accountInfo(b.ID)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		response = append(response, info)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	info, err := s.accountInfo(id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, info)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	book, err := s.ex.Book(id)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	response := OrderbookSnapshot{
		AccountID: id,
		Bids:      priceLevels(book.BidLevels()),
		Asks:      priceLevels(book.AskLevels()),
		AcqTime:   book.AcqTime.UnixMilli(),
	}
	respondJSON(w, response)
}

func priceLevels(levels []orderbook.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, level := range levels {
		out[i] = PriceLevel{Price: level.Price, Size: level.Qty, Orders: level.Orders}
	}
	return out
}

func (s *Server) handleSetBalances(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBalances(w, r)
	if !ok {
		return
	}
	if err := s.ex.SetBalances(*req.Money, *req.Asset); err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, s.ex.Accounts())
}

func (s *Server) handleSetAccountBalances(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	req, ok := decodeBalances(w, r)
	if !ok {
		return
	}
	if err := s.ex.SetAccountBalances(id, *req.Money, *req.Asset); err != nil {
		s.respondErr(w, err)
		return
	}
	bal, err := s.ex.Account(id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, bal)
}

func (s *Server) handleAllocate(side orderbook.Side) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AllocationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		if req.Quantity == nil {
			respondError(w, http.StatusBadRequest, "missing quantity", "")
			return
		}

		res := s.ex.Allocate(side, *req.Quantity)
		respondJSON(w, NewAllocationResponse(res))
	}
}

func (s *Server) handleGetAllocations(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotFound, "journal disabled", "set JOURNAL_PATH to record allocations")
		return
	}

	limit := defaultAllocationsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = min(n, maxAllocationsLimit)
	}

	records, err := s.journal.Recent(limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if records == nil {
		records = []storage.Record{}
	}
	respondJSON(w, records)
}

func (s *Server) handleGetAllocation(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotFound, "journal disabled", "set JOURNAL_PATH to record allocations")
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid allocation id", err.Error())
		return
	}
	rec, err := s.journal.Get(id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{"status": "ok", "accounts": s.ex.Len()})
}

// ==============================
// Helper Functions
// ==============================

func accountID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id", raw)
		return 0, false
	}
	return id, true
}

func decodeBalances(w http.ResponseWriter, r *http.Request) (BalancesRequest, bool) {
	var req BalancesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, false
	}
	if req.Money == nil || req.Asset == nil {
		respondError(w, http.StatusBadRequest, "money and asset are required", "")
		return req, false
	}
	return req, true
}

// respondErr maps domain errors onto status codes
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, "account not found", err.Error())
	case errors.Is(err, storage.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, "allocation not found", err.Error())
	case errors.Is(err, core.ErrNegativeBalance):
		respondError(w, http.StatusBadRequest, "negative balance", err.Error())
	default:
		s.logger.Errorw("api_request_failed", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
