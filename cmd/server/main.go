// Package main provides the bonding curve trading server:
// - REST API for pool creation, trading and status queries
// - WebSocket feed of executed trades
// - Prometheus metrics and health endpoints
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"solana-curve-engine/internal/domain"
	"solana-curve-engine/internal/engine"
	"solana-curve-engine/internal/feed"
	"solana-curve-engine/internal/ledger"
	"solana-curve-engine/internal/observability"
	"solana-curve-engine/internal/settlement"
	"solana-curve-engine/internal/storage"
	chstore "solana-curve-engine/internal/storage/clickhouse"
	"solana-curve-engine/internal/storage/memory"
	"solana-curve-engine/internal/storage/migrations"
	pgstore "solana-curve-engine/internal/storage/postgres"
)

// Server holds all components of the trading service.
type Server struct {
	registry   *engine.Registry
	executor   *engine.Executor
	graduation *engine.Graduation
	hub        *feed.Hub

	pricePoints storage.PricePointStore

	defaultThreshold uint64
	defaultFeeBps    uint16

	logger    *log.Logger
	startedAt time.Time

	mu          sync.Mutex
	tradesTotal int64
}

// allStores holds all storage implementations.
type allStores struct {
	poolStore       storage.PoolStore
	tradeStore      storage.TradeStore
	pricePointStore storage.PricePointStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	defaultThreshold := flag.Uint64("default-threshold", envOrUint64("DEFAULT_GRADUATION_THRESHOLD", 69), "Default graduation threshold in quote base units")
	defaultFeeBps := flag.Uint64("default-fee-bps", envOrUint64("DEFAULT_FEE_BPS", 0), "Default trade fee in basis points")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	if *defaultFeeBps >= 10_000 {
		logger.Fatal("--default-fee-bps must be below 10000")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Wire the engine
	led := ledger.New()
	registry := engine.NewRegistry(led, stores.poolStore, stores.tradeStore, time.Now)

	migrator := &settlement.StubMigrator{
		Logger: log.New(os.Stdout, "[settlement] ", log.LstdFlags),
	}
	graduation := engine.NewGraduation(led, migrator, stores.poolStore,
		log.New(os.Stdout, "[graduation] ", log.LstdFlags))
	migrator.Confirmer = graduation

	executor := engine.NewExecutor(engine.ExecutorOptions{
		Ledger:     led,
		TradeStore: stores.tradeStore,
		PoolStore:  stores.poolStore,
		Submitter:  settlement.StubSubmitter{},
		Graduation: graduation,
		Logger:     log.New(os.Stdout, "[executor] ", log.LstdFlags),
	})

	// Restore pool state from the durable store
	loaded, err := registry.Hydrate(ctx)
	if err != nil {
		logger.Fatalf("Failed to hydrate pools: %v", err)
	}
	logger.Printf("Hydrated %d pools", loaded)
	for _, p := range registry.ListPools() {
		if p.State == domain.PoolStateActive {
			observability.DefaultMetrics.ActivePools.Inc()
		}
	}

	hub := feed.NewHub(nil, log.New(os.Stdout, "[feed] ", log.LstdFlags))

	server := &Server{
		registry:         registry,
		executor:         executor,
		graduation:       graduation,
		hub:              hub,
		pricePoints:      stores.pricePointStore,
		defaultThreshold: *defaultThreshold,
		defaultFeeBps:    uint16(*defaultFeeBps),
		logger:           logger,
		startedAt:        time.Now(),
	}

	httpServer := &http.Server{
		Addr:              *listenAddr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		hub.Close()
		httpServer.Shutdown(shutdownCtx)

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	logger.Printf("Listening on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}
	close(done)

	logger.Println("Shutdown complete")
}

// createStores creates all required stores, running migrations for the
// durable backends.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			poolStore:       memory.NewPoolStore(),
			tradeStore:      memory.NewTradeStore(),
			pricePointStore: memory.NewPricePointStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	stores := &allStores{
		poolStore:       pgstore.NewPoolStore(pool),
		tradeStore:      pgstore.NewTradeStore(pool),
		pricePointStore: chstore.NewPricePointStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("POST /v1/pools", s.handleCreatePool)
	mux.HandleFunc("GET /v1/pools", s.handleListPools)
	mux.HandleFunc("GET /v1/pools/{id}", s.handlePoolStatus)
	mux.HandleFunc("POST /v1/pools/{id}/trades", s.handleExecuteTrade)
	mux.HandleFunc("GET /v1/pools/{id}/trades", s.handleListTrades)
	mux.HandleFunc("GET /v1/pools/{id}/prices", s.handleListPrices)

	mux.HandleFunc("GET /ws/trades", s.hub.ServeWS)

	return mux
}

// CreatePoolRequest is the JSON body for POST /v1/pools.
type CreatePoolRequest struct {
	Mint                string `json:"mint"`
	Creator             string `json:"creator"`
	ShortName           string `json:"short_name"`
	TotalSupply         uint64 `json:"total_supply"`
	InitialQuoteReserve uint64 `json:"initial_quote_reserve"`
	GraduationThreshold uint64 `json:"graduation_threshold"`
	FeeBps              uint16 `json:"fee_bps"`
}

// PoolResponse is the JSON representation of a pool.
type PoolResponse struct {
	ID                       string  `json:"id"`
	Mint                     string  `json:"mint"`
	Creator                  string  `json:"creator"`
	ShortName                string  `json:"short_name,omitempty"`
	BaseReserve              uint64  `json:"base_reserve"`
	QuoteReserve             uint64  `json:"quote_reserve"`
	TotalSupply              uint64  `json:"total_supply"`
	CirculatingSupply        uint64  `json:"circulating_supply"`
	CumulativeQuoteCollected uint64  `json:"cumulative_quote_collected"`
	GraduationThreshold      uint64  `json:"graduation_threshold"`
	GraduationProgressPct    float64 `json:"graduation_progress_pct"`
	FeeBps                   uint16  `json:"fee_bps"`
	State                    string  `json:"state"`
	CreatedAt                int64   `json:"created_at"`
	LastTradeAt              int64   `json:"last_trade_at,omitempty"`
	TradeCount               int64   `json:"trade_count"`
}

func poolResponse(p domain.Pool) PoolResponse {
	return PoolResponse{
		ID:                       p.ID,
		Mint:                     p.Mint,
		Creator:                  p.Creator,
		ShortName:                p.ShortName,
		BaseReserve:              p.BaseReserve,
		QuoteReserve:             p.QuoteReserve,
		TotalSupply:              p.TotalSupply,
		CirculatingSupply:        p.CirculatingSupply(),
		CumulativeQuoteCollected: p.CumulativeQuoteCollected,
		GraduationThreshold:      p.GraduationThreshold,
		GraduationProgressPct:    p.GraduationProgressPct(),
		FeeBps:                   p.FeeBps,
		State:                    string(p.State),
		CreatedAt:                p.CreatedAt,
		LastTradeAt:              p.LastTradeAt,
		TradeCount:               p.TradeCount,
	}
}

// handleCreatePool creates a new bonding curve pool.
func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req CreatePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg := domain.PoolConfig{
		Mint:                req.Mint,
		Creator:             req.Creator,
		ShortName:           req.ShortName,
		TotalSupply:         req.TotalSupply,
		InitialQuoteReserve: req.InitialQuoteReserve,
		GraduationThreshold: req.GraduationThreshold,
		FeeBps:              req.FeeBps,
	}
	if cfg.GraduationThreshold == 0 {
		cfg.GraduationThreshold = s.defaultThreshold
	}
	if cfg.FeeBps == 0 {
		cfg.FeeBps = s.defaultFeeBps
	}

	pool, err := s.registry.CreatePool(r.Context(), cfg)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Printf("create pool: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	observability.RecordPoolCreated()
	s.hub.BroadcastPoolState(pool.ID, pool.State)

	writeJSON(w, http.StatusCreated, poolResponse(pool))
}

// handleListPools lists all pools in creation order.
func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools := s.registry.ListPools()
	resp := make([]PoolResponse, 0, len(pools))
	for _, p := range pools {
		resp = append(resp, poolResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePoolStatus returns the status view of one pool.
func (s *Server) handlePoolStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.registry.PoolStatus(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "pool not found")
		return
	}
	writeJSON(w, http.StatusOK, poolResponse(status.Pool))
}

// TradeRequest is the JSON body for POST /v1/pools/{id}/trades.
type TradeRequest struct {
	Side         string `json:"side"`
	AmountIn     uint64 `json:"amount_in"`
	MinAmountOut uint64 `json:"min_amount_out"`
}

// TradeResponse is the JSON representation of an executed trade.
type TradeResponse struct {
	ID                string  `json:"id"`
	PoolID            string  `json:"pool_id"`
	Seq               int64   `json:"seq"`
	Side              string  `json:"side"`
	AmountIn          uint64  `json:"amount_in"`
	AmountOut         uint64  `json:"amount_out"`
	FeePaid           uint64  `json:"fee_paid"`
	ExecutionPrice    float64 `json:"execution_price"`
	PriceImpactBps    uint32  `json:"price_impact_bps"`
	BaseReserveAfter  uint64  `json:"base_reserve_after"`
	QuoteReserveAfter uint64  `json:"quote_reserve_after"`
	Timestamp         int64   `json:"timestamp"`
	Settlement        string  `json:"settlement,omitempty"`
	Graduating        bool    `json:"graduating,omitempty"`
}

func tradeResponse(t *domain.Trade) TradeResponse {
	return TradeResponse{
		ID:                t.ID,
		PoolID:            t.PoolID,
		Seq:               t.Seq,
		Side:              string(t.Side),
		AmountIn:          t.AmountIn,
		AmountOut:         t.AmountOut,
		FeePaid:           t.FeePaid,
		ExecutionPrice:    t.ExecutionPrice,
		PriceImpactBps:    t.PriceImpactBps,
		BaseReserveAfter:  t.BaseReserveAfter,
		QuoteReserveAfter: t.QuoteReserveAfter,
		Timestamp:         t.Timestamp,
	}
}

// handleExecuteTrade executes a buy or sell against a pool.
func (s *Server) handleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("id")

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start := time.Now()
	result, err := s.executor.ExecuteTrade(r.Context(), poolID, domain.Side(req.Side), req.AmountIn, req.MinAmountOut)
	if err != nil {
		observability.RecordTradeError(errorKind(err))
		writeError(w, tradeErrorStatus(err), err.Error())
		return
	}

	trade := &result.Trade
	quoteVolume := trade.AmountIn
	if trade.Side == domain.SideSell {
		quoteVolume = trade.AmountOut
	}
	observability.RecordTrade(string(trade.Side), quoteVolume, trade.FeePaid, time.Since(start).Seconds())
	if result.Graduating {
		observability.RecordGraduationStarted()
		s.hub.BroadcastPoolState(poolID, domain.PoolStateGraduating)
	}

	s.mu.Lock()
	s.tradesTotal++
	s.mu.Unlock()

	s.hub.BroadcastTrade(trade, result.Graduating)
	s.recordPricePoint(r.Context(), trade, quoteVolume)

	resp := tradeResponse(trade)
	resp.Settlement = result.Settlement
	resp.Graduating = result.Graduating
	writeJSON(w, http.StatusOK, resp)
}

// recordPricePoint appends the post-trade price to the analytics series.
// Best effort: the trade already committed.
func (s *Server) recordPricePoint(ctx context.Context, trade *domain.Trade, quoteVolume uint64) {
	point := &domain.PricePoint{
		PoolID:       trade.PoolID,
		Seq:          trade.Seq,
		TimestampMs:  trade.Timestamp,
		Price:        trade.ExecutionPrice,
		BaseReserve:  trade.BaseReserveAfter,
		QuoteReserve: trade.QuoteReserveAfter,
		VolumeQuote:  float64(quoteVolume),
	}

	start := time.Now()
	err := s.pricePoints.InsertBulk(ctx, []*domain.PricePoint{point})
	observability.RecordDBQuery("clickhouse", "insert_price_point", time.Since(start).Seconds(), err)
	if err != nil {
		s.logger.Printf("record price point for pool %s seq %d: %v", trade.PoolID, trade.Seq, err)
	}
}

// handleListTrades lists a pool's trades, newest first.
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.registry.ListTrades(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrPoolNotFound) {
			writeError(w, http.StatusNotFound, "pool not found")
			return
		}
		s.logger.Printf("list trades: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]TradeResponse, 0, len(trades))
	for _, t := range trades {
		resp = append(resp, tradeResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// PricePointResponse is the JSON representation of one price sample.
type PricePointResponse struct {
	Seq          int64   `json:"seq"`
	TimestampMs  int64   `json:"timestamp_ms"`
	Price        float64 `json:"price"`
	BaseReserve  uint64  `json:"base_reserve"`
	QuoteReserve uint64  `json:"quote_reserve"`
	VolumeQuote  float64 `json:"volume_quote"`
}

// handleListPrices returns the price series for a pool, oldest first.
func (s *Server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("id")
	if _, err := s.registry.GetPool(poolID); err != nil {
		writeError(w, http.StatusNotFound, "pool not found")
		return
	}

	start := time.Now()
	points, err := s.pricePoints.GetByPoolID(r.Context(), poolID)
	observability.RecordDBQuery("clickhouse", "get_price_points", time.Since(start).Seconds(), err)
	if err != nil {
		s.logger.Printf("list price points: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]PricePointResponse, 0, len(points))
	for _, p := range points {
		resp = append(resp, PricePointResponse{
			Seq:          p.Seq,
			TimestampMs:  p.TimestampMs,
			Price:        p.Price,
			BaseReserve:  p.BaseReserve,
			QuoteReserve: p.QuoteReserve,
			VolumeQuote:  p.VolumeQuote,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	Pools       int    `json:"pools"`
	TradesTotal int64  `json:"trades_total"`
	Subscribers int    `json:"feed_subscribers"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	trades := s.tradesTotal
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.startedAt).String(),
		Pools:       len(s.registry.ListPools()),
		TradesTotal: trades,
		Subscribers: s.hub.SubscriberCount(),
	})
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// tradeErrorStatus maps the trade error taxonomy to HTTP status codes.
func tradeErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPoolGraduated):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSlippageExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooLarge),
		errors.Is(err, domain.ErrInsufficientLiquidity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorKind labels a trade error for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrPoolNotFound):
		return "pool_not_found"
	case errors.Is(err, domain.ErrPoolGraduated):
		return "pool_graduated"
	case errors.Is(err, domain.ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrAmountTooLarge):
		return "amount_too_large"
	case errors.Is(err, domain.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	default:
		return "internal"
	}
}

// envOr returns the env var value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envOrUint64 returns the env var parsed as uint64 or a default.
func envOrUint64(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
