// Package main runs a scripted trading session against an in-memory
// bonding curve engine. Useful for exercising curve math, graduation
// behavior and fee accrual without any external services.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	mrand "math/rand"
	"os"
	"time"

	"github.com/mr-tron/base58"

	"solana-curve-engine/internal/domain"
	"solana-curve-engine/internal/engine"
	"solana-curve-engine/internal/ledger"
	"solana-curve-engine/internal/settlement"
	"solana-curve-engine/internal/storage/memory"
)

func main() {
	// Parse flags
	numPools := flag.Int("pools", 4, "Number of pools to create")
	numTrades := flag.Int("trades", 1000, "Number of trades to attempt")
	seed := flag.Int64("seed", 1, "PRNG seed for reproducible runs")
	totalSupply := flag.Uint64("total-supply", 1_073_000_000, "Token supply per pool")
	initialQuote := flag.Uint64("initial-quote", 30, "Initial virtual quote reserve per pool")
	threshold := flag.Uint64("threshold", 69, "Graduation threshold in quote base units")
	feeBps := flag.Uint64("fee-bps", 100, "Trade fee in basis points")
	maxBuy := flag.Uint64("max-buy", 10, "Maximum quote amount per buy")
	buyBias := flag.Float64("buy-bias", 0.7, "Probability that a trade is a buy")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	if *numPools <= 0 || *numTrades <= 0 {
		logger.Fatal("--pools and --trades must be positive")
	}
	if *feeBps >= 10_000 {
		logger.Fatal("--fee-bps must be below 10000")
	}

	ctx := context.Background()
	rng := mrand.New(mrand.NewSource(*seed))

	// Wire an in-memory engine
	poolStore := memory.NewPoolStore()
	tradeStore := memory.NewTradeStore()
	led := ledger.New()

	registry := engine.NewRegistry(led, poolStore, tradeStore, time.Now)
	migrator := &settlement.StubMigrator{Logger: logger}
	graduation := engine.NewGraduation(led, migrator, poolStore, logger)
	migrator.Confirmer = graduation
	executor := engine.NewExecutor(engine.ExecutorOptions{
		Ledger:     led,
		TradeStore: tradeStore,
		PoolStore:  poolStore,
		Submitter:  settlement.StubSubmitter{},
		Graduation: graduation,
		Logger:     logger,
	})

	// Create pools
	poolIDs := make([]string, 0, *numPools)
	for i := 0; i < *numPools; i++ {
		pool, err := registry.CreatePool(ctx, domain.PoolConfig{
			Mint:                randomAddress(),
			Creator:             randomAddress(),
			ShortName:           fmt.Sprintf("SIM%d", i+1),
			TotalSupply:         *totalSupply,
			InitialQuoteReserve: *initialQuote,
			GraduationThreshold: *threshold,
			FeeBps:              uint16(*feeBps),
		})
		if err != nil {
			logger.Fatalf("create pool %d: %v", i, err)
		}
		poolIDs = append(poolIDs, pool.ID)
	}
	logger.Printf("Created %d pools, running %d trades (seed=%d)", *numPools, *numTrades, *seed)

	// Run the session
	stats := &sessionStats{Rejections: make(map[string]int)}
	start := time.Now()

	for i := 0; i < *numTrades; i++ {
		poolID := poolIDs[rng.Intn(len(poolIDs))]

		side := domain.SideSell
		if rng.Float64() < *buyBias {
			side = domain.SideBuy
		}

		var amountIn uint64
		if side == domain.SideBuy {
			amountIn = 1 + uint64(rng.Int63n(int64(*maxBuy)))
		} else {
			snap, err := led.Snapshot(poolID)
			if err != nil || snap.CirculatingSupply() == 0 {
				continue
			}
			// Sell back a small slice of what the curve has issued.
			amountIn = 1 + uint64(rng.Int63n(int64(snap.CirculatingSupply()/20+1)))
		}

		result, err := executor.ExecuteTrade(ctx, poolID, side, amountIn, 0)
		if err != nil {
			stats.Rejected++
			stats.Rejections[rejectionLabel(err)]++
			continue
		}

		stats.Executed++
		if side == domain.SideBuy {
			stats.Buys++
			stats.QuoteVolume += result.Trade.AmountIn
		} else {
			stats.Sells++
			stats.QuoteVolume += result.Trade.AmountOut
		}
		stats.FeesCollected += result.Trade.FeePaid
		if result.Graduating {
			stats.Graduations++
		}
	}
	stats.Elapsed = time.Since(start).String()

	// Collect per-pool summaries
	for _, id := range poolIDs {
		snap, err := led.Snapshot(id)
		if err != nil {
			logger.Fatalf("snapshot pool %s: %v", id, err)
		}
		stats.Pools = append(stats.Pools, poolSummary{
			ID:                snap.ID,
			ShortName:         snap.ShortName,
			State:             string(snap.State),
			TradeCount:        snap.TradeCount,
			BaseReserve:       snap.BaseReserve,
			QuoteReserve:      snap.QuoteReserve,
			CirculatingSupply: snap.CirculatingSupply(),
			QuoteCollected:    snap.CumulativeQuoteCollected,
			ProgressPct:       snap.GraduationProgressPct(),
		})
	}

	// Output result
	if *outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
	} else {
		printStats(stats)
	}
}

// sessionStats accumulates results across the whole session.
type sessionStats struct {
	Executed      int            `json:"executed"`
	Rejected      int            `json:"rejected"`
	Buys          int            `json:"buys"`
	Sells         int            `json:"sells"`
	Graduations   int            `json:"graduations"`
	QuoteVolume   uint64         `json:"quote_volume"`
	FeesCollected uint64         `json:"fees_collected"`
	Elapsed       string         `json:"elapsed"`
	Rejections    map[string]int `json:"rejections,omitempty"`
	Pools         []poolSummary  `json:"pools"`
}

// poolSummary is the end-of-session view of one pool.
type poolSummary struct {
	ID                string  `json:"id"`
	ShortName         string  `json:"short_name"`
	State             string  `json:"state"`
	TradeCount        int64   `json:"trade_count"`
	BaseReserve       uint64  `json:"base_reserve"`
	QuoteReserve      uint64  `json:"quote_reserve"`
	CirculatingSupply uint64  `json:"circulating_supply"`
	QuoteCollected    uint64  `json:"quote_collected"`
	ProgressPct       float64 `json:"progress_pct"`
}

// randomAddress generates a fresh ed25519 public key in base58, so pool
// creation sees a real on-curve address.
func randomAddress() string {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return base58.Encode(pub)
}

// rejectionLabel buckets trade errors for the summary.
func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrPoolGraduated):
		return "pool_graduated"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, domain.ErrAmountTooLarge):
		return "amount_too_large"
	default:
		return "other"
	}
}

// printStats outputs a human-readable session summary.
func printStats(s *sessionStats) {
	fmt.Println()
	fmt.Println("=== Simulation Result ===")
	fmt.Printf("Executed:        %d (%d buys, %d sells)\n", s.Executed, s.Buys, s.Sells)
	fmt.Printf("Rejected:        %d\n", s.Rejected)
	for kind, n := range s.Rejections {
		fmt.Printf("  %-22s %d\n", kind+":", n)
	}
	fmt.Printf("Quote Volume:    %d\n", s.QuoteVolume)
	fmt.Printf("Fees Collected:  %d\n", s.FeesCollected)
	fmt.Printf("Graduations:     %d\n", s.Graduations)
	fmt.Printf("Elapsed:         %s\n", s.Elapsed)
	fmt.Println()

	fmt.Println("Pools:")
	for _, p := range s.Pools {
		fmt.Printf("  %s (%s)\n", p.ShortName, p.ID)
		fmt.Printf("    State:          %s\n", p.State)
		fmt.Printf("    Trades:         %d\n", p.TradeCount)
		fmt.Printf("    Reserves:       base=%d quote=%d\n", p.BaseReserve, p.QuoteReserve)
		fmt.Printf("    Circulating:    %d\n", p.CirculatingSupply)
		fmt.Printf("    Quote Collected:%d (%.1f%%)\n", p.QuoteCollected, p.ProgressPct)
	}
}
