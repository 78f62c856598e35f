// Package engine wires the pricing curve, the reserve ledger and the
// settlement collaborators into the public trading operations.
package engine

import (
	"context"
	"log"
	"time"

	"solana-curve-engine/internal/curve"
	"solana-curve-engine/internal/domain"
	"solana-curve-engine/internal/idhash"
	"solana-curve-engine/internal/ledger"
	"solana-curve-engine/internal/settlement"
	"solana-curve-engine/internal/storage"
)

// Executor validates and executes trades against bonding curve pools.
type Executor struct {
	ledger     *ledger.Ledger
	trades     storage.TradeStore
	pools      storage.PoolStore
	submitter  settlement.Submitter
	graduation *Graduation
	logger     *log.Logger
	now        func() time.Time
}

// ExecutorOptions contains configuration for creating an Executor.
type ExecutorOptions struct {
	Ledger     *ledger.Ledger
	TradeStore storage.TradeStore
	PoolStore  storage.PoolStore
	Submitter  settlement.Submitter
	Graduation *Graduation
	Logger     *log.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewExecutor creates a trade executor.
func NewExecutor(opts ExecutorOptions) *Executor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[executor] ", log.LstdFlags)
	}
	return &Executor{
		ledger:     opts.Ledger,
		trades:     opts.TradeStore,
		pools:      opts.PoolStore,
		submitter:  opts.Submitter,
		graduation: opts.Graduation,
		logger:     logger,
		now:        now,
	}
}

// ExecuteTrade runs one buy or sell against a pool's curve.
//
// The pool's exclusive section is held only across the in-memory
// compute-and-commit sequence; persistence, settlement preparation and
// migration emission all happen after release. The ledger commit is the
// success point: exactly one Trade record exists per successful call
// and none on failure.
//
// Errors are the typed taxonomy in the domain package: ErrPoolNotFound,
// ErrInvalidAmount, ErrAmountTooLarge, ErrInsufficientLiquidity,
// ErrSlippageExceeded, ErrPoolGraduated.
func (e *Executor) ExecuteTrade(ctx context.Context, poolID string, side domain.Side, amountIn, minAmountOut uint64) (*domain.TradeResult, error) {
	if !side.Valid() || amountIn == 0 {
		return nil, domain.ErrInvalidAmount
	}

	snap, release, err := e.ledger.Begin(poolID)
	if err != nil {
		return nil, err
	}

	res, quote, err := func() (*ledger.CommitResult, *curve.Quote, error) {
		defer release()

		if snap.State != domain.PoolStateActive {
			return nil, nil, domain.ErrPoolGraduated
		}
		// A sell cannot return more tokens than the curve has issued.
		if side == domain.SideSell && amountIn > snap.CirculatingSupply() {
			return nil, nil, domain.ErrInvalidAmount
		}

		quote, err := curve.ComputeQuote(snap.BaseReserve, snap.QuoteReserve, side, amountIn, snap.FeeBps)
		if err != nil {
			return nil, nil, err
		}
		if quote.AmountOut < minAmountOut {
			return nil, nil, domain.ErrSlippageExceeded
		}

		res, err := e.ledger.CommitTrade(poolID, quote, snap.BaseReserve, snap.QuoteReserve, e.now())
		if err != nil {
			return nil, nil, err
		}
		return res, quote, nil
	}()
	if err != nil {
		return nil, err
	}

	trade := domain.Trade{
		ID:                idhash.ComputeTradeID(poolID, side, res.Seq, res.Pool.LastTradeAt),
		PoolID:            poolID,
		Seq:               res.Seq,
		Side:              side,
		AmountIn:          amountIn,
		AmountOut:         quote.AmountOut,
		FeePaid:           quote.FeePaid,
		ExecutionPrice:    quote.ExecutionPrice(),
		PriceImpactBps:    quote.PriceImpactBps,
		BaseReserveAfter:  res.Pool.BaseReserve,
		QuoteReserveAfter: res.Pool.QuoteReserve,
		Timestamp:         res.Pool.LastTradeAt,
	}

	if err := e.trades.Insert(ctx, &trade); err != nil {
		// The reserve delta is committed; a failed record write is a
		// persistence-delegate fault, not a trade failure.
		e.logger.Printf("persist trade %s: %v", trade.ID, err)
	}
	if err := e.pools.Save(ctx, &res.Pool); err != nil {
		e.logger.Printf("persist pool %s: %v", poolID, err)
	}

	// The migration emission must not be lost to a settlement-delegate
	// fault, so it runs first and neither failure aborts the call.
	if res.Crossed {
		if err := e.graduation.Emit(ctx, poolID, res.Pool.QuoteReserve); err != nil {
			e.logger.Printf("emit migration for pool %s: %v", poolID, err)
		}
	}

	descriptor, err := e.submitter.Prepare(ctx, &trade)
	if err != nil {
		e.logger.Printf("prepare settlement for trade %s: %v", trade.ID, err)
		descriptor = ""
	}

	return &domain.TradeResult{
		Trade:      trade,
		Pool:       res.Pool,
		Settlement: descriptor,
		Graduating: res.Crossed,
	}, nil
}
