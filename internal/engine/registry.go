package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-curve-engine/internal/domain"
	"solana-curve-engine/internal/idhash"
	"solana-curve-engine/internal/ledger"
	"solana-curve-engine/internal/solkey"
	"solana-curve-engine/internal/storage"
)

// ErrInvalidConfig is returned when a pool configuration fails
// validation.
var ErrInvalidConfig = errors.New("invalid pool config")

// Registry is the entry point for pool lookup and creation.
type Registry struct {
	ledger *ledger.Ledger
	pools  storage.PoolStore
	trades storage.TradeStore
	now    func() time.Time
}

// NewRegistry creates a pool registry.
func NewRegistry(l *ledger.Ledger, pools storage.PoolStore, trades storage.TradeStore, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		ledger: l,
		pools:  pools,
		trades: trades,
		now:    now,
	}
}

// CreatePool validates the configuration, derives a fresh pool address,
// registers the pool with the ledger and persists it. The curve starts
// with the full supply on the base side and the configured virtual
// quote liquidity.
func (r *Registry) CreatePool(ctx context.Context, cfg domain.PoolConfig) (domain.Pool, error) {
	if cfg.TotalSupply == 0 {
		return domain.Pool{}, fmt.Errorf("%w: total supply must be positive", ErrInvalidConfig)
	}
	if cfg.InitialQuoteReserve == 0 {
		return domain.Pool{}, fmt.Errorf("%w: initial quote reserve must be positive", ErrInvalidConfig)
	}
	if cfg.GraduationThreshold == 0 {
		return domain.Pool{}, fmt.Errorf("%w: graduation threshold must be positive", ErrInvalidConfig)
	}
	if cfg.FeeBps >= 10_000 {
		return domain.Pool{}, fmt.Errorf("%w: fee must be below 10000 bps", ErrInvalidConfig)
	}
	if err := solkey.ValidateAddress(cfg.Mint); err != nil {
		return domain.Pool{}, fmt.Errorf("%w: mint: %v", ErrInvalidConfig, err)
	}
	if err := solkey.ValidateAddress(cfg.Creator); err != nil {
		return domain.Pool{}, fmt.Errorf("%w: creator: %v", ErrInvalidConfig, err)
	}

	createdAt := r.now().UnixMilli()
	// The accumulator starts at the initial virtual quote, so
	// graduation progress measures the total quote backing the curve,
	// not just what buyers paid in after creation.
	pool := domain.Pool{
		ID:                       idhash.DerivePoolAddress(cfg.Mint, cfg.Creator, createdAt),
		Mint:                     cfg.Mint,
		Creator:                  cfg.Creator,
		ShortName:                cfg.ShortName,
		BaseReserve:              cfg.TotalSupply,
		QuoteReserve:             cfg.InitialQuoteReserve,
		TotalSupply:              cfg.TotalSupply,
		CumulativeQuoteCollected: cfg.InitialQuoteReserve,
		GraduationThreshold:      cfg.GraduationThreshold,
		FeeBps:                   cfg.FeeBps,
		State:                    domain.PoolStateActive,
		CreatedAt:                createdAt,
	}

	if err := r.ledger.Register(pool); err != nil {
		return domain.Pool{}, fmt.Errorf("register pool: %w", err)
	}
	if err := r.pools.Save(ctx, &pool); err != nil {
		return domain.Pool{}, fmt.Errorf("persist pool: %w", err)
	}
	return pool, nil
}

// GetPool returns a snapshot of a pool. Returns ErrPoolNotFound for an
// unknown id.
func (r *Registry) GetPool(poolID string) (domain.Pool, error) {
	return r.ledger.Snapshot(poolID)
}

// PoolStatus returns the externally visible view of a pool.
func (r *Registry) PoolStatus(poolID string) (domain.PoolStatus, error) {
	pool, err := r.ledger.Snapshot(poolID)
	if err != nil {
		return domain.PoolStatus{}, err
	}
	return domain.PoolStatus{
		Pool:        pool,
		ProgressPct: pool.GraduationProgressPct(),
	}, nil
}

// ListPools returns snapshots of every pool in creation order.
func (r *Registry) ListPools() []domain.Pool {
	return r.ledger.Snapshots()
}

// ListTrades returns a pool's trades, newest-first.
func (r *Registry) ListTrades(ctx context.Context, poolID string) ([]*domain.Trade, error) {
	if _, err := r.ledger.Snapshot(poolID); err != nil {
		return nil, err
	}
	return r.trades.GetByPoolID(ctx, poolID)
}

// Hydrate loads persisted pools into the ledger. Called once at
// startup before the engine serves traffic.
func (r *Registry) Hydrate(ctx context.Context) (int, error) {
	pools, err := r.pools.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pools: %w", err)
	}

	loaded := 0
	for _, p := range pools {
		if err := r.ledger.Register(*p); err != nil {
			return loaded, fmt.Errorf("hydrate pool %s: %w", p.ID, err)
		}
		loaded++
	}
	return loaded, nil
}
