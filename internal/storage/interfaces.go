package storage

import (
	"context"

	"solana-curve-engine/internal/domain"
)

// PoolStore persists pool records. Unlike the trade log, pool state is
// mutable: Save upserts the current snapshot after every commit.
type PoolStore interface {
	// Save inserts or updates a pool snapshot.
	Save(ctx context.Context, p *domain.Pool) error

	// GetByID retrieves a pool by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, poolID string) (*domain.Pool, error)

	// GetAll retrieves all pools, ordered by creation time ASC.
	GetAll(ctx context.Context) ([]*domain.Pool, error)
}

// TradeStore provides access to the append-only trade log.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetByPoolID retrieves all trades for a pool, ordered newest-first.
	GetByPoolID(ctx context.Context, poolID string) ([]*domain.Trade, error)
}

// PricePointStore provides access to the per-trade price time series
// used for analytics.
type PricePointStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate
	// (pool_id, seq).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByPoolID retrieves all points for a pool, ordered by timestamp ASC.
	GetByPoolID(ctx context.Context, poolID string) ([]*domain.PricePoint, error)
}
