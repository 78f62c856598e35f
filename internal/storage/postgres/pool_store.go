package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-curve-engine/internal/domain"
	"solana-curve-engine/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

// Save inserts or updates a pool snapshot.
func (s *PoolStore) Save(ctx context.Context, p *domain.Pool) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pools (
			id, mint, creator, short_name, base_reserve, quote_reserve, total_supply,
			cumulative_quote_collected, graduation_threshold, fee_bps, state,
			created_at, last_trade_at, trade_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			base_reserve = EXCLUDED.base_reserve,
			quote_reserve = EXCLUDED.quote_reserve,
			cumulative_quote_collected = EXCLUDED.cumulative_quote_collected,
			state = EXCLUDED.state,
			last_trade_at = EXCLUDED.last_trade_at,
			trade_count = EXCLUDED.trade_count
	`

	_, err := s.pool.Exec(ctx, query,
		p.ID,
		p.Mint,
		p.Creator,
		p.ShortName,
		int64(p.BaseReserve),
		int64(p.QuoteReserve),
		int64(p.TotalSupply),
		int64(p.CumulativeQuoteCollected),
		int64(p.GraduationThreshold),
		int16(p.FeeBps),
		string(p.State),
		p.CreatedAt,
		p.LastTradeAt,
		p.TradeCount,
	)
	if err != nil {
		return fmt.Errorf("save pool: %w", err)
	}
	return nil
}

// GetByID retrieves a pool by its ID. Returns ErrNotFound if not exists.
func (s *PoolStore) GetByID(ctx context.Context, poolID string) (*domain.Pool, error) {
	query := `
		SELECT id, mint, creator, short_name, base_reserve, quote_reserve, total_supply,
			cumulative_quote_collected, graduation_threshold, fee_bps, state,
			created_at, last_trade_at, trade_count
		FROM pools
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, poolID)
	p, err := scanPool(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool by id: %w", err)
	}
	return p, nil
}

// GetAll retrieves all pools, ordered by creation time ASC.
func (s *PoolStore) GetAll(ctx context.Context) ([]*domain.Pool, error) {
	query := `
		SELECT id, mint, creator, short_name, base_reserve, quote_reserve, total_supply,
			cumulative_quote_collected, graduation_threshold, fee_bps, state,
			created_at, last_trade_at, trade_count
		FROM pools
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all pools: %w", err)
	}
	defer rows.Close()

	var pools []*domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool rows: %w", err)
	}
	return pools, nil
}

// scanPool scans one pool row.
func scanPool(row pgx.Row) (*domain.Pool, error) {
	var p domain.Pool
	var baseReserve, quoteReserve, totalSupply, collected, threshold int64
	var feeBps int16
	var state string

	err := row.Scan(
		&p.ID,
		&p.Mint,
		&p.Creator,
		&p.ShortName,
		&baseReserve,
		&quoteReserve,
		&totalSupply,
		&collected,
		&threshold,
		&feeBps,
		&state,
		&p.CreatedAt,
		&p.LastTradeAt,
		&p.TradeCount,
	)
	if err != nil {
		return nil, err
	}

	p.BaseReserve = uint64(baseReserve)
	p.QuoteReserve = uint64(quoteReserve)
	p.TotalSupply = uint64(totalSupply)
	p.CumulativeQuoteCollected = uint64(collected)
	p.GraduationThreshold = uint64(threshold)
	p.FeeBps = uint16(feeBps)
	p.State = domain.PoolState(state)
	return &p, nil
}
