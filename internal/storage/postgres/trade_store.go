package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-curve-engine/internal/domain"
	"solana-curve-engine/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL. The
// trades table is append-only.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.ID == "" || t.PoolID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (
			id, pool_id, seq, side, amount_in, amount_out, fee_paid,
			execution_price, price_impact_bps, base_reserve_after,
			quote_reserve_after, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID,
		t.PoolID,
		t.Seq,
		string(t.Side),
		int64(t.AmountIn),
		int64(t.AmountOut),
		int64(t.FeePaid),
		t.ExecutionPrice,
		int64(t.PriceImpactBps),
		int64(t.BaseReserveAfter),
		int64(t.QuoteReserveAfter),
		t.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `
		SELECT id, pool_id, seq, side, amount_in, amount_out, fee_paid,
			execution_price, price_impact_bps, base_reserve_after,
			quote_reserve_after, timestamp
		FROM trades
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByPoolID retrieves all trades for a pool, ordered newest-first.
func (s *TradeStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.Trade, error) {
	query := `
		SELECT id, pool_id, seq, side, amount_in, amount_out, fee_paid,
			execution_price, price_impact_bps, base_reserve_after,
			quote_reserve_after, timestamp
		FROM trades
		WHERE pool_id = $1
		ORDER BY timestamp DESC, seq DESC
	`

	rows, err := s.pool.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("get trades by pool id: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

// scanTrade scans one trade row.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var side string
	var amountIn, amountOut, feePaid, impactBps, baseAfter, quoteAfter int64

	err := row.Scan(
		&t.ID,
		&t.PoolID,
		&t.Seq,
		&side,
		&amountIn,
		&amountOut,
		&feePaid,
		&t.ExecutionPrice,
		&impactBps,
		&baseAfter,
		&quoteAfter,
		&t.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	t.Side = domain.Side(side)
	t.AmountIn = uint64(amountIn)
	t.AmountOut = uint64(amountOut)
	t.FeePaid = uint64(feePaid)
	t.PriceImpactBps = uint32(impactBps)
	t.BaseReserveAfter = uint64(baseAfter)
	t.QuoteReserveAfter = uint64(quoteAfter)
	return &t, nil
}
