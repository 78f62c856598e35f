package clickhouse

import (
	"context"
	"fmt"

	"solana-curve-engine/internal/domain"
	"solana-curve-engine/internal/storage"
)

// PricePointStore implements storage.PricePointStore using ClickHouse.
type PricePointStore struct {
	conn *Conn
}

// NewPricePointStore creates a new PricePointStore.
func NewPricePointStore(conn *Conn) *PricePointStore {
	return &PricePointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (pool_id, seq).
func (s *PricePointStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		poolID string
		seq    int64
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		if p == nil || p.PoolID == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.PoolID, p.Seq}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range points {
		exists, err := s.exists(ctx, p.PoolID, p.Seq)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_points (
			pool_id, seq, timestamp_ms, price, base_reserve, quote_reserve, volume_quote
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.PoolID, p.Seq, p.TimestampMs,
			p.Price, p.BaseReserve, p.QuoteReserve, p.VolumeQuote,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPoolID retrieves all points for a pool, ordered by timestamp ASC.
func (s *PricePointStore) GetByPoolID(ctx context.Context, poolID string) ([]*domain.PricePoint, error) {
	query := `
		SELECT pool_id, seq, timestamp_ms, price, base_reserve, quote_reserve, volume_quote
		FROM price_points
		WHERE pool_id = ?
		ORDER BY timestamp_ms ASC, seq ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("query price points: %w", err)
	}
	defer rows.Close()

	var points []*domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		err := rows.Scan(
			&p.PoolID, &p.Seq, &p.TimestampMs,
			&p.Price, &p.BaseReserve, &p.QuoteReserve, &p.VolumeQuote,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price point row: %w", err)
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price point rows: %w", err)
	}
	return points, nil
}

// exists checks whether a (pool_id, seq) row is already present.
func (s *PricePointStore) exists(ctx context.Context, poolID string, seq int64) (bool, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT count() FROM price_points WHERE pool_id = ? AND seq = ?
	`, poolID, seq)

	var count uint64
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
