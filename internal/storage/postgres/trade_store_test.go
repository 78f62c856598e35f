package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-curve-engine/internal/domain"
	"solana-curve-engine/internal/storage"
)

func TestTradeStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	poolID := createTestPool(t, ctx, pool, "trade-pool-1")
	store := NewTradeStore(pool)

	trade := &domain.Trade{
		ID:                "trade-1",
		PoolID:            poolID,
		Seq:               1,
		Side:              domain.SideBuy,
		AmountIn:          10,
		AmountOut:         268_250_000,
		ExecutionPrice:    3.7e-8,
		PriceImpactBps:    3333,
		BaseReserveAfter:  804_750_000,
		QuoteReserveAfter: 40,
		Timestamp:         1700000001000,
	}

	require.NoError(t, store.Insert(ctx, trade))

	got, err := store.GetByID(ctx, "trade-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SideBuy, got.Side)
	assert.Equal(t, uint64(268_250_000), got.AmountOut)
	assert.Equal(t, uint32(3333), got.PriceImpactBps)
}

func TestTradeStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	poolID := createTestPool(t, ctx, pool, "trade-pool-1")
	store := NewTradeStore(pool)

	trade := &domain.Trade{
		ID:        "trade-1",
		PoolID:    poolID,
		Seq:       1,
		Side:      domain.SideBuy,
		Timestamp: 1700000001000,
	}
	require.NoError(t, store.Insert(ctx, trade))

	err := store.Insert(ctx, trade)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeStore_DuplicatePoolSeq(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	poolID := createTestPool(t, ctx, pool, "trade-pool-1")
	store := NewTradeStore(pool)

	require.NoError(t, store.Insert(ctx, &domain.Trade{
		ID: "trade-1", PoolID: poolID, Seq: 1, Side: domain.SideBuy, Timestamp: 1,
	}))

	err := store.Insert(ctx, &domain.Trade{
		ID: "trade-2", PoolID: poolID, Seq: 1, Side: domain.SideSell, Timestamp: 2,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)
	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_GetByPoolIDNewestFirst(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	poolID := createTestPool(t, ctx, pool, "trade-pool-1")
	store := NewTradeStore(pool)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, store.Insert(ctx, &domain.Trade{
			ID:        "trade-" + string(rune('0'+i)),
			PoolID:    poolID,
			Seq:       i,
			Side:      domain.SideBuy,
			Timestamp: 1700000000000 + i,
		}))
	}

	trades, err := store.GetByPoolID(ctx, poolID)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, int64(3), trades[0].Seq)
	assert.Equal(t, int64(2), trades[1].Seq)
	assert.Equal(t, int64(1), trades[2].Seq)
}
