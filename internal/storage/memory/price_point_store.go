package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-curve-engine/internal/domain"
	"solana-curve-engine/internal/storage"
)

// PricePointStore is an in-memory implementation of storage.PricePointStore.
type PricePointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PricePoint // keyed by composite key
}

// NewPricePointStore creates a new in-memory price point store.
func NewPricePointStore() *PricePointStore {
	return &PricePointStore{
		data: make(map[string]*domain.PricePoint),
	}
}

// pricePointKey generates a unique key for a price point.
func pricePointKey(poolID string, seq int64) string {
	return fmt.Sprintf("%s|%d", poolID, seq)
}

// InsertBulk adds multiple points. Fails entire batch on duplicate (pool_id, seq).
func (s *PricePointStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(points))

	for _, pt := range points {
		if pt == nil || pt.PoolID == "" {
			return storage.ErrInvalidInput
		}
		key := pricePointKey(pt.PoolID, pt.Seq)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, pt := range points {
		key := pricePointKey(pt.PoolID, pt.Seq)
		copy := *pt
		s.data[key] = &copy
	}

	return nil
}

// GetByPoolID retrieves all points for a pool, ordered by timestamp ASC.
func (s *PricePointStore) GetByPoolID(_ context.Context, poolID string) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, pt := range s.data {
		if pt.PoolID == poolID {
			copy := *pt
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

var _ storage.PricePointStore = (*PricePointStore)(nil)
