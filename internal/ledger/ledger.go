// Package ledger owns the authoritative mutable state of every bonding
// curve pool. All reads return value snapshots; the only way to mutate
// a pool is through the commit API, inside that pool's exclusive
// section.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"solana-curve-engine/internal/curve"
	"solana-curve-engine/internal/domain"
)

// poolRecord pairs the live pool state with its exclusive section.
// Trades on different pools proceed fully in parallel; trades on the
// same pool serialize on mu.
type poolRecord struct {
	mu   sync.Mutex
	pool domain.Pool

	// migrationEmitted marks the one-time migration request. Guarded
	// by mu.
	migrationEmitted bool
}

// Ledger is the single source of truth for pool reserve state.
type Ledger struct {
	mu    sync.RWMutex
	pools map[string]*poolRecord
	order []string // pool ids in creation order
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		pools: make(map[string]*poolRecord),
	}
}

// Register adds a new pool record. Returns ErrInvalidPool if a pool
// with the same id already exists or the record is malformed.
func (l *Ledger) Register(pool domain.Pool) error {
	if pool.ID == "" || pool.BaseReserve == 0 || pool.QuoteReserve == 0 {
		return fmt.Errorf("register pool %q: malformed record", pool.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.pools[pool.ID]; exists {
		return fmt.Errorf("register pool %q: already registered", pool.ID)
	}
	l.pools[pool.ID] = &poolRecord{pool: pool}
	l.order = append(l.order, pool.ID)
	return nil
}

// Snapshot returns a copy of the pool's current state.
func (l *Ledger) Snapshot(poolID string) (domain.Pool, error) {
	rec, err := l.record(poolID)
	if err != nil {
		return domain.Pool{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.pool, nil
}

// Snapshots returns copies of every pool in creation order.
func (l *Ledger) Snapshots() []domain.Pool {
	l.mu.RLock()
	ids := make([]string, len(l.order))
	copy(ids, l.order)
	l.mu.RUnlock()

	out := make([]domain.Pool, 0, len(ids))
	for _, id := range ids {
		if snap, err := l.Snapshot(id); err == nil {
			out = append(out, snap)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out
}

// Begin acquires the pool's exclusive section and returns the snapshot
// observed under it plus a release func. The caller must hold the
// section only across the in-memory compute-and-commit sequence, never
// across external calls.
func (l *Ledger) Begin(poolID string) (domain.Pool, func(), error) {
	rec, err := l.record(poolID)
	if err != nil {
		return domain.Pool{}, nil, err
	}

	rec.mu.Lock()
	return rec.pool, func() { rec.mu.Unlock() }, nil
}

// CommitResult reports the outcome of a successful commit.
type CommitResult struct {
	Pool domain.Pool // snapshot after the commit
	Seq  int64       // per-pool trade sequence number, 1-based

	// Crossed is true for exactly the one commit whose trade first
	// pushed CumulativeQuoteCollected over the graduation threshold.
	Crossed bool
}

// CommitTrade atomically applies a priced trade to the pool. It must be
// called inside the pool's section obtained from Begin, with the quote
// computed from the snapshot Begin returned; the expected pre-reserves
// are re-checked and a mismatch panics, because it means the exclusion
// contract is broken and conserved quantities can no longer be trusted.
//
// On buys CumulativeQuoteCollected grows by the net input, and the
// Active -> Graduating transition fires inside this same logical step
// when the threshold is first reached. Any error leaves the pool
// untouched.
func (l *Ledger) CommitTrade(poolID string, q *curve.Quote, expectBase, expectQuote uint64, now time.Time) (*CommitResult, error) {
	rec, err := l.record(poolID)
	if err != nil {
		return nil, err
	}

	p := &rec.pool
	if p.BaseReserve != expectBase || p.QuoteReserve != expectQuote {
		panic(fmt.Sprintf(
			"ledger: pool %s reserves moved under an exclusive section: have (%d, %d), expected (%d, %d)",
			poolID, p.BaseReserve, p.QuoteReserve, expectBase, expectQuote,
		))
	}

	if p.State != domain.PoolStateActive {
		return nil, domain.ErrPoolGraduated
	}
	if q.NewBaseReserve < curve.MinReserve || q.NewQuoteReserve < curve.MinReserve {
		return nil, domain.ErrInsufficientLiquidity
	}

	// Conserved-quantity asserts. Circulating supply only moves through
	// trades, and only within the fixed total supply.
	if q.NewBaseReserve > p.TotalSupply {
		panic(fmt.Sprintf("ledger: pool %s base reserve %d exceeds total supply %d", poolID, q.NewBaseReserve, p.TotalSupply))
	}

	p.BaseReserve = q.NewBaseReserve
	p.QuoteReserve = q.NewQuoteReserve
	p.LastTradeAt = now.UnixMilli()
	p.TradeCount++

	crossed := false
	if q.Side == domain.SideBuy {
		collected := p.CumulativeQuoteCollected + q.NetIn
		if collected < p.CumulativeQuoteCollected {
			panic(fmt.Sprintf("ledger: pool %s cumulative quote collected overflowed", poolID))
		}
		p.CumulativeQuoteCollected = collected

		if collected >= p.GraduationThreshold {
			p.State = domain.PoolStateGraduating
			crossed = true
		}
	}

	return &CommitResult{Pool: *p, Seq: p.TradeCount, Crossed: crossed}, nil
}

// ConfirmGraduation performs the Graduating -> Graduated transition.
// Returns ErrNotGraduating unless the pool is currently Graduating, so
// the edge is taken exactly once.
func (l *Ledger) ConfirmGraduation(poolID string) (domain.Pool, error) {
	rec, err := l.record(poolID)
	if err != nil {
		return domain.Pool{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.pool.State != domain.PoolStateGraduating {
		return domain.Pool{}, domain.ErrNotGraduating
	}
	rec.pool.State = domain.PoolStateGraduated
	return rec.pool, nil
}

// MarkMigrationEmitted records the one-time migration emission for a
// pool. The first caller gets true; every later caller gets false.
func (l *Ledger) MarkMigrationEmitted(poolID string) bool {
	rec, err := l.record(poolID)
	if err != nil {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.migrationEmitted {
		return false
	}
	rec.migrationEmitted = true
	return true
}

// record resolves a pool id to its live record.
func (l *Ledger) record(poolID string) (*poolRecord, error) {
	l.mu.RLock()
	rec, ok := l.pools[poolID]
	l.mu.RUnlock()
	if !ok {
		return nil, domain.ErrPoolNotFound
	}
	return rec, nil
}
