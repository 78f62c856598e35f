package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"solana-curve-engine/internal/curve"
	"solana-curve-engine/internal/domain"
)

func testPool(id string) domain.Pool {
	return domain.Pool{
		ID:                  id,
		Mint:                "mint-" + id,
		BaseReserve:         1_073_000_000,
		QuoteReserve:        30,
		TotalSupply:         1_073_000_000,
		GraduationThreshold: 69,
		State:               domain.PoolStateActive,
		CreatedAt:           time.Now().UnixMilli(),
	}
}

// commitBuy quotes and commits a buy under the pool's section.
func commitBuy(t *testing.T, l *Ledger, poolID string, amountIn uint64) *CommitResult {
	t.Helper()

	snap, release, err := l.Begin(poolID)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer release()

	q, err := curve.ComputeQuote(snap.BaseReserve, snap.QuoteReserve, domain.SideBuy, amountIn, 0)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}

	res, err := l.CommitTrade(poolID, q, snap.BaseReserve, snap.QuoteReserve, time.Now())
	if err != nil {
		t.Fatalf("CommitTrade failed: %v", err)
	}
	return res
}

func TestLedger_RegisterAndSnapshot(t *testing.T) {
	l := New()

	if err := l.Register(testPool("p1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	snap, err := l.Snapshot("p1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.BaseReserve != 1_073_000_000 {
		t.Errorf("BaseReserve: got %d, want 1073000000", snap.BaseReserve)
	}

	// Snapshots are copies; mutating one must not touch ledger state.
	snap.BaseReserve = 0
	again, _ := l.Snapshot("p1")
	if again.BaseReserve != 1_073_000_000 {
		t.Error("snapshot mutation leaked into ledger state")
	}
}

func TestLedger_RegisterDuplicate(t *testing.T) {
	l := New()
	if err := l.Register(testPool("p1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := l.Register(testPool("p1")); err == nil {
		t.Error("expected error registering duplicate pool")
	}
}

func TestLedger_SnapshotUnknownPool(t *testing.T) {
	l := New()
	_, err := l.Snapshot("nope")
	if !errors.Is(err, domain.ErrPoolNotFound) {
		t.Errorf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestLedger_CommitTradeAppliesDelta(t *testing.T) {
	l := New()
	if err := l.Register(testPool("p1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res := commitBuy(t, l, "p1", 10)

	if res.Pool.QuoteReserve != 40 {
		t.Errorf("QuoteReserve: got %d, want 40", res.Pool.QuoteReserve)
	}
	if res.Pool.BaseReserve != 804_750_000 {
		t.Errorf("BaseReserve: got %d, want 804750000", res.Pool.BaseReserve)
	}
	if res.Pool.CumulativeQuoteCollected != 10 {
		t.Errorf("CumulativeQuoteCollected: got %d, want 10", res.Pool.CumulativeQuoteCollected)
	}
	if res.Seq != 1 {
		t.Errorf("Seq: got %d, want 1", res.Seq)
	}
	if res.Crossed {
		t.Error("10 of 69 collected must not cross the threshold")
	}
}

func TestLedger_SellDoesNotGrowCumulative(t *testing.T) {
	l := New()
	if err := l.Register(testPool("p1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	commitBuy(t, l, "p1", 10)

	snap, release, err := l.Begin("p1")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	q, err := curve.ComputeQuote(snap.BaseReserve, snap.QuoteReserve, domain.SideSell, 100_000_000, 0)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	res, err := l.CommitTrade("p1", q, snap.BaseReserve, snap.QuoteReserve, time.Now())
	release()
	if err != nil {
		t.Fatalf("CommitTrade failed: %v", err)
	}

	if res.Pool.CumulativeQuoteCollected != 10 {
		t.Errorf("sell changed CumulativeQuoteCollected: got %d, want 10", res.Pool.CumulativeQuoteCollected)
	}
}

func TestLedger_GraduationCrossing(t *testing.T) {
	l := New()
	if err := l.Register(testPool("p1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// 10 + 30 = 40 collected, still active.
	commitBuy(t, l, "p1", 10)
	commitBuy(t, l, "p1", 30)

	snap, _ := l.Snapshot("p1")
	if snap.State != domain.PoolStateActive {
		t.Fatalf("pool state: got %s, want ACTIVE", snap.State)
	}

	// 40 + 29 = 69 >= threshold: this commit crosses.
	res := commitBuy(t, l, "p1", 29)
	if !res.Crossed {
		t.Error("crossing commit did not report Crossed")
	}
	if res.Pool.State != domain.PoolStateGraduating {
		t.Errorf("pool state: got %s, want GRADUATING", res.Pool.State)
	}

	// No further trades once Graduating.
	s2, release, err := l.Begin("p1")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer release()
	q, err := curve.ComputeQuote(s2.BaseReserve, s2.QuoteReserve, domain.SideBuy, 5, 0)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	_, err = l.CommitTrade("p1", q, s2.BaseReserve, s2.QuoteReserve, time.Now())
	if !errors.Is(err, domain.ErrPoolGraduated) {
		t.Errorf("expected ErrPoolGraduated, got %v", err)
	}
	if s2.BaseReserve != res.Pool.BaseReserve {
		t.Error("rejected trade mutated reserves")
	}
}

func TestLedger_ConfirmGraduation(t *testing.T) {
	l := New()
	if err := l.Register(testPool("p1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	commitBuy(t, l, "p1", 69)

	pool, err := l.ConfirmGraduation("p1")
	if err != nil {
		t.Fatalf("ConfirmGraduation failed: %v", err)
	}
	if pool.State != domain.PoolStateGraduated {
		t.Errorf("pool state: got %s, want GRADUATED", pool.State)
	}

	// The edge is taken exactly once.
	if _, err := l.ConfirmGraduation("p1"); !errors.Is(err, domain.ErrNotGraduating) {
		t.Errorf("expected ErrNotGraduating on repeat, got %v", err)
	}
}

func TestLedger_ConfirmGraduationWhileActive(t *testing.T) {
	l := New()
	if err := l.Register(testPool("p1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := l.ConfirmGraduation("p1"); !errors.Is(err, domain.ErrNotGraduating) {
		t.Errorf("expected ErrNotGraduating, got %v", err)
	}
}

func TestLedger_MarkMigrationEmittedOnce(t *testing.T) {
	l := New()
	if err := l.Register(testPool("p1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	emitted := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.MarkMigrationEmitted("p1") {
				mu.Lock()
				emitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if emitted != 1 {
		t.Errorf("migration emitted %d times, want exactly 1", emitted)
	}
}

func TestLedger_StaleCommitPanics(t *testing.T) {
	l := New()
	if err := l.Register(testPool("p1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	snap, release, err := l.Begin("p1")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	q, err := curve.ComputeQuote(snap.BaseReserve, snap.QuoteReserve, domain.SideBuy, 10, 0)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	if _, err := l.CommitTrade("p1", q, snap.BaseReserve, snap.QuoteReserve, time.Now()); err != nil {
		t.Fatalf("CommitTrade failed: %v", err)
	}
	release()

	// Committing against the pre-trade reserves again means the caller
	// computed outside its exclusive section.
	_, release, err = l.Begin("p1")
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer release()
	defer func() {
		if recover() == nil {
			t.Error("expected panic on stale expected reserves")
		}
	}()
	l.CommitTrade("p1", q, snap.BaseReserve, snap.QuoteReserve, time.Now())
}

func TestLedger_NoLostUpdatesUnderConcurrency(t *testing.T) {
	l := New()
	pool := testPool("p1")
	pool.QuoteReserve = 1_000_000
	pool.GraduationThreshold = 1 << 62 // keep it active throughout
	if err := l.Register(pool); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			snap, release, err := l.Begin("p1")
			if err != nil {
				t.Errorf("Begin failed: %v", err)
				return
			}
			defer release()

			q, err := curve.ComputeQuote(snap.BaseReserve, snap.QuoteReserve, domain.SideBuy, 100, 0)
			if err != nil {
				t.Errorf("ComputeQuote failed: %v", err)
				return
			}
			if _, err := l.CommitTrade("p1", q, snap.BaseReserve, snap.QuoteReserve, time.Now()); err != nil {
				t.Errorf("CommitTrade failed: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, err := l.Snapshot("p1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if got := snap.QuoteReserve; got != 1_000_000+n*100 {
		t.Errorf("QuoteReserve after %d concurrent buys: got %d, want %d", n, got, 1_000_000+n*100)
	}
	if got := snap.CumulativeQuoteCollected; got != n*100 {
		t.Errorf("CumulativeQuoteCollected: got %d, want %d", got, n*100)
	}
	if snap.TradeCount != n {
		t.Errorf("TradeCount: got %d, want %d", snap.TradeCount, n)
	}
}

func TestLedger_SnapshotsCreationOrder(t *testing.T) {
	l := New()
	base := time.Now().UnixMilli()
	for i, id := range []string{"a", "b", "c"} {
		p := testPool(id)
		p.CreatedAt = base + int64(i)
		if err := l.Register(p); err != nil {
			t.Fatalf("Register %s failed: %v", id, err)
		}
	}

	pools := l.Snapshots()
	if len(pools) != 3 {
		t.Fatalf("expected 3 pools, got %d", len(pools))
	}
	for i, want := range []string{"a", "b", "c"} {
		if pools[i].ID != want {
			t.Errorf("pools[%d]: got %s, want %s", i, pools[i].ID, want)
		}
	}
}
