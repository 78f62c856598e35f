package engine

import (
	"context"
	"fmt"
	"log"

	"solana-curve-engine/internal/ledger"
	"solana-curve-engine/internal/observability"
	"solana-curve-engine/internal/settlement"
	"solana-curve-engine/internal/storage"
)

// Graduation drives the one-time migration of a pool that crossed its
// collection threshold. The Active -> Graduating transition itself
// happens inside the ledger commit; this controller owns the migration
// emission and the external confirmation callback.
type Graduation struct {
	ledger   *ledger.Ledger
	migrator settlement.Migrator
	pools    storage.PoolStore
	logger   *log.Logger
}

// NewGraduation creates a graduation controller.
func NewGraduation(l *ledger.Ledger, migrator settlement.Migrator, pools storage.PoolStore, logger *log.Logger) *Graduation {
	if logger == nil {
		logger = log.New(log.Writer(), "[graduation] ", log.LstdFlags)
	}
	return &Graduation{
		ledger:   l,
		migrator: migrator,
		pools:    pools,
		logger:   logger,
	}
}

// Emit requests the external liquidity migration for a pool. At most
// one emission ever happens per pool: the ledger's emission mark makes
// Emit idempotent, so retries after a crossing are safe and cannot
// double-spend the collected reserve.
func (g *Graduation) Emit(ctx context.Context, poolID string, quoteReserve uint64) error {
	if !g.ledger.MarkMigrationEmitted(poolID) {
		return nil
	}

	g.logger.Printf("pool %s crossed graduation threshold, requesting migration of %d quote units", poolID, quoteReserve)
	if err := g.migrator.Migrate(ctx, poolID, quoteReserve); err != nil {
		return fmt.Errorf("migrate pool %s: %w", poolID, err)
	}
	return nil
}

// Confirm is the callback the external venue invokes once liquidity
// has been deposited. It performs the Graduating -> Graduated
// transition; a second confirmation returns ErrNotGraduating.
func (g *Graduation) Confirm(poolID string) error {
	pool, err := g.ledger.ConfirmGraduation(poolID)
	if err != nil {
		return err
	}

	g.logger.Printf("pool %s graduated", poolID)
	observability.RecordGraduationCompleted()
	if err := g.pools.Save(context.Background(), &pool); err != nil {
		g.logger.Printf("persist graduated pool %s: %v", poolID, err)
	}
	return nil
}

var _ settlement.Confirmer = (*Graduation)(nil)
