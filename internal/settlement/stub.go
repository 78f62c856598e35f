package settlement

import (
	"context"
	"crypto/sha256"
	"log"

	"github.com/mr-tron/base58"

	"solana-curve-engine/internal/domain"
)

// StubSubmitter is a Submitter for local runs and tests. The descriptor
// is the base58 of the trade id hash, shaped like a transaction
// signature reference.
type StubSubmitter struct{}

// Prepare implements Submitter.
func (StubSubmitter) Prepare(_ context.Context, trade *domain.Trade) (string, error) {
	hash := sha256.Sum256([]byte(trade.ID))
	return base58.Encode(hash[:]), nil
}

// Confirmer is the callback a Migrator uses to report that external
// liquidity has been deposited. Satisfied by the graduation controller.
type Confirmer interface {
	Confirm(poolID string) error
}

// StubMigrator is a Migrator for local runs and tests: it logs the
// request and confirms immediately on a separate goroutine, the way a
// real venue confirmation would arrive asynchronously.
type StubMigrator struct {
	Logger    *log.Logger
	Confirmer Confirmer
}

// Migrate implements Migrator.
func (m *StubMigrator) Migrate(_ context.Context, poolID string, quoteReserve uint64) error {
	if m.Logger != nil {
		m.Logger.Printf("migrating pool %s with %d quote units", poolID, quoteReserve)
	}
	if m.Confirmer != nil {
		go func() {
			if err := m.Confirmer.Confirm(poolID); err != nil && m.Logger != nil {
				m.Logger.Printf("confirm graduation for pool %s: %v", poolID, err)
			}
		}()
	}
	return nil
}

var _ Submitter = StubSubmitter{}
var _ Migrator = (*StubMigrator)(nil)
