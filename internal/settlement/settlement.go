// Package settlement defines the collaborator seams between the
// trading engine and the on-chain world. The engine decides amounts;
// building, signing and submitting transactions happens behind these
// interfaces.
package settlement

import (
	"context"

	"solana-curve-engine/internal/domain"
)

// Submitter prepares a settlement instruction for an executed trade.
// Implementations must not be called while a pool's exclusive section
// is held.
type Submitter interface {
	// Prepare returns an opaque settlement descriptor for the trade.
	Prepare(ctx context.Context, trade *domain.Trade) (string, error)
}

// Migrator moves a graduated pool's collected liquidity to the external
// venue. Called at most once per pool.
type Migrator interface {
	// Migrate requests the external liquidity deposit. Implementations
	// confirm asynchronously through the graduation controller's
	// Confirm callback; this call itself is fire-and-forget.
	Migrate(ctx context.Context, poolID string, quoteReserveAtGraduation uint64) error
}
