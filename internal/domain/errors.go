package domain

import "errors"

// Trade error taxonomy. All are typed results for the immediate caller;
// none are retried inside the engine and none are fatal to the process.
var (
	// ErrPoolNotFound is returned for an unknown pool id.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrInvalidAmount is returned for a zero amountIn, or one the fee
	// consumes entirely.
	ErrInvalidAmount = errors.New("invalid trade amount")

	// ErrAmountTooLarge is returned when amountIn would overflow the
	// fixed-point reserve range.
	ErrAmountTooLarge = errors.New("trade amount too large")

	// ErrInsufficientLiquidity is returned when the trade would breach
	// the minimum-reserve floor.
	ErrInsufficientLiquidity = errors.New("insufficient curve liquidity")

	// ErrSlippageExceeded is returned when computed amountOut is below
	// the caller's minAmountOut.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")

	// ErrPoolGraduated is returned for trades against a pool that is no
	// longer in the Active state.
	ErrPoolGraduated = errors.New("pool has graduated")

	// ErrNotGraduating is returned when a graduation confirmation
	// arrives for a pool that is not in the Graduating state.
	ErrNotGraduating = errors.New("pool is not graduating")
)
