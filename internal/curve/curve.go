// Package curve implements constant-product pricing for bonding curve
// pools. All functions are pure: they map current reserves and a trade
// request to amounts, without touching any shared state.
package curve

import (
	"math"
	"math/big"

	"solana-curve-engine/internal/domain"
)

// MinReserve is the residual floor for both reserves. A trade that
// would push either side below this fails with ErrInsufficientLiquidity,
// which keeps every later spot-price division well defined.
const MinReserve uint64 = 1

// feeDenominator for basis-point fee math.
const feeDenominator = 10_000

// Quote is the outcome of pricing one trade against current reserves.
// Amounts are base units; reserve fields are the post-trade values the
// ledger is expected to commit.
type Quote struct {
	Side      domain.Side
	AmountIn  uint64 // gross input
	NetIn     uint64 // input after fee
	FeePaid   uint64
	AmountOut uint64

	NewBaseReserve  uint64
	NewQuoteReserve uint64

	PriceImpactBps uint32
}

// ExecutionPrice returns quote units per base unit for this fill.
// Display-only; reserve math never consumes it.
func (q *Quote) ExecutionPrice() float64 {
	switch q.Side {
	case domain.SideBuy:
		if q.AmountOut == 0 {
			return 0
		}
		return float64(q.NetIn) / float64(q.AmountOut)
	case domain.SideSell:
		if q.NetIn == 0 {
			return 0
		}
		return float64(q.AmountOut) / float64(q.NetIn)
	}
	return 0
}

// ComputeQuote prices a trade of amountIn against (baseReserve,
// quoteReserve), holding base*quote invariant. The fee is skimmed from
// amountIn before the formula is applied. The product is preserved up
// to rounding; rounding always favors the curve, so the invariant never
// decreases across a commit.
func ComputeQuote(baseReserve, quoteReserve uint64, side domain.Side, amountIn uint64, feeBps uint16) (*Quote, error) {
	if amountIn == 0 {
		return nil, domain.ErrInvalidAmount
	}
	if baseReserve < MinReserve || quoteReserve < MinReserve {
		return nil, domain.ErrInsufficientLiquidity
	}

	feePaid := new(big.Int).Div(
		new(big.Int).Mul(new(big.Int).SetUint64(amountIn), big.NewInt(int64(feeBps))),
		big.NewInt(feeDenominator),
	).Uint64()
	netIn := amountIn - feePaid
	if netIn == 0 {
		return nil, domain.ErrInvalidAmount
	}

	var reserveIn, reserveOut uint64
	switch side {
	case domain.SideBuy:
		reserveIn, reserveOut = quoteReserve, baseReserve
	case domain.SideSell:
		reserveIn, reserveOut = baseReserve, quoteReserve
	default:
		return nil, domain.ErrInvalidAmount
	}

	if netIn > math.MaxUint64-reserveIn {
		return nil, domain.ErrAmountTooLarge
	}
	newReserveIn := reserveIn + netIn

	// newReserveOut = ceil(k / newReserveIn); ceiling keeps k from
	// shrinking under integer division.
	k := new(big.Int).Mul(new(big.Int).SetUint64(reserveIn), new(big.Int).SetUint64(reserveOut))
	div, rem := new(big.Int).QuoRem(k, new(big.Int).SetUint64(newReserveIn), new(big.Int))
	if rem.Sign() != 0 {
		div.Add(div, big.NewInt(1))
	}
	if !div.IsUint64() {
		return nil, domain.ErrAmountTooLarge
	}
	newReserveOut := div.Uint64()

	if newReserveOut < MinReserve {
		return nil, domain.ErrInsufficientLiquidity
	}
	if newReserveOut >= reserveOut {
		// Dust input rounded away entirely.
		return nil, domain.ErrInvalidAmount
	}
	amountOut := reserveOut - newReserveOut

	q := &Quote{
		Side:      side,
		AmountIn:  amountIn,
		NetIn:     netIn,
		FeePaid:   feePaid,
		AmountOut: amountOut,
	}
	switch side {
	case domain.SideBuy:
		q.NewQuoteReserve = newReserveIn
		q.NewBaseReserve = newReserveOut
	case domain.SideSell:
		q.NewBaseReserve = newReserveIn
		q.NewQuoteReserve = newReserveOut
	}
	q.PriceImpactBps = priceImpactBps(baseReserve, quoteReserve, side, netIn, amountOut)
	return q, nil
}

// priceImpactBps computes |executionPrice - spotPriceBefore| /
// spotPriceBefore in basis points with integer cross-multiplication.
// spotPriceBefore = quoteReserve / baseReserve; executionPrice is
// quoteDelta / baseDelta for the fill.
func priceImpactBps(baseReserve, quoteReserve uint64, side domain.Side, netIn, amountOut uint64) uint32 {
	var quoteDelta, baseDelta uint64
	switch side {
	case domain.SideBuy:
		quoteDelta, baseDelta = netIn, amountOut
	case domain.SideSell:
		quoteDelta, baseDelta = amountOut, netIn
	}
	if baseDelta == 0 || quoteReserve == 0 {
		return 0
	}

	// |quoteDelta*baseReserve - baseDelta*quoteReserve| * 10000
	//   / (baseDelta * quoteReserve)
	lhs := new(big.Int).Mul(new(big.Int).SetUint64(quoteDelta), new(big.Int).SetUint64(baseReserve))
	rhs := new(big.Int).Mul(new(big.Int).SetUint64(baseDelta), new(big.Int).SetUint64(quoteReserve))
	diff := new(big.Int).Abs(new(big.Int).Sub(lhs, rhs))
	diff.Mul(diff, big.NewInt(feeDenominator))
	diff.Div(diff, rhs)

	if !diff.IsUint64() || diff.Uint64() > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(diff.Uint64())
}

// SpotPrice returns the instantaneous quote-per-base price. Display
// only.
func SpotPrice(baseReserve, quoteReserve uint64) float64 {
	if baseReserve == 0 {
		return 0
	}
	return float64(quoteReserve) / float64(baseReserve)
}
