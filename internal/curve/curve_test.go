package curve

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"solana-curve-engine/internal/domain"
)

func TestComputeQuote_BuyReferenceScenario(t *testing.T) {
	// baseReserve=1,073,000,000, quoteReserve=30, buy amountIn=10, no fee.
	// k = 32,190,000,000; newQuote = 40; newBase = ceil(k/40) = 804,750,000.
	q, err := ComputeQuote(1_073_000_000, 30, domain.SideBuy, 10, 0)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}

	if q.AmountOut != 268_250_000 {
		t.Errorf("AmountOut: got %d, want 268250000", q.AmountOut)
	}
	if q.NewQuoteReserve != 40 {
		t.Errorf("NewQuoteReserve: got %d, want 40", q.NewQuoteReserve)
	}
	if q.NewBaseReserve != 804_750_000 {
		t.Errorf("NewBaseReserve: got %d, want 804750000", q.NewBaseReserve)
	}
	if q.FeePaid != 0 {
		t.Errorf("FeePaid: got %d, want 0", q.FeePaid)
	}
}

func TestComputeQuote_SellSymmetric(t *testing.T) {
	// Reserves after the reference buy; selling everything bought
	// returns exactly the 10 quote units paid in (zero fee).
	q, err := ComputeQuote(804_750_000, 40, domain.SideSell, 268_250_000, 0)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}

	if q.AmountOut != 10 {
		t.Errorf("AmountOut: got %d, want 10", q.AmountOut)
	}
	if q.NewBaseReserve != 1_073_000_000 {
		t.Errorf("NewBaseReserve: got %d, want 1073000000", q.NewBaseReserve)
	}
	if q.NewQuoteReserve != 30 {
		t.Errorf("NewQuoteReserve: got %d, want 30", q.NewQuoteReserve)
	}
}

func TestComputeQuote_FeeSkimmedFromInput(t *testing.T) {
	// 100 bps fee on a 1000 buy: 10 fee, 990 net.
	q, err := ComputeQuote(1_000_000, 1_000_000, domain.SideBuy, 1000, 100)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}

	if q.FeePaid != 10 {
		t.Errorf("FeePaid: got %d, want 10", q.FeePaid)
	}
	if q.NetIn != 990 {
		t.Errorf("NetIn: got %d, want 990", q.NetIn)
	}
	if q.NewQuoteReserve != 1_000_990 {
		t.Errorf("NewQuoteReserve: got %d, want 1000990 (net input only)", q.NewQuoteReserve)
	}
}

func TestComputeQuote_ZeroAmount(t *testing.T) {
	_, err := ComputeQuote(1_000_000, 1_000_000, domain.SideBuy, 0, 0)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestComputeQuote_FeeConsumesInput(t *testing.T) {
	// 1 unit in at any positive fee still nets 1 (floor division), but
	// 100% fee nets zero.
	_, err := ComputeQuote(1_000_000, 1_000_000, domain.SideBuy, 5, 10_000)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestComputeQuote_OverflowAmount(t *testing.T) {
	_, err := ComputeQuote(1_000_000, math.MaxUint64-5, domain.SideBuy, 100, 0)
	if !errors.Is(err, domain.ErrAmountTooLarge) {
		t.Errorf("expected ErrAmountTooLarge, got %v", err)
	}
}

func TestComputeQuote_ReserveFloor(t *testing.T) {
	// A buy can never drain the base reserve: newBase = ceil(k/newQuote)
	// stays >= 1 for any finite input, so the floor holds. Verify with a
	// hugely outsized buy.
	q, err := ComputeQuote(1_000_000, 10, domain.SideBuy, 1_000_000_000_000, 0)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	if q.NewBaseReserve < MinReserve {
		t.Errorf("NewBaseReserve %d below floor %d", q.NewBaseReserve, MinReserve)
	}
	if q.AmountOut >= 1_000_000 {
		t.Errorf("buy fully drained base reserve: amountOut %d", q.AmountOut)
	}
}

func TestComputeQuote_InvalidSide(t *testing.T) {
	_, err := ComputeQuote(1_000_000, 1_000_000, domain.Side("short"), 100, 0)
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestComputeQuote_ConstantProductPreserved(t *testing.T) {
	// k after each zero-fee trade must be >= k before, and within one
	// output unit of rounding above it.
	base, quote := uint64(1_073_000_000), uint64(30)
	trades := []struct {
		side     domain.Side
		amountIn uint64
	}{
		{domain.SideBuy, 10},
		{domain.SideBuy, 7},
		{domain.SideSell, 100_000_000},
		{domain.SideBuy, 3},
		{domain.SideSell, 50_000_000},
	}

	for i, tr := range trades {
		before := new(big.Int).Mul(new(big.Int).SetUint64(base), new(big.Int).SetUint64(quote))
		q, err := ComputeQuote(base, quote, tr.side, tr.amountIn, 0)
		if err != nil {
			t.Fatalf("trade %d: ComputeQuote failed: %v", i, err)
		}
		base, quote = q.NewBaseReserve, q.NewQuoteReserve

		after := new(big.Int).Mul(new(big.Int).SetUint64(base), new(big.Int).SetUint64(quote))
		if after.Cmp(before) < 0 {
			t.Errorf("trade %d: product decreased: before %s, after %s", i, before, after)
		}

		// Rounding bound: ceiling division adds less than one unit of the
		// grown reserve to the preserved product.
		var grown uint64
		if tr.side == domain.SideBuy {
			grown = quote
		} else {
			grown = base
		}
		bound := new(big.Int).Add(before, new(big.Int).SetUint64(grown))
		if after.Cmp(bound) > 0 {
			t.Errorf("trade %d: product grew past rounding bound: after %s, bound %s", i, after, bound)
		}
	}
}

func TestComputeQuote_MonotonicPrice(t *testing.T) {
	// Buys never decrease quote/base; sells never increase it. Compare
	// spot prices by cross-multiplication to stay in integers.
	base, quote := uint64(1_073_000_000), uint64(30)

	spotLess := func(b1, q1, b2, q2 uint64) bool {
		// q1/b1 < q2/b2  <=>  q1*b2 < q2*b1
		lhs := new(big.Int).Mul(new(big.Int).SetUint64(q1), new(big.Int).SetUint64(b2))
		rhs := new(big.Int).Mul(new(big.Int).SetUint64(q2), new(big.Int).SetUint64(b1))
		return lhs.Cmp(rhs) < 0
	}

	q, err := ComputeQuote(base, quote, domain.SideBuy, 10, 0)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if spotLess(q.NewBaseReserve, q.NewQuoteReserve, base, quote) {
		t.Error("buy decreased spot price")
	}

	base, quote = q.NewBaseReserve, q.NewQuoteReserve
	q, err = ComputeQuote(base, quote, domain.SideSell, 100_000_000, 0)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if spotLess(base, quote, q.NewBaseReserve, q.NewQuoteReserve) {
		t.Error("sell increased spot price")
	}
}

func TestComputeQuote_RoundTripNeverProfits(t *testing.T) {
	for _, buyIn := range []uint64{1, 3, 10, 100, 12345} {
		base, quote := uint64(1_073_000_000), uint64(30)

		buy, err := ComputeQuote(base, quote, domain.SideBuy, buyIn, 0)
		if err != nil {
			t.Fatalf("buy %d failed: %v", buyIn, err)
		}

		sell, err := ComputeQuote(buy.NewBaseReserve, buy.NewQuoteReserve, domain.SideSell, buy.AmountOut, 0)
		if err != nil {
			// A dust position that rounds to nothing is an acceptable
			// outcome for tiny buys.
			if errors.Is(err, domain.ErrInvalidAmount) {
				continue
			}
			t.Fatalf("sell after buy %d failed: %v", buyIn, err)
		}

		if sell.AmountOut > buyIn {
			t.Errorf("round trip extracted value: in %d, out %d", buyIn, sell.AmountOut)
		}
	}
}

func TestComputeQuote_PriceImpact(t *testing.T) {
	// Reference scenario: spot = 30/1073000000, exec = 10/268250000,
	// impact = 33.33% = 3333 bps after truncation.
	q, err := ComputeQuote(1_073_000_000, 30, domain.SideBuy, 10, 0)
	if err != nil {
		t.Fatalf("ComputeQuote failed: %v", err)
	}
	if q.PriceImpactBps != 3333 {
		t.Errorf("PriceImpactBps: got %d, want 3333", q.PriceImpactBps)
	}
}

func TestExecutionPrice(t *testing.T) {
	q := &Quote{Side: domain.SideBuy, NetIn: 40, AmountOut: 20}
	if got := q.ExecutionPrice(); got != 2.0 {
		t.Errorf("buy ExecutionPrice: got %f, want 2.0", got)
	}

	q = &Quote{Side: domain.SideSell, NetIn: 20, AmountOut: 40}
	if got := q.ExecutionPrice(); got != 2.0 {
		t.Errorf("sell ExecutionPrice: got %f, want 2.0", got)
	}
}
