package domain

// Side is the direction of a trade against the curve.
type Side string

// Trade side constants.
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is a known trade side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade is an immutable record of one executed trade.
// Corresponds to trades table in PostgreSQL. Created only by the
// trade executor on successful commit; append-only, never mutated.
type Trade struct {
	ID     string // deterministic hash, PRIMARY KEY
	PoolID string // FK to pools
	Seq    int64  // per-pool sequence number, 1-based

	Side      Side
	AmountIn  uint64 // gross input, before fee
	AmountOut uint64
	FeePaid   uint64 // quote units on buys, base units on sells

	// ExecutionPrice is quote per base for this fill. Derived for
	// records and display; never feeds back into reserve math.
	ExecutionPrice float64
	PriceImpactBps uint32

	BaseReserveAfter  uint64
	QuoteReserveAfter uint64

	Timestamp int64 // Unix timestamp in milliseconds
}

// TradeResult is returned to callers of ExecuteTrade.
type TradeResult struct {
	Trade      Trade
	Pool       Pool   // snapshot after commit
	Settlement string // opaque settlement descriptor
	Graduating bool   // this trade triggered Active -> Graduating
}
