package domain

// PoolState is the lifecycle state of a bonding curve pool.
type PoolState string

// Pool lifecycle states. Transitions are strictly
// Active -> Graduating -> Graduated, each edge taken exactly once.
const (
	PoolStateActive     PoolState = "ACTIVE"
	PoolStateGraduating PoolState = "GRADUATING"
	PoolStateGraduated  PoolState = "GRADUATED"
)

// Pool represents one bonding curve pool for an issued token.
// Corresponds to pools table in PostgreSQL.
// All reserve amounts are unsigned base units (lamports for quote,
// token base units for base). The ledger is the only owner of the
// mutable record; everything else sees value copies.
type Pool struct {
	ID        string // base58 pool address, PRIMARY KEY
	Mint      string // token mint address
	Creator   string // pool creator address (base58, validated ed25519 point)
	ShortName string // display symbol, informational only

	BaseReserve  uint64 // issued token still held by the curve
	QuoteReserve uint64 // quote currency held by the curve
	TotalSupply  uint64 // fixed at creation

	// CumulativeQuoteCollected starts at the initial virtual quote
	// reserve and accumulates net quote paid into the curve on buys.
	// Monotonically non-decreasing; drives graduation.
	CumulativeQuoteCollected uint64
	GraduationThreshold      uint64

	FeeBps uint16 // fixed fee rate, taken from amountIn

	State       PoolState
	CreatedAt   int64 // Unix timestamp in milliseconds
	LastTradeAt int64 // Unix timestamp in milliseconds, 0 if never traded
	TradeCount  int64 // successful trades since creation
}

// CirculatingSupply is the token amount sold out of the curve so far.
func (p *Pool) CirculatingSupply() uint64 {
	return p.TotalSupply - p.BaseReserve
}

// GraduationProgressPct reports progress toward graduation in percent,
// capped at 100. Float is fine here: display-only derived metric.
func (p *Pool) GraduationProgressPct() float64 {
	if p.GraduationThreshold == 0 {
		return 0
	}
	pct := float64(p.CumulativeQuoteCollected) / float64(p.GraduationThreshold) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// PoolConfig is the caller-supplied configuration for creating a pool.
type PoolConfig struct {
	Mint      string
	Creator   string
	ShortName string

	TotalSupply         uint64 // initial BaseReserve
	InitialQuoteReserve uint64 // initial virtual quote liquidity
	GraduationThreshold uint64
	FeeBps              uint16
}

// PoolStatus is the externally visible view of a pool returned by
// status queries.
type PoolStatus struct {
	Pool        Pool
	ProgressPct float64
}
