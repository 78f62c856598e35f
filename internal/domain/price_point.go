package domain

// PricePoint is one analytics sample taken after an executed trade.
// Corresponds to price_points table in ClickHouse. Floats are fine
// here: this series feeds charts and market-cap style metrics, never
// reserve math.
type PricePoint struct {
	PoolID       string
	Seq          int64   // trade sequence number within the pool
	TimestampMs  int64   // Unix timestamp in milliseconds
	Price        float64 // execution price, quote per base
	BaseReserve  uint64
	QuoteReserve uint64
	VolumeQuote  float64 // quote-side volume of the trade
}
