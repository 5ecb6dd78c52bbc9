package domain

// Pool is one trading pool row, keyed by address.
type Pool struct {
	Exchange    string  // exchange name (cetus, bluefin, bluemove, ...)
	Address     string  // pool object ID, unique key
	CoinA       string  // first coin type
	CoinB       string  // second coin type
	AmountA     *string // reserve of coin A, decimal string
	AmountB     *string // reserve of coin B, decimal string
	Liquidity   *string // active liquidity (CLMM pools)
	SqrtPrice   *string // current Q64.64 sqrt price (CLMM pools)
	TickIndex   *int32  // current tick index (CLMM pools)
	TickSpacing *int32
	FeeRate     *int64 // fee in parts-per-million
	IsPaused    bool
}

// Concentrated reports whether the pool uses tick-based liquidity.
func (p *Pool) Concentrated() bool {
	return p.TickSpacing != nil || p.SqrtPrice != nil
}

// PoolTick is liquidity bookkeeping for one initialized tick of a pool,
// keyed by (address, tick_index).
type PoolTick struct {
	Address        string
	TickIndex      int32
	LiquidityNet   *string // signed decimal string
	LiquidityGross *string
}
