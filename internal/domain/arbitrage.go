package domain

import "time"

// ArbOpportunity is a candidate profitable trading cycle handed to the
// external executor. Profit is estimated net of pool fees only; gas and
// slippage are the executor's concern.
type ArbOpportunity struct {
	Coins      []string // cycle coin path, first == last
	Pools      []string // pool addresses, one per hop
	GrossRate  string   // cumulative exchange rate before fees, decimal string
	NetRate    string   // cumulative rate net of fees
	ProfitBps  int64    // estimated profit in basis points
	DetectedAt time.Time
}
