package domain

import "time"

// Oracle source tags. Each source writes its own price column on Coin;
// no source ever overwrites another's.
const (
	OraclePyth        = "pyth"
	OracleSupra       = "supra"
	OracleSwitchboard = "switchboard"
)

// Coin is coin metadata plus the latest observed price per oracle source,
// keyed by coin_type.
type Coin struct {
	CoinType         string
	Decimals         int32
	Name             *string
	Symbol           *string
	PricePyth        *string // decimal string
	PriceSupra       *string
	PriceSwitchboard *string
	PythFeedID       *string
	PythEmaPrice     *string
	PythDecimals     *int32
	PythUpdatedAt    *time.Time
}

// PriceFor returns the latest price for the given oracle source, or nil
// when that source has never reported.
func (c *Coin) PriceFor(source string) *string {
	switch source {
	case OraclePyth:
		return c.PricePyth
	case OracleSupra:
		return c.PriceSupra
	case OracleSwitchboard:
		return c.PriceSwitchboard
	}
	return nil
}

// PriceTick is one append-only oracle observation, retained as history.
type PriceTick struct {
	CoinType   string
	FeedID     string
	Source     string
	Price      string
	EmaPrice   string
	ObservedAt time.Time
}
