package domain

import (
	"strconv"
	"time"
)

// EventKind identifies one variant of the closed DecodedEvent set.
type EventKind string

const (
	KindPoolCreated         EventKind = "POOL_CREATED"
	KindPoolStateChanged    EventKind = "POOL_STATE_CHANGED"
	KindTickUpdated         EventKind = "TICK_UPDATED"
	KindMarketParamsChanged EventKind = "LENDING_MARKET_PARAMS_CHANGED"
	KindPositionDeposit     EventKind = "POSITION_DEPOSIT"
	KindPositionBorrow      EventKind = "POSITION_BORROW"
	KindPositionRepay       EventKind = "POSITION_REPAY"
	KindPositionWithdraw    EventKind = "POSITION_WITHDRAW"
	KindLiquidation         EventKind = "LIQUIDATION_OCCURRED"
	KindPriceUpdated        EventKind = "PRICE_UPDATED"
	KindUnrecognized        EventKind = "UNRECOGNIZED"
)

// DecodedEvent is one normalized on-chain event. Produced exactly once per
// RawEvent by the decoder registry and never mutated afterwards.
//
// EntityID returns the natural key of the entity the event overwrites, used
// to coalesce repeated last-write-wins updates within a single checkpoint.
// Events whose effect is additive (position deltas, liquidation audit rows)
// return "" and are never coalesced. Creation and state-change events for the
// same entity coalesce under separate keys: a pool created and traded in one
// checkpoint must keep both its creation and its latest state.
type DecodedEvent interface {
	Kind() EventKind
	EntityID() string
}

// PoolCreated announces a new trading pool.
type PoolCreated struct {
	Pool Pool
}

func (e *PoolCreated) Kind() EventKind  { return KindPoolCreated }
func (e *PoolCreated) EntityID() string { return "pool-create:" + e.Pool.Address }

// PoolStateChanged carries the post-trade state of a pool: reserves for
// constant-product pools, sqrt price/liquidity/tick for concentrated ones.
type PoolStateChanged struct {
	Exchange  string
	Address   string
	AmountA   string // reserve of coin A, decimal string
	AmountB   string // reserve of coin B, decimal string
	Liquidity string // active liquidity, decimal string ("" for xy=k pools)
	SqrtPrice string // Q64.64 sqrt price, decimal string ("" for xy=k pools)
	TickIndex *int32 // current tick, nil for xy=k pools
}

func (e *PoolStateChanged) Kind() EventKind  { return KindPoolStateChanged }
func (e *PoolStateChanged) EntityID() string { return "pool-state:" + e.Address }

// TickUpdated carries liquidity bookkeeping for one initialized tick.
type TickUpdated struct {
	Exchange       string
	Address        string
	TickIndex      int32
	LiquidityNet   string // signed decimal string
	LiquidityGross string
}

func (e *TickUpdated) Kind() EventKind { return KindTickUpdated }
func (e *TickUpdated) EntityID() string {
	return "tick:" + e.Address + ":" + itoa32(e.TickIndex)
}

// MarketParamsChanged carries new risk parameters or totals for one
// (platform, coin) lending market.
type MarketParamsChanged struct {
	Market LendingMarket
}

func (e *MarketParamsChanged) Kind() EventKind { return KindMarketParamsChanged }
func (e *MarketParamsChanged) EntityID() string {
	return "market:" + e.Market.Platform + ":" + e.Market.CoinType
}

// PositionDelta is the shared payload of the four position event variants.
// Amount is always positive; the variant determines the sign of the effect.
type PositionDelta struct {
	Platform     string
	Borrower     string
	ObligationID string
	CoinType     string
	Amount       string // positive decimal string
}

// PositionDeposit increments a borrower's collateral.
type PositionDeposit struct{ PositionDelta }

func (e *PositionDeposit) Kind() EventKind  { return KindPositionDeposit }
func (e *PositionDeposit) EntityID() string { return "" }

// PositionBorrow increments a borrower's debt.
type PositionBorrow struct{ PositionDelta }

func (e *PositionBorrow) Kind() EventKind  { return KindPositionBorrow }
func (e *PositionBorrow) EntityID() string { return "" }

// PositionRepay decrements a borrower's debt.
type PositionRepay struct{ PositionDelta }

func (e *PositionRepay) Kind() EventKind  { return KindPositionRepay }
func (e *PositionRepay) EntityID() string { return "" }

// PositionWithdraw decrements a borrower's collateral.
type PositionWithdraw struct{ PositionDelta }

func (e *PositionWithdraw) Kind() EventKind  { return KindPositionWithdraw }
func (e *PositionWithdraw) EntityID() string { return "" }

// LiquidationOccurred is an observed on-chain liquidation, kept append-only
// for audit.
type LiquidationOccurred struct {
	Platform         string
	Borrower         string // "" when the platform keys positions by obligation
	ObligationID     string
	Liquidator       string
	DebtCoin         string
	DebtAmount       string
	CollateralCoin   string
	CollateralAmount string
}

func (e *LiquidationOccurred) Kind() EventKind  { return KindLiquidation }
func (e *LiquidationOccurred) EntityID() string { return "" }

// PriceUpdated is an oracle price tick for one price feed.
type PriceUpdated struct {
	FeedID     string
	CoinType   string // resolved coin type, "" if the feed is not yet mapped
	Source     string // oracle source tag: pyth, supra, switchboard
	Price      string // decimal string
	EmaPrice   string
	Decimals   int32 // price exponent (price × 10^-Decimals)
	ObservedAt time.Time
}

func (e *PriceUpdated) Kind() EventKind  { return KindPriceUpdated }
func (e *PriceUpdated) EntityID() string { return "price:" + e.Source + ":" + e.FeedID }

// Unrecognized marks a RawEvent no registered decoder could handle.
// It is counted but never persisted as a domain entity.
type Unrecognized struct {
	Package   string
	Module    string
	EventType string
	Reason    string
}

func (e *Unrecognized) Kind() EventKind  { return KindUnrecognized }
func (e *Unrecognized) EntityID() string { return "" }

func itoa32(v int32) string {
	return strconv.FormatInt(int64(v), 10)
}
