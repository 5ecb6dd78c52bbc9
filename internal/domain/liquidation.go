package domain

import "time"

// LiquidationEvent is an observed on-chain liquidation, append-only,
// keyed by tx_digest.
type LiquidationEvent struct {
	TxDigest         string
	Platform         string
	Borrower         string
	Liquidator       string
	DebtCoin         string
	DebtAmount       string
	CollateralCoin   string
	CollateralAmount string
}

// Sources of a LiquidationOrder.
const (
	OrderSourceRiskEngine = "risk-engine"
	OrderSourceManual     = "manual"
)

// OrderStatus is the execution state of a LiquidationOrder.
type OrderStatus int32

const (
	OrderOpen      OrderStatus = 0
	OrderExecuted  OrderStatus = 1
	OrderFailed    OrderStatus = 2
	OrderCancelled OrderStatus = 3
)

// LiquidationOrder is a decision record produced when a borrower crosses
// the liquidation threshold. Execution metadata (tx digest, checkpoint,
// bot address, finalized time) is written back by the external executor
// and is the only mutation accepted from outside after creation.
type LiquidationOrder struct {
	ID             int64 // assigned by the store
	Platform       string
	Borrower       string
	HealthFactor   string // decimal string
	DebtCoin       string
	CollateralCoin string
	AmountRepay    string // decimal string in debt coin units
	AmountUSD      string
	Source         string
	Status         OrderStatus
	TxDigest       *string
	Checkpoint     *int64
	BotAddress     *string
	Error          *string
	FinalizedAt    *time.Time
}

// ExecutionResult is the write-back from the external executor.
type ExecutionResult struct {
	OrderID     int64
	Status      OrderStatus
	TxDigest    string
	Checkpoint  int64
	BotAddress  string
	Error       string
	FinalizedAt time.Time
}
