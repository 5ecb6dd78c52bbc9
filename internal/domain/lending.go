package domain

// BorrowerStatus is the lifecycle state of a borrower. Transitions are
// driven by the risk engine only, never by raw events.
type BorrowerStatus int32

const (
	BorrowerActive       BorrowerStatus = 0
	BorrowerLiquidatable BorrowerStatus = 1
	BorrowerClosed       BorrowerStatus = 2
)

func (s BorrowerStatus) String() string {
	switch s {
	case BorrowerActive:
		return "ACTIVE"
	case BorrowerLiquidatable:
		return "LIQUIDATABLE"
	case BorrowerClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// LendingMarket is the per-asset configuration and totals of one lending
// platform, keyed by (platform, coin_type). All ratio fields are decimal
// strings scaled to 1.0 = "1".
type LendingMarket struct {
	Platform             string
	CoinType             string
	LTV                  *string
	LiquidationThreshold *string
	BorrowWeight         *string
	LiquidationRatio     *string // max share of debt repayable in one call
	LiquidationPenalty   *string
	LiquidationFee       *string
	SupplyAmount         *string
	BorrowedAmount       *string
	BorrowIndex          *string
	SupplyIndex          *string
	PythFeedID           *string
}

// Borrower is one lending-platform account, keyed by (platform, borrower).
type Borrower struct {
	Platform     string
	Borrower     string // wallet address
	ObligationID *string
	Status       BorrowerStatus
}

// UserPosition is one borrower's balance in one coin, either a deposit
// (collateral) or a borrow (debt) depending on which table it lives in.
// Keyed by (platform, borrower, coin_type). Amount is a non-negative
// decimal string; a delta driving it below zero is an invariant violation.
type UserPosition struct {
	Platform     string
	Borrower     string
	ObligationID *string
	CoinType     string
	Amount       string
}

// SharedObject records the initial shared version of an on-chain shared
// object (pool, obligation); the executor needs it to reference the object
// in transactions. Keyed by object_id.
type SharedObject struct {
	ObjectID             string
	InitialSharedVersion int64
}
