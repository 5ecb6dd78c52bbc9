package risk

import (
	"github.com/shopspring/decimal"
)

// Position is one valued borrower position used for pair selection.
// Amount and Value are scaled to human units (coin decimals applied).
type Position struct {
	CoinType string
	Amount   decimal.Decimal
	Value    decimal.Decimal // in quote currency
	// MaxRepayShare is the market's liquidation ratio for debt positions,
	// nil when the market does not publish one.
	MaxRepayShare *decimal.Decimal
}

// Snapshot is one borrower's valued state at evaluation time.
type Snapshot struct {
	Platform     string
	Borrower     string
	HealthFactor decimal.Decimal
	Collateral   []Position
	Debt         []Position
}

// Pair is the repay/seize choice for one liquidation order.
type Pair struct {
	DebtCoin       string
	CollateralCoin string
	RepayAmount    decimal.Decimal // in debt coin units
	RepayValue     decimal.Decimal // in quote currency
}

// PairPolicy chooses which debt to repay and which collateral to seize
// when a borrower becomes liquidatable. Platforms cap the repayable share
// differently, so each gets its own policy.
type PairPolicy interface {
	ChoosePair(s *Snapshot) (Pair, bool)
}

// largestPairPolicy picks the single largest debt and collateral by value
// and repays the market's liquidation ratio of it, falling back to a
// platform default share.
type largestPairPolicy struct {
	defaultRepayShare decimal.Decimal
}

// Repayable debt share per platform when the market publishes none.
var defaultRepayShares = map[string]decimal.Decimal{
	"navi":    decimal.RequireFromString("0.35"),
	"suilend": decimal.RequireFromString("0.2"),
	"scallop": decimal.RequireFromString("0.5"),
}

// DefaultPolicy returns the pair policy for a platform.
func DefaultPolicy(platform string) PairPolicy {
	share, ok := defaultRepayShares[platform]
	if !ok {
		share = decimal.NewFromInt(1)
	}
	return &largestPairPolicy{defaultRepayShare: share}
}

func (p *largestPairPolicy) ChoosePair(s *Snapshot) (Pair, bool) {
	debt, ok := largestByValue(s.Debt)
	if !ok {
		return Pair{}, false
	}
	collateral, ok := largestByValue(s.Collateral)
	if !ok {
		return Pair{}, false
	}

	share := p.defaultRepayShare
	if debt.MaxRepayShare != nil && debt.MaxRepayShare.IsPositive() {
		share = *debt.MaxRepayShare
	}
	if share.GreaterThan(decimal.NewFromInt(1)) {
		share = decimal.NewFromInt(1)
	}

	return Pair{
		DebtCoin:       debt.CoinType,
		CollateralCoin: collateral.CoinType,
		RepayAmount:    debt.Amount.Mul(share),
		RepayValue:     debt.Value.Mul(share),
	}, true
}

func largestByValue(positions []Position) (Position, bool) {
	var best Position
	found := false
	for _, p := range positions {
		if !p.Value.IsPositive() {
			continue
		}
		if !found || p.Value.GreaterThan(best.Value) {
			best = p
			found = true
		}
	}
	return best, found
}
