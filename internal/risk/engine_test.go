package risk

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
	"sui-mev-indexer/internal/storage/memory"
)

type fixture struct {
	engine    *Engine
	markets   *memory.LendingMarketStore
	borrowers *memory.BorrowerStore
	deposits  *memory.PositionStore
	borrows   *memory.PositionStore
	coins     *memory.CoinStore
	orders    *memory.LiquidationOrderStore
}

func newFixture() *fixture {
	f := &fixture{
		markets:   memory.NewLendingMarketStore(),
		borrowers: memory.NewBorrowerStore(),
		deposits:  memory.NewPositionStore(),
		borrows:   memory.NewPositionStore(),
		coins:     memory.NewCoinStore(),
		orders:    memory.NewLiquidationOrderStore(),
	}
	f.engine = NewEngine(EngineOptions{
		LendingMarketStore:    f.markets,
		BorrowerStore:         f.borrowers,
		DepositStore:          f.deposits,
		BorrowStore:           f.borrows,
		CoinStore:             f.coins,
		LiquidationOrderStore: f.orders,
	})
	return f
}

func str(s string) *string { return &s }

// seedBorrower sets up a navi borrower with one collateral and one debt
// position, both priced at 1 with zero-decimal coins.
func (f *fixture) seedBorrower(t *testing.T, collateral, debt string) {
	t.Helper()
	ctx := context.Background()

	for _, c := range []struct{ coin, price string }{
		{"0x2::sui::SUI", "1"},
		{"0x5d::usdc::USDC", "1"},
	} {
		if err := f.coins.Upsert(ctx, &domain.Coin{CoinType: c.coin, Decimals: 0, PricePyth: str(c.price)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.markets.Upsert(ctx, &domain.LendingMarket{
		Platform: "navi", CoinType: "0x2::sui::SUI",
		LiquidationThreshold: str("0.8"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.markets.Upsert(ctx, &domain.LendingMarket{
		Platform: "navi", CoinType: "0x5d::usdc::USDC",
		BorrowWeight: str("1"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.borrowers.Upsert(ctx, &domain.Borrower{
		Platform: "navi", Borrower: "0xb1", Status: domain.BorrowerActive,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.deposits.ApplyDelta(ctx, "navi", "0xb1", "0x2::sui::SUI", decimal.RequireFromString(collateral)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.borrows.ApplyDelta(ctx, "navi", "0xb1", "0x5d::usdc::USDC", decimal.RequireFromString(debt)); err != nil {
		t.Fatal(err)
	}
}

func TestLiquidationTriggerCreatesOneOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// HF = 150*1*0.8 / 130*1*1 ≈ 0.923.
	f.seedBorrower(t, "150", "130")

	f.engine.BorrowerTouched("navi", "0xb1")
	if err := f.engine.ProcessDirty(ctx); err != nil {
		t.Fatal(err)
	}

	b, err := f.borrowers.Get(ctx, "navi", "0xb1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.BorrowerLiquidatable {
		t.Errorf("borrower status = %s, want LIQUIDATABLE", b.Status)
	}

	order, err := f.orders.GetOpen(ctx, "navi", "0xb1")
	if err != nil {
		t.Fatal(err)
	}
	hf := decimal.RequireFromString(order.HealthFactor)
	if hf.LessThan(decimal.RequireFromString("0.92")) || hf.GreaterThan(decimal.RequireFromString("0.93")) {
		t.Errorf("health factor = %s, want ≈0.923", order.HealthFactor)
	}
	if order.DebtCoin != "0x5d::usdc::USDC" || order.CollateralCoin != "0x2::sui::SUI" {
		t.Errorf("pair = %s/%s, want usdc debt and sui collateral", order.DebtCoin, order.CollateralCoin)
	}
	// Navi caps the repayable share at 0.35 of the debt.
	if !decimal.RequireFromString(order.AmountRepay).Equal(decimal.RequireFromString("45.5")) {
		t.Errorf("repay amount = %s, want 45.5", order.AmountRepay)
	}

	// Re-evaluating with the same inputs creates no duplicate.
	f.engine.BorrowerTouched("navi", "0xb1")
	if err := f.engine.ProcessDirty(ctx); err != nil {
		t.Fatal(err)
	}
	open, err := f.orders.GetByStatus(ctx, domain.OrderOpen)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 {
		t.Errorf("open orders = %d, want 1", len(open))
	}
}

func TestHealthyBorrowerCreatesNoOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// HF = 200*0.8 / 130 ≈ 1.23.
	f.seedBorrower(t, "200", "130")

	f.engine.BorrowerTouched("navi", "0xb1")
	if err := f.engine.ProcessDirty(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := f.orders.GetOpen(ctx, "navi", "0xb1"); err != storage.ErrNotFound {
		t.Errorf("GetOpen = %v, want ErrNotFound", err)
	}
}

func TestNoDebtIsNotLiquidatable(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.seedBorrower(t, "150", "0")

	f.engine.BorrowerTouched("navi", "0xb1")
	if err := f.engine.ProcessDirty(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orders.GetOpen(ctx, "navi", "0xb1"); err != storage.ErrNotFound {
		t.Errorf("GetOpen = %v, want ErrNotFound", err)
	}
}

func TestPriceChangeRecoversBorrower(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.seedBorrower(t, "150", "130")

	f.engine.BorrowerTouched("navi", "0xb1")
	if err := f.engine.ProcessDirty(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orders.GetOpen(ctx, "navi", "0xb1"); err != nil {
		t.Fatalf("expected an open order: %v", err)
	}

	// Collateral doubles in value: HF = 150*2*0.8/130 ≈ 1.85.
	if err := f.coins.Upsert(ctx, &domain.Coin{CoinType: "0x2::sui::SUI", PricePyth: str("2")}); err != nil {
		t.Fatal(err)
	}
	f.engine.PriceChanged("0x2::sui::SUI")
	if err := f.engine.ProcessDirty(ctx); err != nil {
		t.Fatal(err)
	}

	b, err := f.borrowers.Get(ctx, "navi", "0xb1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.BorrowerActive {
		t.Errorf("borrower status = %s, want ACTIVE", b.Status)
	}
	if _, err := f.orders.GetOpen(ctx, "navi", "0xb1"); err != storage.ErrNotFound {
		t.Errorf("GetOpen after recovery = %v, want ErrNotFound", err)
	}
}

func TestMissingPriceSkipsBorrower(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.seedBorrower(t, "150", "130")
	// Drop the debt coin's price.
	if err := f.coins.Upsert(ctx, &domain.Coin{CoinType: "0xnew::coin::NEW", Decimals: 0}); err != nil {
		t.Fatal(err)
	}
	if err := f.markets.Upsert(ctx, &domain.LendingMarket{
		Platform: "navi", CoinType: "0xnew::coin::NEW", BorrowWeight: str("1"),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.borrows.ApplyDelta(ctx, "navi", "0xb1", "0xnew::coin::NEW", decimal.NewFromInt(10)); err != nil {
		t.Fatal(err)
	}

	f.engine.BorrowerTouched("navi", "0xb1")
	if err := f.engine.ProcessDirty(ctx); err != nil {
		t.Fatal(err)
	}

	// Skipped entirely: no status change, no order, despite the priced
	// part of the debt already making the borrower unhealthy.
	b, err := f.borrowers.Get(ctx, "navi", "0xb1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.BorrowerActive {
		t.Errorf("borrower status = %s, want ACTIVE (skipped)", b.Status)
	}
	if _, err := f.orders.GetOpen(ctx, "navi", "0xb1"); err != storage.ErrNotFound {
		t.Errorf("GetOpen = %v, want ErrNotFound", err)
	}
}

func TestPythPriceExponentApplied(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.seedBorrower(t, "150", "130")
	// Re-price the collateral the way the oracle reports it: raw price
	// with an explicit exponent.
	decimals := int32(8)
	if err := f.coins.Upsert(ctx, &domain.Coin{
		CoinType:     "0x2::sui::SUI",
		PricePyth:    str("100000000"), // 1.0 at expo -8
		PythDecimals: &decimals,
	}); err != nil {
		t.Fatal(err)
	}

	f.engine.BorrowerTouched("navi", "0xb1")
	if err := f.engine.ProcessDirty(ctx); err != nil {
		t.Fatal(err)
	}

	order, err := f.orders.GetOpen(ctx, "navi", "0xb1")
	if err != nil {
		t.Fatal(err)
	}
	hf := decimal.RequireFromString(order.HealthFactor)
	if hf.LessThan(decimal.RequireFromString("0.92")) || hf.GreaterThan(decimal.RequireFromString("0.93")) {
		t.Errorf("health factor = %s, want ≈0.923", order.HealthFactor)
	}
}

func TestChoosePairPicksLargestByValue(t *testing.T) {
	policy := DefaultPolicy("suilend")

	share := decimal.RequireFromString("0.4")
	snap := &Snapshot{
		Platform: "suilend",
		Borrower: "0xb1",
		Collateral: []Position{
			{CoinType: "0xa", Value: decimal.NewFromInt(50)},
			{CoinType: "0xb", Value: decimal.NewFromInt(120)},
		},
		Debt: []Position{
			{CoinType: "0xc", Amount: decimal.NewFromInt(30), Value: decimal.NewFromInt(30)},
			{CoinType: "0xd", Amount: decimal.NewFromInt(90), Value: decimal.NewFromInt(90), MaxRepayShare: &share},
		},
	}

	pair, ok := policy.ChoosePair(snap)
	if !ok {
		t.Fatal("no pair chosen")
	}
	if pair.DebtCoin != "0xd" || pair.CollateralCoin != "0xb" {
		t.Errorf("pair = %s/%s, want 0xd/0xb", pair.DebtCoin, pair.CollateralCoin)
	}
	// The market's own ratio wins over the platform default.
	if !pair.RepayAmount.Equal(decimal.NewFromInt(36)) {
		t.Errorf("repay amount = %s, want 36", pair.RepayAmount)
	}
}

func TestChoosePairWithoutCollateral(t *testing.T) {
	policy := DefaultPolicy("navi")
	snap := &Snapshot{
		Debt: []Position{{CoinType: "0xc", Amount: decimal.NewFromInt(10), Value: decimal.NewFromInt(10)}},
	}
	if _, ok := policy.ChoosePair(snap); ok {
		t.Error("pair chosen with no collateral")
	}
}
