package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

func TestPositionStore_DeltaInvariant(t *testing.T) {
	ctx := context.Background()
	s := NewPositionStore()

	if _, err := s.ApplyDelta(ctx, "navi", "0xalice", "0x2::sui::SUI", decimal.NewFromInt(50)); err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if _, err := s.ApplyDelta(ctx, "navi", "0xalice", "0x2::sui::SUI", decimal.NewFromInt(-60)); !errors.Is(err, storage.ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}

	got, err := s.Get(ctx, "navi", "0xalice", "0x2::sui::SUI")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount != "50" {
		t.Errorf("amount after rejected delta = %s, want 50", got.Amount)
	}
}

func TestLiquidationOrderStore_OpenGuard(t *testing.T) {
	ctx := context.Background()
	s := NewLiquidationOrderStore()

	o := &domain.LiquidationOrder{Platform: "navi", Borrower: "0xalice", Source: domain.OrderSourceRiskEngine}
	if err := s.Insert(ctx, o); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if o.ID == 0 {
		t.Error("insert did not assign an ID")
	}

	dup := &domain.LiquidationOrder{Platform: "navi", Borrower: "0xalice", Source: domain.OrderSourceRiskEngine}
	if err := s.Insert(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}

	if err := s.Cancel(ctx, "navi", "0xalice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Once the order is closed a new one may open.
	if err := s.Insert(ctx, dup); err != nil {
		t.Fatalf("insert after cancel: %v", err)
	}
}

func TestLiquidationEventStore_ReplayIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewLiquidationEventStore()

	e := &domain.LiquidationEvent{
		TxDigest: "digest1",
		Platform: "scallop",
		Borrower: "0xbob",
	}
	if err := s.Insert(ctx, e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, e); err != nil {
		t.Fatalf("replay insert: %v", err)
	}

	events, err := s.GetByBorrower(ctx, "scallop", "0xbob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events = %d, want 1 after replay", len(events))
	}
}

func TestWatermarkStore_Monotonic(t *testing.T) {
	ctx := context.Background()
	s := NewWatermarkStore()

	if _, err := s.Get(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound before first commit", err)
	}

	if err := s.Set(ctx, 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	// A stale writer cannot move the watermark backwards.
	if err := s.Set(ctx, 30); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != 42 {
		t.Errorf("watermark = %d, want 42", got)
	}
}

func TestCoinStore_MergeKeepsPrices(t *testing.T) {
	ctx := context.Background()
	s := NewCoinStore()

	if err := s.UpdatePrice(ctx, "0x2::sui::SUI", &domain.PriceUpdated{
		Source: domain.OraclePyth,
		FeedID: "feed1",
		Price:  "312",
	}); err != nil {
		t.Fatalf("update price: %v", err)
	}

	sym := "SUI"
	if err := s.Upsert(ctx, &domain.Coin{CoinType: "0x2::sui::SUI", Decimals: 9, Symbol: &sym}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetByType(ctx, "0x2::sui::SUI")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PricePyth == nil || *got.PricePyth != "312" {
		t.Errorf("pyth price = %v, want preserved", got.PricePyth)
	}
	if got.Symbol == nil || *got.Symbol != "SUI" {
		t.Errorf("symbol = %v", got.Symbol)
	}

	byFeed, err := s.GetByFeedID(ctx, "feed1")
	if err != nil {
		t.Fatalf("get by feed: %v", err)
	}
	if byFeed.CoinType != "0x2::sui::SUI" {
		t.Errorf("coin by feed = %s", byFeed.CoinType)
	}
}
