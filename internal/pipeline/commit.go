package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/storage"
)

// DecodedItem is one decoded event together with the transaction that
// emitted it.
type DecodedItem struct {
	Event    domain.DecodedEvent
	TxDigest string
}

// Committer persists all effects of one checkpoint. Implementations must
// be idempotent: committing the same checkpoint twice converges on the
// same state.
type Committer interface {
	CommitCheckpoint(ctx context.Context, cp *domain.Checkpoint, items []DecodedItem) error
}

// RiskSink receives notifications about state changes that can move a
// borrower's health factor.
type RiskSink interface {
	BorrowerTouched(platform, borrower string)
	MarketChanged(platform, coinType string)
	PriceChanged(coinType string)
}

// ArbSink receives notifications about pool changes for the opportunity
// graph.
type ArbSink interface {
	PoolCreated(p *domain.Pool)
	PoolChanged(address string)
}

// Applier routes decoded events into the stores and fans change
// notifications out to the risk and arbitrage engines.
type Applier struct {
	pools      storage.PoolStore
	ticks      storage.PoolTickStore
	coins      storage.CoinStore
	markets    storage.LendingMarketStore
	borrowers  storage.BorrowerStore
	deposits   storage.PositionStore
	borrows    storage.PositionStore
	liqEvents  storage.LiquidationEventStore
	priceTicks storage.PriceTickStore // optional history sink
	watermarks storage.WatermarkStore // optional replay guard
	risk       RiskSink               // optional
	arb        ArbSink                // optional
	logger     *log.Logger

	// Committed watermark cache. Checkpoints arrive from a single goroutine
	// in sequence order, so one load at startup suffices.
	wm       uint64
	wmLoaded bool
}

// ApplierOptions contains configuration for creating an Applier.
type ApplierOptions struct {
	PoolStore             storage.PoolStore
	PoolTickStore         storage.PoolTickStore
	CoinStore             storage.CoinStore
	LendingMarketStore    storage.LendingMarketStore
	BorrowerStore         storage.BorrowerStore
	DepositStore          storage.PositionStore
	BorrowStore           storage.PositionStore
	LiquidationEventStore storage.LiquidationEventStore
	PriceTickStore        storage.PriceTickStore

	// WatermarkStore, when set, makes commits skip checkpoints at or below
	// the persisted watermark and advance it after every commit. Without it
	// a replayed checkpoint re-applies its additive position deltas.
	WatermarkStore storage.WatermarkStore

	RiskSink RiskSink
	ArbSink  ArbSink
	Logger   *log.Logger
}

// NewApplier creates a new Applier.
func NewApplier(opts ApplierOptions) *Applier {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Applier{
		pools:      opts.PoolStore,
		ticks:      opts.PoolTickStore,
		coins:      opts.CoinStore,
		markets:    opts.LendingMarketStore,
		borrowers:  opts.BorrowerStore,
		deposits:   opts.DepositStore,
		borrows:    opts.BorrowStore,
		liqEvents:  opts.LiquidationEventStore,
		priceTicks: opts.PriceTickStore,
		watermarks: opts.WatermarkStore,
		risk:       opts.RiskSink,
		arb:        opts.ArbSink,
		logger:     logger,
	}
}

// Compile-time interface check.
var _ Committer = (*Applier)(nil)

// CommitCheckpoint coalesces and applies all decoded events of one
// checkpoint. Last-write-wins entities keep only their final update;
// additive events are applied one by one in order. Checkpoints at or below
// the committed watermark are skipped whole: their deltas are already in the
// stores. Sequence 0 marks an out-of-band replay (single tx digest) and
// bypasses the watermark.
func (a *Applier) CommitCheckpoint(ctx context.Context, cp *domain.Checkpoint, items []DecodedItem) error {
	if a.watermarks != nil && cp.Sequence != 0 {
		if !a.wmLoaded {
			seq, err := a.watermarks.Get(ctx)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("load commit watermark: %w", err)
			}
			a.wm = seq
			a.wmLoaded = true
		}
		if cp.Sequence <= a.wm {
			a.logger.Printf("Skipping already committed checkpoint %d (watermark %d)", cp.Sequence, a.wm)
			return nil
		}
	}

	items = coalesce(items)

	var ticks []*domain.PriceTick

	for _, item := range items {
		switch e := item.Event.(type) {
		case *domain.PoolCreated:
			if err := a.pools.Upsert(ctx, &e.Pool); err != nil {
				return fmt.Errorf("checkpoint %d: %w", cp.Sequence, err)
			}
			if a.arb != nil {
				a.arb.PoolCreated(&e.Pool)
			}

		case *domain.PoolStateChanged:
			if err := a.pools.ApplyState(ctx, e); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					a.logger.Printf("Skipping state change for unknown pool %s (%s)", e.Address, e.Exchange)
					continue
				}
				return fmt.Errorf("checkpoint %d: %w", cp.Sequence, err)
			}
			if a.arb != nil {
				a.arb.PoolChanged(e.Address)
			}

		case *domain.TickUpdated:
			tick := &domain.PoolTick{Address: e.Address, TickIndex: e.TickIndex}
			if e.LiquidityNet != "" {
				net := e.LiquidityNet
				tick.LiquidityNet = &net
			}
			if e.LiquidityGross != "" {
				gross := e.LiquidityGross
				tick.LiquidityGross = &gross
			}
			if err := a.ticks.Upsert(ctx, tick); err != nil {
				return fmt.Errorf("checkpoint %d: %w", cp.Sequence, err)
			}

		case *domain.MarketParamsChanged:
			if err := a.markets.Upsert(ctx, &e.Market); err != nil {
				return fmt.Errorf("checkpoint %d: %w", cp.Sequence, err)
			}
			if a.risk != nil {
				a.risk.MarketChanged(e.Market.Platform, e.Market.CoinType)
			}

		case *domain.PositionDeposit:
			if err := a.applyDelta(ctx, a.deposits, &e.PositionDelta, 1); err != nil {
				return fmt.Errorf("checkpoint %d: %w", cp.Sequence, err)
			}
		case *domain.PositionWithdraw:
			if err := a.applyDelta(ctx, a.deposits, &e.PositionDelta, -1); err != nil {
				return fmt.Errorf("checkpoint %d: %w", cp.Sequence, err)
			}
		case *domain.PositionBorrow:
			if err := a.applyDelta(ctx, a.borrows, &e.PositionDelta, 1); err != nil {
				return fmt.Errorf("checkpoint %d: %w", cp.Sequence, err)
			}
		case *domain.PositionRepay:
			if err := a.applyDelta(ctx, a.borrows, &e.PositionDelta, -1); err != nil {
				return fmt.Errorf("checkpoint %d: %w", cp.Sequence, err)
			}

		case *domain.LiquidationOccurred:
			if err := a.applyLiquidation(ctx, e, item.TxDigest); err != nil {
				return fmt.Errorf("checkpoint %d: %w", cp.Sequence, err)
			}

		case *domain.PriceUpdated:
			tick, err := a.applyPrice(ctx, e)
			if err != nil {
				return fmt.Errorf("checkpoint %d: %w", cp.Sequence, err)
			}
			if tick != nil {
				ticks = append(ticks, tick)
			}

		case *domain.Unrecognized:
			// Counted by the runner; nothing to persist.

		default:
			a.logger.Printf("No handler for event kind %s", item.Event.Kind())
		}
	}

	if a.priceTicks != nil && len(ticks) > 0 {
		if err := a.priceTicks.InsertBulk(ctx, ticks); err != nil {
			return fmt.Errorf("checkpoint %d: insert price history: %w", cp.Sequence, err)
		}
	}

	if a.watermarks != nil && cp.Sequence != 0 {
		if err := a.watermarks.Set(ctx, cp.Sequence); err != nil {
			return fmt.Errorf("checkpoint %d: advance commit watermark: %w", cp.Sequence, err)
		}
		a.wm = cp.Sequence
	}

	return nil
}

// applyDelta resolves the borrower, ensures the borrower row exists and
// applies the signed delta. An invariant rejection is logged and skipped;
// one malformed event must not halt the pipeline.
func (a *Applier) applyDelta(ctx context.Context, positions storage.PositionStore, d *domain.PositionDelta, sign int64) error {
	borrower, err := a.resolveBorrower(ctx, d.Platform, d.Borrower, d.ObligationID)
	if err != nil {
		return err
	}

	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return fmt.Errorf("parse position amount %q: %w", d.Amount, err)
	}

	_, err = positions.ApplyDelta(ctx, d.Platform, borrower, d.CoinType, amount.Mul(decimal.NewFromInt(sign)))
	if err != nil {
		if errors.Is(err, storage.ErrInvariant) {
			a.logger.Printf("Rejected position delta: %v", err)
			return nil
		}
		return err
	}

	if a.risk != nil {
		a.risk.BorrowerTouched(d.Platform, borrower)
	}
	return nil
}

func (a *Applier) applyLiquidation(ctx context.Context, e *domain.LiquidationOccurred, txDigest string) error {
	borrower, err := a.resolveBorrower(ctx, e.Platform, e.Borrower, e.ObligationID)
	if err != nil {
		return err
	}

	err = a.liqEvents.Insert(ctx, &domain.LiquidationEvent{
		TxDigest:         txDigest,
		Platform:         e.Platform,
		Borrower:         borrower,
		Liquidator:       e.Liquidator,
		DebtCoin:         e.DebtCoin,
		DebtAmount:       e.DebtAmount,
		CollateralCoin:   e.CollateralCoin,
		CollateralAmount: e.CollateralAmount,
	})
	if err != nil {
		return err
	}

	if a.risk != nil {
		a.risk.BorrowerTouched(e.Platform, borrower)
	}
	return nil
}

// applyPrice resolves the feed to a coin, writes the source's price
// column and returns the history tick. Unmapped feeds are recorded in
// history only.
func (a *Applier) applyPrice(ctx context.Context, e *domain.PriceUpdated) (*domain.PriceTick, error) {
	coinType := e.CoinType
	if coinType == "" {
		coin, err := a.coins.GetByFeedID(ctx, e.FeedID)
		switch {
		case err == nil:
			coinType = coin.CoinType
		case errors.Is(err, storage.ErrNotFound):
			// Feed not mapped to a coin yet; keep the observation.
			return &domain.PriceTick{
				FeedID:     e.FeedID,
				Source:     e.Source,
				Price:      e.Price,
				EmaPrice:   e.EmaPrice,
				ObservedAt: e.ObservedAt,
			}, nil
		default:
			return nil, err
		}
	}

	if err := a.coins.UpdatePrice(ctx, coinType, e); err != nil {
		return nil, err
	}

	if a.risk != nil {
		a.risk.PriceChanged(coinType)
	}

	return &domain.PriceTick{
		CoinType:   coinType,
		FeedID:     e.FeedID,
		Source:     e.Source,
		Price:      e.Price,
		EmaPrice:   e.EmaPrice,
		ObservedAt: e.ObservedAt,
	}, nil
}

// ApplyPriceUpdate routes one out-of-band price tick (from a price
// stream rather than a checkpoint) through the same path as on-chain
// price events.
func (a *Applier) ApplyPriceUpdate(ctx context.Context, e *domain.PriceUpdated) error {
	tick, err := a.applyPrice(ctx, e)
	if err != nil {
		return err
	}
	if a.priceTicks != nil && tick != nil {
		return a.priceTicks.InsertBulk(ctx, []*domain.PriceTick{tick})
	}
	return nil
}

// resolveBorrower returns the stored identity for a position event and
// creates the borrower row on first sight. Platforms that key events by
// obligation use the obligation ID as the identity until the owning
// wallet is discovered.
func (a *Applier) resolveBorrower(ctx context.Context, platform, borrower, obligationID string) (string, error) {
	if borrower == "" {
		if obligationID == "" {
			return "", fmt.Errorf("%w: position event carries neither borrower nor obligation", storage.ErrInvalidInput)
		}
		existing, err := a.borrowers.GetByObligation(ctx, platform, obligationID)
		switch {
		case err == nil:
			return existing.Borrower, nil
		case errors.Is(err, storage.ErrNotFound):
			borrower = obligationID
		default:
			return "", err
		}
	}

	_, err := a.borrowers.Get(ctx, platform, borrower)
	if errors.Is(err, storage.ErrNotFound) {
		b := &domain.Borrower{Platform: platform, Borrower: borrower, Status: domain.BorrowerActive}
		if obligationID != "" {
			ob := obligationID
			b.ObligationID = &ob
		}
		if err := a.borrowers.Upsert(ctx, b); err != nil {
			return "", err
		}
		return borrower, nil
	}
	if err != nil {
		return "", err
	}
	return borrower, nil
}

// coalesce keeps only the last update per entity within one checkpoint.
// Events with an empty EntityID are additive and always kept. The final
// update stays at its original position relative to additive events.
func coalesce(items []DecodedItem) []DecodedItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]DecodedItem, 0, len(items))

	for i := len(items) - 1; i >= 0; i-- {
		id := items[i].Event.EntityID()
		if id != "" {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, items[i])
	}

	// Restore forward order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
