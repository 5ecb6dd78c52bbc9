// Package risk recomputes borrower health factors from committed lending
// state and opens liquidation orders when a borrower crosses the
// threshold.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/observability"
	"sui-mev-indexer/internal/pipeline"
	"sui-mev-indexer/internal/storage"
)

// Lending platforms evaluated by default.
var DefaultPlatforms = []string{"navi", "suilend", "scallop"}

type borrowerRef struct {
	platform string
	borrower string
}

// Engine tracks which borrowers a committed checkpoint touched and
// re-evaluates their health factor:
//
//	HF = Σ(collateral × price × liquidationThreshold) / Σ(debt × price × borrowWeight)
//
// A borrower whose HF drops below 1 is marked liquidatable and gets
// exactly one open liquidation order; a borrower whose HF recovers is
// marked active again and the open order is cancelled. Borrowers with
// missing price or market data are skipped until the data arrives.
type Engine struct {
	markets   storage.LendingMarketStore
	borrowers storage.BorrowerStore
	deposits  storage.PositionStore
	borrows   storage.PositionStore
	coins     storage.CoinStore
	orders    storage.LiquidationOrderStore
	policies  map[string]PairPolicy
	platforms []string
	onOrder   func(context.Context, *domain.LiquidationOrder) error
	metrics   *observability.Metrics
	logger    *log.Logger

	mu    sync.Mutex
	dirty map[borrowerRef]struct{}
	// byCoin and byMarket map a coin (or platform-scoped market) to the
	// borrowers whose HF depends on it, learned during evaluation.
	byCoin   map[string]map[borrowerRef]struct{}
	byMarket map[string]map[borrowerRef]struct{}
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	LendingMarketStore    storage.LendingMarketStore
	BorrowerStore         storage.BorrowerStore
	DepositStore          storage.PositionStore
	BorrowStore           storage.PositionStore
	CoinStore             storage.CoinStore
	LiquidationOrderStore storage.LiquidationOrderStore
	Policies              map[string]PairPolicy // per-platform overrides
	Platforms             []string              // Default: navi, suilend, scallop
	// OnOrder is called once for every order the engine creates, e.g.
	// to publish it to the executor feed.
	OnOrder func(context.Context, *domain.LiquidationOrder) error
	Metrics *observability.Metrics
	Logger  *log.Logger
}

// NewEngine creates a new risk engine.
func NewEngine(opts EngineOptions) *Engine {
	platforms := opts.Platforms
	if len(platforms) == 0 {
		platforms = DefaultPlatforms
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	policies := make(map[string]PairPolicy, len(platforms))
	for _, p := range platforms {
		policies[p] = DefaultPolicy(p)
	}
	for p, policy := range opts.Policies {
		policies[p] = policy
	}

	return &Engine{
		markets:   opts.LendingMarketStore,
		borrowers: opts.BorrowerStore,
		deposits:  opts.DepositStore,
		borrows:   opts.BorrowStore,
		coins:     opts.CoinStore,
		orders:    opts.LiquidationOrderStore,
		policies:  policies,
		platforms: platforms,
		onOrder:   opts.OnOrder,
		metrics:   opts.Metrics,
		logger:    logger,
		dirty:     make(map[borrowerRef]struct{}),
		byCoin:    make(map[string]map[borrowerRef]struct{}),
		byMarket:  make(map[string]map[borrowerRef]struct{}),
	}
}

// Compile-time interface check.
var _ pipeline.RiskSink = (*Engine)(nil)

// BorrowerTouched marks one borrower for re-evaluation.
func (e *Engine) BorrowerTouched(platform, borrower string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty[borrowerRef{platform, borrower}] = struct{}{}
}

// MarketChanged marks every borrower depending on the market.
func (e *Engine) MarketChanged(platform, coinType string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ref := range e.byMarket[platform+"|"+coinType] {
		e.dirty[ref] = struct{}{}
	}
}

// PriceChanged marks every borrower holding or owing the coin.
func (e *Engine) PriceChanged(coinType string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ref := range e.byCoin[coinType] {
		e.dirty[ref] = struct{}{}
	}
}

// WarmUp marks every known borrower dirty so the first evaluation pass
// rebuilds the dependency indexes after a restart.
func (e *Engine) WarmUp(ctx context.Context) error {
	for _, platform := range e.platforms {
		for _, status := range []domain.BorrowerStatus{domain.BorrowerActive, domain.BorrowerLiquidatable} {
			list, err := e.borrowers.GetByStatus(ctx, platform, status)
			if err != nil {
				return fmt.Errorf("warm up %s borrowers: %w", platform, err)
			}
			e.mu.Lock()
			for _, b := range list {
				e.dirty[borrowerRef{b.Platform, b.Borrower}] = struct{}{}
			}
			e.mu.Unlock()
		}
	}
	return nil
}

// ProcessDirty evaluates every borrower marked since the previous call.
// Call it once per committed checkpoint.
func (e *Engine) ProcessDirty(ctx context.Context) error {
	e.mu.Lock()
	batch := e.dirty
	e.dirty = make(map[borrowerRef]struct{})
	e.mu.Unlock()

	for ref := range batch {
		if err := e.evaluate(ctx, ref); err != nil {
			return fmt.Errorf("evaluate %s/%s: %w", ref.platform, ref.borrower, err)
		}
	}
	return nil
}

// Evaluate recomputes one borrower on demand, for manual tooling.
func (e *Engine) Evaluate(ctx context.Context, platform, borrower string) error {
	return e.evaluate(ctx, borrowerRef{platform, borrower})
}

func (e *Engine) evaluate(ctx context.Context, ref borrowerRef) error {
	snap, complete, err := e.snapshot(ctx, ref)
	if err != nil {
		return err
	}
	if !complete {
		return nil
	}

	if e.metrics != nil {
		e.metrics.HealthChecksRun.Inc()
	}

	debtValue := weightedTotal(snap.Debt)
	if !debtValue.IsPositive() {
		return e.recover(ctx, ref)
	}
	snap.HealthFactor = weightedTotal(snap.Collateral).Div(debtValue)

	if snap.HealthFactor.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return e.recover(ctx, ref)
	}
	return e.markLiquidatable(ctx, ref, snap)
}

// snapshot loads and values the borrower's positions. A missing coin,
// price, market or liquidation threshold for any involved coin makes the
// snapshot incomplete and the borrower is skipped until data arrives.
func (e *Engine) snapshot(ctx context.Context, ref borrowerRef) (*Snapshot, bool, error) {
	snap := &Snapshot{Platform: ref.platform, Borrower: ref.borrower}

	deposits, err := e.deposits.GetByBorrower(ctx, ref.platform, ref.borrower)
	if err != nil {
		return nil, false, err
	}
	borrows, err := e.borrows.GetByBorrower(ctx, ref.platform, ref.borrower)
	if err != nil {
		return nil, false, err
	}

	complete := true
	for _, p := range deposits {
		pos, ok, err := e.value(ctx, ref, p, false)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			complete = false
			continue
		}
		if pos != nil {
			snap.Collateral = append(snap.Collateral, *pos)
		}
	}
	for _, p := range borrows {
		pos, ok, err := e.value(ctx, ref, p, true)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			complete = false
			continue
		}
		if pos != nil {
			snap.Debt = append(snap.Debt, *pos)
		}
	}

	if !complete {
		e.logger.Printf("Skipping borrower %s/%s: price or market data missing", ref.platform, ref.borrower)
	}
	return snap, complete, nil
}

// value turns one stored position into a weighted Position. Returns
// (nil, true, nil) for zero amounts and (nil, false, nil) when required
// data is missing.
func (e *Engine) value(ctx context.Context, ref borrowerRef, p *domain.UserPosition, isDebt bool) (*Position, bool, error) {
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return nil, false, fmt.Errorf("position amount %q: %w", p.Amount, err)
	}
	if amount.IsZero() {
		return nil, true, nil
	}

	e.watch(ref, p.CoinType)

	coin, err := e.coins.GetByType(ctx, p.CoinType)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	price, ok := latestPrice(coin)
	if !ok {
		return nil, false, nil
	}

	market, err := e.markets.Get(ctx, ref.platform, p.CoinType)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	amount = amount.Shift(-coin.Decimals)
	value := amount.Mul(price)

	pos := &Position{CoinType: p.CoinType, Amount: amount}
	if isDebt {
		// Borrow weight defaults to 1 when the market publishes none.
		weight := decimal.NewFromInt(1)
		if market.BorrowWeight != nil {
			weight, err = decimal.NewFromString(*market.BorrowWeight)
			if err != nil {
				return nil, false, fmt.Errorf("borrow weight %q: %w", *market.BorrowWeight, err)
			}
		}
		pos.Value = value.Mul(weight)
		if market.LiquidationRatio != nil {
			share, err := decimal.NewFromString(*market.LiquidationRatio)
			if err != nil {
				return nil, false, fmt.Errorf("liquidation ratio %q: %w", *market.LiquidationRatio, err)
			}
			pos.MaxRepayShare = &share
		}
	} else {
		if market.LiquidationThreshold == nil {
			return nil, false, nil
		}
		threshold, err := decimal.NewFromString(*market.LiquidationThreshold)
		if err != nil {
			return nil, false, fmt.Errorf("liquidation threshold %q: %w", *market.LiquidationThreshold, err)
		}
		pos.Value = value.Mul(threshold)
	}
	return pos, true, nil
}

func (e *Engine) markLiquidatable(ctx context.Context, ref borrowerRef, snap *Snapshot) error {
	b, err := e.borrowers.Get(ctx, ref.platform, ref.borrower)
	if err != nil {
		return err
	}
	if b.Status != domain.BorrowerLiquidatable {
		if err := e.borrowers.SetStatus(ctx, ref.platform, ref.borrower, domain.BorrowerLiquidatable); err != nil {
			return err
		}
		e.logger.Printf("Borrower %s/%s liquidatable, HF=%s", ref.platform, ref.borrower, snap.HealthFactor)
		if e.metrics != nil {
			e.metrics.LiquidatableFound.Inc()
		}
	}

	policy, ok := e.policies[ref.platform]
	if !ok {
		policy = DefaultPolicy(ref.platform)
	}
	pair, ok := policy.ChoosePair(snap)
	if !ok {
		e.logger.Printf("No repay/seize pair for borrower %s/%s", ref.platform, ref.borrower)
		return nil
	}

	order := &domain.LiquidationOrder{
		Platform:       ref.platform,
		Borrower:       ref.borrower,
		HealthFactor:   snap.HealthFactor.String(),
		DebtCoin:       pair.DebtCoin,
		CollateralCoin: pair.CollateralCoin,
		AmountRepay:    pair.RepayAmount.String(),
		AmountUSD:      pair.RepayValue.Round(6).String(),
		Source:         domain.OrderSourceRiskEngine,
		Status:         domain.OrderOpen,
	}
	err = e.orders.Insert(ctx, order)
	if errors.Is(err, storage.ErrDuplicateKey) {
		// An open order already exists; repeated evaluation is a no-op.
		return nil
	}
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.OrdersCreated.WithLabelValues(ref.platform).Inc()
		e.metrics.OpenOrders.Inc()
	}
	if e.onOrder != nil {
		if err := e.onOrder(ctx, order); err != nil {
			e.logger.Printf("Error publishing order %d: %v", order.ID, err)
		}
	}
	return nil
}

// recover returns a liquidatable borrower to active and cancels the open
// order, if any.
func (e *Engine) recover(ctx context.Context, ref borrowerRef) error {
	b, err := e.borrowers.Get(ctx, ref.platform, ref.borrower)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if b.Status != domain.BorrowerLiquidatable {
		return nil
	}

	if err := e.borrowers.SetStatus(ctx, ref.platform, ref.borrower, domain.BorrowerActive); err != nil {
		return err
	}
	e.logger.Printf("Borrower %s/%s recovered", ref.platform, ref.borrower)

	err = e.orders.Cancel(ctx, ref.platform, ref.borrower)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.OpenOrders.Dec()
	}
	return nil
}

func (e *Engine) watch(ref borrowerRef, coinType string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.byCoin[coinType] == nil {
		e.byCoin[coinType] = make(map[borrowerRef]struct{})
	}
	e.byCoin[coinType][ref] = struct{}{}

	key := ref.platform + "|" + coinType
	if e.byMarket[key] == nil {
		e.byMarket[key] = make(map[borrowerRef]struct{})
	}
	e.byMarket[key][ref] = struct{}{}
}

// latestPrice picks the freshest usable price for a coin, preferring
// pyth, then supra, then switchboard. Pyth prices carry their own
// exponent.
func latestPrice(coin *domain.Coin) (decimal.Decimal, bool) {
	if coin.PricePyth != nil {
		price, err := decimal.NewFromString(*coin.PricePyth)
		if err == nil {
			if coin.PythDecimals != nil {
				price = price.Shift(-*coin.PythDecimals)
			}
			return price, true
		}
	}
	for _, raw := range []*string{coin.PriceSupra, coin.PriceSwitchboard} {
		if raw == nil {
			continue
		}
		if price, err := decimal.NewFromString(*raw); err == nil {
			return price, true
		}
	}
	return decimal.Decimal{}, false
}

func weightedTotal(positions []Position) decimal.Decimal {
	total := decimal.Decimal{}
	for _, p := range positions {
		total = total.Add(p.Value)
	}
	return total
}
