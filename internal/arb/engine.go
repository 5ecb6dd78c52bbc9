package arb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/observability"
	"sui-mev-indexer/internal/pipeline"
	"sui-mev-indexer/internal/storage"
)

// Engine keeps the exchange-rate graph in sync with committed pool state
// and searches around every changed pool for profitable cycles. Search
// runs per committed checkpoint over the pools that checkpoint touched,
// never over the whole graph.
type Engine struct {
	pools    storage.PoolStore
	graph    *Graph
	maxDepth int
	metrics  *observability.Metrics
	logger   *log.Logger

	mu    sync.Mutex
	dirty map[string]struct{} // pool addresses touched since last Process
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	PoolStore storage.PoolStore
	MaxDepth  int // Default: 4 pool hops per cycle
	Metrics   *observability.Metrics
	Logger    *log.Logger
}

// NewEngine creates a new arbitrage engine.
func NewEngine(opts EngineOptions) *Engine {
	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		pools:    opts.PoolStore,
		graph:    NewGraph(),
		maxDepth: maxDepth,
		metrics:  opts.Metrics,
		logger:   logger,
		dirty:    make(map[string]struct{}),
	}
}

// Compile-time interface check.
var _ pipeline.ArbSink = (*Engine)(nil)

// PoolCreated adds the pool's edges to the graph.
func (e *Engine) PoolCreated(p *domain.Pool) {
	e.graph.Upsert(p)
	e.markDirty(p.Address)
	if e.metrics != nil {
		e.metrics.GraphEdges.Set(float64(e.graph.EdgeCount()))
	}
}

// PoolChanged marks the pool for a rate refresh and search.
func (e *Engine) PoolChanged(address string) {
	e.markDirty(address)
}

func (e *Engine) markDirty(address string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty[address] = struct{}{}
}

// WarmUp loads every known pool into the graph after a restart.
func (e *Engine) WarmUp(ctx context.Context) error {
	pools, err := e.pools.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("warm up pool graph: %w", err)
	}
	for _, p := range pools {
		e.graph.Upsert(p)
	}
	if e.metrics != nil {
		e.metrics.GraphEdges.Set(float64(e.graph.EdgeCount()))
	}
	e.logger.Printf("Pool graph warmed up with %d pools", len(pools))
	return nil
}

// Process refreshes the edges of every pool touched since the previous
// call and returns the profitable cycles reachable from their coins,
// best first, each cycle reported once. Call it once per committed
// checkpoint.
func (e *Engine) Process(ctx context.Context) ([]*domain.ArbOpportunity, error) {
	e.mu.Lock()
	batch := e.dirty
	e.dirty = make(map[string]struct{})
	e.mu.Unlock()

	if len(batch) == 0 {
		return nil, nil
	}

	starts := make(map[string]struct{}, len(batch))
	for address := range batch {
		pool, err := e.pools.GetByAddress(ctx, address)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("refresh pool %s: %w", address, err)
		}
		e.graph.Upsert(pool)
		starts[pool.CoinA] = struct{}{}
		starts[pool.CoinB] = struct{}{}
	}
	if e.metrics != nil {
		e.metrics.GraphEdges.Set(float64(e.graph.EdgeCount()))
	}

	var cycles []Cycle
	seen := make(map[string]struct{})
	for coin := range starts {
		if e.metrics != nil {
			e.metrics.CycleSearches.Inc()
		}
		for _, c := range e.graph.FindCycles(coin, e.maxDepth) {
			if _, dup := seen[c.key()]; dup {
				continue
			}
			seen[c.key()] = struct{}{}
			cycles = append(cycles, c)
		}
	}
	if len(cycles) == 0 {
		return nil, nil
	}
	sort.Slice(cycles, func(i, j int) bool {
		if cycles[i].NetRate != cycles[j].NetRate {
			return cycles[i].NetRate > cycles[j].NetRate
		}
		return len(cycles[i].Pools) < len(cycles[j].Pools)
	})

	now := time.Now().UTC()
	out := make([]*domain.ArbOpportunity, 0, len(cycles))
	for _, c := range cycles {
		opp := &domain.ArbOpportunity{
			Coins:      c.Coins,
			Pools:      c.Pools,
			GrossRate:  decimal.NewFromFloat(c.GrossRate).Round(12).String(),
			NetRate:    decimal.NewFromFloat(c.NetRate).Round(12).String(),
			ProfitBps:  int64(math.Round((c.NetRate - 1) * 10_000)),
			DetectedAt: now,
		}
		out = append(out, opp)
		if e.metrics != nil {
			e.metrics.OpportunitiesDetected.Inc()
		}
		e.logger.Printf("Arbitrage cycle %v net rate %s (%d bps)", opp.Coins, opp.NetRate, opp.ProfitBps)
	}
	return out, nil
}
