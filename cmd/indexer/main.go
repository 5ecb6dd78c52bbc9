package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"sui-mev-indexer/internal/arb"
	"sui-mev-indexer/internal/decode"
	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/feed"
	"sui-mev-indexer/internal/observability"
	"sui-mev-indexer/internal/pipeline"
	"sui-mev-indexer/internal/pricefeed"
	"sui-mev-indexer/internal/risk"
	"sui-mev-indexer/internal/storage"
	chstore "sui-mev-indexer/internal/storage/clickhouse"
	"sui-mev-indexer/internal/storage/memory"
	"sui-mev-indexer/internal/storage/migrations"
	pgstore "sui-mev-indexer/internal/storage/postgres"
	"sui-mev-indexer/internal/suirpc"
)

func main() {
	// Parse flags
	rpcEndpoint := flag.String("rpc-endpoint", "", "Sui fullnode JSON-RPC endpoint")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for price history (empty to disable)")
	redisAddr := flag.String("redis-addr", "", "Redis address for the executor feed (empty to disable)")
	priceEndpoint := flag.String("price-ws-endpoint", "", "Oracle price stream WebSocket endpoint (empty to disable)")
	priceFeeds := flag.String("price-feeds", "", "Comma-separated hex feed IDs to subscribe to")
	startSeq := flag.Uint64("start-seq", 0, "Checkpoint sequence to start from (0 = resume or chain tip)")
	workers := flag.Int("workers", 4, "Parallel checkpoint fetch workers")
	bufferSize := flag.Int("buffer-size", 64, "Max checkpoints in flight ahead of the commit watermark")
	platforms := flag.String("platforms", "", "Comma-separated lending platforms to evaluate (default: navi, suilend, scallop)")
	snapshotEvery := flag.Int64("snapshot-every", 1000, "Checkpoints per persisted metric snapshot")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[indexer] ", log.LstdFlags|log.Lshortfile)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err := run(ctx, logger, config{
		rpcEndpoint:   *rpcEndpoint,
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
		redisAddr:     *redisAddr,
		priceEndpoint: *priceEndpoint,
		priceFeeds:    splitList(*priceFeeds),
		startSeq:      *startSeq,
		workers:       *workers,
		bufferSize:    *bufferSize,
		platforms:     splitList(*platforms),
		snapshotEvery: *snapshotEvery,
		useMemory:     *useMemory,
	})

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

type config struct {
	rpcEndpoint   string
	postgresDSN   string
	clickhouseDSN string
	redisAddr     string
	priceEndpoint string
	priceFeeds    []string
	startSeq      uint64
	workers       int
	bufferSize    int
	platforms     []string
	snapshotEvery int64
	useMemory     bool
}

// run wires the stores, engines and feeds together and drives the
// checkpoint pipeline until the context is cancelled.
func run(ctx context.Context, logger *log.Logger, cfg config) error {
	if cfg.rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required")
	}
	if !cfg.useMemory && cfg.postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	client := suirpc.NewHTTPClient(cfg.rpcEndpoint)
	source := suirpc.NewSource(client)

	// Create stores (use interfaces)
	var poolStore storage.PoolStore = memory.NewPoolStore()
	var poolTickStore storage.PoolTickStore = memory.NewPoolTickStore()
	var coinStore storage.CoinStore = memory.NewCoinStore()
	var marketStore storage.LendingMarketStore = memory.NewLendingMarketStore()
	var borrowerStore storage.BorrowerStore = memory.NewBorrowerStore()
	var depositStore storage.PositionStore = memory.NewPositionStore()
	var borrowStore storage.PositionStore = memory.NewPositionStore()
	var liqEventStore storage.LiquidationEventStore = memory.NewLiquidationEventStore()
	var orderStore storage.LiquidationOrderStore = memory.NewLiquidationOrderStore()
	var sharedStore storage.SharedObjectStore = memory.NewSharedObjectStore()
	var metricStore storage.MetricStore = memory.NewMetricStore()
	var priceTickStore storage.PriceTickStore = memory.NewPriceTickStore()
	var watermarkStore storage.WatermarkStore = memory.NewWatermarkStore()

	if !cfg.useMemory {
		pool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}

		poolStore = pgstore.NewPoolStore(pool)
		poolTickStore = pgstore.NewPoolTickStore(pool)
		coinStore = pgstore.NewCoinStore(pool)
		marketStore = pgstore.NewLendingMarketStore(pool)
		borrowerStore = pgstore.NewBorrowerStore(pool)
		depositStore = pgstore.NewDepositStore(pool)
		borrowStore = pgstore.NewBorrowStore(pool)
		liqEventStore = pgstore.NewLiquidationEventStore(pool)
		orderStore = pgstore.NewLiquidationOrderStore(pool)
		sharedStore = pgstore.NewSharedObjectStore(pool)
		metricStore = pgstore.NewMetricStore(pool)
		watermarkStore = pgstore.NewWatermarkStore(pool)
	}

	if cfg.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()
		priceTickStore = chstore.NewPriceTickStore(conn)
	}

	metrics := observability.NewMetrics("")

	// Executor feed over redis streams (optional)
	var publisher *feed.Publisher
	var consumer *feed.Consumer
	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}

		publisher = feed.NewPublisher(feed.PublisherOptions{
			Client:  rdb,
			Metrics: metrics,
			Logger:  logger,
		})
		consumer = feed.NewConsumer(feed.ConsumerOptions{
			Client:                rdb,
			LiquidationOrderStore: orderStore,
			Metrics:               metrics,
			Logger:                logger,
		})
	}

	var onOrder func(context.Context, *domain.LiquidationOrder) error
	if publisher != nil {
		onOrder = publisher.PublishOrder
	}

	riskEngine := risk.NewEngine(risk.EngineOptions{
		LendingMarketStore:    marketStore,
		BorrowerStore:         borrowerStore,
		DepositStore:          depositStore,
		BorrowStore:           borrowStore,
		CoinStore:             coinStore,
		LiquidationOrderStore: orderStore,
		Platforms:             cfg.platforms,
		OnOrder:               onOrder,
		Metrics:               metrics,
		Logger:                logger,
	})
	arbEngine := arb.NewEngine(arb.EngineOptions{
		PoolStore: poolStore,
		Metrics:   metrics,
		Logger:    logger,
	})

	applier := pipeline.NewApplier(pipeline.ApplierOptions{
		PoolStore:             poolStore,
		PoolTickStore:         poolTickStore,
		CoinStore:             coinStore,
		LendingMarketStore:    marketStore,
		BorrowerStore:         borrowerStore,
		DepositStore:          depositStore,
		BorrowStore:           borrowStore,
		LiquidationEventStore: liqEventStore,
		PriceTickStore:        priceTickStore,
		WatermarkStore:        watermarkStore,
		RiskSink:              riskEngine,
		ArbSink:               arbEngine,
		Logger:                logger,
	})

	if err := riskEngine.WarmUp(ctx); err != nil {
		return fmt.Errorf("warm up risk engine: %w", err)
	}
	if err := arbEngine.WarmUp(ctx); err != nil {
		return fmt.Errorf("warm up arbitrage engine: %w", err)
	}

	recorder := pipeline.NewRecorder(pipeline.RecorderOptions{
		Store:         metricStore,
		SnapshotEvery: cfg.snapshotEvery,
		Logger:        logger,
	})
	if err := recorder.Restore(ctx); err != nil {
		return err
	}

	start, err := resolveStartSeq(ctx, source, watermarkStore, recorder, cfg.startSeq)
	if err != nil {
		return err
	}

	// Execution write-backs from the executor
	if consumer != nil {
		go func() {
			if err := consumer.Run(ctx); err != nil && err != context.Canceled {
				logger.Printf("Execution consumer stopped: %v", err)
			}
		}()
	}

	// Out-of-band oracle prices
	if cfg.priceEndpoint != "" {
		stream := pricefeed.NewStream(pricefeed.StreamOptions{
			Endpoint: cfg.priceEndpoint,
			FeedIDs:  cfg.priceFeeds,
			Handler:  applier.ApplyPriceUpdate,
			Metrics:  metrics,
			Logger:   logger,
		})
		go func() {
			if err := stream.Run(ctx); err != nil && err != context.Canceled {
				logger.Printf("Price stream stopped: %v", err)
			}
		}()
	}

	runner := pipeline.NewRunner(pipeline.RunnerOptions{
		Source:   source,
		Registry: decode.NewRegistry(),
		Committer: &engineCommitter{
			applier:   applier,
			risk:      riskEngine,
			arb:       arbEngine,
			publisher: publisher,
			client:    client,
			shared:    sharedStore,
			logger:    logger,
		},
		Recorder:   recorder,
		Metrics:    metrics,
		StartSeq:   start,
		Workers:    cfg.workers,
		BufferSize: cfg.bufferSize,
		Logger:     logger,
	})

	runErr := runner.Run(ctx)

	// Persist the final counters even when the run context is gone.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := recorder.Flush(flushCtx); err != nil {
		logger.Printf("Error flushing metrics: %v", err)
	}

	return runErr
}

// resolveStartSeq picks the first sequence to process: the explicit flag,
// the checkpoint after the committed watermark, the checkpoint after the
// last persisted snapshot, or the chain tip for a fresh database. The
// watermark outranks the snapshot because snapshots are written only every
// snapshot-every checkpoints.
func resolveStartSeq(ctx context.Context, source *suirpc.Source, watermarks storage.WatermarkStore, recorder *pipeline.Recorder, flagSeq uint64) (uint64, error) {
	if flagSeq > 0 {
		return flagSeq, nil
	}
	committed, err := watermarks.Get(ctx)
	switch {
	case err == nil:
		return committed + 1, nil
	case !errors.Is(err, storage.ErrNotFound):
		return 0, fmt.Errorf("resolve start sequence: %w", err)
	}
	if snap := recorder.Snapshot(); snap.LatestSeqNumber > 0 {
		return uint64(snap.LatestSeqNumber) + 1, nil
	}
	latest, err := source.LatestSequence(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve start sequence: %w", err)
	}
	return latest, nil
}

// engineCommitter runs the risk and arbitrage engines over the dirty
// sets each committed checkpoint left behind, publishes what they found
// and resolves shared-object metadata for newly created pools.
type engineCommitter struct {
	applier   *pipeline.Applier
	risk      *risk.Engine
	arb       *arb.Engine
	publisher *feed.Publisher
	client    *suirpc.HTTPClient
	shared    storage.SharedObjectStore
	logger    *log.Logger
}

func (c *engineCommitter) CommitCheckpoint(ctx context.Context, cp *domain.Checkpoint, items []pipeline.DecodedItem) error {
	if err := c.applier.CommitCheckpoint(ctx, cp, items); err != nil {
		return err
	}

	c.resolveSharedObjects(ctx, items)

	if err := c.risk.ProcessDirty(ctx); err != nil {
		return fmt.Errorf("checkpoint %d: risk: %w", cp.Sequence, err)
	}

	opps, err := c.arb.Process(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint %d: arbitrage: %w", cp.Sequence, err)
	}
	if c.publisher != nil {
		for _, opp := range opps {
			if err := c.publisher.PublishOpportunity(ctx, opp); err != nil {
				c.logger.Printf("Error publishing opportunity: %v", err)
			}
		}
	}
	return nil
}

// resolveSharedObjects records the initial shared version of every pool
// created in this checkpoint. The executor needs it to reference the
// pool in transactions; a lookup failure is retried on the next restart
// rather than halting the pipeline.
func (c *engineCommitter) resolveSharedObjects(ctx context.Context, items []pipeline.DecodedItem) {
	for _, item := range items {
		created, ok := item.Event.(*domain.PoolCreated)
		if !ok {
			continue
		}
		version, err := c.client.GetInitialSharedVersion(ctx, created.Pool.Address)
		if err != nil {
			c.logger.Printf("Error resolving shared version of pool %s: %v", created.Pool.Address, err)
			continue
		}
		obj := &domain.SharedObject{ObjectID: created.Pool.Address, InitialSharedVersion: version}
		if err := c.shared.Upsert(ctx, obj); err != nil {
			c.logger.Printf("Error storing shared object %s: %v", obj.ObjectID, err)
		}
	}
}

// splitList splits a comma-separated flag into trimmed non-empty items.
func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}
	return list
}
