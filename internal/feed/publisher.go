// Package feed connects the indexer to the external executor over redis
// streams: liquidation orders and arbitrage opportunities go out,
// execution results come back.
package feed

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/observability"
)

// Default stream keys.
const (
	OrderStream       = "liq:orders"
	OpportunityStream = "arb:opportunities"
	ExecutionStream   = "liq:executions"
)

// Publisher appends liquidation orders and arbitrage opportunities to
// redis streams for the executor.
type Publisher struct {
	rdb         *redis.Client
	orderStream string
	arbStream   string
	metrics     *observability.Metrics
	logger      *log.Logger
}

// PublisherOptions contains configuration for creating a Publisher.
type PublisherOptions struct {
	Client            *redis.Client
	OrderStream       string // Default: liq:orders
	OpportunityStream string // Default: arb:opportunities
	Metrics           *observability.Metrics
	Logger            *log.Logger
}

// NewPublisher creates a new Publisher.
func NewPublisher(opts PublisherOptions) *Publisher {
	orderStream := opts.OrderStream
	if orderStream == "" {
		orderStream = OrderStream
	}
	arbStream := opts.OpportunityStream
	if arbStream == "" {
		arbStream = OpportunityStream
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Publisher{
		rdb:         opts.Client,
		orderStream: orderStream,
		arbStream:   arbStream,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// PublishOrder appends one liquidation order to the order stream.
func (p *Publisher) PublishOrder(ctx context.Context, o *domain.LiquidationOrder) error {
	err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.orderStream,
		Values: map[string]interface{}{
			"order_id":        o.ID,
			"platform":        o.Platform,
			"borrower":        o.Borrower,
			"health_factor":   o.HealthFactor,
			"debt_coin":       o.DebtCoin,
			"collateral_coin": o.CollateralCoin,
			"amount_repay":    o.AmountRepay,
			"amount_usd":      o.AmountUSD,
			"source":          o.Source,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish order %d: %w", o.ID, err)
	}

	if p.metrics != nil {
		p.metrics.OrdersPublished.Inc()
	}
	p.logger.Printf("Published liquidation order %d for %s/%s", o.ID, o.Platform, o.Borrower)
	return nil
}

// PublishOpportunity appends one arbitrage opportunity to the
// opportunity stream.
func (p *Publisher) PublishOpportunity(ctx context.Context, opp *domain.ArbOpportunity) error {
	err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.arbStream,
		Values: map[string]interface{}{
			"coins":       strings.Join(opp.Coins, ","),
			"pools":       strings.Join(opp.Pools, ","),
			"gross_rate":  opp.GrossRate,
			"net_rate":    opp.NetRate,
			"profit_bps":  opp.ProfitBps,
			"detected_at": opp.DetectedAt.UnixMilli(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish opportunity: %w", err)
	}
	return nil
}
