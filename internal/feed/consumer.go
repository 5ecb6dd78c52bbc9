package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/observability"
	"sui-mev-indexer/internal/storage"
)

// Consumer reads execution results written by the external executor and
// records them on the corresponding liquidation orders. This write-back
// is the only mutation accepted from outside after order creation.
type Consumer struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
	orders   storage.LiquidationOrderStore
	metrics  *observability.Metrics
	logger   *log.Logger
}

// ConsumerOptions contains configuration for creating a Consumer.
type ConsumerOptions struct {
	Client                *redis.Client
	LiquidationOrderStore storage.LiquidationOrderStore
	Stream                string        // Default: liq:executions
	Group                 string        // Default: indexer
	Consumer              string        // Default: indexer-1
	Block                 time.Duration // Default: 1s poll block
	Metrics               *observability.Metrics
	Logger                *log.Logger
}

// NewConsumer creates a new Consumer.
func NewConsumer(opts ConsumerOptions) *Consumer {
	stream := opts.Stream
	if stream == "" {
		stream = ExecutionStream
	}
	group := opts.Group
	if group == "" {
		group = "indexer"
	}
	consumer := opts.Consumer
	if consumer == "" {
		consumer = "indexer-1"
	}
	block := opts.Block
	if block == 0 {
		block = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Consumer{
		rdb:      opts.Client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    block,
		orders:   opts.LiquidationOrderStore,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// Run consumes execution results until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    100,
			Block:    c.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Printf("Error reading execution stream: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		for _, s := range streams {
			for _, m := range s.Messages {
				if err := c.handle(ctx, m); err != nil {
					return err
				}
			}
		}
	}
}

// handle records one execution result. Malformed messages and write-backs
// for unknown or closed orders are acknowledged and dropped; transient
// store errors leave the message pending for redelivery.
func (c *Consumer) handle(ctx context.Context, m redis.XMessage) error {
	result, err := parseExecution(m.Values)
	if err != nil {
		c.logger.Printf("Dropping malformed execution message %s: %v", m.ID, err)
		return c.ack(ctx, m.ID)
	}

	err = c.orders.RecordExecution(ctx, result)
	switch {
	case err == nil:
		if c.metrics != nil {
			c.metrics.ExecutionResultsSeen.WithLabelValues(statusLabel(result.Status)).Inc()
			c.metrics.OpenOrders.Dec()
		}
		c.logger.Printf("Recorded execution for order %d: %s", result.OrderID, statusLabel(result.Status))
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidInput):
		c.logger.Printf("Dropping execution for order %d: %v", result.OrderID, err)
	default:
		return fmt.Errorf("record execution for order %d: %w", result.OrderID, err)
	}
	return c.ack(ctx, m.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) error {
	if err := c.rdb.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	return nil
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func parseExecution(values map[string]interface{}) (*domain.ExecutionResult, error) {
	orderID, err := intField(values, "order_id")
	if err != nil {
		return nil, err
	}
	status, err := intField(values, "status")
	if err != nil {
		return nil, err
	}
	switch domain.OrderStatus(status) {
	case domain.OrderExecuted, domain.OrderFailed, domain.OrderCancelled:
	default:
		return nil, fmt.Errorf("status %d is not a terminal order status", status)
	}

	result := &domain.ExecutionResult{
		OrderID:    orderID,
		Status:     domain.OrderStatus(status),
		TxDigest:   strField(values, "tx_digest"),
		BotAddress: strField(values, "bot_address"),
		Error:      strField(values, "error"),
	}
	if checkpoint, err := intField(values, "checkpoint"); err == nil {
		result.Checkpoint = checkpoint
	}
	if finalized, err := intField(values, "finalized_at"); err == nil {
		result.FinalizedAt = time.UnixMilli(finalized).UTC()
	} else {
		result.FinalizedAt = time.Now().UTC()
	}
	return result, nil
}

func intField(values map[string]interface{}, key string) (int64, error) {
	raw, ok := values[key].(string)
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return v, nil
}

func strField(values map[string]interface{}, key string) string {
	s, _ := values[key].(string)
	return s
}

func statusLabel(s domain.OrderStatus) string {
	switch s {
	case domain.OrderExecuted:
		return "executed"
	case domain.OrderFailed:
		return "failed"
	case domain.OrderCancelled:
		return "cancelled"
	}
	return "unknown"
}
