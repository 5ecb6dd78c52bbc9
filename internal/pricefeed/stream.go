// Package pricefeed subscribes to an oracle price stream and feeds the
// ticks into the same path as on-chain price events.
package pricefeed

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/observability"
)

// Handler receives one parsed price update.
type Handler func(ctx context.Context, update *domain.PriceUpdated) error

// StreamConfig configures stream behavior.
type StreamConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns the default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Stream maintains a websocket subscription for a set of price feeds,
// reconnecting with exponential backoff when the connection drops.
type Stream struct {
	endpoint string
	feedIDs  []string
	handler  Handler
	config   StreamConfig
	metrics  *observability.Metrics
	logger   *log.Logger
}

// StreamOptions contains configuration for creating a Stream.
type StreamOptions struct {
	Endpoint string   // websocket URL of the price service
	FeedIDs  []string // hex feed identifiers to subscribe to
	Handler  Handler
	Config   *StreamConfig
	Metrics  *observability.Metrics
	Logger   *log.Logger
}

// NewStream creates a new price stream.
func NewStream(opts StreamOptions) *Stream {
	config := DefaultStreamConfig()
	if opts.Config != nil {
		config = *opts.Config
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Stream{
		endpoint: opts.Endpoint,
		feedIDs:  opts.FeedIDs,
		handler:  opts.Handler,
		config:   config,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// Run connects, subscribes and dispatches updates until the context is
// cancelled. Connection drops are never fatal.
func (s *Stream) Run(ctx context.Context) error {
	delay := s.config.ReconnectDelay

	for {
		delivered, err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			delay = s.config.ReconnectDelay
		}
		if s.metrics != nil {
			s.metrics.PriceStreamReconnects.Inc()
		}
		s.logger.Printf("Price stream disconnected, reconnecting in %v: %v", delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.config.MaxReconnectDelay {
			delay = s.config.MaxReconnectDelay
		}
	}
}

// session runs one connection until it fails. Returns whether at least
// one update was delivered, to reset the reconnect backoff.
func (s *Stream) session(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(subscribeRequest{Type: "subscribe", IDs: s.feedIDs}); err != nil {
		return false, fmt.Errorf("write subscribe: %w", err)
	}

	delivered := false
	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return delivered, err
		}
		if msg.Type != "price_update" || msg.PriceFeed == nil {
			continue
		}

		update, err := msg.PriceFeed.toPriceUpdated()
		if err != nil {
			s.logger.Printf("Malformed price update for feed %s: %v", msg.PriceFeed.ID, err)
			continue
		}
		if err := s.handler(ctx, update); err != nil {
			s.logger.Printf("Error handling price update for feed %s: %v", update.FeedID, err)
			continue
		}
		delivered = true
	}
}

// Stream message types, following the Pyth price service protocol.

type subscribeRequest struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

type streamMessage struct {
	Type      string     `json:"type"`
	PriceFeed *priceFeed `json:"price_feed"`
}

type priceFeed struct {
	ID       string     `json:"id"`
	Price    priceValue `json:"price"`
	EmaPrice priceValue `json:"ema_price"`
}

type priceValue struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

func (f *priceFeed) toPriceUpdated() (*domain.PriceUpdated, error) {
	if f.ID == "" {
		return nil, fmt.Errorf("missing feed id")
	}
	if _, err := strconv.ParseInt(f.Price.Price, 10, 64); err != nil {
		return nil, fmt.Errorf("price %q: %w", f.Price.Price, err)
	}

	return &domain.PriceUpdated{
		FeedID:     f.ID,
		Source:     domain.OraclePyth,
		Price:      f.Price.Price,
		EmaPrice:   f.EmaPrice.Price,
		Decimals:   -f.Price.Expo,
		ObservedAt: time.Unix(f.Price.PublishTime, 0).UTC(),
	}, nil
}
