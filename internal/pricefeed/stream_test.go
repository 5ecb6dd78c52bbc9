package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sui-mev-indexer/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func feedMessage(id, price, ema string, expo int32, publishTime int64) streamMessage {
	return streamMessage{
		Type: "price_update",
		PriceFeed: &priceFeed{
			ID:       id,
			Price:    priceValue{Price: price, Expo: expo, PublishTime: publishTime},
			EmaPrice: priceValue{Price: ema, Expo: expo, PublishTime: publishTime},
		},
	}
}

func TestStreamSubscribesAndDispatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal subscribe: %v", err)
			return
		}
		if req.Type != "subscribe" || len(req.IDs) != 2 || req.IDs[0] != "feed1" {
			t.Errorf("unexpected subscribe request: %+v", req)
			return
		}

		conn.WriteJSON(feedMessage("feed1", "352000000", "351500000", -8, 1_755_900_000))
		conn.WriteJSON(streamMessage{Type: "response"}) // ack noise, ignored
		conn.WriteJSON(feedMessage("feed2", "99", "98", -2, 1_755_900_001))

		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var mu sync.Mutex
	var updates []*domain.PriceUpdated

	stream := NewStream(StreamOptions{
		Endpoint: "ws" + strings.TrimPrefix(server.URL, "http"),
		FeedIDs:  []string{"feed1", "feed2"},
		Handler: func(_ context.Context, u *domain.PriceUpdated) error {
			mu.Lock()
			updates = append(updates, u)
			if len(updates) == 2 {
				cancel()
			}
			mu.Unlock()
			return nil
		},
	})

	if err := stream.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v, want context.Canceled", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	first := updates[0]
	if first.FeedID != "feed1" || first.Price != "352000000" || first.EmaPrice != "351500000" {
		t.Errorf("first update = %+v", first)
	}
	if first.Source != domain.OraclePyth {
		t.Errorf("source = %s, want pyth", first.Source)
	}
	if first.Decimals != 8 {
		t.Errorf("decimals = %d, want 8", first.Decimals)
	}
	if first.ObservedAt.Unix() != 1_755_900_000 {
		t.Errorf("observed at = %v", first.ObservedAt)
	}
}

func TestStreamReconnects(t *testing.T) {
	var connections atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connections.Add(1)

		if _, _, err := conn.ReadMessage(); err != nil { // subscribe
			conn.Close()
			return
		}
		if n == 1 {
			// Drop the first connection immediately after subscribe.
			conn.Close()
			return
		}
		defer conn.Close()
		conn.WriteJSON(feedMessage("feed1", "100", "100", -8, 1_755_900_000))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream := NewStream(StreamOptions{
		Endpoint: "ws" + strings.TrimPrefix(server.URL, "http"),
		FeedIDs:  []string{"feed1"},
		Config: &StreamConfig{
			ReconnectDelay:    10 * time.Millisecond,
			MaxReconnectDelay: 50 * time.Millisecond,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      time.Second,
		},
		Handler: func(_ context.Context, _ *domain.PriceUpdated) error {
			cancel()
			return nil
		},
	})

	if err := stream.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run ended with %v, want context.Canceled", err)
	}
	if connections.Load() < 2 {
		t.Errorf("connections = %d, want at least 2 (reconnect)", connections.Load())
	}
}

func TestMalformedUpdateIsSkipped(t *testing.T) {
	f := &priceFeed{ID: "feed1", Price: priceValue{Price: "not-a-number"}}
	if _, err := f.toPriceUpdated(); err == nil {
		t.Error("malformed price accepted")
	}
	f = &priceFeed{Price: priceValue{Price: "1"}}
	if _, err := f.toPriceUpdated(); err == nil {
		t.Error("missing feed id accepted")
	}
}
