package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"sui-mev-indexer/internal/decode"
	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/suirpc"
)

// decodedLine is the JSON shape of one printed event.
type decodedLine struct {
	TxDigest string              `json:"tx_digest"`
	Kind     string              `json:"kind"`
	Event    domain.DecodedEvent `json:"event"`
}

func main() {
	// Parse flags
	rpcEndpoint := flag.String("rpc-endpoint", "", "Sui fullnode JSON-RPC endpoint")
	seq := flag.Uint64("seq", 0, "Checkpoint sequence number to inspect")
	showUnrecognized := flag.Bool("show-unrecognized", false, "Include events no decoder handles")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[inspect] ", log.LstdFlags)

	if err := run(context.Background(), logger, *rpcEndpoint, *seq, *showUnrecognized); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

// run fetches one checkpoint and prints its decoded events as JSON lines
// on stdout, one per event.
func run(ctx context.Context, logger *log.Logger, rpcEndpoint string, seq uint64, showUnrecognized bool) error {
	if rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required")
	}
	if seq == 0 {
		return fmt.Errorf("--seq is required")
	}

	source := suirpc.NewSource(suirpc.NewHTTPClient(rpcEndpoint))
	registry := decode.NewRegistry()

	cp, err := source.Fetch(ctx, seq)
	if err != nil {
		return fmt.Errorf("fetch checkpoint %d: %w", seq, err)
	}
	logger.Printf("Checkpoint %d: %d transactions", cp.Sequence, len(cp.Transactions))

	enc := json.NewEncoder(os.Stdout)
	decoded, skipped := 0, 0

	for _, tx := range cp.Transactions {
		for _, raw := range tx.Events {
			event := registry.Decode(raw)
			if _, unrecognized := event.(*domain.Unrecognized); unrecognized && !showUnrecognized {
				skipped++
				continue
			}
			decoded++
			if err := enc.Encode(decodedLine{
				TxDigest: tx.Digest,
				Kind:     string(event.Kind()),
				Event:    event,
			}); err != nil {
				return fmt.Errorf("encode event: %w", err)
			}
		}
	}

	logger.Printf("Printed %d events, skipped %d unrecognized", decoded, skipped)
	return nil
}
