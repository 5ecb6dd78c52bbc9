package suirpc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"sui-mev-indexer/internal/domain"
	"sui-mev-indexer/internal/pipeline"
)

// Source adapts the fullnode client to the pipeline's checkpoint source
// contract. A checkpoint the node has not produced yet maps to
// pipeline.ErrNotYetAvailable; everything else is left for the
// pipeline's retry policy.
type Source struct {
	client *HTTPClient
}

// NewSource creates a checkpoint source on top of the client.
func NewSource(client *HTTPClient) *Source {
	return &Source{client: client}
}

// Compile-time interface check.
var _ pipeline.CheckpointSource = (*Source)(nil)

// Fetch retrieves one checkpoint and its transactions' events.
func (s *Source) Fetch(ctx context.Context, sequence uint64) (*domain.Checkpoint, error) {
	raw, err := s.client.GetCheckpoint(ctx, sequence)
	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) && rpcErr.notFound() {
			return nil, pipeline.ErrNotYetAvailable
		}
		return nil, err
	}

	seq, err := strconv.ParseUint(raw.SequenceNumber, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %d: parse sequence %q: %w", sequence, raw.SequenceNumber, err)
	}
	timestampMS, err := strconv.ParseInt(raw.TimestampMS, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %d: parse timestamp %q: %w", sequence, raw.TimestampMS, err)
	}
	for _, digest := range raw.Transactions {
		if err := validateDigest(digest); err != nil {
			return nil, fmt.Errorf("checkpoint %d: %w", sequence, err)
		}
	}

	cp := &domain.Checkpoint{
		Sequence:    seq,
		TimestampMS: timestampMS,
		ReceivedAt:  time.Now().UTC(),
	}
	if len(raw.Transactions) == 0 {
		return cp, nil
	}

	blocks, err := s.client.MultiGetTransactionBlocks(ctx, raw.Transactions)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %d: %w", sequence, err)
	}

	for _, block := range blocks {
		tx := domain.Transaction{Digest: block.Digest}
		for _, ev := range block.Events {
			raw, err := ToRawEvent(block.Digest, ev)
			if err != nil {
				return nil, fmt.Errorf("checkpoint %d tx %s: %w", sequence, block.Digest, err)
			}
			tx.Events = append(tx.Events, raw)
		}
		cp.Transactions = append(cp.Transactions, tx)
	}
	return cp, nil
}

// LatestSequence returns the highest finalized checkpoint sequence.
func (s *Source) LatestSequence(ctx context.Context) (uint64, error) {
	return s.client.GetLatestCheckpointSequenceNumber(ctx)
}

// ToRawEvent converts one RPC event into the domain's raw shape.
func ToRawEvent(txDigest string, ev Event) (domain.RawEvent, error) {
	pkg, module, name, err := parseEventType(ev.Type)
	if err != nil {
		return domain.RawEvent{}, err
	}
	payload, err := base64.StdEncoding.DecodeString(ev.BCS)
	if err != nil {
		return domain.RawEvent{}, fmt.Errorf("event %s payload: %w", ev.Type, err)
	}

	return domain.RawEvent{
		Package:   pkg,
		Module:    module,
		EventType: name,
		Sender:    ev.Sender,
		Payload:   payload,
		TxDigest:  txDigest,
	}, nil
}

// parseEventType splits a Move event type tag into its dispatch parts,
// dropping generic type parameters.
func parseEventType(t string) (pkg, module, name string, err error) {
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	parts := strings.Split(t, "::")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("malformed event type %q", t)
	}
	return parts[0], parts[1], parts[2], nil
}

// validateDigest checks that a transaction digest is 32 base58 bytes.
func validateDigest(digest string) error {
	raw, err := base58.Decode(digest)
	if err != nil {
		return fmt.Errorf("invalid digest %q: %w", digest, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("invalid digest %q: %d bytes, want 32", digest, len(raw))
	}
	return nil
}
