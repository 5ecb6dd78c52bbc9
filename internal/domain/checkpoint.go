package domain

import "time"

// Checkpoint is a chain-finalized batch of transactions and their events.
// Immutable once fetched.
type Checkpoint struct {
	Sequence     uint64        // monotonic checkpoint sequence number
	TimestampMS  int64         // chain timestamp in milliseconds
	ReceivedAt   time.Time     // wall-clock receipt time
	Transactions []Transaction // in chain order
}

// Transaction is one transaction inside a checkpoint.
type Transaction struct {
	Digest string     // base58 transaction digest
	Events []RawEvent // in emission order
}

// RawEvent is an undecoded on-chain event as emitted by a Move package.
type RawEvent struct {
	Package   string // emitting package ID (0x-prefixed)
	Module    string // emitting module name
	EventType string // event struct name
	Sender    string // transaction sender address
	Payload   []byte // opaque event payload
	TxDigest  string // owning transaction digest
}

// AllEvents flattens the checkpoint's transactions into a single event list,
// preserving chain order.
func (c *Checkpoint) AllEvents() []RawEvent {
	var events []RawEvent
	for _, tx := range c.Transactions {
		events = append(events, tx.Events...)
	}
	return events
}
