// Package suirpc is an HTTP JSON-RPC client for a Sui fullnode, exposing
// checkpoints as a pipeline source.
package suirpc

// Checkpoint is the raw RPC shape of one checkpoint. The node serializes
// large numbers as decimal strings.
type Checkpoint struct {
	SequenceNumber string   `json:"sequenceNumber"`
	Digest         string   `json:"digest"`
	TimestampMS    string   `json:"timestampMs"`
	Transactions   []string `json:"transactions"` // transaction digests
}

// TransactionBlock is one transaction with its emitted events.
type TransactionBlock struct {
	Digest string  `json:"digest"`
	Events []Event `json:"events"`
}

// Event is one raw Move event.
type Event struct {
	ID                EventID `json:"id"`
	PackageID         string  `json:"packageId"`
	TransactionModule string  `json:"transactionModule"`
	Sender            string  `json:"sender"`
	Type              string  `json:"type"` // 0xpkg::module::Name<...>
	BCS               string  `json:"bcs"`  // base64 payload
}

// EventID locates an event within its transaction.
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}
