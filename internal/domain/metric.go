package domain

// MetricSnapshot is one run-scoped pipeline metrics row, upserted on
// latest_seq_number so a replayed interval overwrites rather than
// duplicates. Times are milliseconds.
type MetricSnapshot struct {
	LatestSeqNumber      int64
	TotalCheckpoints     int64 // checkpoints seen
	ProcessedCheckpoints int64 // checkpoints that carried events
	MaxProcessingTime    float64
	MinProcessingTime    float64
	AvgProcessingTime    float64
	MaxLagging           float64
	MinLagging           float64
	AvgLagging           float64
}
