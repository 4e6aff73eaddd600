package stats

// Provider is implemented by components that expose statistics
type Provider interface {
	// GetStats returns all statistics
	GetStats() map[string]interface{}

	// GetStatsFiltered returns the statistics whose name starts with prefix
	GetStatsFiltered(prefix string) map[string]interface{}
}

// Collector records engine activity
type Collector interface {
	Provider

	// TrackOperation records a single operation
	TrackOperation(op OperationType)

	// TrackOperationWithLatency records an operation with its latency
	TrackOperationWithLatency(op OperationType, latencyNs uint64)

	// TrackError increments the counter for the specified error type
	TrackError(errorType string)

	// TrackBytes adds to the read or write byte counter
	TrackBytes(isWrite bool, bytes uint64)

	// TrackMemTableSize records the current total memtable size
	TrackMemTableSize(size uint64)

	// TrackRotation increments the memtable rotation counter
	TrackRotation()

	// TrackRun records a sorted run built from the memtables
	TrackRun(blocks, entries int, bytes uint64)
}

var _ Collector = (*AtomicCollector)(nil)
