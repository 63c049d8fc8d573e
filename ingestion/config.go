package ingestion

import (
	"runtime"
	"time"
)

// Config tunes the ingestion pipeline. Zero values fall back to defaults in
// Normalize, so callers only set what they need to change.
type Config struct {
	// Workers is the worker pool size. Each worker processes one document
	// at a time. Default is runtime.NumCPU() / 2, minimum 1.
	Workers int

	// PollInterval is how often the pipeline polls the queue for claimable
	// jobs. Default 1s.
	PollInterval time.Duration

	// JobLease is the visibility window granted on lease and restored on
	// every renewal. A worker renews after each batch, so the window only
	// needs to outlast one batch plus its retries. Default 2m.
	JobLease time.Duration

	// MaxJobAttempts caps how many times a job may be leased before its
	// document is marked failed. Default 2.
	MaxJobAttempts int

	// MaxBatchRetries is how many times one embedding batch is retried
	// before the attempt fails. Default 3.
	MaxBatchRetries int

	// RetryInitialInterval seeds the exponential backoff between batch
	// retries. Default 500ms.
	RetryInitialInterval time.Duration

	// LargeDocThreshold is the chunk count above which a document uses the
	// smaller batch size. Default 100.
	LargeDocThreshold int

	// SmallDocBatchSize is the embedding batch size for documents at or
	// under the threshold. Default 50.
	SmallDocBatchSize int

	// LargeDocBatchSize is the embedding batch size for documents over the
	// threshold. Default 25.
	LargeDocBatchSize int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{}.Normalize()
}

// Normalize fills zero fields with defaults and returns the result.
func (c Config) Normalize() Config {
	if c.Workers < 1 {
		c.Workers = runtime.NumCPU() / 2
		if c.Workers < 1 {
			c.Workers = 1
		}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	// Negative leases expire immediately; tests use them to exercise
	// reclaim paths without waiting.
	if c.JobLease == 0 {
		c.JobLease = 2 * time.Minute
	}
	if c.MaxJobAttempts < 1 {
		c.MaxJobAttempts = 2
	}
	if c.MaxBatchRetries <= 0 {
		c.MaxBatchRetries = 3
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = 500 * time.Millisecond
	}
	if c.LargeDocThreshold <= 0 {
		c.LargeDocThreshold = 100
	}
	if c.SmallDocBatchSize <= 0 {
		c.SmallDocBatchSize = 50
	}
	if c.LargeDocBatchSize <= 0 {
		c.LargeDocBatchSize = 25
	}
	return c
}

// BatchSize returns the embedding batch size for a document with the given
// chunk count. Large documents use smaller batches to bound the cost of a
// lost batch and keep provider requests modest.
func (c Config) BatchSize(chunkCount int) int {
	if chunkCount > c.LargeDocThreshold {
		return c.LargeDocBatchSize
	}
	return c.SmallDocBatchSize
}
