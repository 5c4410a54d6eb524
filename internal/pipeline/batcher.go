package pipeline

import (
	"context"
	"sync"
	"time"

	"medialib/internal/logging"
	"medialib/internal/syncclient"
)

// flushAge caps how long a partial batch waits before upload, so slow
// walks still deliver records promptly.
const flushAge = 2 * time.Second

// Batcher accumulates records and posts them when a batch fills or goes
// stale. Post failures are absorbed by the client's outbox, so Add only
// fails when even queueing locally is impossible.
type Batcher struct {
	client  *syncclient.Client
	size    int
	maxAge  time.Duration
	useGzip bool

	mu       sync.Mutex
	pending  []syncclient.FileRecord
	lastPost time.Time
	uploaded int
	batches  int
}

// NewBatcher creates a batcher that flushes at the given batch size.
func NewBatcher(client *syncclient.Client, size int, useGzip bool) *Batcher {
	if size < 1 {
		size = 1
	}
	return &Batcher{
		client:   client,
		size:     size,
		maxAge:   flushAge,
		useGzip:  useGzip,
		lastPost: time.Now(),
	}
}

// Add appends a record and flushes if the batch is full or stale.
func (b *Batcher) Add(ctx context.Context, rec syncclient.FileRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, rec)
	if len(b.pending) >= b.size || time.Since(b.lastPost) >= b.maxAge {
		return b.flushLocked(ctx)
	}
	return nil
}

// Flush posts any pending records.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil
	}
	return b.flushLocked(ctx)
}

func (b *Batcher) flushLocked(ctx context.Context) error {
	count := len(b.pending)
	processed, err := b.client.PostBatch(ctx, b.pending, b.useGzip)
	b.pending = b.pending[:0]
	b.lastPost = time.Now()
	if err != nil {
		return err
	}

	b.batches++
	b.uploaded += processed
	logging.Info("posted batch (%d items), total uploaded: %d", count, b.uploaded)
	return nil
}

// Uploaded returns the number of records the server acknowledged.
func (b *Batcher) Uploaded() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uploaded
}

// Batches returns the number of batches posted so far.
func (b *Batcher) Batches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batches
}

// Pending returns the number of records waiting for the next flush.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
