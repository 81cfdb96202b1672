package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions configures batching behavior for the async writer.
type AsyncOptions struct {
	BufferSize     int           // Max events queued in memory before falling back to sync writes
	BatchSize      int           // Target events per batch
	BatchTimeout   time.Duration // Max time a partial batch waits before flushing
	StorageTimeout time.Duration // Per-batch storage timeout
}

// batchWriter provides bulk storage for audit events.
type batchWriter interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// AsyncWriter batches events in a background goroutine to reduce storage I/O.
// It implements the Store half of Storage; wrap it together with the
// underlying storage's Query for a full Storage.
type AsyncWriter struct {
	writer    batchWriter
	eventChan chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	options   AsyncOptions
}

// NewAsyncWriter creates an async writer. The returned close function flushes
// remaining events; always call it during shutdown.
func NewAsyncWriter(bw batchWriter, opts AsyncOptions) (*AsyncWriter, func(context.Context) error) {
	if bw == nil {
		panic("audit: batch writer cannot be nil")
	}

	if opts.BufferSize == 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout == 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout == 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	aw := &AsyncWriter{
		writer:    bw,
		eventChan: make(chan Event, opts.BufferSize),
		done:      make(chan struct{}),
		options:   opts,
	}

	aw.wg.Add(1)
	go aw.worker()

	return aw, aw.Close
}

// Store queues an event for batched writing. When the buffer is full the
// event is written synchronously instead of being dropped: audit completeness
// wins over latency.
func (aw *AsyncWriter) Store(ctx context.Context, event Event) error {
	select {
	case <-aw.done:
		return ErrStorageNotAvailable
	default:
	}

	select {
	case aw.eventChan <- event:
		return nil
	default:
		return aw.writer.StoreBatch(ctx, []Event{event})
	}
}

func (aw *AsyncWriter) worker() {
	defer aw.wg.Done()

	batch := make([]Event, 0, aw.options.BatchSize)
	ticker := time.NewTicker(aw.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Storage writes use a detached context so client cancellations
		// cannot drop already-accepted events.
		ctx, cancel := context.WithTimeout(context.Background(), aw.options.StorageTimeout)
		_ = aw.writer.StoreBatch(ctx, batch)
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case event := <-aw.eventChan:
			batch = append(batch, event)
			if len(batch) >= aw.options.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-aw.done:
			for {
				select {
				case event := <-aw.eventChan:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close drains remaining events. The context bounds the shutdown wait.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	close(aw.done)

	finished := make(chan struct{})
	go func() {
		aw.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
