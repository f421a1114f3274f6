package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrClosed is returned by writes to a closed NonBlocking.
var ErrClosed = errors.New("non-blocking writer closed")

// NonBlockingConfig tunes the queue in front of a sink.
type NonBlockingConfig struct {
	// BufferedLines is the queue capacity in records.
	BufferedLines int
	// Lossy drops records when the queue is full instead of blocking the caller.
	Lossy bool
}

// Stats counts what happened to the records handed to a NonBlocking.
type Stats struct {
	Delivered uint64
	Failed    uint64
	Dropped   uint64
}

type sinkRef struct {
	w io.Writer
}

// NonBlocking queues records and delivers them to a sink from one worker
// goroutine, in the order they were written.
//
// Write never reports delivery errors: they are counted and logged. Use it in
// front of a synchronous sink when callers must not wait on the network.
type NonBlocking struct {
	queue  chan []byte
	lossy  bool
	sink   atomic.Pointer[sinkRef]
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewNonBlocking starts a worker delivering to sink.
func NewNonBlocking(sink io.Writer, cfg NonBlockingConfig, log *zap.SugaredLogger) *NonBlocking {
	size := cfg.BufferedLines
	if size <= 0 {
		size = 1
	}

	n := &NonBlocking{
		queue:   make(chan []byte, size),
		lossy:   cfg.Lossy,
		logger:  log.Named("NonBlocking"),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	n.SetSink(sink)

	go n.run()
	return n
}

// SetSink replaces the sink for every record not yet delivered.
func (n *NonBlocking) SetSink(sink io.Writer) {
	n.sink.Store(&sinkRef{w: sink})
}

// Write queues a copy of p and reports len(p).
func (n *NonBlocking) Write(p []byte) (int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return 0, ErrClosed
	}

	rec := make([]byte, len(p))
	copy(rec, p)

	if !n.lossy {
		select {
		case n.queue <- rec:
			return len(p), nil
		case <-n.closing:
			return 0, ErrClosed
		}
	}

	select {
	case n.queue <- rec:
	default:
		if n.dropped.Add(1) == 1 {
			n.logger.Warn("queue full, dropping records")
		}
	}
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer. Delivery is asynchronous, so there is
// nothing to wait for.
func (n *NonBlocking) Sync() error {
	return nil
}

// Close stops accepting records and waits until the queue is drained or ctx
// is done. Writers blocked on a full queue get ErrClosed. Closing twice is a
// no-op.
func (n *NonBlocking) Close(ctx context.Context) error {
	n.closeOnce.Do(func() {
		// Release blocked writers so the write lock can be taken.
		close(n.closing)

		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
	})

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the delivery counters.
func (n *NonBlocking) Stats() Stats {
	return Stats{
		Delivered: n.delivered.Load(),
		Failed:    n.failed.Load(),
		Dropped:   n.dropped.Load(),
	}
}

func (n *NonBlocking) run() {
	defer close(n.done)

	for rec := range n.queue {
		if _, err := n.sink.Load().w.Write(rec); err != nil {
			n.failed.Add(1)
			n.logger.Debugf("delivery error: %v", err)
			continue
		}
		n.delivered.Add(1)
	}
}
