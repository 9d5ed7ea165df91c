package registry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/p-hoffmann/trexsql-ext-sub003/backoff"
)

const (
	// DefaultMaxAttempts bounds how often the async writer retries one
	// gossip write before abandoning it.
	DefaultMaxAttempts = 3

	// defaultWriteTimeout bounds a single store call from the async
	// writer, which has no caller context to inherit.
	defaultWriteTimeout = 5 * time.Second
)

// Bridge publishes service advertisements into a gossip store. It never
// returns errors to callers: a registry outage is logged and absorbed, and
// the periodic republish repairs any gap once the store is back.
//
// In synchronous mode (the default) each call writes through directly. In
// async mode writes flow through a bounded queue served by one goroutine;
// when the queue is full the oldest entry is dropped, because a newer
// advertisement for the same service supersedes it anyway.
type Bridge struct {
	store    Store
	logger   *slog.Logger
	strategy backoff.Strategy
	attempts int

	queue   chan writeOp
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	dropped atomic.Int64
}

// writeOp is one queued gossip mutation.
type writeOp struct {
	key    string
	value  string
	delete bool
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeLogger sets the bridge's logger.
func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) { b.logger = l }
}

// WithAsyncQueue enables the async writer with the given queue capacity.
func WithAsyncQueue(size int) BridgeOption {
	return func(b *Bridge) {
		if size > 0 {
			b.queue = make(chan writeOp, size)
		}
	}
}

// WithRetryBackoff sets the delay strategy between async write retries.
func WithRetryBackoff(s backoff.Strategy) BridgeOption {
	return func(b *Bridge) { b.strategy = s }
}

// WithMaxAttempts bounds async write retries, including the first try.
func WithMaxAttempts(n int) BridgeOption {
	return func(b *Bridge) {
		if n > 0 {
			b.attempts = n
		}
	}
}

// NewBridge creates a bridge writing through store.
func NewBridge(store Store, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		store:    store,
		logger:   slog.Default(),
		strategy: backoff.DefaultStrategy(),
		attempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.queue != nil {
		b.done = make(chan struct{})
		go b.writeLoop()
	}
	return b
}

// Publish advertises rec. Failures are logged, never returned.
func (b *Bridge) Publish(ctx context.Context, rec Record) {
	value, err := rec.MarshalValue()
	if err != nil {
		b.logger.Warn("dropping unmarshalable advertisement",
			slog.String("key", rec.Key()),
			slog.String("error", err.Error()),
		)
		return
	}
	b.submit(ctx, writeOp{key: rec.Key(), value: value})
}

// Remove withdraws the advertisement for (category, name). Failures are
// logged, never returned.
func (b *Bridge) Remove(ctx context.Context, category, name string) {
	b.submit(ctx, writeOp{key: Record{Category: category, Name: name}.Key(), delete: true})
}

// Dropped reports how many queued writes were discarded under overflow.
func (b *Bridge) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops the async writer after draining the queue. Sync bridges
// close immediately. Publish and Remove after Close are no-ops.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.queue != nil {
		close(b.queue)
	}
	b.mu.Unlock()

	if b.done != nil {
		<-b.done
	}
}

func (b *Bridge) submit(ctx context.Context, op writeOp) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.logger.Debug("ignoring write on closed bridge", slog.String("key", op.key))
		return
	}
	if b.queue == nil {
		b.mu.Unlock()
		if err := b.apply(ctx, op); err != nil {
			b.logger.Warn("gossip write failed",
				slog.String("key", op.key),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	b.enqueueLocked(op)
	b.mu.Unlock()
}

// enqueueLocked inserts op, evicting the oldest entry when full. Caller
// holds b.mu, which also serializes against Close, so the channel cannot
// close mid-insert.
func (b *Bridge) enqueueLocked(op writeOp) {
	for {
		select {
		case b.queue <- op:
			return
		default:
		}
		select {
		case evicted := <-b.queue:
			b.dropped.Add(1)
			b.logger.Debug("gossip queue full, dropped oldest write",
				slog.String("key", evicted.key),
			)
		default:
			// Writer drained it between our two selects; retry the insert.
		}
	}
}

// writeLoop serves the async queue one op at a time, preserving submit
// order, retrying each op with backoff before giving up on it.
func (b *Bridge) writeLoop() {
	defer close(b.done)
	for op := range b.queue {
		var err error
		for attempt := 1; attempt <= b.attempts; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
			err = b.apply(ctx, op)
			cancel()
			if err == nil {
				break
			}
			if attempt < b.attempts {
				time.Sleep(b.strategy.Delay(attempt))
			}
		}
		if err != nil {
			b.logger.Warn("abandoning gossip write",
				slog.String("key", op.key),
				slog.Int("attempts", b.attempts),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (b *Bridge) apply(ctx context.Context, op writeOp) error {
	if op.delete {
		return b.store.Delete(ctx, op.key)
	}
	return b.store.Set(ctx, op.key, op.value)
}
