package shuffle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-hoffmann/trexsql-ext-sub003/batch"
)

// DefaultStaleAfter is how long an abandoned shuffle entry may live before
// the opportunistic sweep removes it.
const DefaultStaleAfter = 5 * time.Minute

// shuffleState accumulates partition data for one in-progress shuffle.
type shuffleState struct {
	// partitions maps partition id → batches accumulated from all sources.
	partitions map[int][]*batch.Batch

	// expectedSources is how many nodes are expected to send data.
	expectedSources int

	// receivedSources counts completed sends across all partitions.
	receivedSources int

	// notify is closed and replaced whenever new data arrives.
	notify chan struct{}

	// createdAt drives stale-entry cleanup.
	createdAt time.Time
}

// Registry is the receiver-side reassembly point for shuffle data. The
// exchange server submits arriving partitions keyed by
// (shuffle id, partition id); readers block on WaitForPartition until every
// expected source has delivered. Partitions may arrive in any order.
type Registry struct {
	mu         sync.Mutex
	shuffles   map[string]*shuffleState
	staleAfter time.Duration
	logger     *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithStaleAfter overrides the stale-entry cutoff. Non-positive values are
// ignored.
func WithStaleAfter(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

// WithRegistryLogger sets the registry's logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty shuffle registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		shuffles:   make(map[string]*shuffleState),
		staleAfter: DefaultStaleAfter,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register announces a shuffle before any of its data arrives and records
// how many source nodes will send. Registering an id twice is a logged
// no-op. Stale entries from abandoned shuffles are swept opportunistically.
func (r *Registry) Register(shuffleID string, expectedSources int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepStaleLocked()

	if _, exists := r.shuffles[shuffleID]; exists {
		r.logger.Warn("shuffle already registered, skipping",
			slog.String("shuffle_id", shuffleID),
		)
		return
	}
	r.shuffles[shuffleID] = &shuffleState{
		partitions:      make(map[int][]*batch.Batch),
		expectedSources: expectedSources,
		notify:          make(chan struct{}),
		createdAt:       time.Now(),
	}
	r.logger.Debug("registered shuffle",
		slog.String("shuffle_id", shuffleID),
		slog.Int("expected_sources", expectedSources),
	)
}

// Submit records partition data from one source node. Data for an
// unregistered shuffle is dropped with a warning rather than buffered,
// so a crashed query cannot leak memory here.
func (r *Registry) Submit(shuffleID string, partitionID int, batches []*batch.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.shuffles[shuffleID]
	if !ok {
		r.logger.Warn("shuffle not registered, dropping partition data",
			slog.String("shuffle_id", shuffleID),
			slog.Int("partition_id", partitionID),
		)
		return
	}

	state.partitions[partitionID] = append(state.partitions[partitionID], batches...)
	state.receivedSources++
	r.logger.Debug("received partition data",
		slog.String("shuffle_id", shuffleID),
		slog.Int("partition_id", partitionID),
		slog.Int("rows", batch.TotalRows(batches)),
		slog.Int("received_sources", state.receivedSources),
		slog.Int("expected_sources", state.expectedSources),
	)

	close(state.notify)
	state.notify = make(chan struct{})
}

// HandleExchange routes an incoming exchange to Submit, implementing the
// receiver side of the wire contract: the descriptor recovered from the
// command bytes names the shuffle, the path element names the partition.
func (r *Registry) HandleExchange(_ context.Context, desc *Descriptor, partitionID int, _ batch.Schema, batches []*batch.Batch) error {
	r.Submit(desc.ShuffleID, partitionID, batches)
	return nil
}

// WaitForPartition blocks until the partition has data from expectedSources
// senders, then removes and returns the accumulated batches. Deadlines are
// the caller's responsibility via ctx; an expired context aborts the wait
// with an error naming the shuffle and partition.
func (r *Registry) WaitForPartition(ctx context.Context, shuffleID string, partitionID int, expectedSources int) ([]*batch.Batch, error) {
	for {
		r.mu.Lock()
		state, ok := r.shuffles[shuffleID]
		if ok {
			received := state.receivedSources
			count := len(state.partitions[partitionID])
			if received >= expectedSources || count >= expectedSources {
				out := state.partitions[partitionID]
				delete(state.partitions, partitionID)
				r.mu.Unlock()
				return out, nil
			}
		}
		var notify chan struct{}
		if ok {
			notify = state.notify
		}
		r.mu.Unlock()

		if notify == nil {
			// Not registered yet; poll until it is or the caller gives up.
			select {
			case <-ctx.Done():
				return nil, waitErr(ctx, shuffleID, partitionID)
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil, waitErr(ctx, shuffleID, partitionID)
		case <-notify:
		}
	}
}

func waitErr(ctx context.Context, shuffleID string, partitionID int) error {
	return fmt.Errorf("shuffle %q partition %d: wait aborted: %w", shuffleID, partitionID, ctx.Err())
}

// Cleanup removes a completed shuffle.
func (r *Registry) Cleanup(shuffleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shuffles[shuffleID]; ok {
		delete(r.shuffles, shuffleID)
		r.logger.Debug("cleaned up shuffle", slog.String("shuffle_id", shuffleID))
	}
}

// IsRegistered reports whether a shuffle is currently tracked.
func (r *Registry) IsRegistered(shuffleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.shuffles[shuffleID]
	return ok
}

// sweepStaleLocked removes entries older than staleAfter. Caller holds mu.
func (r *Registry) sweepStaleLocked() {
	removed := 0
	for id, state := range r.shuffles {
		if time.Since(state.createdAt) > r.staleAfter {
			delete(r.shuffles, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("swept stale shuffle entries",
			slog.Int("count", removed),
			slog.Duration("stale_after", r.staleAfter),
		)
	}
}
