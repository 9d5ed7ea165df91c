package shuffle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/p-hoffmann/trexsql-ext-sub003/batch"
)

// DefaultMaxInFlight bounds concurrent partition sends per SendAll call.
const DefaultMaxInFlight = 4

// PartitionSender moves one partition's batches to a remote endpoint.
// Implemented by swp.Client.
type PartitionSender interface {
	SendPartition(ctx context.Context, endpoint string, desc *Descriptor, partitionID int, schema batch.Schema, batches []*batch.Batch) error
}

// Sender fans all partitions of a shuffle out to the targets named in its
// descriptor, running at most maxInFlight transfers at once. It never
// retries a failed partition: the per-partition errors are collected and
// returned for the caller to decide on.
type Sender struct {
	transport   PartitionSender
	maxInFlight int
	logger      *slog.Logger
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithMaxInFlight bounds how many partitions one SendAll call transfers
// concurrently.
func WithMaxInFlight(n int) SenderOption {
	return func(s *Sender) {
		if n > 0 {
			s.maxInFlight = n
		}
	}
}

// WithSenderLogger sets the sender's logger.
func WithSenderLogger(l *slog.Logger) SenderOption {
	return func(s *Sender) { s.logger = l }
}

// NewSender creates a sender over the given transport.
func NewSender(transport PartitionSender, opts ...SenderOption) *Sender {
	s := &Sender{
		transport:   transport,
		maxInFlight: DefaultMaxInFlight,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendAll transfers every partition in partitions to the target its
// descriptor names. Partitions with no target are an error; empty
// partitions still go through the transport, which short-circuits them.
// Returns the join of all per-partition failures, nil when all succeed.
func (s *Sender) SendAll(ctx context.Context, desc *Descriptor, schema batch.Schema, partitions map[int][]*batch.Batch) error {
	pool, err := ants.NewPool(s.maxInFlight)
	if err != nil {
		return fmt.Errorf("shuffle %q: create send pool: %w", desc.ShuffleID, err)
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(e error) {
		mu.Lock()
		errs = append(errs, e)
		mu.Unlock()
	}

	for partitionID, batches := range partitions {
		target, ok := desc.TargetFor(partitionID)
		if !ok {
			record(fmt.Errorf("shuffle %q partition %d: no target in descriptor", desc.ShuffleID, partitionID))
			continue
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if sendErr := s.transport.SendPartition(ctx, target.Endpoint, desc, partitionID, schema, batches); sendErr != nil {
				record(sendErr)
				return
			}
			s.logger.Debug("partition sent",
				slog.String("shuffle_id", desc.ShuffleID),
				slog.Int("partition_id", partitionID),
				slog.String("endpoint", target.Endpoint),
			)
		})
		if submitErr != nil {
			wg.Done()
			record(fmt.Errorf("shuffle %q partition %d: submit send: %w", desc.ShuffleID, partitionID, submitErr))
		}
	}

	wg.Wait()
	return errors.Join(errs...)
}
