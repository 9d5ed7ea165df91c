package shuffle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/p-hoffmann/trexsql-ext-sub003/batch"
)

// fakeTransport records sends and optionally fails chosen partitions.
type fakeTransport struct {
	mu       sync.Mutex
	sent     map[int]string // partition → endpoint
	failPart int
	failErr  error
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[int]string), failPart: -1}
}

func (f *fakeTransport) SendPartition(_ context.Context, endpoint string, desc *Descriptor, partitionID int, _ batch.Schema, _ []*batch.Batch) error {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	if partitionID == f.failPart {
		return f.failErr
	}
	f.mu.Lock()
	f.sent[partitionID] = endpoint
	f.mu.Unlock()
	_ = desc
	return nil
}

func twoPartitionDesc() *Descriptor {
	return &Descriptor{
		ShuffleID:     "send-test",
		NumPartitions: 2,
		Targets: []Target{
			{PartitionID: 0, Endpoint: "node-a:9000", NodeName: "node-a"},
			{PartitionID: 1, Endpoint: "node-b:9000", NodeName: "node-b"},
		},
	}
}

func TestSendAllRoutesToTargets(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	s := NewSender(transport)
	schema := batch.NewSchema(batch.Field{Name: "id", Type: batch.TypeInt64})

	err := s.SendAll(context.Background(), twoPartitionDesc(), schema, map[int][]*batch.Batch{
		0: {batch.Empty(schema)},
		1: {batch.Empty(schema)},
	})
	if err != nil {
		t.Fatalf("SendAll: %v", err)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if transport.sent[0] != "node-a:9000" {
		t.Errorf("partition 0 went to %q, want node-a:9000", transport.sent[0])
	}
	if transport.sent[1] != "node-b:9000" {
		t.Errorf("partition 1 went to %q, want node-b:9000", transport.sent[1])
	}
}

func TestSendAllMissingTarget(t *testing.T) {
	t.Parallel()

	s := NewSender(newFakeTransport())
	schema := batch.NewSchema(batch.Field{Name: "id", Type: batch.TypeInt64})

	err := s.SendAll(context.Background(), twoPartitionDesc(), schema, map[int][]*batch.Batch{
		7: {batch.Empty(schema)},
	})
	if err == nil {
		t.Fatal("expected error for partition without target")
	}
	if !strings.Contains(err.Error(), "send-test") || !strings.Contains(err.Error(), "7") {
		t.Errorf("error should name shuffle and partition: %v", err)
	}
}

func TestSendAllCollectsFailures(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	transport.failPart = 1
	transport.failErr = errors.New("connection refused")

	s := NewSender(transport)
	schema := batch.NewSchema(batch.Field{Name: "id", Type: batch.TypeInt64})

	err := s.SendAll(context.Background(), twoPartitionDesc(), schema, map[int][]*batch.Batch{
		0: {batch.Empty(schema)},
		1: {batch.Empty(schema)},
	})
	if err == nil {
		t.Fatal("expected failure from partition 1")
	}

	// The healthy partition still went through: no internal retry, no abort.
	transport.mu.Lock()
	defer transport.mu.Unlock()
	if _, ok := transport.sent[0]; !ok {
		t.Error("partition 0 should have been sent despite partition 1 failing")
	}
}

func TestSendAllRespectsInFlightBound(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	s := NewSender(transport, WithMaxInFlight(1))
	schema := batch.NewSchema(batch.Field{Name: "id", Type: batch.TypeInt64})

	desc := &Descriptor{
		ShuffleID:     "bounded",
		NumPartitions: 4,
		Targets: []Target{
			{PartitionID: 0, Endpoint: "n:1"},
			{PartitionID: 1, Endpoint: "n:1"},
			{PartitionID: 2, Endpoint: "n:1"},
			{PartitionID: 3, Endpoint: "n:1"},
		},
	}
	parts := map[int][]*batch.Batch{
		0: {batch.Empty(schema)}, 1: {batch.Empty(schema)},
		2: {batch.Empty(schema)}, 3: {batch.Empty(schema)},
	}

	if err := s.SendAll(context.Background(), desc, schema, parts); err != nil {
		t.Fatalf("SendAll: %v", err)
	}
	if got := transport.maxSeen.Load(); got > 1 {
		t.Errorf("max in-flight = %d, want <= 1", got)
	}
}
