package shuffle

import (
	"strings"
	"testing"
)

func sampleDescriptor() *Descriptor {
	return &Descriptor{
		ShuffleID:     "test-shuffle-001",
		JoinKeys:      []string{"customer_id"},
		NumPartitions: 2,
		Targets: []Target{
			{PartitionID: 0, Endpoint: "10.0.0.1:8815", NodeName: "node-a"},
			{PartitionID: 1, Endpoint: "10.0.0.2:8815", NodeName: "node-b"},
		},
	}
}

func TestDescriptorRoundtrip(t *testing.T) {
	t.Parallel()

	data, err := sampleDescriptor().MarshalBytes()
	if err != nil {
		t.Fatalf("MarshalBytes: %v", err)
	}

	restored, err := UnmarshalBytes(data)
	if err != nil {
		t.Fatalf("UnmarshalBytes: %v", err)
	}
	if restored.ShuffleID != "test-shuffle-001" {
		t.Errorf("ShuffleID = %q, want %q", restored.ShuffleID, "test-shuffle-001")
	}
	if len(restored.JoinKeys) != 1 || restored.JoinKeys[0] != "customer_id" {
		t.Errorf("JoinKeys = %v, want [customer_id]", restored.JoinKeys)
	}
	if restored.NumPartitions != 2 {
		t.Errorf("NumPartitions = %d, want 2", restored.NumPartitions)
	}
	if len(restored.Targets) != 2 {
		t.Errorf("Targets = %d, want 2", len(restored.Targets))
	}
}

func TestTargetForFound(t *testing.T) {
	t.Parallel()

	target, ok := sampleDescriptor().TargetFor(1)
	if !ok {
		t.Fatal("TargetFor(1) not found")
	}
	if target.NodeName != "node-b" {
		t.Errorf("NodeName = %q, want node-b", target.NodeName)
	}
	if target.Endpoint != "10.0.0.2:8815" {
		t.Errorf("Endpoint = %q, want 10.0.0.2:8815", target.Endpoint)
	}
}

func TestTargetForNotFound(t *testing.T) {
	t.Parallel()

	if _, ok := sampleDescriptor().TargetFor(99); ok {
		t.Error("TargetFor(99) should not be found")
	}
}

func TestUnmarshalInvalidBytes(t *testing.T) {
	t.Parallel()

	if _, err := UnmarshalBytes([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid bytes")
	}
}

func TestMultipleJoinKeys(t *testing.T) {
	t.Parallel()

	d := &Descriptor{
		ShuffleID:     "multi-key",
		JoinKeys:      []string{"col_a", "col_b"},
		NumPartitions: 3,
	}
	data, err := d.MarshalBytes()
	if err != nil {
		t.Fatalf("MarshalBytes: %v", err)
	}
	restored, err := UnmarshalBytes(data)
	if err != nil {
		t.Fatalf("UnmarshalBytes: %v", err)
	}
	if len(restored.JoinKeys) != 2 {
		t.Errorf("JoinKeys = %d, want 2", len(restored.JoinKeys))
	}
}

func TestNewShuffleIDUnique(t *testing.T) {
	t.Parallel()

	a, b := NewShuffleID(), NewShuffleID()
	if a == b {
		t.Errorf("NewShuffleID returned duplicate %q", a)
	}
	if !strings.HasPrefix(a, "shuffle-") {
		t.Errorf("NewShuffleID = %q, want shuffle- prefix", a)
	}
}
