// Package shuffle coordinates the redistribution of partitioned query
// results between nodes: describing a shuffle (Descriptor), splitting
// batches by key hash (PartitionBatch), fanning partitions out to their
// target nodes with a bounded in-flight count (Sender), and reassembling
// arriving partitions on the receiving side (Registry).
package shuffle

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Descriptor identifies and routes one shuffle operation: which columns to
// hash, how many partitions, and which node receives each partition. It is
// immutable once created and travels inside the transport's request
// metadata as opaque serialized bytes, so the wire contract never changes
// when metadata grows.
type Descriptor struct {
	// ShuffleID uniquely identifies this shuffle operation. Together with
	// a partition id it addresses exactly one partition transfer, stable
	// for the lifetime of the shuffle.
	ShuffleID string `json:"shuffle_id"`

	// JoinKeys are the column names used for hash partitioning.
	JoinKeys []string `json:"join_keys"`

	// NumPartitions is the partition count, typically the number of
	// participating nodes.
	NumPartitions int `json:"num_partitions"`

	// Targets maps each partition to the node that should receive it.
	Targets []Target `json:"partition_targets"`

	// TargetTable, if set, tells the receiver to insert batches into this
	// local table instead of buffering them for a downstream read.
	TargetTable string `json:"target_table,omitempty"`
}

// Target is the destination endpoint for a single shuffle partition.
type Target struct {
	PartitionID int    `json:"partition_id"`
	Endpoint    string `json:"endpoint"`
	NodeName    string `json:"node_name"`
}

// NewShuffleID returns a fresh unique shuffle identifier.
func NewShuffleID() string {
	return "shuffle-" + uuid.NewString()
}

// TargetFor returns the target for the given partition, or false if the
// descriptor names no destination for it.
func (d *Descriptor) TargetFor(partitionID int) (Target, bool) {
	for _, t := range d.Targets {
		if t.PartitionID == partitionID {
			return t, true
		}
	}
	return Target{}, false
}

// MarshalBytes serializes the descriptor to self-describing JSON for
// embedding in exchange request metadata.
func (d *Descriptor) MarshalBytes() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("shuffle: marshal descriptor %q: %w", d.ShuffleID, err)
	}
	return data, nil
}

// UnmarshalBytes parses a descriptor received in exchange request metadata.
func UnmarshalBytes(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("shuffle: unmarshal descriptor: %w", err)
	}
	return &d, nil
}
