package shuffle

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/p-hoffmann/trexsql-ext-sub003/batch"
)

// PartitionBatch splits a batch into numPartitions by
// hash(key columns) % numPartitions, returning one batch per partition in
// partition-id order. An empty input batch yields numPartitions empty
// batches so that every partition has an explicit "nothing to send" state.
//
// The row hash is seed-free and depends only on the key values, so every
// node partitions identically for the same keys.
func PartitionBatch(b *batch.Batch, keyIndices []int, numPartitions int) ([]*batch.Batch, error) {
	if numPartitions <= 0 {
		return nil, fmt.Errorf("shuffle: numPartitions must be > 0, got %d", numPartitions)
	}

	if b.NumRows() == 0 {
		out := make([]*batch.Batch, numPartitions)
		for i := range out {
			out[i] = batch.Empty(b.Schema)
		}
		return out, nil
	}

	indices := make([][]int, numPartitions)
	for row := 0; row < b.NumRows(); row++ {
		h, err := rowHash(b, keyIndices, row)
		if err != nil {
			return nil, err
		}
		p := int(h % uint64(numPartitions))
		indices[p] = append(indices[p], row)
	}

	out := make([]*batch.Batch, numPartitions)
	for p, idx := range indices {
		if len(idx) == 0 {
			out[p] = batch.Empty(b.Schema)
			continue
		}
		taken, err := b.Take(idx)
		if err != nil {
			return nil, fmt.Errorf("shuffle: partition %d: %w", p, err)
		}
		out[p] = taken
	}
	return out, nil
}

// ResolveKeyIndices maps join key column names to their schema positions.
func ResolveKeyIndices(schema batch.Schema, keyNames []string) ([]int, error) {
	out := make([]int, 0, len(keyNames))
	for _, name := range keyNames {
		idx, ok := schema.IndexOf(name)
		if !ok {
			return nil, fmt.Errorf("shuffle: join key %q not found in schema %v", name, schema.Names())
		}
		out = append(out, idx)
	}
	return out, nil
}

// rowHash hashes the key column values of one row with FNV-1a.
func rowHash(b *batch.Batch, keyIndices []int, row int) (uint64, error) {
	h := fnv.New64a()
	var buf [8]byte
	for _, col := range keyIndices {
		if col < 0 || col >= b.NumCols() {
			return 0, fmt.Errorf("shuffle: key index %d out of range for %d column(s)", col, b.NumCols())
		}
		switch v := b.Column(col)[row].(type) {
		case nil:
			h.Write([]byte{0})
		case bool:
			if v {
				h.Write([]byte{1})
			} else {
				h.Write([]byte{2})
			}
		case int64:
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			h.Write(buf[:])
		case int:
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
			h.Write(buf[:])
		case float64:
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		case string:
			h.Write([]byte(v))
		case []byte:
			h.Write(v)
		case time.Time:
			binary.LittleEndian.PutUint64(buf[:], uint64(v.UnixNano()))
			h.Write(buf[:])
		default:
			return 0, fmt.Errorf("shuffle: unhashable key value type %T", v)
		}
	}
	return h.Sum64(), nil
}
