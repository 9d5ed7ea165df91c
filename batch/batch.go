// Package batch defines the columnar record-batch model that query results
// are exchanged in. A Batch is a column-major slice of rows bound to a
// Schema; batches are the unit of transfer between nodes during a shuffle.
//
// Batches are immutable by convention: operations that reshape data, like
// Take, return new batches and never modify the receiver.
package batch

import "fmt"

// Type identifies the logical type of a column.
type Type string

const (
	TypeBool      Type = "bool"
	TypeInt64     Type = "int64"
	TypeFloat64   Type = "float64"
	TypeString    Type = "string"
	TypeBytes     Type = "bytes"
	TypeTimestamp Type = "timestamp"
)

// Field describes one column of a schema.
type Field struct {
	Name string `json:"name" msgpack:"name"`
	Type Type   `json:"type" msgpack:"type"`
}

// Schema is an ordered list of fields. The zero value is an empty schema.
type Schema struct {
	Fields []Field `json:"fields" msgpack:"fields"`
}

// NewSchema builds a schema from the given fields.
func NewSchema(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// IndexOf returns the position of the named field, or false if absent.
func (s Schema) IndexOf(name string) (int, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// NumFields returns the number of fields.
func (s Schema) NumFields() int { return len(s.Fields) }

// Batch is a column-major collection of rows. Columns[i] holds the values
// of Schema.Fields[i]; all columns have equal length.
type Batch struct {
	Schema  Schema  `json:"schema" msgpack:"schema"`
	Columns [][]any `json:"columns" msgpack:"columns"`
}

// New creates a batch, validating that the column count matches the schema
// and that every column has the same number of rows.
func New(schema Schema, columns [][]any) (*Batch, error) {
	if len(columns) != len(schema.Fields) {
		return nil, fmt.Errorf("batch: %d column(s) for %d field(s)", len(columns), len(schema.Fields))
	}
	for i := 1; i < len(columns); i++ {
		if len(columns[i]) != len(columns[0]) {
			return nil, fmt.Errorf("batch: column %q has %d row(s), want %d",
				schema.Fields[i].Name, len(columns[i]), len(columns[0]))
		}
	}
	return &Batch{Schema: schema, Columns: columns}, nil
}

// Empty returns a zero-row batch with the given schema.
func Empty(schema Schema) *Batch {
	cols := make([][]any, len(schema.Fields))
	for i := range cols {
		cols[i] = []any{}
	}
	return &Batch{Schema: schema, Columns: cols}
}

// NumRows returns the number of rows in the batch.
func (b *Batch) NumRows() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return len(b.Columns[0])
}

// NumCols returns the number of columns.
func (b *Batch) NumCols() int { return len(b.Columns) }

// Column returns the values of column i.
func (b *Batch) Column(i int) []any { return b.Columns[i] }

// Take returns a new batch containing the rows at the given indices,
// in order. Indices out of range cause an error.
func (b *Batch) Take(indices []int) (*Batch, error) {
	n := b.NumRows()
	cols := make([][]any, len(b.Columns))
	for c, col := range b.Columns {
		out := make([]any, 0, len(indices))
		for _, idx := range indices {
			if idx < 0 || idx >= n {
				return nil, fmt.Errorf("batch: take index %d out of range [0,%d)", idx, n)
			}
			out = append(out, col[idx])
		}
		cols[c] = out
	}
	return &Batch{Schema: b.Schema, Columns: cols}, nil
}

// TotalRows sums the row counts of a batch sequence.
func TotalRows(batches []*Batch) int {
	total := 0
	for _, b := range batches {
		total += b.NumRows()
	}
	return total
}
