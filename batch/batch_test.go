package batch

import "testing"

func testSchema() Schema {
	return NewSchema(
		Field{Name: "id", Type: TypeInt64},
		Field{Name: "name", Type: TypeString},
	)
}

func TestNewValidatesColumnCount(t *testing.T) {
	t.Parallel()

	_, err := New(testSchema(), [][]any{{int64(1)}})
	if err == nil {
		t.Fatal("expected error for column/field count mismatch")
	}
}

func TestNewValidatesRowLengths(t *testing.T) {
	t.Parallel()

	_, err := New(testSchema(), [][]any{
		{int64(1), int64(2)},
		{"a"},
	})
	if err == nil {
		t.Fatal("expected error for ragged columns")
	}
}

func TestNumRows(t *testing.T) {
	t.Parallel()

	b, err := New(testSchema(), [][]any{
		{int64(1), int64(2), int64(3)},
		{"a", "b", "c"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := b.NumRows(); got != 3 {
		t.Errorf("NumRows = %d, want 3", got)
	}
	if got := b.NumCols(); got != 2 {
		t.Errorf("NumCols = %d, want 2", got)
	}
}

func TestEmptyBatch(t *testing.T) {
	t.Parallel()

	b := Empty(testSchema())
	if got := b.NumRows(); got != 0 {
		t.Errorf("NumRows = %d, want 0", got)
	}
	if got := b.NumCols(); got != 2 {
		t.Errorf("NumCols = %d, want 2", got)
	}
}

func TestTake(t *testing.T) {
	t.Parallel()

	b, err := New(testSchema(), [][]any{
		{int64(10), int64(20), int64(30)},
		{"x", "y", "z"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sel, err := b.Take([]int{2, 0})
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if got := sel.NumRows(); got != 2 {
		t.Fatalf("NumRows = %d, want 2", got)
	}
	if sel.Column(0)[0] != int64(30) || sel.Column(0)[1] != int64(10) {
		t.Errorf("Take reordered incorrectly: %v", sel.Column(0))
	}
	if sel.Column(1)[0] != "z" {
		t.Errorf("Column(1)[0] = %v, want z", sel.Column(1)[0])
	}
}

func TestTakeOutOfRange(t *testing.T) {
	t.Parallel()

	b, _ := New(testSchema(), [][]any{{int64(1)}, {"a"}})
	if _, err := b.Take([]int{5}); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestSchemaIndexOf(t *testing.T) {
	t.Parallel()

	s := testSchema()
	idx, ok := s.IndexOf("name")
	if !ok || idx != 1 {
		t.Errorf("IndexOf(name) = %d, %v; want 1, true", idx, ok)
	}
	if _, ok := s.IndexOf("missing"); ok {
		t.Error("IndexOf(missing) should be false")
	}
}

func TestTotalRows(t *testing.T) {
	t.Parallel()

	a, _ := New(testSchema(), [][]any{{int64(1), int64(2)}, {"a", "b"}})
	b := Empty(testSchema())
	if got := TotalRows([]*Batch{a, b, a}); got != 4 {
		t.Errorf("TotalRows = %d, want 4", got)
	}
}
