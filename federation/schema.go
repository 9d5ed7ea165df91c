package federation

import "sort"

// Schema is the name-resolution surface a planner needs: enumerate tables,
// fetch one, test existence. Implementations must be safe for concurrent
// readers.
type Schema interface {
	// TableNames returns all table names, sorted.
	TableNames() []string

	// Table looks a table up by name.
	Table(name string) (Table, bool)

	// TableExists reports whether name resolves.
	TableExists(name string) bool
}

// StaticSchema is an immutable table snapshot. It is built wholesale and
// never mutated afterwards, so any number of goroutines can read it without
// locks; changing the table set means building a new snapshot and swapping
// the reference.
type StaticSchema struct {
	tables map[string]Table
	names  []string
}

// NewStaticSchema builds a snapshot from tables. When two tables share a
// name the later one wins.
func NewStaticSchema(tables ...Table) *StaticSchema {
	m := make(map[string]Table, len(tables))
	for _, t := range tables {
		m[t.Name()] = t
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return &StaticSchema{tables: m, names: names}
}

func (s *StaticSchema) TableNames() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *StaticSchema) Table(name string) (Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

func (s *StaticSchema) TableExists(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// MultiSchema composes child schemas into one surface. Lookups ask the
// children in order and the first match wins, so earlier children shadow
// later ones.
type MultiSchema struct {
	children []Schema
}

// NewMultiSchema composes children in precedence order.
func NewMultiSchema(children ...Schema) *MultiSchema {
	return &MultiSchema{children: children}
}

// TableNames returns the union of the children's names, sorted, each name
// once.
func (m *MultiSchema) TableNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, child := range m.children {
		for _, name := range child.TableNames() {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (m *MultiSchema) Table(name string) (Table, bool) {
	for _, child := range m.children {
		if t, ok := child.Table(name); ok {
			return t, true
		}
	}
	return nil, false
}

func (m *MultiSchema) TableExists(name string) bool {
	_, ok := m.Table(name)
	return ok
}

var (
	_ Schema = (*StaticSchema)(nil)
	_ Schema = (*MultiSchema)(nil)
)
