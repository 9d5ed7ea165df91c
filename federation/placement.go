package federation

import "sort"

// Location is one node holding a copy of a table.
type Location struct {
	// NodeName identifies the node.
	NodeName string

	// Endpoint is the node's exchange address. May be empty for nodes
	// that hold data but do not serve exchanges.
	Endpoint string
}

// Placement records which nodes hold which tables. Tables may be
// replicated, so each name maps to one or more locations. Like
// StaticSchema it is an immutable snapshot.
type Placement struct {
	tables map[string][]Location
}

// NewPlacement builds a placement snapshot. The map is copied; later
// mutation of the argument does not leak in.
func NewPlacement(tables map[string][]Location) *Placement {
	m := make(map[string][]Location, len(tables))
	for name, locs := range tables {
		m[name] = append([]Location(nil), locs...)
	}
	return &Placement{tables: m}
}

// Locations returns the nodes holding name.
func (p *Placement) Locations(name string) []Location {
	return append([]Location(nil), p.tables[name]...)
}

// Colocated reports whether a single node holds every listed table, and if
// so returns that node's exchange endpoint. A query over co-located tables
// runs on one node and skips the shuffle entirely.
//
// The check intersects the node sets of all tables and picks a surviving
// node with a known endpoint, lowest node name first so the answer is
// stable. It answers ("", false) when the table list is empty, when any
// table has no recorded placement, or when no common endpoint-bearing node
// remains.
func (p *Placement) Colocated(tableNames []string) (string, bool) {
	if len(tableNames) == 0 {
		return "", false
	}

	var candidates map[string]string // node name -> endpoint
	for _, name := range tableNames {
		locs, ok := p.tables[name]
		if !ok || len(locs) == 0 {
			return "", false
		}
		nodes := make(map[string]string, len(locs))
		for _, loc := range locs {
			nodes[loc.NodeName] = loc.Endpoint
		}
		if candidates == nil {
			candidates = nodes
			continue
		}
		for node := range candidates {
			if _, held := nodes[node]; !held {
				delete(candidates, node)
			}
		}
	}

	names := make([]string, 0, len(candidates))
	for node := range candidates {
		names = append(names, node)
	}
	sort.Strings(names)
	for _, node := range names {
		if ep := candidates[node]; ep != "" {
			return ep, true
		}
	}
	return "", false
}
