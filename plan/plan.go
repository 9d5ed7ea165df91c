// Package plan computes execution order and change-impact sets over stage
// dependency graphs. Both operations are pure: they work on caller-supplied
// snapshots of the node set and edge map, never retain state between calls,
// and are safe to run concurrently for different graphs.
//
// The edge map reads "depends on": edges["c"] = ["a", "b"] means stage c
// depends on stages a and b. Edges that reference nodes missing from the
// declared node list are ignored, never inserted.
package plan

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports that a dependency graph contains a cycle. Nodes holds
// the names of every node left unresolved by the ordering attempt, which is
// a superset of (and always includes) the cycle itself.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("plan: circular dependency involving: %s", strings.Join(e.Nodes, ", "))
}

// TopologicalOrder returns a linearization of nodes such that every node
// appears after all nodes it depends on, using Kahn's algorithm.
//
// The result is deterministic: whenever several nodes become eligible at
// the same time they are appended to the worklist in lexicographic order,
// so the same graph always yields the same ordering.
//
// If the graph contains a cycle reachable from any node, no partial order
// is returned; the error is a *CycleError naming the unresolved nodes.
func TopologicalOrder(nodes []string, edges map[string][]string) ([]string, error) {
	declared := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		declared[n] = struct{}{}
	}

	inDegree := make(map[string]int, len(nodes))
	forward := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		inDegree[n] = 0
	}

	// Invert "depends on" edges into dependency → dependent adjacency.
	for node, deps := range edges {
		if _, ok := declared[node]; !ok {
			continue
		}
		for _, dep := range deps {
			if _, ok := declared[dep]; !ok {
				continue
			}
			forward[dep] = append(forward[dep], node)
			inDegree[node]++
		}
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var eligible []string
		for _, dependent := range forward[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				eligible = append(eligible, dependent)
			}
		}
		sort.Strings(eligible)
		queue = append(queue, eligible...)
	}

	if len(order) != len(nodes) {
		emitted := make(map[string]struct{}, len(order))
		for _, n := range order {
			emitted[n] = struct{}{}
		}
		var residual []string
		for _, n := range nodes {
			if _, ok := emitted[n]; !ok {
				residual = append(residual, n)
			}
		}
		sort.Strings(residual)
		return nil, &CycleError{Nodes: residual}
	}

	return order, nil
}

// TransitiveDependents returns the closure of every node that transitively
// depends on any node in changed, including the changed set itself. The
// traversal follows reverse edges breadth-first, never revisits a node, and
// terminates on any finite graph, cycles included.
func TransitiveDependents(changed []string, nodes []string, edges map[string][]string) map[string]struct{} {
	declared := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		declared[n] = struct{}{}
	}

	// dependency → dependents
	reverse := make(map[string][]string, len(nodes))
	for node, deps := range edges {
		if _, ok := declared[node]; !ok {
			continue
		}
		for _, dep := range deps {
			if _, ok := declared[dep]; !ok {
				continue
			}
			reverse[dep] = append(reverse[dep], node)
		}
	}

	affected := make(map[string]struct{}, len(changed))
	queue := make([]string, 0, len(changed))
	for _, n := range changed {
		affected[n] = struct{}{}
		queue = append(queue, n)
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, dependent := range reverse[node] {
			if _, seen := affected[dependent]; seen {
				continue
			}
			affected[dependent] = struct{}{}
			queue = append(queue, dependent)
		}
	}

	return affected
}
