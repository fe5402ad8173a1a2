package models

import "errors"

// ErrCycle is returned by TopologicalOrder when the connection graph is not acyclic.
var ErrCycle = errors.New("workflow graph contains a cycle")

// TopologicalOrder returns the nodes in dependency order using Kahn's algorithm.
// Ties are broken by the order of Nodes so the result is stable.
// Connections pointing at unknown nodes are ignored.
func (w *Workflow) TopologicalOrder() ([]*Node, error) {
	index := make(map[string]int, len(w.Nodes))
	for i, node := range w.Nodes {
		if node != nil {
			index[node.ID] = i
		}
	}

	inDegree := make([]int, len(w.Nodes))
	successors := make([][]int, len(w.Nodes))

	for _, conn := range w.Connections {
		if conn == nil {
			continue
		}

		src, okSrc := index[conn.SourceNodeID]
		dst, okDst := index[conn.TargetNodeID]

		if !okSrc || !okDst {
			continue
		}

		successors[src] = append(successors[src], dst)
		inDegree[dst]++
	}

	// ready is kept sorted by node position so ties resolve deterministically.
	ready := make([]int, 0, len(w.Nodes))

	for i, node := range w.Nodes {
		if node != nil && inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]*Node, 0, len(w.Nodes))
	visited := 0

	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]

		order = append(order, w.Nodes[current])
		visited++

		for _, next := range successors[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = insertSorted(ready, next)
			}
		}
	}

	expected := 0

	for _, node := range w.Nodes {
		if node != nil {
			expected++
		}
	}

	if visited != expected {
		return nil, ErrCycle
	}

	return order, nil
}

func insertSorted(values []int, v int) []int {
	pos := len(values)

	for i, existing := range values {
		if v < existing {
			pos = i

			break
		}
	}

	values = append(values, 0)
	copy(values[pos+1:], values[pos:])
	values[pos] = v

	return values
}

// DirectPredecessors returns the ids of nodes with a connection into nodeID, without duplicates.
func (w *Workflow) DirectPredecessors(nodeID string) []string {
	seen := make(map[string]struct{})

	var out []string

	for _, conn := range w.Connections {
		if conn == nil || conn.TargetNodeID != nodeID {
			continue
		}

		if _, ok := seen[conn.SourceNodeID]; ok {
			continue
		}

		seen[conn.SourceNodeID] = struct{}{}
		out = append(out, conn.SourceNodeID)
	}

	return out
}

// Ancestors returns the set of node ids from which nodeID is reachable.
// The node itself is never part of the result.
func (w *Workflow) Ancestors(nodeID string) map[string]struct{} {
	upstream := make(map[string][]string)

	for _, conn := range w.Connections {
		if conn == nil {
			continue
		}

		upstream[conn.TargetNodeID] = append(upstream[conn.TargetNodeID], conn.SourceNodeID)
	}

	result := make(map[string]struct{})
	stack := append([]string(nil), upstream[nodeID]...)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if id == nodeID {
			continue
		}

		if _, ok := result[id]; ok {
			continue
		}

		result[id] = struct{}{}
		stack = append(stack, upstream[id]...)
	}

	return result
}
