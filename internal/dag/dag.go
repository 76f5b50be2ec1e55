// Package dag provides the directed acyclic graph used to order action
// evaluation. Edges point from a node to the nodes it depends on, sorting is
// stable with respect to each node's ordering key, and independent groups of
// nodes can be recovered as tracks.
package dag

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned when the graph contains a dependency cycle.
var ErrCycle = errors.New("cycle detected")

// ErrNodeNotFound is returned when an operation references a non-existent node.
var ErrNodeNotFound = errors.New("node not found")

// ErrDuplicateNode is returned when adding a node that already exists.
var ErrDuplicateNode = errors.New("duplicate node")

// ErrSelfEdge is returned when an edge would create a self-loop.
var ErrSelfEdge = errors.New("self-referencing edge")

// Node is a vertex of the DAG.
type Node struct {
	ID    uint64
	Order int // lower value sorts first among otherwise unordered nodes

	// TrackID is assigned by ComputeTracks.
	TrackID int
}

// DAG is a directed acyclic graph keyed by uint64 ids.
// If A depends on B, there is an edge from A to B.
type DAG struct {
	nodes map[uint64]*Node
	// adjacency maps nodeID → set of dependency IDs (forward edges).
	adjacency map[uint64]map[uint64]bool
	// reverse maps nodeID → set of dependent IDs (backward edges).
	reverse map[uint64]map[uint64]bool
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:     make(map[uint64]*Node),
		adjacency: make(map[uint64]map[uint64]bool),
		reverse:   make(map[uint64]map[uint64]bool),
	}
}

// AddNode adds a node with the given id and ordering key. Returns
// ErrDuplicateNode if a node with that id already exists.
func (d *DAG) AddNode(id uint64, order int) error {
	if _, exists := d.nodes[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateNode, id)
	}
	d.nodes[id] = &Node{ID: id, Order: order}
	d.adjacency[id] = make(map[uint64]bool)
	d.reverse[id] = make(map[uint64]bool)
	return nil
}

// AddEdge adds a dependency edge: from depends on to. Both nodes must
// already exist. Returns an error if either node is missing, the edge
// would create a self-loop, or the edge would introduce a cycle.
func (d *DAG) AddEdge(from, to uint64) error {
	if from == to {
		return fmt.Errorf("%w: %d", ErrSelfEdge, from)
	}
	if _, ok := d.nodes[from]; !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, from)
	}
	if _, ok := d.nodes[to]; !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, to)
	}
	if d.adjacency[from][to] {
		return nil
	}
	// A path to → … → from plus the new edge would close a cycle.
	if d.hasPath(to, from) {
		return fmt.Errorf("%w: edge %d → %d would create a cycle", ErrCycle, from, to)
	}
	d.adjacency[from][to] = true
	d.reverse[to][from] = true
	return nil
}

// Remove removes a node and all its associated edges from the DAG.
// Returns ErrNodeNotFound if the node does not exist.
func (d *DAG) Remove(id uint64) error {
	if _, ok := d.nodes[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	for dep := range d.adjacency[id] {
		delete(d.reverse[dep], id)
	}
	delete(d.adjacency, id)

	for dependent := range d.reverse[id] {
		delete(d.adjacency[dependent], id)
	}
	delete(d.reverse, id)

	delete(d.nodes, id)
	return nil
}

// Node returns the node with the given id, or nil if not found.
func (d *DAG) Node(id uint64) *Node {
	return d.nodes[id]
}

// Nodes returns all node ids sorted by ordering key, then id.
func (d *DAG) Nodes() []uint64 {
	ids := make([]uint64, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	d.sortByOrder(ids)
	return ids
}

// Len returns the number of nodes in the DAG.
func (d *DAG) Len() int {
	return len(d.nodes)
}

// DependsOn returns the direct dependencies of id, sorted by ordering key.
func (d *DAG) DependsOn(id uint64) []uint64 {
	deps := make([]uint64, 0, len(d.adjacency[id]))
	for dep := range d.adjacency[id] {
		deps = append(deps, dep)
	}
	d.sortByOrder(deps)
	return deps
}

// TopologicalSort returns node ids with every dependency before its
// dependents. Among the nodes available at each step the one with the
// lowest ordering key is taken, so when no edges exist the result is
// exactly the ordering-key order. Returns ErrCycle if the graph contains
// a cycle.
func (d *DAG) TopologicalSort() ([]uint64, error) {
	pending := make(map[uint64]int, len(d.nodes))
	ready := &orderHeap{d: d}
	for id := range d.nodes {
		pending[id] = len(d.adjacency[id])
		if pending[id] == 0 {
			ready.ids = append(ready.ids, id)
		}
	}
	heap.Init(ready)

	sorted := make([]uint64, 0, len(d.nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(uint64)
		sorted = append(sorted, id)
		for dependent := range d.reverse[id] {
			pending[dependent]--
			if pending[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}

	if len(sorted) != len(d.nodes) {
		return nil, fmt.Errorf("%w: not all nodes could be ordered (%d of %d)",
			ErrCycle, len(sorted), len(d.nodes))
	}
	return sorted, nil
}

// Ancestors returns all transitive dependencies of the given node, sorted
// by ordering key. Returns nil if the node does not exist.
func (d *DAG) Ancestors(id uint64) []uint64 {
	if _, ok := d.nodes[id]; !ok {
		return nil
	}
	return d.collect(id, d.adjacency)
}

// Descendants returns all transitive dependents of the given node, sorted
// by ordering key. Returns nil if the node does not exist.
func (d *DAG) Descendants(id uint64) []uint64 {
	if _, ok := d.nodes[id]; !ok {
		return nil
	}
	return d.collect(id, d.reverse)
}

func (d *DAG) collect(id uint64, edges map[uint64]map[uint64]bool) []uint64 {
	visited := make(map[uint64]bool)
	stack := []uint64{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range edges[cur] {
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	result := make([]uint64, 0, len(visited))
	for v := range visited {
		result = append(result, v)
	}
	d.sortByOrder(result)
	return result
}

// hasPath reports whether there is a directed path from src to dst
// through the dependency graph (forward edges).
func (d *DAG) hasPath(src, dst uint64) bool {
	if src == dst {
		return false
	}
	visited := make(map[uint64]bool)
	queue := []uint64{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range d.adjacency[cur] {
			if dep == dst {
				return true
			}
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return false
}

func (d *DAG) less(a, b uint64) bool {
	oa, ob := d.nodes[a].Order, d.nodes[b].Order
	if oa != ob {
		return oa < ob
	}
	return a < b
}

func (d *DAG) sortByOrder(ids []uint64) {
	sort.Slice(ids, func(i, j int) bool { return d.less(ids[i], ids[j]) })
}

// orderHeap is a min-heap of node ids keyed by ordering key.
type orderHeap struct {
	d   *DAG
	ids []uint64
}

func (h *orderHeap) Len() int           { return len(h.ids) }
func (h *orderHeap) Less(i, j int) bool { return h.d.less(h.ids[i], h.ids[j]) }
func (h *orderHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *orderHeap) Push(x any)         { h.ids = append(h.ids, x.(uint64)) }
func (h *orderHeap) Pop() any {
	n := len(h.ids)
	x := h.ids[n-1]
	h.ids = h.ids[:n-1]
	return x
}
