package dag

// UnionFind implements a disjoint-set (union-find) data structure with
// path compression and union by rank.
type UnionFind struct {
	parent map[uint64]uint64
	rank   map[uint64]int
}

// NewUnionFind creates an empty UnionFind.
func NewUnionFind() *UnionFind {
	return &UnionFind{
		parent: make(map[uint64]uint64),
		rank:   make(map[uint64]int),
	}
}

// Add inserts an element as its own singleton set. If the element
// already exists, this is a no-op.
func (uf *UnionFind) Add(x uint64) {
	if _, ok := uf.parent[x]; ok {
		return
	}
	uf.parent[x] = x
	uf.rank[x] = 0
}

// Find returns the representative of the set containing x, adding x as a
// singleton when it is unknown.
func (uf *UnionFind) Find(x uint64) uint64 {
	uf.Add(x)
	root := x
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[x] != root {
		next := uf.parent[x]
		uf.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets containing x and y.
func (uf *UnionFind) Union(x, y uint64) {
	rx, ry := uf.Find(x), uf.Find(y)
	if rx == ry {
		return
	}
	switch {
	case uf.rank[rx] < uf.rank[ry]:
		uf.parent[rx] = ry
	case uf.rank[rx] > uf.rank[ry]:
		uf.parent[ry] = rx
	default:
		uf.parent[ry] = rx
		uf.rank[rx]++
	}
}

// Components groups every element by its set representative.
func (uf *UnionFind) Components() map[uint64][]uint64 {
	out := make(map[uint64][]uint64)
	for x := range uf.parent {
		root := uf.Find(x)
		out[root] = append(out[root], x)
	}
	return out
}
