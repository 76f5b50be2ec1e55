package dag

import "sort"

// Track is an independent subset of the DAG whose nodes share no edges with
// nodes in other tracks. Evaluating one track never invalidates another.
type Track struct {
	// ID is the integer identifier assigned to this track, starting at 0.
	ID int

	// NodeIDs lists the node ids in this track in topological order.
	NodeIDs []uint64
}

// ComputeTracks partitions the DAG into independent tracks using
// Union-Find. It assigns Node.TrackID on every node and returns the tracks
// ordered by the ordering key of their first node. Returns an error if the
// DAG contains a cycle.
func (d *DAG) ComputeTracks() ([]Track, error) {
	if len(d.nodes) == 0 {
		return nil, nil
	}

	topoOrder, err := d.TopologicalSort()
	if err != nil {
		return nil, err
	}
	topoPos := make(map[uint64]int, len(topoOrder))
	for i, id := range topoOrder {
		topoPos[id] = i
	}

	uf := NewUnionFind()
	for id := range d.nodes {
		uf.Add(id)
	}
	for from, deps := range d.adjacency {
		for to := range deps {
			uf.Union(from, to)
		}
	}

	components := uf.Components()
	tracks := make([]Track, 0, len(components))
	for _, members := range components {
		sort.Slice(members, func(i, j int) bool {
			return topoPos[members[i]] < topoPos[members[j]]
		})
		tracks = append(tracks, Track{NodeIDs: members})
	}

	sort.Slice(tracks, func(i, j int) bool {
		oi, oj := minOrder(d, tracks[i].NodeIDs), minOrder(d, tracks[j].NodeIDs)
		if oi != oj {
			return oi < oj
		}
		return tracks[i].NodeIDs[0] < tracks[j].NodeIDs[0]
	})

	for i := range tracks {
		tracks[i].ID = i
		for _, id := range tracks[i].NodeIDs {
			d.nodes[id].TrackID = i
		}
	}
	return tracks, nil
}

func minOrder(d *DAG, ids []uint64) int {
	m := d.nodes[ids[0]].Order
	for _, id := range ids[1:] {
		if o := d.nodes[id].Order; o < m {
			m = o
		}
	}
	return m
}
