package assoc

import (
	"errors"
	"fmt"

	"github.com/papapumpkin/assoc/internal/dag"
	"github.com/papapumpkin/assoc/internal/drawing"
)

// DefaultMaxPasses bounds how many times Evaluate sweeps the network when
// actions keep dirtying each other.
const DefaultMaxPasses = 3

// Network is the ordered set of actions scoped to one owning container.
type Network struct {
	g          *Graph
	reactor    drawing.ReactorID
	owner      drawing.ObjectID
	actions    []ActionID
	status     Status
	evaluating bool
	destroyed  bool
}

// Owner returns the container the network belongs to.
func (n *Network) Owner() drawing.ObjectID { return n.owner }

// Status returns UpToDate after a clean evaluation and ChangedDirectly once
// any of its actions has been scheduled since.
func (n *Network) Status() Status { return n.status }

// IsDestroyed reports whether the owning container was erased.
func (n *Network) IsDestroyed() bool { return n.destroyed }

// Actions returns the live actions in insertion order.
func (n *Network) Actions() []*Action {
	out := make([]*Action, 0, len(n.actions))
	for _, id := range n.actions {
		if a := n.g.actions[id]; a != nil && !a.erased {
			out = append(out, a)
		}
	}
	return out
}

func (n *Network) add(a *Action) {
	n.actions = append(n.actions, a.id)
	a.network = n
	n.markDirty()
}

func (n *Network) remove(a *Action) {
	for i, id := range n.actions {
		if id == a.id {
			n.actions = append(n.actions[:i], n.actions[i+1:]...)
			return
		}
	}
}

func (n *Network) markDirty() {
	n.status = StatusChangedDirectly
}

// Order returns the live actions in evaluation order: an action that reads
// an object another action writes (or the container of an object it only
// writes) comes after it; otherwise insertion order is kept. When the cross
// references form a cycle, insertion order is returned with dag.ErrCycle.
func (n *Network) Order() ([]*Action, error) {
	live := n.Actions()
	d, err := n.dependencyDAG(live)
	if err != nil {
		return live, err
	}
	ids, err := d.TopologicalSort()
	if err != nil {
		return live, err
	}
	byID := make(map[ActionID]*Action, len(live))
	for _, a := range live {
		byID[a.id] = a
	}
	out := make([]*Action, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[ActionID(id)])
	}
	return out, nil
}

// Graph returns the cross-action dependency DAG of the live actions, with
// insertion position as ordering key.
func (n *Network) Graph() (*dag.DAG, error) {
	return n.dependencyDAG(n.Actions())
}

func (n *Network) dependencyDAG(live []*Action) (*dag.DAG, error) {
	d := dag.New()
	for i, a := range live {
		if err := d.AddNode(uint64(a.id), i); err != nil {
			return nil, err
		}
	}
	for _, reader := range live {
		for _, writer := range live {
			if reader == writer || !n.reads(reader, writer) {
				continue
			}
			if err := d.AddEdge(uint64(reader.id), uint64(writer.id)); err != nil {
				return nil, fmt.Errorf("ordering %s after %s: %w", reader, writer, err)
			}
		}
	}
	return d, nil
}

// reads reports whether reader watches something writer produces. A
// writer's own product (its read+write record) only counts when watched
// directly; its container holds unrelated products too.
func (n *Network) reads(reader, writer *Action) bool {
	for _, r := range reader.Records() {
		if !r.read || r.write {
			continue
		}
		for _, w := range writer.Records() {
			if !w.write {
				continue
			}
			if r.object == w.object {
				return true
			}
			if !w.read && r.object == n.g.db.Owner(w.object) {
				return true
			}
		}
	}
	return false
}

// Evaluate evaluates every action that is not up to date, in Order. A
// failing action does not stop the others; all failures are returned
// joined. Calling Evaluate from inside an evaluation returns
// ErrReentrantEvaluation without doing anything.
func (n *Network) Evaluate(ec *EvaluationContext) error {
	if n.destroyed {
		return fmt.Errorf("%w: network of %s", ErrNotFound, n.owner)
	}
	if ec == nil {
		ec = n.g.NewContext()
	}
	if ec.active || n.evaluating {
		return ErrReentrantEvaluation
	}
	ec.begin(n)
	defer ec.end()
	n.evaluating = true
	defer func() { n.evaluating = false }()

	maxPasses := n.g.maxPasses
	if maxPasses < 1 {
		maxPasses = 1
	}

	var errs []error
	for pass := 0; pass < maxPasses; pass++ {
		order, err := n.Order()
		if err != nil && pass == 0 {
			n.g.logger.Warn("falling back to insertion order", "network", uint64(n.owner), "error", err)
		}
		for _, a := range order {
			if a.erased || a.status == StatusUpToDate {
				continue
			}
			// A failure is reported once per call; later passes only
			// pick up actions dirtied by earlier ones.
			if pass > 0 && a.status == StatusFailedToEvaluate {
				continue
			}
			if err := a.Evaluate(ec); err != nil {
				errs = append(errs, err)
			}
		}
		if !n.pending() {
			break
		}
	}
	n.status = StatusUpToDate
	return errors.Join(errs...)
}

// pending reports whether an action was scheduled after it ran.
func (n *Network) pending() bool {
	for _, a := range n.Actions() {
		if a.status == StatusChangedDirectly || a.status == StatusErased {
			return true
		}
	}
	return false
}
