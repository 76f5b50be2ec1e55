package assoc

import (
	"errors"
	"fmt"
	"time"

	"github.com/papapumpkin/assoc/internal/drawing"
)

// ActionID identifies an action within a Graph.
type ActionID uint64

// Action is a unit of recomputation. It owns an ordered list of dependency
// records and a parameter set, and delegates the actual work to its body.
type Action struct {
	g       *Graph
	id      ActionID
	kind    string
	body    Body
	network *Network
	records []RecordID
	params  *Parameters

	status       Status
	evaluating   bool
	erased       bool
	keepOnRemove bool
	proxy        error
}

// ID returns the action id.
func (a *Action) ID() ActionID { return a.id }

// Graph returns the graph that owns the action.
func (a *Action) Graph() *Graph { return a.g }

// Kind returns the registry tag of the body.
func (a *Action) Kind() string { return a.kind }

// Body returns the evaluator, or nil for a proxy.
func (a *Action) Body() Body { return a.body }

// Network returns the owning network.
func (a *Action) Network() *Network { return a.network }

// Parameters returns the named parameter set.
func (a *Action) Parameters() *Parameters { return a.params }

// Status returns the action status.
func (a *Action) Status() Status { return a.status }

// IsErased reports whether the action has erased itself and left the graph.
func (a *Action) IsErased() bool { return a.erased }

// IsEvaluating reports whether the action's body is running.
func (a *Action) IsEvaluating() bool { return a.evaluating }

// Proxy returns the decode error of a placeholder action, or nil.
func (a *Action) Proxy() error { return a.proxy }

// Records returns the action's records in creation order.
func (a *Action) Records() []*Record {
	out := make([]*Record, 0, len(a.records))
	for _, id := range a.records {
		if r := a.g.records[id]; r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Record returns the first record with the given role name, or nil.
func (a *Action) Record(name string) *Record {
	for _, r := range a.Records() {
		if r.name == name {
			return r
		}
	}
	return nil
}

// ProductRecord returns the single record that both reads and writes the
// generated entity. Zero or several such records violate the graph invariant.
func (a *Action) ProductRecord() (*Record, error) {
	var found *Record
	for _, r := range a.Records() {
		if !r.read || !r.write {
			continue
		}
		if found != nil {
			return nil, Invariant("action %d has more than one read+write dependency", a.id)
		}
		found = r
	}
	if found == nil {
		return nil, Invariant("action %d: array-entity dependency not found", a.id)
	}
	return found, nil
}

// AddDependency creates a record and attaches it to its object.
func (a *Action) AddDependency(dep Dependency) (*Record, error) {
	if a.erased {
		return nil, Invariant("action %d is erased", a.id)
	}
	dep.Read = dep.Read || !dep.Write
	if dep.Read && dep.Write {
		if _, err := a.ProductRecord(); err == nil {
			return nil, Invariant("action %d already has a read+write dependency", a.id)
		}
	}
	r := &Record{
		g:              a.g,
		id:             a.g.allocRecord(),
		action:         a.id,
		name:           dep.Name,
		read:           dep.Read,
		write:          dep.Write,
		order:          dep.Order,
		stateDependent: dep.StateDependent,
	}
	if err := r.Attach(dep.Object); err != nil {
		return nil, err
	}
	a.g.records[r.id] = r
	a.records = append(a.records, r.id)
	return r, nil
}

// RemoveDependency detaches the record and drops it from the action.
func (a *Action) RemoveDependency(r *Record) {
	if r == nil || r.action != a.id {
		return
	}
	r.Detach()
	for i, id := range a.records {
		if id == r.id {
			a.records = append(a.records[:i], a.records[i+1:]...)
			break
		}
	}
	delete(a.g.records, r.id)
}

// Bind lets a body built by the registry configure itself from the action.
// It does nothing for bodies that do not implement Binder.
func (a *Action) Bind() error {
	b, ok := a.body.(Binder)
	if !ok {
		return nil
	}
	if err := b.Bind(a); err != nil {
		return &EvalError{Action: a.id, Kind: a.kind, Err: err}
	}
	return nil
}

// Touch schedules the action for evaluation, e.g. after a parameter edit.
func (a *Action) Touch() {
	a.raise(StatusChangedDirectly)
}

// SetParameter stores a literal parameter and schedules the action.
func (a *Action) SetParameter(name string, v any) {
	a.params.Set(name, v)
	a.Touch()
}

// MarkErased ends the action. Called by a body while evaluating, it makes
// Evaluate detach every record and drop the action from its network.
// keepProducts records whether the generated geometry was left in place.
func (a *Action) MarkErased(keepProducts bool) {
	a.erased = true
	a.keepOnRemove = keepProducts
	if !a.evaluating {
		a.status = StatusErased
		a.g.retire(a)
	}
}

// KeptProducts reports whether an erased action left its geometry in place.
func (a *Action) KeptProducts() bool { return a.keepOnRemove }

// WritesObject reports whether any record of the action writes obj.
func (a *Action) WritesObject(obj drawing.ObjectID) bool {
	for _, r := range a.Records() {
		if r.write && r.object == obj {
			return true
		}
	}
	return false
}

func (a *Action) raise(s Status) {
	if a.erased || s == StatusUpToDate {
		return
	}
	a.status = a.status.Worse(s)
	if a.network != nil {
		a.network.markDirty()
	}
}

// Evaluate brings the action up to date. It does nothing when the action is
// already up to date or erased. The evaluating flag and the context's
// current action are released on every exit path.
func (a *Action) Evaluate(ec *EvaluationContext) error {
	if a.erased || a.status == StatusUpToDate {
		return nil
	}
	if a.proxy != nil {
		a.status = StatusFailedToEvaluate
		return &EvalError{Action: a.id, Kind: a.kind, Err: a.proxy}
	}
	if a.body == nil {
		a.status = StatusFailedToEvaluate
		return &EvalError{Action: a.id, Kind: a.kind, Err: Invariant("action has no body")}
	}
	if a.evaluating {
		return &EvalError{Action: a.id, Kind: a.kind, Err: ErrReentrantEvaluation}
	}
	if ec == nil {
		ec = a.g.NewContext()
	}

	release := ec.enter(a)
	defer release()
	a.evaluating = true
	defer func() { a.evaluating = false }()

	start := time.Now()
	err := a.body.EvaluateOverride(ec, a)
	observeEvaluation(a.kind, err, time.Since(start))

	switch {
	case err != nil:
		a.status = StatusFailedToEvaluate
		var ee *EvalError
		if !errors.As(err, &ee) {
			err = &EvalError{Action: a.id, Kind: a.kind, Err: err}
		}
	case a.erased:
		a.status = StatusErased
		a.g.retire(a)
	default:
		a.status = StatusUpToDate
		for _, r := range a.Records() {
			if r.status != StatusErased {
				r.SetStatus(StatusUpToDate, false)
			}
		}
	}
	ec.actionDone(a, err)
	return err
}

func (a *Action) String() string {
	return fmt.Sprintf("%s#%d", a.kind, a.id)
}
