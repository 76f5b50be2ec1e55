package assoc

import (
	"fmt"

	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
)

// RecordID addresses a dependency record in the Graph arena. It doubles as
// the reactor id stored on the watched object.
type RecordID = drawing.ReactorID

// Dependency describes a record to create.
type Dependency struct {
	Object drawing.ObjectID
	// Name tags the role of the record within its action ("product", "source", ...).
	Name           string
	Read           bool
	Write          bool
	Order          int32
	StateDependent bool
}

// Cache is geometry an action keeps on a record between evaluations.
type Cache struct {
	Samples []geom.Vec
	Length  float64
	Closed  bool
}

// Record is an edge from an action to a watched drawing object.
type Record struct {
	g      *Graph
	id     RecordID
	action ActionID

	object   drawing.ObjectID
	attached bool

	name           string
	read, write    bool
	order          int32
	stateDependent bool
	status         Status
	cache          Cache
}

// ID returns the arena id of the record.
func (r *Record) ID() RecordID { return r.id }

// ActionID returns the owning action's id.
func (r *Record) ActionID() ActionID { return r.action }

// Object returns the watched object, which stays set after Detach.
func (r *Record) Object() drawing.ObjectID { return r.object }

// Name returns the role tag given at creation.
func (r *Record) Name() string { return r.name }

// IsRead reports read intent.
func (r *Record) IsRead() bool { return r.read }

// IsWrite reports write intent.
func (r *Record) IsWrite() bool { return r.write }

// Order returns the ordering key used among records watching the same object.
func (r *Record) Order() int32 { return r.order }

// IsObjectStateDependent reports whether the record cares about state-only
// changes of its object.
func (r *Record) IsObjectStateDependent() bool { return r.stateDependent }

// Status returns the record status.
func (r *Record) Status() Status { return r.status }

// IsAttached reports whether the record is on its object's reactor list.
func (r *Record) IsAttached() bool { return r.attached }

// Cache returns the cached geometry.
func (r *Record) Cache() Cache { return r.cache }

// SetCache replaces the cached geometry.
func (r *Record) SetCache(c Cache) { r.cache = c }

// SetStatus sets the record status. When notify is true and s is not
// UpToDate, the owning action is scheduled for evaluation.
func (r *Record) SetStatus(s Status, notify bool) {
	from := r.status
	r.status = s
	if from != s {
		r.g.recordStatusChanged(r, from)
	}
	if !notify || s == StatusUpToDate {
		return
	}
	if a := r.g.actions[r.action]; a != nil {
		a.raise(s)
	}
}

// Attach inserts the record into obj's reactor list at the position given
// by its order. It fails if the record is already attached.
func (r *Record) Attach(obj drawing.ObjectID) error {
	if r.attached {
		return fmt.Errorf("%w: record %d on %s", ErrAlreadyAttached, r.id, r.object)
	}
	if err := r.g.db.AttachReactor(obj, r.id, r.order); err != nil {
		return fmt.Errorf("attaching record %d: %w", r.id, err)
	}
	r.object = obj
	r.attached = true
	return nil
}

// Detach removes the record from its object's reactor list. Detaching a
// record that is not attached does nothing.
func (r *Record) Detach() {
	if !r.attached {
		return
	}
	r.g.db.DetachReactor(r.object, r.id)
	r.attached = false
}

// modified handles a change of the watched object.
func (r *Record) modified() {
	a := r.g.actions[r.action]
	if a == nil || a.evaluating || a.erased {
		return
	}
	// Objects an action only writes are its output, not its input.
	if !r.read {
		return
	}
	r.SetStatus(StatusChangedDirectly, true)
}

// erased handles erasure of the watched object.
func (r *Record) erased() {
	r.Detach()
	a := r.g.actions[r.action]
	r.SetStatus(StatusErased, a != nil && !a.evaluating && !a.erased)
}
