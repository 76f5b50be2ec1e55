package drawing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/papapumpkin/assoc/internal/geom"
)

// ErrNotFound is returned when an id does not name an object in the database.
var ErrNotFound = errors.New("object not found")

// ErrErased is returned when an operation needs a live object but the object
// has been erased.
var ErrErased = errors.New("object erased")

// ErrNotContainer is returned when an entity id is used where a container is required.
var ErrNotContainer = errors.New("object is not a container")

// ErrNotEntity is returned when a container id is used where an entity is required.
var ErrNotEntity = errors.New("object is not an entity")

// ErrOpenForWrite is returned when Modify is re-entered for an object that is
// already open for write.
var ErrOpenForWrite = errors.New("object already open for write")

// ErrAlreadyAttached is returned when a reactor is attached twice to the same object.
var ErrAlreadyAttached = errors.New("reactor already attached")

// ReactorID identifies an observer attached to objects. The database stores
// only ids; the Reactor set with SetReactor resolves them.
type ReactorID uint64

// Reactor receives change notifications for attached reactor ids.
type Reactor interface {
	Modified(id ReactorID, obj ObjectID)
	Erased(id ReactorID, obj ObjectID)
	Copied(id ReactorID, from, to ObjectID)
}

type reactorEntry struct {
	id    ReactorID
	order int32
}

type object struct {
	id       ObjectID
	owner    ObjectID
	name     string
	erased   bool
	open     bool
	entity   *Entity    // nil for containers
	contents []ObjectID // containers only, insertion ordered
	reactors []reactorEntry
}

func (o *object) isContainer() bool { return o.entity == nil }

// Container is a read-only view of a container.
type Container struct {
	ID       ObjectID
	Name     string
	Owner    ObjectID
	Entities []ObjectID
}

// Database holds every object of one drawing. It is not safe for concurrent
// use; evaluation is single-threaded.
type Database struct {
	next       ObjectID
	objects    map[ObjectID]*object
	reactor    Reactor
	modelSpace ObjectID
	writes     int
}

// New creates a database containing an empty model space container.
func New() *Database {
	db := &Database{objects: make(map[ObjectID]*object)}
	db.modelSpace = db.AddContainer("*Model_Space")
	return db
}

// ModelSpace returns the top-level container.
func (db *Database) ModelSpace() ObjectID { return db.modelSpace }

// SetReactor installs the notification sink. A nil reactor drops notifications.
func (db *Database) SetReactor(r Reactor) { db.reactor = r }

// Writes returns the number of mutations performed since the database was created.
func (db *Database) Writes() int { return db.writes }

func (db *Database) alloc() ObjectID {
	db.next++
	return db.next
}

func (db *Database) lookup(id ObjectID) (*object, error) {
	o, ok := db.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return o, nil
}

func (db *Database) live(id ObjectID) (*object, error) {
	o, err := db.lookup(id)
	if err != nil {
		return nil, err
	}
	if o.erased {
		return nil, fmt.Errorf("%w: %s", ErrErased, id)
	}
	return o, nil
}

// AddContainer creates a new top-level container.
func (db *Database) AddContainer(name string) ObjectID {
	id := db.alloc()
	db.objects[id] = &object{id: id, name: name}
	db.writes++
	return id
}

// AddEntity appends a copy of e to the owner container and returns its id.
// The ID and Owner fields of e are ignored.
func (db *Database) AddEntity(owner ObjectID, e Entity) (ObjectID, error) {
	c, err := db.live(owner)
	if err != nil {
		return Null, err
	}
	if !c.isContainer() {
		return Null, fmt.Errorf("%w: %s", ErrNotContainer, owner)
	}
	id := db.alloc()
	e.ID = id
	e.Owner = owner
	e.Shape = cloneShape(e.Shape)
	if e.Transform == (geom.Matrix{}) {
		e.Transform = geom.Identity()
	}
	db.objects[id] = &object{id: id, owner: owner, entity: &e}
	c.contents = append(c.contents, id)
	db.writes++
	db.notifyModified(c)
	return id, nil
}

// Entity returns a copy of the live entity id.
func (db *Database) Entity(id ObjectID) (Entity, error) {
	o, err := db.live(id)
	if err != nil {
		return Entity{}, err
	}
	if o.isContainer() {
		return Entity{}, fmt.Errorf("%w: %s", ErrNotEntity, id)
	}
	e := *o.entity
	e.Shape = cloneShape(e.Shape)
	return e, nil
}

// Container returns a view of the live container id; erased entities are omitted.
func (db *Database) Container(id ObjectID) (Container, error) {
	o, err := db.live(id)
	if err != nil {
		return Container{}, err
	}
	if !o.isContainer() {
		return Container{}, fmt.Errorf("%w: %s", ErrNotContainer, id)
	}
	return Container{ID: id, Name: o.name, Owner: o.owner, Entities: db.liveContents(o)}, nil
}

func (db *Database) liveContents(c *object) []ObjectID {
	out := make([]ObjectID, 0, len(c.contents))
	for _, id := range c.contents {
		if e := db.objects[id]; e != nil && !e.erased {
			out = append(out, id)
		}
	}
	return out
}

// Exists reports whether id names a live object.
func (db *Database) Exists(id ObjectID) bool {
	o, ok := db.objects[id]
	return ok && !o.erased
}

// Owner returns the container owning id, or Null for containers and unknown ids.
func (db *Database) Owner(id ObjectID) ObjectID {
	if o, ok := db.objects[id]; ok {
		return o.owner
	}
	return Null
}

// Modify opens the entity for write, calls fn, and releases it. Reactors
// attached to the entity and its container are told about the change only
// when fn succeeds. The entity is released on every path.
func (db *Database) Modify(id ObjectID, fn func(*Entity) error) error {
	o, err := db.live(id)
	if err != nil {
		return err
	}
	if o.isContainer() {
		return fmt.Errorf("%w: %s", ErrNotEntity, id)
	}
	if o.open {
		return fmt.Errorf("%w: %s", ErrOpenForWrite, id)
	}
	o.open = true
	defer func() { o.open = false }()

	e := *o.entity
	e.Shape = cloneShape(e.Shape)
	if err := fn(&e); err != nil {
		return err
	}
	e.ID, e.Owner = o.entity.ID, o.entity.Owner
	*o.entity = e
	db.writes++

	db.notifyModified(o)
	if c, ok := db.objects[o.owner]; ok && !c.erased {
		db.notifyModified(c)
	}
	return nil
}

// Erase marks id erased. Erasing a container erases its contents first.
// Reactors on the object are told it was erased; reactors on its container
// are told the container was modified.
func (db *Database) Erase(id ObjectID) error {
	o, err := db.live(id)
	if err != nil {
		return err
	}
	if o.isContainer() {
		for _, child := range db.liveContents(o) {
			if err := db.eraseOne(db.objects[child]); err != nil {
				return err
			}
		}
	}
	if err := db.eraseOne(o); err != nil {
		return err
	}
	if c, ok := db.objects[o.owner]; ok && !c.erased {
		db.notifyModified(c)
	}
	return nil
}

func (db *Database) eraseOne(o *object) error {
	if o.open {
		return fmt.Errorf("%w: %s", ErrOpenForWrite, o.id)
	}
	o.erased = true
	db.writes++
	for _, r := range db.snapshot(o) {
		if db.reactor != nil {
			db.reactor.Erased(r, o.id)
		}
	}
	return nil
}

// Clone copies the entity id into the owner container. Reactors are not
// copied; reactors on the source are told about the copy.
func (db *Database) Clone(id, owner ObjectID) (ObjectID, error) {
	src, err := db.Entity(id)
	if err != nil {
		return Null, err
	}
	nid, err := db.AddEntity(owner, src)
	if err != nil {
		return Null, err
	}
	if o := db.objects[id]; db.reactor != nil {
		for _, r := range db.snapshot(o) {
			db.reactor.Copied(r, id, nid)
		}
	}
	return nid, nil
}

// AttachReactor inserts rid into the reactor list of obj. The list is kept
// sorted by order; equal orders keep attach order.
func (db *Database) AttachReactor(obj ObjectID, rid ReactorID, order int32) error {
	o, err := db.live(obj)
	if err != nil {
		return err
	}
	for _, r := range o.reactors {
		if r.id == rid {
			return fmt.Errorf("%w: reactor %d on %s", ErrAlreadyAttached, rid, obj)
		}
	}
	i := sort.Search(len(o.reactors), func(i int) bool { return o.reactors[i].order > order })
	o.reactors = append(o.reactors, reactorEntry{})
	copy(o.reactors[i+1:], o.reactors[i:])
	o.reactors[i] = reactorEntry{id: rid, order: order}
	return nil
}

// DetachReactor removes rid from obj. Unknown objects and reactors are ignored.
func (db *Database) DetachReactor(obj ObjectID, rid ReactorID) {
	o, ok := db.objects[obj]
	if !ok {
		return
	}
	for i, r := range o.reactors {
		if r.id == rid {
			o.reactors = append(o.reactors[:i], o.reactors[i+1:]...)
			return
		}
	}
}

// Reactors returns the reactor ids attached to obj in notification order.
func (db *Database) Reactors(obj ObjectID) []ReactorID {
	o, ok := db.objects[obj]
	if !ok {
		return nil
	}
	return db.snapshot(o)
}

// snapshot copies the reactor list so reactors may detach while being notified.
func (db *Database) snapshot(o *object) []ReactorID {
	ids := make([]ReactorID, len(o.reactors))
	for i, r := range o.reactors {
		ids[i] = r.id
	}
	return ids
}

func (db *Database) notifyModified(o *object) {
	if db.reactor == nil {
		return
	}
	for _, r := range db.snapshot(o) {
		db.reactor.Modified(r, o.id)
	}
}
