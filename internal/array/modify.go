package array

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
)

// ModifyBody replaces a set of items of a base array with the content of a
// private source container. It evaluates after the base array and places
// each replacement at the item's transform composed with its own base
// point alignment.
type ModifyBody struct {
	array    *ArrayBody
	base     assoc.ActionID
	self     assoc.ActionID
	locators []ItemLocator
	align    geom.Matrix
}

// Parameters of a modify action read by Bind.
const (
	ParamBaseArray = "array"
	ParamLocators  = "locators"
	ParamBasePoint = "basePoint"
)

// Kind implements assoc.Body.
func (b *ModifyBody) Kind() string { return KindModify }

// Bind implements assoc.Binder. It resolves the base array, the overridden
// locators and the base point alignment from the action's parameters.
func (b *ModifyBody) Bind(a *assoc.Action) error {
	ps := a.Parameters()
	id, err := ps.Int(ParamBaseArray)
	if err != nil {
		return fmt.Errorf("modify base array: %w", err)
	}
	base := a.Graph().Action(assoc.ActionID(id))
	if base == nil || base.IsErased() {
		return fmt.Errorf("%w: base array %d", assoc.ErrNotFound, id)
	}
	ab, ok := base.Body().(*ArrayBody)
	if !ok {
		return assoc.Invariant("modify base %s is not an array", base)
	}
	v, err := ps.Get(ParamLocators)
	if err != nil {
		return fmt.Errorf("modify locators: %w", err)
	}
	locs, ok := v.([]ItemLocator)
	if !ok || len(locs) == 0 {
		return fmt.Errorf("%w: modify locators are %T", ErrInvalidParameters, v)
	}
	var basePoint geom.Vec
	if err := bindVec(ps, ParamBasePoint, &basePoint); err != nil {
		return err
	}

	sorted := append([]ItemLocator(nil), locs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	b.array = ab
	b.base = base.ID()
	b.self = a.ID()
	b.locators = sorted
	b.align = geom.Translation(r3.Scale(-1, basePoint))
	return nil
}

// BaseAction returns the id of the array action being overridden.
func (b *ModifyBody) BaseAction() assoc.ActionID { return b.base }

// Locators returns the overridden locators in order.
func (b *ModifyBody) Locators() []ItemLocator {
	return append([]ItemLocator(nil), b.locators...)
}

// ControlsItem reports whether this override places the item at loc.
func (b *ModifyBody) ControlsItem(loc ItemLocator) bool {
	if b.array == nil || !b.claims(loc) {
		return false
	}
	it := b.array.params.Item(loc)
	return it != nil && !it.Erased && it.Replaced && it.Owner == b.self
}

func (b *ModifyBody) claims(loc ItemLocator) bool {
	i := sort.Search(len(b.locators), func(i int) bool { return !b.locators[i].Less(loc) })
	return i < len(b.locators) && b.locators[i] == loc
}

// EvaluateOverride implements assoc.Body.
func (b *ModifyBody) EvaluateOverride(ec *assoc.EvaluationContext, a *assoc.Action) error {
	g := ec.Graph()
	db := g.Database()

	source := a.Record(RoleSource)
	if source == nil {
		return assoc.Invariant("modify action %d has no source dependency", a.ID())
	}
	if source.Status() == assoc.StatusErased || !db.Exists(source.Object()) {
		b.release(ec, a)
		b.erasePrivate(ec, a)
		a.MarkErased(false)
		ec.Logger().Info("modify source erased, items released", "action", uint64(a.ID()), "base", uint64(b.base))
		return nil
	}

	baseAction := g.Action(b.base)
	baseRec := a.Record(RoleBase)
	dest := a.Record(RoleDest)
	if baseAction == nil || baseAction.IsErased() || b.array == nil ||
		baseRec == nil || baseRec.Status() == assoc.StatusErased || !db.Exists(baseRec.Object()) ||
		dest == nil || !db.Exists(dest.Object()) {
		b.release(ec, a)
		b.erasePrivate(ec, a)
		a.MarkErased(false)
		ec.Recovered(a, fmt.Errorf("%w: base array %d", assoc.ErrDanglingSource, b.base))
		return nil
	}

	var plan []step
	for _, loc := range b.locators {
		it := b.array.params.Item(loc)
		if it == nil {
			continue
		}
		if !it.Replaced || it.Owner != a.ID() {
			return &OverrideConflictError{Array: b.base, Locator: loc, Claims: 2}
		}
		live := it.Entity != drawing.Null && db.Exists(it.Entity)
		if it.Erased {
			// The base array no longer has this item.
			if live {
				plan = append(plan, step{op: opErase, item: it})
			} else {
				it.Entity = drawing.Null
			}
			continue
		}
		if !live {
			plan = append(plan, step{op: opCreate, item: it})
			continue
		}
		e, err := db.Entity(it.Entity)
		if err != nil {
			return fmt.Errorf("reading item %s: %w", loc, err)
		}
		ref, isRef := e.Shape.(drawing.BlockRef)
		if !isRef || ref.Block != source.Object() || !e.Transform.Equal(it.Transform.Mul(b.align), 0) {
			plan = append(plan, step{op: opMove, item: it})
		}
	}

	for _, s := range plan {
		if err := b.apply(db, s, source.Object(), dest.Object()); err != nil {
			return err
		}
		itemsMaterialized.WithLabelValues(s.op.String()).Inc()
	}
	return nil
}

func (b *ModifyBody) apply(db *drawing.Database, s step, source, dest drawing.ObjectID) error {
	it := s.item
	place := it.Transform.Mul(b.align)
	switch s.op {
	case opCreate:
		id, err := db.AddEntity(dest, drawing.Entity{Transform: place, Shape: drawing.BlockRef{Block: source}})
		if err != nil {
			return fmt.Errorf("creating override %s: %w", it.Locator, err)
		}
		it.Entity = id
	case opMove:
		err := db.Modify(it.Entity, func(e *drawing.Entity) error {
			e.Transform = place
			e.Shape = drawing.BlockRef{Block: source}
			return nil
		})
		if err != nil {
			return fmt.Errorf("placing override %s: %w", it.Locator, err)
		}
	case opErase:
		if err := db.Erase(it.Entity); err != nil {
			return fmt.Errorf("erasing override %s: %w", it.Locator, err)
		}
		it.Entity = drawing.Null
	}
	return nil
}

// release hands the overridden items back to the base array. Their
// entities are erased so the array recreates them from its own source.
func (b *ModifyBody) release(ec *assoc.EvaluationContext, a *assoc.Action) {
	if b.array == nil {
		return
	}
	db := ec.Graph().Database()
	for _, loc := range b.locators {
		it := b.array.params.Item(loc)
		if it == nil || it.Owner != a.ID() {
			continue
		}
		if it.Entity != drawing.Null && db.Exists(it.Entity) {
			if err := db.Erase(it.Entity); err != nil {
				ec.Logger().Warn("erasing override", "action", uint64(a.ID()), "locator", loc.String(), "error", err)
			}
			itemsMaterialized.WithLabelValues(opErase.String()).Inc()
		}
		it.Entity = drawing.Null
		it.Replaced = false
		it.Owner = 0
	}
	if base := ec.Graph().Action(b.base); base != nil && !base.IsErased() {
		base.Touch()
	}
}

func (b *ModifyBody) erasePrivate(ec *assoc.EvaluationContext, a *assoc.Action) {
	db := ec.Graph().Database()
	if r := a.Record(RoleSource); r != nil && db.Exists(r.Object()) {
		if err := db.Erase(r.Object()); err != nil {
			ec.Logger().Warn("erasing modify source", "action", uint64(a.ID()), "error", err)
		}
	}
}
