package array

import (
	"fmt"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
)

// Record roles of an array action.
const (
	RoleProduct   = "product"
	RoleDest      = "dest"
	RoleSource    = "source"
	RoleSourceRef = "source-ref"
	RolePath      = "path"
	RolePathOwner = "path-owner"
	RoleBase      = "base"
)

// PathLossPolicy decides what happens to a path array whose path is erased.
type PathLossPolicy string

// Path loss policies.
const (
	// PathLossErase erases the array with its path.
	PathLossErase PathLossPolicy = "erase"
	// PathLossKeep removes the action but leaves the items as static geometry.
	PathLossKeep PathLossPolicy = "keep"
)

// ParsePathLossPolicy validates a policy name. The empty string is PathLossErase.
func ParsePathLossPolicy(s string) (PathLossPolicy, error) {
	switch PathLossPolicy(s) {
	case "", PathLossErase:
		return PathLossErase, nil
	case PathLossKeep:
		return PathLossKeep, nil
	}
	return "", fmt.Errorf("unknown path loss policy %q", s)
}

// ArrayBody keeps the items of one array in sync with its parameters and
// sources. Items are block references to the source container placed in
// the destination container; the product entity references the
// destination container at the base transform.
type ArrayBody struct {
	params   Parameters
	base     geom.Matrix
	pathLoss PathLossPolicy
}

// NewArrayBody returns a body evaluating params.
func NewArrayBody(params Parameters) *ArrayBody {
	return &ArrayBody{params: params, base: geom.Identity(), pathLoss: PathLossErase}
}

// Bind implements assoc.Binder: the shape takes the values of the
// action's parameter set.
func (b *ArrayBody) Bind(a *assoc.Action) error {
	return b.params.Bind(a.Parameters())
}

// Kind implements assoc.Body.
func (b *ArrayBody) Kind() string {
	if b.params == nil {
		return "array"
	}
	return b.params.Kind()
}

// Parameters returns the shape parameters.
func (b *ArrayBody) Parameters() Parameters { return b.params }

// Base returns the base transform last captured from the product entity.
func (b *ArrayBody) Base() geom.Matrix { return b.base }

// SetPathLossPolicy sets what happens when the path of a path array is erased.
func (b *ArrayBody) SetPathLossPolicy(p PathLossPolicy) { b.pathLoss = p }

// ControlsItem reports whether the array itself places the item at loc.
// Items replaced by a modify action are not controlled by the array.
func (b *ArrayBody) ControlsItem(loc ItemLocator) bool {
	it := b.params.Item(loc)
	return it != nil && !it.Erased && !it.Replaced
}

type planOp int

const (
	opCreate planOp = iota
	opMove
	opErase
)

func (o planOp) String() string {
	switch o {
	case opCreate:
		return "create"
	case opMove:
		return "move"
	}
	return "erase"
}

type step struct {
	op   planOp
	item *Item
}

// EvaluateOverride implements assoc.Body.
func (b *ArrayBody) EvaluateOverride(ec *assoc.EvaluationContext, a *assoc.Action) error {
	db := ec.Graph().Database()

	product, err := a.ProductRecord()
	if err != nil {
		return err
	}
	if product.Status() == assoc.StatusErased || !db.Exists(product.Object()) {
		ec.Logger().Info("array entity erased", "action", uint64(a.ID()))
		b.eraseProducts(ec, a)
		a.MarkErased(false)
		return nil
	}
	if product.Status() == assoc.StatusChangedDirectly {
		e, err := db.Entity(product.Object())
		if err != nil {
			return fmt.Errorf("reading array entity: %w", err)
		}
		b.base = e.Transform
		product.SetStatus(assoc.StatusUpToDate, false)
	}

	if err := b.params.Bind(a.Parameters()); err != nil {
		return fmt.Errorf("binding parameters: %w", err)
	}

	source := a.Record(RoleSource)
	if source == nil {
		return assoc.Invariant("action %d has no source dependency", a.ID())
	}
	if source.Status() == assoc.StatusErased || !db.Exists(source.Object()) {
		return b.recover(ec, a, fmt.Errorf("%w: source container %s", assoc.ErrDanglingSource, source.Object()))
	}
	for _, ref := range a.Records() {
		if ref.Name() == RoleSourceRef && ref.Status() == assoc.StatusErased {
			a.RemoveDependency(ref)
		}
	}

	if pp, ok := b.params.(PathParameters); ok {
		done, err := b.resolvePath(ec, a, pp)
		if done || err != nil {
			return err
		}
	}

	items, err := b.params.Items()
	if err != nil {
		return err
	}
	b.params.Publish(a.Parameters())

	dest := a.Record(RoleDest)
	if dest == nil {
		return assoc.Invariant("action %d has no destination dependency", a.ID())
	}
	if !db.Exists(dest.Object()) {
		return b.recover(ec, a, fmt.Errorf("%w: destination container %s", assoc.ErrDanglingSource, dest.Object()))
	}

	// Plan against the current drawing, then write.
	var plan []step
	for _, it := range items {
		if it.Replaced {
			continue
		}
		live := it.Entity != drawing.Null && db.Exists(it.Entity)
		switch {
		case it.Erased:
			if live {
				plan = append(plan, step{op: opErase, item: it})
			} else {
				it.Entity = drawing.Null
			}
		case !live:
			plan = append(plan, step{op: opCreate, item: it})
		default:
			e, err := db.Entity(it.Entity)
			if err != nil {
				return fmt.Errorf("reading item %s: %w", it.Locator, err)
			}
			if !e.Transform.Equal(it.Transform, 0) {
				plan = append(plan, step{op: opMove, item: it})
			}
		}
	}

	for _, s := range plan {
		if err := b.apply(db, s, source.Object(), dest.Object()); err != nil {
			return err
		}
		itemsMaterialized.WithLabelValues(s.op.String()).Inc()
	}
	b.params.Purge()
	return nil
}

func (b *ArrayBody) apply(db *drawing.Database, s step, source, dest drawing.ObjectID) error {
	it := s.item
	switch s.op {
	case opCreate:
		id, err := db.AddEntity(dest, drawing.Entity{
			Transform: it.Transform,
			Shape:     drawing.BlockRef{Block: source},
		})
		if err != nil {
			return fmt.Errorf("creating item %s: %w", it.Locator, err)
		}
		it.Entity = id
	case opMove:
		err := db.Modify(it.Entity, func(e *drawing.Entity) error {
			e.Transform = it.Transform
			return nil
		})
		if err != nil {
			return fmt.Errorf("moving item %s: %w", it.Locator, err)
		}
	case opErase:
		if err := db.Erase(it.Entity); err != nil {
			return fmt.Errorf("erasing item %s: %w", it.Locator, err)
		}
		it.Entity = drawing.Null
	}
	return nil
}

// resolvePath canonicalizes the path into the array frame and refreshes the
// item count of a filled, measured path. It reports done when the action
// erased itself.
func (b *ArrayBody) resolvePath(ec *assoc.EvaluationContext, a *assoc.Action, pp PathParameters) (bool, error) {
	db := ec.Graph().Database()
	rec := a.Record(RolePath)
	if rec == nil {
		return false, assoc.Invariant("path array %d has no path dependency", a.ID())
	}
	if rec.Status() == assoc.StatusErased || !db.Exists(rec.Object()) {
		return true, b.pathLost(ec, a, rec)
	}
	e, err := db.Entity(rec.Object())
	if err != nil {
		return false, fmt.Errorf("reading path: %w", err)
	}
	curve, ok := e.Curve()
	if !ok {
		return false, assoc.Invariant("path %s is a %s, not a curve", rec.Object(), drawing.KindOf(e.Shape))
	}
	inv, err := b.base.Inverse()
	if err != nil {
		return true, b.recover(ec, a, fmt.Errorf("%w: %v", assoc.ErrDegenerateGeometry, err))
	}
	local := curve.Transform(inv)
	if local.Length() < geom.Tolerance {
		return true, b.recover(ec, a, fmt.Errorf("%w: path %s has zero length", assoc.ErrDegenerateGeometry, rec.Object()))
	}
	rec.SetCache(assoc.Cache{Samples: local.Samples(), Length: local.Length(), Closed: local.Closed()})
	pp.SetPath(local)

	if pp.FillPath() && pp.Method() == Measure {
		start, end := pp.Offsets()
		n := MeasureCount(local.Length()-start-end, pp.Spacing(), local.Closed())
		if n != pp.ItemCount() {
			ec.Logger().Debug("path item count changed", "action", uint64(a.ID()), "from", pp.ItemCount(), "to", n)
			pp.SetItemCount(n)
		}
	}
	return false, nil
}

// pathLost handles erasure of the path entity.
func (b *ArrayBody) pathLost(ec *assoc.EvaluationContext, a *assoc.Action, rec *assoc.Record) error {
	cause := fmt.Errorf("%w: path %s", assoc.ErrDanglingSource, rec.Object())
	if b.pathLoss != PathLossKeep {
		return b.recover(ec, a, cause)
	}
	a.RemoveDependency(rec)
	a.RemoveDependency(a.Record(RolePathOwner))
	// Overrides become static with the items they replace.
	for _, m := range Overrides(a) {
		m.MarkErased(true)
		ec.Recovered(m, fmt.Errorf("%w: base array %d kept as static geometry", assoc.ErrDanglingSource, a.ID()))
	}
	a.MarkErased(true)
	ec.Recovered(a, cause)
	return nil
}

// recover handles a local failure: the array erases everything it generated
// and leaves the graph.
func (b *ArrayBody) recover(ec *assoc.EvaluationContext, a *assoc.Action, cause error) error {
	b.eraseProducts(ec, a)
	a.MarkErased(false)
	ec.Recovered(a, cause)
	return nil
}

// eraseProducts erases the product entity, the destination container with
// every item in it, and the private source container.
func (b *ArrayBody) eraseProducts(ec *assoc.EvaluationContext, a *assoc.Action) {
	db := ec.Graph().Database()
	for _, role := range []string{RoleProduct, RoleDest, RoleSource} {
		r := a.Record(role)
		if r == nil || !db.Exists(r.Object()) {
			continue
		}
		if err := db.Erase(r.Object()); err != nil {
			ec.Logger().Warn("erasing array geometry", "action", uint64(a.ID()), "role", role, "error", err)
		}
	}
	for _, it := range b.params.All() {
		if it.Entity != drawing.Null {
			itemsMaterialized.WithLabelValues(opErase.String()).Inc()
		}
		it.Entity = drawing.Null
	}
}
