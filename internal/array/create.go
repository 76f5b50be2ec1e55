package array

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
)

// Created is the result of creating an array or an override: the product
// entity (the private container for an override) and the new action.
type Created struct {
	Product drawing.ObjectID
	Action  *assoc.Action
}

// Spec describes an array to create.
type Spec struct {
	// Owner is the container that receives the array entity; its network
	// receives the action.
	Owner   drawing.ObjectID
	Sources []drawing.ObjectID
	// Base is the base point in world coordinates.
	Base geom.Vec
	// Params is the shape of the array. When nil, the registry default of
	// Kind is bound from Values instead.
	Params Parameters
	Kind   string
	Values map[string]any
	// Path is the path entity of a path array.
	Path     drawing.ObjectID
	PathLoss PathLossPolicy
}

// CreateRectangular creates a rectangular array of sources.
func CreateRectangular(g *assoc.Graph, owner drawing.ObjectID, sources []drawing.ObjectID, base geom.Vec, p *Rectangular) (Created, error) {
	return Create(g, Spec{Owner: owner, Sources: sources, Base: base, Params: p})
}

// CreatePolar creates a polar array of sources. The center of p is in world
// coordinates and is converted into the array frame.
func CreatePolar(g *assoc.Graph, owner drawing.ObjectID, sources []drawing.ObjectID, base geom.Vec, p *Polar) (Created, error) {
	p.Center = r3.Sub(p.Center, base)
	return Create(g, Spec{Owner: owner, Sources: sources, Base: base, Params: p})
}

// CreatePath creates an array of sources along the curve entity path.
func CreatePath(g *assoc.Graph, owner drawing.ObjectID, sources []drawing.ObjectID, base geom.Vec, path drawing.ObjectID, p *Path) (Created, error) {
	return Create(g, Spec{Owner: owner, Sources: sources, Base: base, Params: p, Path: path})
}

// Create builds the containers, the array entity and the action of an
// array. The sources are copied into a private source container relative
// to the base point; originals nothing else watches are erased.
func Create(g *assoc.Graph, s Spec) (Created, error) {
	db := g.Database()
	if len(s.Sources) == 0 {
		return Created{}, fmt.Errorf("%w: no source entities", ErrInvalidParameters)
	}
	kind := s.Kind
	if s.Params != nil {
		kind = s.Params.Kind()
	}
	if kind == "" {
		return Created{}, fmt.Errorf("%w: no parameters", ErrInvalidParameters)
	}
	net, err := g.Network(s.Owner)
	if err != nil {
		return Created{}, fmt.Errorf("array network: %w", err)
	}
	a, body, err := newArrayAction(g, net, kind, s)
	if err != nil {
		return Created{}, err
	}
	fail := func(err error) (Created, error) {
		g.RemoveAction(a)
		return Created{}, err
	}

	_, isPath := body.params.(PathParameters)
	if isPath {
		e, err := db.Entity(s.Path)
		if err != nil {
			return fail(fmt.Errorf("path: %w", err))
		}
		if _, ok := e.Curve(); !ok {
			return fail(fmt.Errorf("%w: path %s is a %s", ErrInvalidParameters, s.Path, drawing.KindOf(e.Shape)))
		}
	}

	source := db.AddContainer("*A-source")
	toLocal := geom.Translation(r3.Scale(-1, s.Base))
	refs, err := copySources(db, s.Sources, source, toLocal)
	if err != nil {
		return fail(err)
	}
	dest := db.AddContainer("*A-items")
	product, err := db.AddEntity(s.Owner, drawing.Entity{
		Transform: geom.Translation(s.Base),
		Shape:     drawing.BlockRef{Block: dest},
	})
	if err != nil {
		return fail(fmt.Errorf("array entity: %w", err))
	}

	body.base = geom.Translation(s.Base)
	if s.PathLoss != "" {
		body.pathLoss = s.PathLoss
	}

	deps := []assoc.Dependency{
		{Object: product, Name: RoleProduct, Read: true, Write: true},
		{Object: dest, Name: RoleDest, Write: true},
		{Object: source, Name: RoleSource, Read: true},
	}
	for _, ref := range refs {
		deps = append(deps, assoc.Dependency{Object: ref, Name: RoleSourceRef, Read: true})
	}
	if isPath {
		deps = append(deps,
			assoc.Dependency{Object: s.Path, Name: RolePath, Read: true},
			assoc.Dependency{Object: db.Owner(s.Path), Name: RolePathOwner, Read: true},
		)
	}
	for i, d := range deps {
		d.Order = int32(i)
		if _, err := a.AddDependency(d); err != nil {
			return fail(fmt.Errorf("array dependency %s: %w", d.Name, err))
		}
	}
	body.params.Publish(a.Parameters())
	g.Logger().Debug("array created", "action", uint64(a.ID()), "kind", a.Kind(), "product", uint64(product))
	return Created{Product: product, Action: a}, nil
}

// newArrayAction adds an action of kind built by the graph's registry. A
// given shape replaces the registry default; otherwise the default is bound
// from the literal values.
func newArrayAction(g *assoc.Graph, net *assoc.Network, kind string, s Spec) (*assoc.Action, *ArrayBody, error) {
	a, err := g.NewActionOfKind(net, kind)
	if err != nil {
		return nil, nil, fmt.Errorf("array action: %w", err)
	}
	body, ok := a.Body().(*ArrayBody)
	if !ok {
		g.RemoveAction(a)
		return nil, nil, assoc.Invariant("kind %q does not build an array body", kind)
	}
	if s.Params != nil {
		body.params = s.Params
		return a, body, nil
	}
	names := make([]string, 0, len(s.Values))
	for name := range s.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a.Parameters().Set(name, s.Values[name])
	}
	if err := a.Bind(); err != nil {
		g.RemoveAction(a)
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return a, body, nil
}

// copySources clones sources into container with the given transform
// prepended and erases originals without reactors. It returns the
// containers referenced by block reference sources, which the array must
// evaluate after.
func copySources(db *drawing.Database, sources []drawing.ObjectID, container drawing.ObjectID, m geom.Matrix) ([]drawing.ObjectID, error) {
	var refs []drawing.ObjectID
	seen := make(map[drawing.ObjectID]bool)
	for _, id := range sources {
		e, err := db.Entity(id)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", id, err)
		}
		cid, err := db.Clone(id, container)
		if err != nil {
			return nil, fmt.Errorf("copying source %s: %w", id, err)
		}
		err = db.Modify(cid, func(c *drawing.Entity) error {
			c.Transform = m.Mul(e.Transform)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if ref, ok := e.Shape.(drawing.BlockRef); ok && !seen[ref.Block] {
			seen[ref.Block] = true
			refs = append(refs, ref.Block)
		}
		if len(db.Reactors(id)) == 0 {
			if err := db.Erase(id); err != nil {
				return nil, fmt.Errorf("consuming source %s: %w", id, err)
			}
		}
	}
	return refs, nil
}

// CreateModify overrides the items at locs of arrayAction with sources.
// basePoint is the point of the replacement content placed on each item's
// origin. A locator already replaced by another override is an
// *OverrideConflictError.
func CreateModify(g *assoc.Graph, arrayAction *assoc.Action, locs []ItemLocator, sources []drawing.ObjectID, basePoint geom.Vec) (Created, error) {
	db := g.Database()
	ab, ok := arrayAction.Body().(*ArrayBody)
	if !ok || arrayAction.IsErased() {
		return Created{}, assoc.Invariant("action %d is not a live array", arrayAction.ID())
	}
	if len(locs) == 0 || len(sources) == 0 {
		return Created{}, fmt.Errorf("%w: override needs items and sources", ErrInvalidParameters)
	}
	sorted := append([]ItemLocator(nil), locs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	var errs []error
	for i, loc := range sorted {
		if i > 0 && sorted[i-1] == loc {
			errs = append(errs, fmt.Errorf("%w: locator %s given twice", ErrInvalidParameters, loc))
			continue
		}
		it := ab.params.Item(loc)
		switch {
		case it == nil || it.Erased:
			errs = append(errs, fmt.Errorf("%w: item %s", assoc.ErrNotFound, loc))
		case it.Replaced:
			errs = append(errs, &OverrideConflictError{Array: arrayAction.ID(), Locator: loc, Claims: 2})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Created{}, err
	}
	product := arrayAction.Record(RoleProduct)
	dest := arrayAction.Record(RoleDest)
	if product == nil || dest == nil {
		return Created{}, assoc.Invariant("array %d is missing its product or destination", arrayAction.ID())
	}

	private := db.AddContainer("*A-modify")
	if _, err := copySources(db, sources, private, geom.Identity()); err != nil {
		return Created{}, err
	}
	a, err := g.NewActionOfKind(arrayAction.Network(), KindModify)
	if err != nil {
		return Created{}, fmt.Errorf("modify action: %w", err)
	}
	a.Parameters().Set(ParamBaseArray, int(arrayAction.ID()))
	a.Parameters().Set(ParamLocators, sorted)
	a.Parameters().Set(ParamBasePoint, basePoint)
	a.Parameters().Set("items", len(sorted))
	if err := a.Bind(); err != nil {
		g.RemoveAction(a)
		return Created{}, err
	}

	deps := []assoc.Dependency{
		{Object: private, Name: RoleSource, Read: true, Order: 0},
		{Object: dest.Object(), Name: RoleDest, Read: true, Order: 1},
		{Object: product.Object(), Name: RoleBase, Read: true, Order: 2},
	}
	for _, d := range deps {
		if _, err := a.AddDependency(d); err != nil {
			g.RemoveAction(a)
			return Created{}, fmt.Errorf("modify dependency %s: %w", d.Name, err)
		}
	}
	for _, loc := range sorted {
		it := ab.params.Item(loc)
		it.Replaced = true
		it.Owner = a.ID()
	}
	return Created{Product: private, Action: a}, nil
}

// Register adds the array and modify bodies to reg. The factories build
// placeholder shapes (a single item); Bind replaces them with the values in
// the action's parameter set, and every evaluation binds them again.
func Register(reg *assoc.Registry) error {
	return errors.Join(
		reg.Register(KindRectangular, func() assoc.Body { return NewArrayBody(NewRectangular(1, 1, 0, 0)) }),
		reg.Register(KindPolar, func() assoc.Body { return NewArrayBody(NewPolar(1, 360, geom.Vec{})) }),
		reg.Register(KindPath, func() assoc.Body { return NewArrayBody(NewPath(1)) }),
		reg.Register(KindModify, func() assoc.Body { return &ModifyBody{align: geom.Identity()} }),
	)
}

// NewRegistry returns a registry holding the array and modify bodies.
func NewRegistry() *assoc.Registry {
	reg := assoc.NewRegistry()
	// A fresh registry has no kinds to collide with.
	_ = Register(reg)
	return reg
}

// ParametersOf returns the shape parameters of an array action.
func ParametersOf(a *assoc.Action) (Parameters, bool) {
	ab, ok := a.Body().(*ArrayBody)
	if !ok {
		return nil, false
	}
	return ab.params, true
}
