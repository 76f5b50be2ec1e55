package manifest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papapumpkin/assoc/internal/array"
	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
	"github.com/papapumpkin/assoc/internal/telemetry"
)

// Options configures how a session builds and evaluates its graph.
type Options struct {
	Logger    *slog.Logger
	Emitter   *telemetry.Emitter
	MaxPasses int
	// PathLoss applies to path arrays whose manifest entry sets none.
	PathLoss array.PathLossPolicy
	// OnAction is called after every action evaluation.
	OnAction func(*assoc.Action, error)
}

// ArrayRef ties a manifest array to its live action.
type ArrayRef struct {
	Name    string
	Spec    ArraySpec
	Action  *assoc.Action
	Product drawing.ObjectID // Null for proxies
}

// OverrideRef ties a manifest override to its live action.
type OverrideRef struct {
	Name    string
	Spec    OverrideSpec
	Action  *assoc.Action
	Private drawing.ObjectID // Null for proxies
}

// entityRef locates the live object of a manifest entity. Entities consumed
// by an array live in its source container, placed relative to offset.
type entityRef struct {
	id     drawing.ObjectID
	offset geom.Vec
}

// Session is a drawing built from a manifest together with its graph.
type Session struct {
	manifest  *Manifest
	db        *drawing.Database
	graph     *assoc.Graph
	opts      Options
	logger    *slog.Logger
	entities  map[string]entityRef
	arrays    map[string]*ArrayRef
	overrides map[string]*OverrideRef
	names     map[assoc.ActionID]string
}

// Build creates a drawing database and graph for m. Overrides are created
// after the arrays they modify have been evaluated once, since they claim
// existing items. Build returns the session even when parts of it failed;
// the error lists every failure.
func Build(m *Manifest, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.PathLoss == "" {
		opts.PathLoss = array.PathLossErase
	}
	db := drawing.New()
	gopts := []assoc.Option{
		assoc.WithLogger(opts.Logger),
		assoc.WithEmitter(opts.Emitter),
		assoc.WithRegistry(array.NewRegistry()),
	}
	if opts.MaxPasses > 0 {
		gopts = append(gopts, assoc.WithMaxPasses(opts.MaxPasses))
	}
	s := &Session{
		manifest:  m,
		db:        db,
		graph:     assoc.NewGraph(db, gopts...),
		opts:      opts,
		logger:    opts.Logger.With("manifest", m.Name),
		entities:  make(map[string]entityRef),
		arrays:    make(map[string]*ArrayRef),
		overrides: make(map[string]*OverrideRef),
		names:     make(map[assoc.ActionID]string),
	}

	var errs []error
	for _, e := range m.Entities {
		if err := s.addEntity(e); err != nil {
			errs = append(errs, err)
		}
	}
	for _, a := range m.Arrays {
		if err := s.addArray(a); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.addOverrides(m.Overrides, false); err != nil {
		errs = append(errs, err)
	}
	return s, errors.Join(errs...)
}

// Manifest returns the manifest the session currently reflects.
func (s *Session) Manifest() *Manifest { return s.manifest }

// Database returns the drawing database.
func (s *Session) Database() *drawing.Database { return s.db }

// Graph returns the associative graph.
func (s *Session) Graph() *assoc.Graph { return s.graph }

// Array returns the live array called name, or nil.
func (s *Session) Array(name string) *ArrayRef { return s.arrays[name] }

// Arrays returns the live arrays in manifest order.
func (s *Session) Arrays() []*ArrayRef {
	out := make([]*ArrayRef, 0, len(s.arrays))
	for _, a := range s.manifest.Arrays {
		if ref, ok := s.arrays[a.Name]; ok {
			out = append(out, ref)
		}
	}
	return out
}

// Override returns the live override called name, or nil.
func (s *Session) Override(name string) *OverrideRef { return s.overrides[name] }

// Overrides returns the live overrides in manifest order.
func (s *Session) Overrides() []*OverrideRef {
	out := make([]*OverrideRef, 0, len(s.overrides))
	for _, o := range s.manifest.Overrides {
		if ref, ok := s.overrides[o.Name]; ok {
			out = append(out, ref)
		}
	}
	return out
}

// EntityID returns the live object of the entity called name.
func (s *Session) EntityID(name string) (drawing.ObjectID, bool) {
	ref, ok := s.entities[name]
	if !ok || !s.db.Exists(ref.id) {
		return drawing.Null, false
	}
	return ref.id, true
}

// ActionName returns the manifest name of an action, or "" when the action
// was not created from the manifest.
func (s *Session) ActionName(id assoc.ActionID) string { return s.names[id] }

// Result summarizes one Update.
type Result struct {
	RunID     string
	Evaluated int
	Failed    int
	Mutations int
}

// Update evaluates every network of the drawing. Failures of individual
// actions are returned joined; the other actions are still evaluated.
func (s *Session) Update() (Result, error) {
	ec := s.graph.NewContext()
	ec.OnAction = s.opts.OnAction
	var errs []error
	for _, n := range s.graph.Networks() {
		if err := n.Evaluate(ec); err != nil {
			errs = append(errs, err)
		}
	}
	res := Result{RunID: ec.RunID, Evaluated: ec.Evaluated(), Failed: ec.Failed(), Mutations: ec.Mutations()}
	return res, errors.Join(errs...)
}

func (s *Session) addEntity(spec EntitySpec) error {
	e, err := entityOf(spec)
	if err != nil {
		return fmt.Errorf("entity %s: %w", spec.Name, err)
	}
	id, err := s.db.AddEntity(s.db.ModelSpace(), e)
	if err != nil {
		return fmt.Errorf("entity %s: %w", spec.Name, err)
	}
	s.entities[spec.Name] = entityRef{id: id}
	return nil
}

func entityOf(spec EntitySpec) (drawing.Entity, error) {
	var shape drawing.Shape
	switch spec.Kind {
	case EntityLine:
		shape = drawing.Line{Start: vec(spec.Start), End: vec(spec.End)}
	case EntityCircle:
		shape = drawing.CircleShape{Center: vec(spec.Center), Radius: spec.Radius}
	case EntityPolyline:
		pts := make([]geom.Vec, len(spec.Points))
		for i, p := range spec.Points {
			pts[i] = vec(p)
		}
		shape = drawing.PolylineShape{Points: pts, Closed: spec.Closed}
	default:
		return drawing.Entity{}, fmt.Errorf("%w: %q", ErrInvalidKind, spec.Kind)
	}
	return drawing.Entity{Transform: geom.Translation(vec(spec.At)), Shape: shape}, nil
}

func actionKind(kind string) string {
	switch kind {
	case KindRectangular:
		return array.KindRectangular
	case KindPolar:
		return array.KindPolar
	case KindPath:
		return array.KindPath
	}
	return kind
}

// arrayValues converts the literal parameters of spec into action
// parameter values. A polar center is given in world coordinates and moves
// into the array frame at base.
func arrayValues(spec ArraySpec, base geom.Vec) (map[string]any, error) {
	switch spec.Kind {
	case KindRectangular, KindPolar, KindPath:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, spec.Kind)
	}
	values := make(map[string]any, len(spec.Params)+1)
	for name, raw := range spec.Params {
		v, err := paramValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %w", array.ErrInvalidParameters, name, err)
		}
		values[name] = v
	}
	if spec.Kind == KindPolar {
		var center geom.Vec
		if v, ok := values["center"]; ok {
			c, ok := v.(geom.Vec)
			if !ok {
				return nil, fmt.Errorf("%w: parameter %q is %T, not a vector", array.ErrInvalidParameters, "center", v)
			}
			center = c
		}
		values["center"] = r3.Sub(center, base)
	}
	return values, nil
}

// sourceIDs resolves source names to live model space objects. Entities
// whose previous copy belongs to a removed array are recreated from the
// manifest first.
func (s *Session) sourceIDs(m *Manifest, names []string) ([]drawing.ObjectID, error) {
	ids := make([]drawing.ObjectID, 0, len(names))
	for _, name := range names {
		if ref, ok := s.arrays[name]; ok {
			if ref.Product == drawing.Null || !s.db.Exists(ref.Product) {
				return nil, fmt.Errorf("%w: array %q has no product", ErrUnknownRef, name)
			}
			ids = append(ids, ref.Product)
			continue
		}
		ref, ok := s.entities[name]
		if !ok || !s.db.Exists(ref.id) || s.db.Owner(ref.id) != s.db.ModelSpace() {
			spec, found := m.Entity(name)
			if !found {
				return nil, fmt.Errorf("%w: source %q", ErrUnknownRef, name)
			}
			if err := s.addEntity(spec); err != nil {
				return nil, err
			}
			ref = s.entities[name]
		}
		ids = append(ids, ref.id)
	}
	return ids, nil
}

// adopt records where consumed source entities ended up: the container
// holds one copy per source, in source order.
func (s *Session) adopt(names []string, container drawing.ObjectID, offset geom.Vec) {
	c, err := s.db.Container(container)
	if err != nil || len(c.Entities) != len(names) {
		return
	}
	for i, name := range names {
		if ref, ok := s.entities[name]; ok && !s.db.Exists(ref.id) {
			s.entities[name] = entityRef{id: c.Entities[i], offset: offset}
		}
	}
}

func (s *Session) addArray(spec ArraySpec) error {
	kind := actionKind(spec.Kind)
	net, err := s.graph.Network(s.db.ModelSpace())
	if err != nil {
		return fmt.Errorf("array %s: %w", spec.Name, err)
	}
	if spec.Version != Version {
		cause := fmt.Errorf("%w: array %s version %d (want %d)", assoc.ErrDecodeVersion, spec.Name, spec.Version, Version)
		a := s.graph.NewProxyAction(net, kind, cause)
		s.arrays[spec.Name] = &ArrayRef{Name: spec.Name, Spec: spec, Action: a}
		s.names[a.ID()] = spec.Name
		s.logger.Warn("array kept as proxy", "array", spec.Name, "version", spec.Version)
		return nil
	}

	base := vec(spec.Base)
	values, err := arrayValues(spec, base)
	if err != nil {
		return fmt.Errorf("array %s: %w", spec.Name, err)
	}
	sources, err := s.sourceIDs(s.manifest, spec.Sources)
	if err != nil {
		return fmt.Errorf("array %s: %w", spec.Name, err)
	}
	policy := s.opts.PathLoss
	if spec.PathLoss != "" {
		if policy, err = array.ParsePathLossPolicy(spec.PathLoss); err != nil {
			return fmt.Errorf("array %s: %w", spec.Name, err)
		}
	}
	as := array.Spec{Owner: s.db.ModelSpace(), Sources: sources, Base: base, Kind: kind, Values: values, PathLoss: policy}
	if spec.Kind == KindPath {
		path, ok := s.EntityID(spec.Path)
		if !ok {
			return fmt.Errorf("array %s: %w: path %q", spec.Name, ErrUnknownRef, spec.Path)
		}
		as.Path = path
	}
	created, err := array.Create(s.graph, as)
	if err != nil {
		return fmt.Errorf("array %s: %w", spec.Name, err)
	}
	s.arrays[spec.Name] = &ArrayRef{Name: spec.Name, Spec: spec, Action: created.Action, Product: created.Product}
	s.names[created.Action.ID()] = spec.Name
	if src := created.Action.Record(array.RoleSource); src != nil {
		s.adopt(spec.Sources, src.Object(), base)
	}
	return nil
}

// addOverrides creates overrides, evaluating first when a target array has
// not produced its items yet or when settle is set (items released by a
// removed override are only handed back during evaluation).
func (s *Session) addOverrides(specs []OverrideSpec, settle bool) error {
	if len(specs) == 0 {
		return nil
	}
	var errs []error
	for _, o := range specs {
		ref := s.arrays[o.Array]
		if settle || (ref != nil && ref.Action.Status() != assoc.StatusUpToDate) {
			if _, err := s.Update(); err != nil {
				errs = append(errs, err)
			}
			break
		}
	}
	for _, o := range specs {
		if err := s.addOverride(o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) addOverride(spec OverrideSpec) error {
	ref := s.arrays[spec.Array]
	if ref == nil {
		return fmt.Errorf("override %s: %w: array %q", spec.Name, ErrUnknownRef, spec.Array)
	}
	if spec.Version != Version {
		cause := fmt.Errorf("%w: override %s version %d (want %d)", assoc.ErrDecodeVersion, spec.Name, spec.Version, Version)
		a := s.graph.NewProxyAction(ref.Action.Network(), array.KindModify, cause)
		s.overrides[spec.Name] = &OverrideRef{Name: spec.Name, Spec: spec, Action: a}
		s.names[a.ID()] = spec.Name
		return nil
	}
	if ref.Action.Proxy() != nil || ref.Action.IsErased() {
		return fmt.Errorf("override %s: array %s is not live", spec.Name, spec.Array)
	}
	locs := make([]array.ItemLocator, len(spec.Items))
	for i, idx := range spec.Items {
		locs[i] = locator(idx)
	}
	sources, err := s.sourceIDs(s.manifest, spec.Sources)
	if err != nil {
		return fmt.Errorf("override %s: %w", spec.Name, err)
	}
	created, err := array.CreateModify(s.graph, ref.Action, locs, sources, vec(spec.BasePoint))
	if err != nil {
		return fmt.Errorf("override %s: %w", spec.Name, err)
	}
	s.overrides[spec.Name] = &OverrideRef{Name: spec.Name, Spec: spec, Action: created.Action, Private: created.Product}
	s.names[created.Action.ID()] = spec.Name
	s.adopt(spec.Sources, created.Product, geom.Vec{})
	return nil
}
