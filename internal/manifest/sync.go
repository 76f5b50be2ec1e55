package manifest

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
	"github.com/papapumpkin/assoc/internal/telemetry"
)

// SyncStats counts the edits Sync applied.
type SyncStats struct {
	EntitiesAdded    int `json:"entities_added"`
	EntitiesChanged  int `json:"entities_changed"`
	EntitiesRemoved  int `json:"entities_removed"`
	ArraysAdded      int `json:"arrays_added"`
	ArraysEdited     int `json:"arrays_edited"`
	ArraysRemoved    int `json:"arrays_removed"`
	OverridesAdded   int `json:"overrides_added"`
	OverridesRemoved int `json:"overrides_removed"`
}

// Changed reports whether any edit was applied.
func (st SyncStats) Changed() bool { return st != SyncStats{} }

// Sync applies the differences between the session's manifest and next as
// drawing edits, the way a user editing the drawing would: entity geometry
// is modified in place, array bases move the array entity, parameter edits
// go through the action's parameters, and removed parts are erased. The
// network then catches up through its normal notifications on the next
// Update. Arrays and overrides whose sources, path or kind changed are
// erased and created again.
//
// Parameters dropped from an array's params keep their current value.
func (s *Session) Sync(next *Manifest) (SyncStats, error) {
	prev := s.manifest
	var st SyncStats
	var errs []error

	rebuild := make(map[string]bool)
	for _, a := range prev.Arrays {
		na, ok := next.Array(a.Name)
		if !ok || !a.sameWiring(na) {
			rebuild[a.Name] = true
			continue
		}
		// An array copying a rebuilt array must follow it.
		for _, src := range a.Sources {
			if rebuild[src] {
				rebuild[a.Name] = true
			}
		}
	}

	// Overrides depend on their arrays, so they go first.
	for _, o := range prev.Overrides {
		no, ok := next.Override(o.Name)
		if ok && reflect.DeepEqual(o, no) && !rebuild[o.Array] {
			continue
		}
		if err := s.removeOverride(o.Name); err != nil {
			errs = append(errs, err)
		}
		st.OverridesRemoved++
	}
	for _, a := range prev.Arrays {
		if !rebuild[a.Name] {
			continue
		}
		if err := s.removeArray(a.Name); err != nil {
			errs = append(errs, err)
		}
		st.ArraysRemoved++
	}

	for _, e := range prev.Entities {
		ne, ok := next.Entity(e.Name)
		switch {
		case !ok:
			if id, live := s.EntityID(e.Name); live {
				if err := s.db.Erase(id); err != nil {
					errs = append(errs, fmt.Errorf("entity %s: %w", e.Name, err))
				}
			}
			delete(s.entities, e.Name)
			st.EntitiesRemoved++
		case !e.geometryEqual(ne):
			if err := s.editEntity(ne); err != nil {
				errs = append(errs, err)
			}
			st.EntitiesChanged++
		}
	}
	s.manifest = next
	for _, e := range next.Entities {
		if _, ok := prev.Entity(e.Name); ok {
			continue
		}
		if err := s.addEntity(e); err != nil {
			errs = append(errs, err)
		}
		st.EntitiesAdded++
	}

	for _, a := range next.Arrays {
		pa, existed := prev.Array(a.Name)
		if existed && !rebuild[a.Name] {
			edited, err := s.editArray(pa, a)
			if err != nil {
				errs = append(errs, err)
			}
			if edited {
				st.ArraysEdited++
			}
			continue
		}
		if err := s.addArray(a); err != nil {
			errs = append(errs, err)
		}
		st.ArraysAdded++
	}

	var added []OverrideSpec
	for _, o := range next.Overrides {
		if _, live := s.overrides[o.Name]; !live {
			added = append(added, o)
		}
	}
	if err := s.addOverrides(added, st.OverridesRemoved > 0); err != nil {
		errs = append(errs, err)
	}
	st.OverridesAdded = len(added)

	// Sources nothing consumes any more return to model space.
	consumed := next.consumed()
	for _, e := range next.Entities {
		if consumed[e.Name] {
			continue
		}
		if ref, ok := s.entities[e.Name]; ok && s.db.Exists(ref.id) && s.db.Owner(ref.id) == s.db.ModelSpace() {
			continue
		}
		if err := s.addEntity(e); err != nil {
			errs = append(errs, err)
		}
		st.EntitiesAdded++
	}

	s.logger.Info("manifest synced", "changed", st.Changed())
	if err := s.opts.Emitter.Emit(telemetry.Event{Kind: telemetry.KindSync, Data: st}); err != nil {
		s.logger.Debug("telemetry emit failed", "error", err)
	}
	return st, errors.Join(errs...)
}

// editEntity rewrites the live object of an entity. Consumed sources keep
// their placement relative to the base point of the array that copied them.
func (s *Session) editEntity(spec EntitySpec) error {
	ref, ok := s.entities[spec.Name]
	if !ok || !s.db.Exists(ref.id) {
		// The entity belonged to an array being rebuilt; it is recreated
		// when a source needs it.
		return nil
	}
	want, err := entityOf(spec)
	if err != nil {
		return fmt.Errorf("entity %s: %w", spec.Name, err)
	}
	err = s.db.Modify(ref.id, func(e *drawing.Entity) error {
		e.Shape = want.Shape
		e.Transform = geom.Translation(r3.Sub(vec(spec.At), ref.offset))
		return nil
	})
	if err != nil {
		return fmt.Errorf("entity %s: %w", spec.Name, err)
	}
	return nil
}

// editArray applies base and parameter changes to a live array.
func (s *Session) editArray(prev, next ArraySpec) (bool, error) {
	ref := s.arrays[next.Name]
	if ref == nil {
		return false, nil
	}
	ref.Spec = next
	if ref.Action.Proxy() != nil || ref.Action.IsErased() {
		return false, nil
	}
	edited := false
	base := vec(next.Base)
	if !reflect.DeepEqual(prev.Base, next.Base) {
		err := s.db.Modify(ref.Product, func(e *drawing.Entity) error {
			e.Transform = geom.Translation(base)
			return nil
		})
		if err != nil {
			return false, fmt.Errorf("array %s: moving base: %w", next.Name, err)
		}
		edited = true
	}

	names := make([]string, 0, len(next.Params))
	for name := range next.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw := next.Params[name]
		centerMoved := name == "center" && next.Kind == KindPolar && !reflect.DeepEqual(prev.Base, next.Base)
		if old, ok := prev.Params[name]; ok && reflect.DeepEqual(old, raw) && !centerMoved {
			continue
		}
		v, err := paramValue(raw)
		if err != nil {
			return edited, fmt.Errorf("array %s: parameter %q: %w", next.Name, name, err)
		}
		if c, ok := v.(geom.Vec); ok && name == "center" && next.Kind == KindPolar {
			v = r3.Sub(c, base)
		}
		ref.Action.SetParameter(name, v)
		edited = true
	}
	return edited, nil
}

// removeArray erases the array entity; the array's own evaluation then
// erases its items and retires the action. Proxies are dropped directly.
func (s *Session) removeArray(name string) error {
	ref := s.arrays[name]
	if ref == nil {
		return nil
	}
	delete(s.arrays, name)
	delete(s.names, ref.Action.ID())
	if ref.Product == drawing.Null || !s.db.Exists(ref.Product) {
		if !ref.Action.IsErased() {
			s.graph.RemoveAction(ref.Action)
		}
		return nil
	}
	if err := s.db.Erase(ref.Product); err != nil {
		return fmt.Errorf("array %s: %w", name, err)
	}
	return nil
}

// removeOverride erases the override's private container, which hands its
// items back to the array on the next evaluation.
func (s *Session) removeOverride(name string) error {
	ref := s.overrides[name]
	if ref == nil {
		return nil
	}
	delete(s.overrides, name)
	delete(s.names, ref.Action.ID())
	if ref.Private == drawing.Null || !s.db.Exists(ref.Private) {
		if !ref.Action.IsErased() {
			s.graph.RemoveAction(ref.Action)
		}
		return nil
	}
	if err := s.db.Erase(ref.Private); err != nil {
		return fmt.Errorf("override %s: %w", name, err)
	}
	return nil
}
