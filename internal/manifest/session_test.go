package manifest

import (
	"errors"
	"testing"

	"github.com/papapumpkin/assoc/internal/array"
	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
)

func build(t *testing.T, text string) *Session {
	t.Helper()
	s, err := Build(parse(t, text), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func update(t *testing.T, s *Session) Result {
	t.Helper()
	res, err := s.Update()
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	return res
}

// arrayState returns the named array of a snapshot.
func arrayState(t *testing.T, st *State, name string) ArrayState {
	t.Helper()
	for _, a := range st.Arrays {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("array %q not in state", name)
	return ArrayState{}
}

func origin(t *testing.T, is ItemState) geom.Vec {
	t.Helper()
	m, err := is.Matrix()
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	return m.Origin()
}

func TestBuild_Rectangular(t *testing.T) {
	t.Parallel()
	s := build(t, plate)
	res := update(t, s)
	if res.Evaluated != 1 || res.Failed != 0 {
		t.Fatalf("evaluated %d failed %d, want 1 and 0", res.Evaluated, res.Failed)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}

	st := s.Snapshot(res.RunID)
	bolts := arrayState(t, st, "bolts")
	if bolts.Status != "UpToDate" || len(bolts.Items) != 6 {
		t.Fatalf("bolts: status %s, %d items", bolts.Status, len(bolts.Items))
	}
	last := bolts.Items[len(bolts.Items)-1]
	if last.ItemLocator != (array.ItemLocator{Item: 2, Row: 1}) {
		t.Errorf("last item is %s", last.ItemLocator)
	}
	if got := origin(t, last); !geom.Near(got, geom.Vec{X: 25, Y: 25}, 1e-9) {
		t.Errorf("item (2,1,0) at %v, want (25,25,0)", got)
	}
}

func TestBuild_ConsumesSources(t *testing.T) {
	t.Parallel()
	s := build(t, plate)
	id, ok := s.EntityID("bolt")
	if !ok {
		t.Fatal("bolt should be live")
	}
	src := s.Array("bolts").Action.Record(array.RoleSource).Object()
	if owner := s.Database().Owner(id); owner != src {
		t.Errorf("bolt lives in %s, want the source container %s", owner, src)
	}
	e, err := s.Database().Entity(id)
	if err != nil {
		t.Fatalf("Entity: %v", err)
	}
	if !e.Transform.Equal(geom.Identity(), 1e-9) {
		t.Errorf("copied source should sit on the base point, got %s", e.Transform)
	}
}

func TestUpdate_Idempotent(t *testing.T) {
	t.Parallel()
	s := build(t, plate)
	update(t, s)
	res := update(t, s)
	if res.Evaluated != 0 || res.Mutations != 0 {
		t.Errorf("clean update evaluated %d and wrote %d objects", res.Evaluated, res.Mutations)
	}
}

func TestBuild_ProxyArray(t *testing.T) {
	t.Parallel()
	s := build(t, `
version = 1
name = "future"

[[entities]]
name = "bolt"
kind = "circle"
radius = 1

[[arrays]]
name = "bolts"
version = 7
kind = "rectangular"
sources = ["bolt"]
`)
	ref := s.Array("bolts")
	if ref == nil || ref.Product != drawing.Null {
		t.Fatalf("expected a proxy without product, got %+v", ref)
	}
	_, err := s.Update()
	if !errors.Is(err, assoc.ErrDecodeVersion) {
		t.Fatalf("expected ErrDecodeVersion, got %v", err)
	}
	if got := StatusOf(ref.Action); got != "Proxy" {
		t.Errorf("status = %s, want Proxy", got)
	}
	if _, ok := s.EntityID("bolt"); !ok {
		t.Error("a proxy must not consume its sources")
	}
}

func TestBuild_Override(t *testing.T) {
	t.Parallel()
	s := build(t, plate+`
[[entities]]
name = "washer"
kind = "circle"
radius = 2
at = [100, 0, 0]

[[overrides]]
name = "big"
array = "bolts"
items = [[1, 0, 0]]
sources = ["washer"]
base_point = [100, 0, 0]
`)
	res := update(t, s)
	if res.Evaluated != 1 {
		t.Errorf("evaluated %d actions, want the override only", res.Evaluated)
	}
	ov := s.Override("big")
	if ov == nil || ov.Action.Status() != assoc.StatusUpToDate {
		t.Fatalf("override not up to date: %+v", ov)
	}
	if err := array.CheckPartition(s.Array("bolts").Action); err != nil {
		t.Errorf("CheckPartition: %v", err)
	}
	bolts := arrayState(t, s.Snapshot(res.RunID), "bolts")
	replaced := 0
	for _, it := range bolts.Items {
		if it.Override != "" {
			replaced++
			if it.Override != "big" || it.ItemLocator != (array.ItemLocator{Item: 1}) {
				t.Errorf("unexpected override %q on %s", it.Override, it.ItemLocator)
			}
		}
	}
	if replaced != 1 {
		t.Errorf("%d items replaced, want 1", replaced)
	}
}

func TestBuild_PathArray(t *testing.T) {
	t.Parallel()
	s := build(t, `
version = 1
name = "fence"

[[entities]]
name = "post"
kind = "line"
start = [0, -1, 0]
end = [0, 1, 0]

[[entities]]
name = "rail"
kind = "polyline"
points = [[0, 0, 0], [30, 0, 0]]

[[arrays]]
name = "posts"
kind = "path"
sources = ["post"]
path = "rail"
[arrays.params]
method = "measure"
spacing = 10.0
`)
	res := update(t, s)
	posts := arrayState(t, s.Snapshot(res.RunID), "posts")
	if len(posts.Items) != 4 {
		t.Fatalf("%d posts, want 4", len(posts.Items))
	}
	if got := origin(t, posts.Items[3]); !geom.Near(got, geom.Vec{X: 30}, 1e-9) {
		t.Errorf("last post at %v, want (30,0,0)", got)
	}
	if _, ok := s.EntityID("rail"); !ok {
		t.Error("the path stays in model space")
	}
}

func TestBuild_ArrayOfArrays(t *testing.T) {
	t.Parallel()
	s := build(t, plate+`
[[arrays]]
name = "plates"
kind = "rectangular"
sources = ["bolts"]
[arrays.params]
columns = 2
columnSpacing = 100.0
`)
	res := update(t, s)
	if res.Evaluated != 2 {
		t.Fatalf("evaluated %d, want 2", res.Evaluated)
	}
	order, err := s.Array("bolts").Action.Network().Order()
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if order[0] != s.Array("bolts").Action {
		t.Error("the inner array must evaluate first")
	}
	if !s.Database().Exists(s.Array("bolts").Product) {
		t.Error("an array used as a source keeps its product")
	}
}

func TestBuild_OnActionHook(t *testing.T) {
	t.Parallel()
	var seen []string
	s, err := Build(parse(t, plate), Options{OnAction: func(a *assoc.Action, err error) {
		seen = append(seen, a.Kind())
	}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	update(t, s)
	if len(seen) != 1 || seen[0] != array.KindRectangular {
		t.Errorf("hook saw %v", seen)
	}
	if name := s.ActionName(s.Array("bolts").Action.ID()); name != "bolts" {
		t.Errorf("ActionName = %q", name)
	}
}
