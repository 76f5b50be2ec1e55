package array

import (
	"testing"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
)

// fixture is a drawing with one source line in model space.
type fixture struct {
	db   *drawing.Database
	g    *assoc.Graph
	ms   drawing.ObjectID
	line drawing.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := drawing.New()
	g := assoc.NewGraph(db, assoc.WithRegistry(NewRegistry()))
	ms := db.ModelSpace()
	line, err := db.AddEntity(ms, drawing.Entity{Shape: drawing.Line{End: geom.Vec{X: 1}}})
	if err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	return &fixture{db: db, g: g, ms: ms, line: line}
}

func (f *fixture) network(t *testing.T) *assoc.Network {
	t.Helper()
	n, err := f.g.Network(f.ms)
	if err != nil {
		t.Fatalf("Network: %v", err)
	}
	return n
}

func (f *fixture) evaluate(t *testing.T) *assoc.EvaluationContext {
	t.Helper()
	ec := f.g.NewContext()
	if err := f.network(t).Evaluate(ec); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return ec
}

func (f *fixture) rectangular(t *testing.T, p *Rectangular) Created {
	t.Helper()
	c, err := CreateRectangular(f.g, f.ms, []drawing.ObjectID{f.line}, geom.Vec{}, p)
	if err != nil {
		t.Fatalf("CreateRectangular: %v", err)
	}
	return c
}

func (f *fixture) addLine(t *testing.T, start, end geom.Vec) drawing.ObjectID {
	t.Helper()
	id, err := f.db.AddEntity(f.ms, drawing.Entity{Shape: drawing.Line{Start: start, End: end}})
	if err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	return id
}

// entities returns the live entities of the array's destination container.
func (f *fixture) entities(t *testing.T, a *assoc.Action) []drawing.Entity {
	t.Helper()
	c, err := f.db.Container(a.Record(RoleDest).Object())
	if err != nil {
		t.Fatalf("Container: %v", err)
	}
	out := make([]drawing.Entity, 0, len(c.Entities))
	for _, id := range c.Entities {
		e, err := f.db.Entity(id)
		if err != nil {
			t.Fatalf("Entity: %v", err)
		}
		out = append(out, e)
	}
	return out
}

func paramsOf(t *testing.T, a *assoc.Action) Parameters {
	t.Helper()
	p, ok := ParametersOf(a)
	if !ok {
		t.Fatalf("action %s is not an array", a)
	}
	return p
}

func near(a, b geom.Vec) bool { return geom.Near(a, b, 1e-9) }
