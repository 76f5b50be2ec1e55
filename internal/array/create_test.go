package array

import (
	"errors"
	"testing"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
)

func TestCreate_FromValues(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c, err := Create(f.g, Spec{
		Owner:   f.ms,
		Sources: []drawing.ObjectID{f.line},
		Kind:    KindRectangular,
		Values:  map[string]any{"columns": 4, "columnSpacing": 2.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.evaluate(t)

	p, ok := paramsOf(t, c.Action).(*Rectangular)
	if !ok || p.Columns != 4 || p.ColumnSpacing != 2 || p.Rows != 1 {
		t.Fatalf("bound parameters = %+v", paramsOf(t, c.Action))
	}
	if n := len(f.entities(t, c.Action)); n != 4 {
		t.Errorf("destination holds %d entities, want 4", n)
	}
	if got := c.Action.Kind(); got != KindRectangular {
		t.Errorf("kind = %q", got)
	}
}

func TestCreate_RejectsBadValues(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := Create(f.g, Spec{
		Owner:   f.ms,
		Sources: []drawing.ObjectID{f.line},
		Kind:    KindRectangular,
		Values:  map[string]any{"rows": "many"},
	})
	if !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
	if n := len(f.network(t).Actions()); n != 0 {
		t.Errorf("failed create left %d actions", n)
	}
	if !f.db.Exists(f.line) {
		t.Error("failed create consumed its source")
	}
}

func TestCreate_NeedsRegisteredKind(t *testing.T) {
	t.Parallel()
	db := drawing.New()
	g := assoc.NewGraph(db)
	line, err := db.AddEntity(db.ModelSpace(), drawing.Entity{Shape: drawing.Line{End: geom.Vec{X: 1}}})
	if err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	_, err = CreateRectangular(g, db.ModelSpace(), []drawing.ObjectID{line}, geom.Vec{}, NewRectangular(2, 1, 1, 0))
	if !errors.Is(err, assoc.ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := Create(g, Spec{Owner: db.ModelSpace(), Sources: []drawing.ObjectID{line}}); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("a spec without a kind: got %v", err)
	}
}

func TestModify_BindsFromParameters(t *testing.T) {
	t.Parallel()
	f, arr, mod := modifyFixture(t)
	mb := mod.Action.Body().(*ModifyBody)
	if mb.BaseAction() != arr.Action.ID() || len(mb.Locators()) != 1 || mb.Locators()[0] != (ItemLocator{Item: 1}) {
		t.Fatalf("bound override = base %d locators %v", mb.BaseAction(), mb.Locators())
	}
	if got := mod.Action.Parameters(); !got.Has(ParamBaseArray) || !got.Has(ParamLocators) {
		t.Errorf("override parameters = %v", got.Names())
	}

	n := f.network(t)
	stray, err := f.g.NewActionOfKind(n, KindModify)
	if err != nil {
		t.Fatalf("NewActionOfKind: %v", err)
	}
	defer f.g.RemoveAction(stray)
	stray.Parameters().Set(ParamBaseArray, 999)
	if err := stray.Bind(); !errors.Is(err, assoc.ErrNotFound) {
		t.Errorf("binding a missing base array: got %v", err)
	}
	stray.Parameters().Set(ParamBaseArray, int(arr.Action.ID()))
	stray.Parameters().Set(ParamLocators, "item 1")
	if err := stray.Bind(); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("binding malformed locators: got %v", err)
	}
}
