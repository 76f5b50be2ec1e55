package array

import (
	"errors"
	"math"
	"testing"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
)

func TestItemLocator_Order(t *testing.T) {
	t.Parallel()
	locs := []ItemLocator{
		{Item: 0, Row: 0, Level: 0},
		{Item: 1, Row: 0, Level: 0},
		{Item: 0, Row: 1, Level: 0},
		{Item: 0, Row: 0, Level: 1},
	}
	for i := 1; i < len(locs); i++ {
		if !locs[i-1].Less(locs[i]) {
			t.Errorf("%s should sort before %s", locs[i-1], locs[i])
		}
		if locs[i].Compare(locs[i]) != 0 {
			t.Errorf("%s should compare equal to itself", locs[i])
		}
	}
}

func TestRectangular_TransformLaw(t *testing.T) {
	t.Parallel()
	p := NewRectangular(3, 2, 10, 5)
	p.Levels = 2
	p.LevelSpacing = 3

	items, err := p.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 12 {
		t.Fatalf("expected 12 items, got %d", len(items))
	}
	for _, it := range items {
		l := it.Locator
		want := geom.Vec{X: float64(l.Item) * 10, Y: float64(l.Row) * 5, Z: float64(l.Level) * 3}
		if got := it.Transform.Origin(); got != want {
			t.Errorf("item %s at %v, want %v", l, got, want)
		}
		if got := it.Transform.ApplyDir(geom.XAxis); got != geom.XAxis {
			t.Errorf("item %s is rotated: x axis %v", l, got)
		}
	}
}

func TestRectangular_RowElevation(t *testing.T) {
	t.Parallel()
	p := NewRectangular(1, 3, 0, 4)
	p.RowElevation = 2
	items, err := p.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if got := items[2].Transform.Origin(); got != (geom.Vec{Y: 8, Z: 4}) {
		t.Errorf("row 2 at %v, want (0, 8, 4)", got)
	}
}

func TestRectangular_InvalidCounts(t *testing.T) {
	t.Parallel()
	p := NewRectangular(0, 2, 1, 1)
	if _, err := p.Items(); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestItems_LocatorsUnique(t *testing.T) {
	t.Parallel()
	path := NewPath(1)
	path.Count = 4
	path.Rows = 2
	path.Levels = 3
	path.SetPath(geom.NewPolyline([]geom.Vec{{}, {X: 10}}, false))
	polar := NewPolar(6, 360, geom.Vec{X: -5})
	polar.Rows = 2
	rect := NewRectangular(4, 3, 1, 1)
	rect.Levels = 2

	tests := []struct {
		name   string
		params Parameters
		want   int
	}{
		{"rectangular", rect, 24},
		{"polar", polar, 12},
		{"path", path, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := tt.params.Items()
			if err != nil {
				t.Fatalf("Items: %v", err)
			}
			if len(items) != tt.want {
				t.Fatalf("expected %d items, got %d", tt.want, len(items))
			}
			seen := make(map[ItemLocator]bool)
			for _, it := range items {
				if seen[it.Locator] {
					t.Errorf("locator %s appears twice", it.Locator)
				}
				seen[it.Locator] = true
			}
		})
	}
}

func TestItems_KeepIdentityByLocator(t *testing.T) {
	t.Parallel()
	p := NewRectangular(3, 1, 10, 0)
	first, err := p.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	first[1].Entity = drawing.ObjectID(42)

	p.ColumnSpacing = 20
	p.Columns = 2
	second, err := p.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if second[1] != first[1] {
		t.Fatal("item (1,0,0) lost its identity")
	}
	if second[1].Entity != 42 {
		t.Errorf("entity = %d, want 42", second[1].Entity)
	}
	if got := second[1].Transform.Origin().X; got != 20 {
		t.Errorf("item (1,0,0) at x=%g, want 20", got)
	}
	if !second[2].Erased {
		t.Error("item (2,0,0) should be marked erased after shrinking")
	}

	p.Columns = 3
	third, err := p.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if third[2] != first[2] || third[2].Erased {
		t.Error("item (2,0,0) should be revived in place")
	}
}

func TestItems_PurgeDropsErased(t *testing.T) {
	t.Parallel()
	p := NewRectangular(3, 1, 1, 0)
	if _, err := p.Items(); err != nil {
		t.Fatalf("Items: %v", err)
	}
	p.Columns = 1
	if _, err := p.Items(); err != nil {
		t.Fatalf("Items: %v", err)
	}
	p.Item(ItemLocator{Item: 2}).Replaced = true
	p.Purge()
	if p.Item(ItemLocator{Item: 1}) != nil {
		t.Error("erased item (1,0,0) should be purged")
	}
	if p.Item(ItemLocator{Item: 2}) == nil {
		t.Error("replaced item (2,0,0) should survive the purge")
	}
}

func TestPolar_StepAndFill(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		polar    Polar
		wantStep float64
		wantFill float64
	}{
		{"full circle", Polar{Count: 4, Method: FixedFill, Fill: 360}, 90, 360},
		{"half circle", Polar{Count: 3, Method: FixedFill, Fill: 180}, 90, 180},
		{"single item", Polar{Count: 1, Method: FixedFill, Fill: 180}, 0, 180},
		{"fixed step", Polar{Count: 4, Method: FixedStep, Angle: 30}, 30, 90},
		{"clockwise", Polar{Count: 4, Method: FixedFill, Fill: 360, Clockwise: true}, -90, 360},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.polar.Step(); got != tt.wantStep {
				t.Errorf("Step = %g, want %g", got, tt.wantStep)
			}
			if got := tt.polar.FillAngle(); got != tt.wantFill {
				t.Errorf("FillAngle = %g, want %g", got, tt.wantFill)
			}
		})
	}
}

func TestPolar_Items(t *testing.T) {
	t.Parallel()
	p := NewPolar(4, 360, geom.Vec{X: -10})
	if p.Radius() != 10 {
		t.Errorf("Radius = %g, want 10", p.Radius())
	}
	if p.StartAngle() != 0 {
		t.Errorf("StartAngle = %g, want 0", p.StartAngle())
	}
	items, err := p.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	want := []geom.Vec{{}, {X: -10, Y: 10}, {X: -20}, {X: -10, Y: -10}}
	for i, it := range items {
		if !near(it.Transform.Origin(), want[i]) {
			t.Errorf("item %d at %v, want %v", i, it.Transform.Origin(), want[i])
		}
	}
	x := items[1].Transform.ApplyDir(geom.XAxis)
	if !near(x, geom.YAxis) {
		t.Errorf("item 1 should be rotated a quarter turn, x axis %v", x)
	}
}

func TestPolar_NoRotateAndRows(t *testing.T) {
	t.Parallel()
	p := NewPolar(2, 180, geom.Vec{X: -10})
	p.RotateItems = false
	p.Rows = 2
	p.RowSpacing = 5
	items, err := p.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	outer := p.Item(ItemLocator{Item: 1, Row: 1})
	if outer == nil {
		t.Fatal("missing item (1,1,0)")
	}
	// Row 1 sits 15 from the center; item 1 is half a turn around.
	if !near(outer.Transform.Origin(), geom.Vec{X: -25}) {
		t.Errorf("item (1,1,0) at %v, want (-25, 0, 0)", outer.Transform.Origin())
	}
	if x := outer.Transform.ApplyDir(geom.XAxis); !near(x, geom.XAxis) {
		t.Errorf("unrotated item has x axis %v", x)
	}
	if len(items) != 4 {
		t.Errorf("expected 4 items, got %d", len(items))
	}
}

func TestPolar_PublishDerivesRadius(t *testing.T) {
	t.Parallel()
	p := NewPolar(3, 360, geom.Vec{X: -3, Y: -4})
	ps := assoc.NewParameters()
	p.Publish(ps)
	r, err := ps.Float("radius")
	if err != nil {
		t.Fatalf("radius: %v", err)
	}
	if r != 5 {
		t.Errorf("radius = %g, want 5", r)
	}
	ps.Set("center", geom.Vec{X: -6, Y: -8})
	if r, _ := ps.Float("radius"); r != 10 {
		t.Errorf("radius after center edit = %g, want 10", r)
	}
	start, err := ps.Float("startAngle")
	if err != nil {
		t.Fatalf("startAngle: %v", err)
	}
	if want := math.Atan2(8, 6) * 180 / math.Pi; math.Abs(start-want) > 1e-9 {
		t.Errorf("startAngle = %g, want %g", start, want)
	}
}

func TestBind_ReadsActionParameters(t *testing.T) {
	t.Parallel()
	p := NewRectangular(1, 1, 0, 0)
	ps := assoc.NewParameters()
	ps.Set("columns", 4)
	ps.Set("columnSpacing", 2.5)
	if err := p.Bind(ps); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if p.Columns != 4 || p.ColumnSpacing != 2.5 || p.Rows != 1 {
		t.Errorf("unexpected parameters after Bind: %+v", *p)
	}

	ps.Set("rows", "many")
	if err := p.Bind(ps); err == nil {
		t.Error("expected an error binding a string count")
	}
}
