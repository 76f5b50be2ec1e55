package array

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/geom"
)

// PolarMethod selects which of step and fill angle is authored.
type PolarMethod string

// Polar methods.
const (
	FixedStep PolarMethod = "step"
	FixedFill PolarMethod = "fill"
)

// Polar arranges items around a center. Angles are in degrees. Center is
// given in the array frame, whose origin is the base point; radius and start
// angle follow from it.
type Polar struct {
	Count        int
	Method       PolarMethod
	Angle        float64 // between items, FixedStep
	Fill         float64 // total sweep, FixedFill
	Center       geom.Vec
	RotateItems  bool
	Clockwise    bool
	Rows         int
	RowSpacing   float64
	Levels       int
	LevelSpacing float64

	table
}

// NewPolar returns count items filling fill degrees around center.
func NewPolar(count int, fill float64, center geom.Vec) *Polar {
	return &Polar{
		Count:       count,
		Method:      FixedFill,
		Fill:        fill,
		Center:      center,
		RotateItems: true,
		Rows:        1,
		Levels:      1,
	}
}

// Kind implements Parameters.
func (p *Polar) Kind() string { return KindPolar }

// Step returns the signed angle between consecutive items in degrees.
func (p *Polar) Step() float64 {
	var step float64
	switch p.Method {
	case FixedFill:
		switch {
		case p.Count <= 1:
			step = 0
		case math.Abs(math.Abs(p.Fill)-360) < 1e-9:
			step = p.Fill / float64(p.Count)
		default:
			step = p.Fill / float64(p.Count-1)
		}
	default:
		step = p.Angle
	}
	if p.Clockwise {
		step = -step
	}
	return step
}

// FillAngle returns the sweep from the first to the last item in degrees.
func (p *Polar) FillAngle() float64 {
	if p.Method == FixedFill {
		return p.Fill
	}
	return p.Angle * float64(p.Count-1)
}

// Radius returns the distance from the center to the base point.
func (p *Polar) Radius() float64 { return r3.Norm(p.Center) }

// StartAngle returns the direction of the base point seen from the center,
// in degrees.
func (p *Polar) StartAngle() float64 {
	d := r3.Scale(-1, p.Center)
	return math.Atan2(d.Y, d.X) * 180 / math.Pi
}

func (p *Polar) radial() geom.Vec {
	if d, ok := geom.Normalize(r3.Scale(-1, p.Center)); ok {
		return d
	}
	return geom.XAxis
}

// Items implements Parameters.
func (p *Polar) Items() ([]*Item, error) {
	if err := errors.Join(
		checkCount("items", p.Count),
		checkCount("rows", p.Rows),
		checkCount("levels", p.Levels),
	); err != nil {
		return nil, err
	}
	if p.Method != FixedStep && p.Method != FixedFill {
		return nil, fmt.Errorf("%w: polar method %q", ErrInvalidParameters, p.Method)
	}
	step := p.Step() * math.Pi / 180
	radial := p.radial()
	want := make(map[ItemLocator]geom.Matrix, p.Count*p.Rows*p.Levels)
	locators(p.Count, p.Rows, p.Levels, func(loc ItemLocator) {
		rot := geom.RotationAbout(p.Center, float64(loc.Item)*step)
		row := r3.Scale(float64(loc.Row)*p.RowSpacing, radial)
		lift := geom.Translation(r3.Scale(float64(loc.Level)*p.LevelSpacing, geom.ZAxis))
		if p.RotateItems {
			want[loc] = lift.Mul(rot).Mul(geom.Translation(row))
			return
		}
		want[loc] = lift.Mul(geom.Translation(rot.Apply(row)))
	})
	return p.tbl().sync(want), nil
}

// Bind implements Parameters.
func (p *Polar) Bind(ps *assoc.Parameters) error {
	method := string(p.Method)
	err := errors.Join(
		bindInt(ps, "items", &p.Count),
		bindString(ps, "method", &method),
		bindFloat(ps, "angle", &p.Angle),
		bindFloat(ps, "fill", &p.Fill),
		bindVec(ps, "center", &p.Center),
		bindBool(ps, "rotateItems", &p.RotateItems),
		bindBool(ps, "clockwise", &p.Clockwise),
		bindInt(ps, "rows", &p.Rows),
		bindFloat(ps, "rowSpacing", &p.RowSpacing),
		bindInt(ps, "levels", &p.Levels),
		bindFloat(ps, "levelSpacing", &p.LevelSpacing),
	)
	p.Method = PolarMethod(method)
	return err
}

// Publish implements Parameters. Radius and start angle are published as
// derived values of the center.
func (p *Polar) Publish(ps *assoc.Parameters) {
	ps.Set("items", p.Count)
	ps.Set("method", string(p.Method))
	ps.Set("angle", p.Angle)
	ps.Set("fill", p.Fill)
	ps.Set("center", p.Center)
	ps.Set("rotateItems", p.RotateItems)
	ps.Set("clockwise", p.Clockwise)
	ps.Set("rows", p.Rows)
	ps.Set("rowSpacing", p.RowSpacing)
	ps.Set("levels", p.Levels)
	ps.Set("levelSpacing", p.LevelSpacing)
	ps.SetDerived("radius", func(ps *assoc.Parameters) (any, error) {
		c, err := centerOf(ps)
		if err != nil {
			return nil, err
		}
		return r3.Norm(c), nil
	})
	ps.SetDerived("startAngle", func(ps *assoc.Parameters) (any, error) {
		c, err := centerOf(ps)
		if err != nil {
			return nil, err
		}
		return math.Atan2(-c.Y, -c.X) * 180 / math.Pi, nil
	})
}

func centerOf(ps *assoc.Parameters) (geom.Vec, error) {
	var c geom.Vec
	err := bindVec(ps, "center", &c)
	return c, err
}
