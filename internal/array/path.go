package array

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/geom"
)

// Path places items along a curve given in the array frame.
type Path struct {
	Distribution PathMethod
	Count        int
	ItemSpacing  float64
	StartOffset  float64
	EndOffset    float64
	Reverse      bool
	AlignItems   bool
	MaintainZ    bool
	Fill         bool
	Rows         int
	RowSpacing   float64
	Levels       int
	LevelSpacing float64

	curve geom.Curve
	table
}

// NewPath returns a measured path array with items spacing apart that
// fills the whole path.
func NewPath(spacing float64) *Path {
	return &Path{
		Distribution: Measure,
		Count:        1,
		ItemSpacing:  spacing,
		AlignItems:   true,
		MaintainZ:    true,
		Fill:         true,
		Rows:         1,
		Levels:       1,
	}
}

// Kind implements Parameters.
func (p *Path) Kind() string { return KindPath }

// SetPath implements PathParameters.
func (p *Path) SetPath(c geom.Curve) { p.curve = c }

// Curve returns the path in the array frame, or nil before SetPath.
func (p *Path) Curve() geom.Curve { return p.curve }

// Method implements PathParameters.
func (p *Path) Method() PathMethod { return p.Distribution }

// FillPath implements PathParameters.
func (p *Path) FillPath() bool { return p.Fill }

// Spacing implements PathParameters.
func (p *Path) Spacing() float64 { return p.ItemSpacing }

// Offsets implements PathParameters.
func (p *Path) Offsets() (start, end float64) { return p.StartOffset, p.EndOffset }

// ItemCount implements PathParameters.
func (p *Path) ItemCount() int { return p.Count }

// SetItemCount implements PathParameters.
func (p *Path) SetItemCount(n int) { p.Count = n }

// DivideSpacing returns the distance between count items spread over
// usable length. A closed path has as many gaps as items.
func DivideSpacing(usable float64, count int, closed bool) float64 {
	switch {
	case closed:
		return usable / float64(count)
	case count <= 1:
		return 0
	default:
		return usable / float64(count-1)
	}
}

// UsableLength returns the curve length between the offsets.
func (p *Path) UsableLength() float64 {
	if p.curve == nil {
		return 0
	}
	return p.curve.Length() - p.StartOffset - p.EndOffset
}

func (p *Path) spacing(usable float64, closed bool) float64 {
	if p.Distribution == Divide {
		return DivideSpacing(usable, p.Count, closed)
	}
	return p.ItemSpacing
}

// Items implements Parameters. Items whose distance along the path falls
// past the end offset are not generated.
func (p *Path) Items() ([]*Item, error) {
	if p.curve == nil {
		return nil, fmt.Errorf("%w: path array has no path", ErrInvalidParameters)
	}
	if err := errors.Join(
		checkCount("items", p.Count),
		checkCount("rows", p.Rows),
		checkCount("levels", p.Levels),
	); err != nil {
		return nil, err
	}
	if p.Distribution != Divide && p.Distribution != Measure {
		return nil, fmt.Errorf("%w: path method %q", ErrInvalidParameters, p.Distribution)
	}
	c := p.curve
	if p.Reverse {
		c = c.Reverse()
	}
	length := c.Length()
	usable := length - p.StartOffset - p.EndOffset
	if usable < -geom.Tolerance {
		return nil, fmt.Errorf("%w: offsets %g+%g exceed path length %g", ErrInvalidParameters, p.StartOffset, p.EndOffset, length)
	}
	spacing := p.spacing(usable, c.Closed())
	if p.Distribution == Measure && spacing <= 0 && p.Count > 1 {
		return nil, fmt.Errorf("%w: spacing must be positive, got %g", ErrInvalidParameters, spacing)
	}

	var frames []geom.Matrix
	for i := 0; i < p.Count; i++ {
		d := p.StartOffset + float64(i)*spacing
		if d > length-p.EndOffset+geom.Tolerance {
			break
		}
		frames = append(frames, p.frameAt(c, d))
	}
	start := frames[0]
	unalign, err := rotationOf(start).Inverse()
	if err != nil {
		unalign = geom.Identity()
	}

	want := make(map[ItemLocator]geom.Matrix, len(frames)*p.Rows*p.Levels)
	locators(len(frames), p.Rows, p.Levels, func(loc ItemLocator) {
		f := frames[loc.Item]
		normal := f.ApplyDir(geom.YAxis)
		up := f.ApplyDir(geom.ZAxis)
		pos := r3.Add(f.Origin(), r3.Add(
			r3.Scale(float64(loc.Row)*p.RowSpacing, normal),
			r3.Scale(float64(loc.Level)*p.LevelSpacing, up),
		))
		m := geom.Translation(pos)
		if p.AlignItems {
			m = m.Mul(rotationOf(f)).Mul(unalign)
		}
		want[loc] = m
	})
	return p.tbl().sync(want), nil
}

// frameAt returns the item frame at distance d: X along the tangent, Z up.
// With MaintainZ the frame stays upright; otherwise it tilts with the curve.
func (p *Path) frameAt(c geom.Curve, d float64) geom.Matrix {
	t := c.TangentAt(d)
	if p.MaintainZ {
		t.Z = 0
	}
	t, ok := geom.Normalize(t)
	if !ok {
		t = geom.XAxis
	}
	n, ok := geom.Normalize(r3.Cross(geom.ZAxis, t))
	if !ok {
		n = geom.YAxis
	}
	z := r3.Cross(t, n)
	return geom.Frame(c.PointAt(d), t, n, z)
}

func rotationOf(m geom.Matrix) geom.Matrix {
	m[0][3], m[1][3], m[2][3] = 0, 0, 0
	return m
}

// Bind implements Parameters.
func (p *Path) Bind(ps *assoc.Parameters) error {
	method := string(p.Distribution)
	err := errors.Join(
		bindString(ps, "method", &method),
		bindInt(ps, "items", &p.Count),
		bindFloat(ps, "spacing", &p.ItemSpacing),
		bindFloat(ps, "startOffset", &p.StartOffset),
		bindFloat(ps, "endOffset", &p.EndOffset),
		bindBool(ps, "reverse", &p.Reverse),
		bindBool(ps, "alignItems", &p.AlignItems),
		bindBool(ps, "maintainZ", &p.MaintainZ),
		bindBool(ps, "fillPath", &p.Fill),
		bindInt(ps, "rows", &p.Rows),
		bindFloat(ps, "rowSpacing", &p.RowSpacing),
		bindInt(ps, "levels", &p.Levels),
		bindFloat(ps, "levelSpacing", &p.LevelSpacing),
	)
	p.Distribution = PathMethod(method)
	return err
}

// Publish implements Parameters.
func (p *Path) Publish(ps *assoc.Parameters) {
	ps.Set("method", string(p.Distribution))
	ps.Set("items", p.Count)
	ps.Set("spacing", p.ItemSpacing)
	ps.Set("startOffset", p.StartOffset)
	ps.Set("endOffset", p.EndOffset)
	ps.Set("reverse", p.Reverse)
	ps.Set("alignItems", p.AlignItems)
	ps.Set("maintainZ", p.MaintainZ)
	ps.Set("fillPath", p.Fill)
	ps.Set("rows", p.Rows)
	ps.Set("rowSpacing", p.RowSpacing)
	ps.Set("levels", p.Levels)
	ps.Set("levelSpacing", p.LevelSpacing)
	if p.curve != nil {
		ps.Set("length", p.curve.Length())
	}
}
