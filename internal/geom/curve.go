package geom

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Curve is an arc-length parameterized path. Distances run from 0 to
// Length(); closed curves wrap distances outside that range.
type Curve interface {
	Length() float64
	Closed() bool
	PointAt(dist float64) Vec
	TangentAt(dist float64) Vec
	Transform(m Matrix) Curve
	Reverse() Curve
	Samples() []Vec
}

// Polyline is a sequence of straight segments.
type Polyline struct {
	points []Vec
	closed bool
	cum    []float64 // cumulative length at each vertex
}

// NewPolyline builds a polyline through points. Consecutive duplicate points
// are kept but contribute no length.
func NewPolyline(points []Vec, closed bool) *Polyline {
	p := &Polyline{points: append([]Vec(nil), points...), closed: closed}
	p.measure()
	return p
}

func (p *Polyline) measure() {
	n := len(p.points)
	p.cum = make([]float64, 0, n+1)
	if n == 0 {
		return
	}
	p.cum = append(p.cum, 0)
	for i := 1; i < n; i++ {
		p.cum = append(p.cum, p.cum[i-1]+r3.Norm(r3.Sub(p.points[i], p.points[i-1])))
	}
	if p.closed && n > 1 {
		p.cum = append(p.cum, p.cum[n-1]+r3.Norm(r3.Sub(p.points[0], p.points[n-1])))
	}
}

// Length returns the total length, including the closing segment.
func (p *Polyline) Length() float64 {
	if len(p.cum) == 0 {
		return 0
	}
	return p.cum[len(p.cum)-1]
}

// Closed reports whether the last point connects back to the first.
func (p *Polyline) Closed() bool { return p.closed }

// Points returns a copy of the vertices.
func (p *Polyline) Points() []Vec { return append([]Vec(nil), p.points...) }

func (p *Polyline) vertex(i int) Vec {
	return p.points[i%len(p.points)]
}

// segment returns the index of the segment containing dist and the
// normalized distance.
func (p *Polyline) segment(dist float64) (int, float64) {
	l := p.Length()
	if p.closed && l > 0 {
		dist = math.Mod(dist, l)
		if dist < 0 {
			dist += l
		}
	}
	dist = math.Max(0, math.Min(dist, l))
	i := sort.SearchFloat64s(p.cum, dist)
	if i > 0 {
		i--
	}
	if i >= len(p.cum)-1 {
		i = len(p.cum) - 2
	}
	return i, dist
}

// PointAt returns the point at arc length dist.
func (p *Polyline) PointAt(dist float64) Vec {
	switch len(p.points) {
	case 0:
		return Vec{}
	case 1:
		return p.points[0]
	}
	i, d := p.segment(dist)
	a, b := p.vertex(i), p.vertex(i+1)
	segLen := p.cum[i+1] - p.cum[i]
	if segLen < Tolerance {
		return a
	}
	t := (d - p.cum[i]) / segLen
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// TangentAt returns the unit direction of travel at arc length dist. For a
// zero-length segment the nearest non-degenerate segment is used.
func (p *Polyline) TangentAt(dist float64) Vec {
	if len(p.points) < 2 {
		return XAxis
	}
	i, _ := p.segment(dist)
	segs := len(p.cum) - 1
	for k := 0; k < segs; k++ {
		for _, j := range []int{i + k, i - k} {
			if j < 0 || j >= segs {
				continue
			}
			if t, ok := Normalize(r3.Sub(p.vertex(j+1), p.vertex(j))); ok {
				return t
			}
		}
	}
	return XAxis
}

// Transform returns the polyline with every vertex transformed by m.
func (p *Polyline) Transform(m Matrix) Curve {
	pts := make([]Vec, len(p.points))
	for i, v := range p.points {
		pts[i] = m.Apply(v)
	}
	return NewPolyline(pts, p.closed)
}

// Reverse returns the polyline traversed from its end.
func (p *Polyline) Reverse() Curve {
	n := len(p.points)
	pts := make([]Vec, n)
	for i, v := range p.points {
		pts[n-1-i] = v
	}
	if p.closed && n > 1 {
		// Keep the start vertex so distance 0 stays put.
		pts = append(pts[n-1:], pts[:n-1]...)
	}
	return NewPolyline(pts, p.closed)
}

// Samples returns the vertices, which fully describe a polyline.
func (p *Polyline) Samples() []Vec { return p.Points() }

// Circle is a full circle in the XY plane of its frame, starting on the
// frame's X axis and running counter-clockwise about the frame's Z axis.
type Circle struct {
	frame  Matrix
	radius float64
}

// NewCircle builds a circle in the world XY plane.
func NewCircle(center Vec, radius float64) *Circle {
	return &Circle{frame: Translation(center), radius: radius}
}

// Center returns the circle center.
func (c *Circle) Center() Vec { return c.frame.Origin() }

// Radius returns the circle radius.
func (c *Circle) Radius() float64 { return c.radius }

// Length returns the circumference.
func (c *Circle) Length() float64 { return 2 * math.Pi * c.radius }

// Closed is always true for a circle.
func (c *Circle) Closed() bool { return true }

// PointAt returns the point at arc length dist.
func (c *Circle) PointAt(dist float64) Vec {
	if c.radius < Tolerance {
		return c.Center()
	}
	s, co := math.Sincos(dist / c.radius)
	return c.frame.Apply(Vec{X: c.radius * co, Y: c.radius * s})
}

// TangentAt returns the unit direction of travel at arc length dist.
func (c *Circle) TangentAt(dist float64) Vec {
	if c.radius < Tolerance {
		return c.frame.ApplyDir(YAxis)
	}
	s, co := math.Sincos(dist / c.radius)
	t, _ := Normalize(c.frame.ApplyDir(Vec{X: -s, Y: co}))
	return t
}

// Transform returns the circle with its frame transformed by m. Only rigid
// transforms keep the result a circle; scale is not tracked.
func (c *Circle) Transform(m Matrix) Curve {
	return &Circle{frame: m.Mul(c.frame), radius: c.radius}
}

// Reverse returns the circle traversed clockwise from the same start point.
func (c *Circle) Reverse() Curve {
	flip := Identity()
	flip[1][1] = -1
	flip[2][2] = -1
	return &Circle{frame: c.frame.Mul(flip), radius: c.radius}
}

// Samples returns 64 points evenly spaced along the circle.
func (c *Circle) Samples() []Vec {
	const n = 64
	out := make([]Vec, n)
	step := c.Length() / n
	for i := range out {
		out[i] = c.PointAt(float64(i) * step)
	}
	return out
}
