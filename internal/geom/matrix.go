// Package geom provides the small amount of 3D math the array evaluator
// needs: vectors, affine 4x4 transforms and arc-length parameterized curves.
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec is a point or direction in 3D space.
type Vec = r3.Vec

// Tolerance is the default equality tolerance for lengths and matrix entries.
const Tolerance = 1e-9

// Common axes.
var (
	XAxis = Vec{X: 1}
	YAxis = Vec{Y: 1}
	ZAxis = Vec{Z: 1}
)

// Matrix is a row-major affine transform. The last row is always (0 0 0 1)
// for matrices built through this package.
type Matrix [4][4]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Translation returns a transform that moves points by v.
func Translation(v Vec) Matrix {
	m := Identity()
	m[0][3] = v.X
	m[1][3] = v.Y
	m[2][3] = v.Z
	return m
}

// RotationZ returns a rotation by angle radians about the Z axis through the origin.
func RotationZ(angle float64) Matrix {
	s, c := math.Sincos(angle)
	m := Identity()
	m[0][0], m[0][1] = c, -s
	m[1][0], m[1][1] = s, c
	return m
}

// RotationAbout returns a rotation by angle radians about the Z axis
// passing through center.
func RotationAbout(center Vec, angle float64) Matrix {
	return Translation(center).Mul(RotationZ(angle)).Mul(Translation(r3.Scale(-1, center)))
}

// Frame returns the transform whose columns are the given axes and origin.
// The axes are used as given; callers supply an orthonormal set.
func Frame(origin, x, y, z Vec) Matrix {
	return Matrix{
		{x.X, y.X, z.X, origin.X},
		{x.Y, y.Y, z.Y, origin.Y},
		{x.Z, y.Z, z.Z, origin.Z},
		{0, 0, 0, 1},
	}
}

// Mul returns m·n (n is applied first).
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[i][k] * n[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// Apply transforms the point p.
func (m Matrix) Apply(p Vec) Vec {
	return Vec{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3],
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3],
	}
}

// ApplyDir transforms the direction d, ignoring translation.
func (m Matrix) ApplyDir(d Vec) Vec {
	return Vec{
		X: m[0][0]*d.X + m[0][1]*d.Y + m[0][2]*d.Z,
		Y: m[1][0]*d.X + m[1][1]*d.Y + m[1][2]*d.Z,
		Z: m[2][0]*d.X + m[2][1]*d.Y + m[2][2]*d.Z,
	}
}

// Origin returns the translation part of m.
func (m Matrix) Origin() Vec {
	return Vec{X: m[0][3], Y: m[1][3], Z: m[2][3]}
}

// Inverse returns the inverse of the affine transform m. It returns an error
// when the linear part is singular.
func (m Matrix) Inverse() (Matrix, error) {
	a, b, c := m[0][0], m[0][1], m[0][2]
	d, e, f := m[1][0], m[1][1], m[1][2]
	g, h, i := m[2][0], m[2][1], m[2][2]

	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
	if math.Abs(det) < Tolerance {
		return Matrix{}, fmt.Errorf("geom: singular transform (det=%g)", det)
	}
	inv := 1 / det

	var out Matrix
	out[0][0] = (e*i - f*h) * inv
	out[0][1] = (c*h - b*i) * inv
	out[0][2] = (b*f - c*e) * inv
	out[1][0] = (f*g - d*i) * inv
	out[1][1] = (a*i - c*g) * inv
	out[1][2] = (c*d - a*f) * inv
	out[2][0] = (d*h - e*g) * inv
	out[2][1] = (b*g - a*h) * inv
	out[2][2] = (a*e - b*d) * inv

	t := m.Origin()
	out[0][3] = -(out[0][0]*t.X + out[0][1]*t.Y + out[0][2]*t.Z)
	out[1][3] = -(out[1][0]*t.X + out[1][1]*t.Y + out[1][2]*t.Z)
	out[2][3] = -(out[2][0]*t.X + out[2][1]*t.Y + out[2][2]*t.Z)
	out[3][3] = 1
	return out, nil
}

// Equal reports whether every entry of m and n differs by at most tol.
func (m Matrix) Equal(n Matrix, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(m[i][j]-n[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// String formats the translation and X axis, which is what humans usually
// want to see for an item transform.
func (m Matrix) String() string {
	o := m.Origin()
	return fmt.Sprintf("at (%.4g, %.4g, %.4g) x=(%.3g, %.3g, %.3g)",
		o.X, o.Y, o.Z, m[0][0], m[1][0], m[2][0])
}

// Rows returns m as a slice of rows, the representation used in TOML files.
func (m Matrix) Rows() [][]float64 {
	rows := make([][]float64, 4)
	for i := range m {
		rows[i] = []float64{m[i][0], m[i][1], m[i][2], m[i][3]}
	}
	return rows
}

// MatrixFromRows is the inverse of Rows. It returns an error when rows is
// not 4x4.
func MatrixFromRows(rows [][]float64) (Matrix, error) {
	var m Matrix
	if len(rows) != 4 {
		return m, fmt.Errorf("geom: matrix needs 4 rows, got %d", len(rows))
	}
	for i, r := range rows {
		if len(r) != 4 {
			return m, fmt.Errorf("geom: matrix row %d needs 4 values, got %d", i, len(r))
		}
		copy(m[i][:], r)
	}
	return m, nil
}

// Normalize returns the unit vector along v and false when v has no length.
func Normalize(v Vec) (Vec, bool) {
	n := r3.Norm(v)
	if n < Tolerance {
		return Vec{}, false
	}
	return r3.Scale(1/n, v), true
}

// Near reports whether a and b are within tol of each other.
func Near(a, b Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}
