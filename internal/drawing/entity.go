// Package drawing is a minimal in-memory drawing database: objects are
// addressed by integer ids, entities live in containers, writes go through
// a scoped Modify call, and every change is reported to the reactors
// attached to the touched objects.
package drawing

import (
	"fmt"

	"github.com/papapumpkin/assoc/internal/geom"
)

// ObjectID identifies an object in a Database. Ids are never reused.
type ObjectID uint64

// Null is the zero ObjectID; no object ever has it.
const Null ObjectID = 0

func (id ObjectID) String() string {
	return fmt.Sprintf("#%d", uint64(id))
}

// Shape is the geometry carried by an entity, in entity coordinates.
type Shape interface {
	shapeKind() string
}

// Line is a straight segment.
type Line struct {
	Start, End geom.Vec
}

// CircleShape is a full circle in the entity XY plane.
type CircleShape struct {
	Center geom.Vec
	Radius float64
}

// PolylineShape is an open or closed chain of segments.
type PolylineShape struct {
	Points []geom.Vec
	Closed bool
}

// BlockRef places the contents of a container.
type BlockRef struct {
	Block ObjectID
}

func (Line) shapeKind() string          { return "line" }
func (CircleShape) shapeKind() string   { return "circle" }
func (PolylineShape) shapeKind() string { return "polyline" }
func (BlockRef) shapeKind() string      { return "blockref" }

// KindOf returns a short name for the shape type ("line", "circle", ...).
func KindOf(s Shape) string {
	if s == nil {
		return "none"
	}
	return s.shapeKind()
}

// Entity is a drawable object owned by a container.
type Entity struct {
	ID        ObjectID
	Owner     ObjectID
	Transform geom.Matrix
	Shape     Shape
}

// Curve returns the entity geometry as a world-space curve. Block
// references and unknown shapes are not curves.
func (e Entity) Curve() (geom.Curve, bool) {
	var c geom.Curve
	switch s := e.Shape.(type) {
	case Line:
		c = geom.NewPolyline([]geom.Vec{s.Start, s.End}, false)
	case PolylineShape:
		c = geom.NewPolyline(s.Points, s.Closed)
	case CircleShape:
		c = geom.NewCircle(s.Center, s.Radius)
	default:
		return nil, false
	}
	return c.Transform(e.Transform), true
}

// cloneShape returns a deep copy of s so edits never alias between entities.
func cloneShape(s Shape) Shape {
	if p, ok := s.(PolylineShape); ok {
		p.Points = append([]geom.Vec(nil), p.Points...)
		return p
	}
	return s
}
