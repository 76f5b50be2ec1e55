package array

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
)

// countingPath records SetItemCount calls on top of a real Path.
type countingPath struct {
	*Path
	mock.Mock
}

func (c *countingPath) SetItemCount(n int) {
	c.Called(n)
	c.Path.SetItemCount(n)
}

func newCountingPathArray(t *testing.T, p *countingPath) (*fixture, Created, drawing.ObjectID) {
	t.Helper()
	f := newFixture(t)
	path := f.addLine(t, geom.Vec{}, geom.Vec{X: 10})
	c, err := Create(f.g, Spec{Owner: f.ms, Sources: []drawing.ObjectID{f.line}, Params: p, Path: path})
	require.NoError(t, err)
	return f, c, path
}

func TestArrayBody_SetItemCountOnlyWhenChanged(t *testing.T) {
	t.Parallel()
	p := &countingPath{Path: NewPath(2.5)}
	p.On("SetItemCount", 5).Return().Once()
	f, c, _ := newCountingPathArray(t, p)

	f.evaluate(t)
	p.AssertNumberOfCalls(t, "SetItemCount", 1)
	assert.Equal(t, 5, p.ItemCount())

	// Same length: the recomputed count matches and is not stored again.
	c.Action.Touch()
	f.evaluate(t)
	p.AssertNumberOfCalls(t, "SetItemCount", 1)
	p.AssertExpectations(t)
}

func TestArrayBody_NoSetItemCountWhenCountMatches(t *testing.T) {
	t.Parallel()
	inner := NewPath(2.5)
	inner.Count = 5
	p := &countingPath{Path: inner}
	f, c, path := newCountingPathArray(t, p)

	f.evaluate(t)
	p.AssertNotCalled(t, "SetItemCount", mock.Anything)
	assert.Len(t, f.entities(t, c.Action), 5)

	// A path edit that keeps the count does not store it either.
	err := f.db.Modify(path, func(e *drawing.Entity) error {
		e.Shape = drawing.Line{End: geom.Vec{X: 11}}
		return nil
	})
	require.NoError(t, err)
	f.evaluate(t)
	p.AssertNotCalled(t, "SetItemCount", mock.Anything)
}

func TestArrayBody_NoRecountWithoutFill(t *testing.T) {
	t.Parallel()
	inner := NewPath(2.5)
	inner.Fill = false
	inner.Count = 2
	p := &countingPath{Path: inner}
	f, c, _ := newCountingPathArray(t, p)

	f.evaluate(t)
	p.AssertNotCalled(t, "SetItemCount", mock.Anything)
	assert.Len(t, f.entities(t, c.Action), 2)
}
