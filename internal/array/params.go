package array

import (
	"errors"
	"fmt"
	"math"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/geom"
)

// ErrInvalidParameters indicates shape parameters that produce no items.
var ErrInvalidParameters = errors.New("invalid array parameters")

// Variant kind tags, also used as action kinds.
const (
	KindRectangular = "array.rectangular"
	KindPolar       = "array.polar"
	KindPath        = "array.path"
	KindModify      = "array.modify"
)

// Parameters derives an array's items from its shape parameters. Items is
// safe to call repeatedly: items keep their identity (and entity) by
// locator and only their transform is recomputed.
type Parameters interface {
	Kind() string
	// Bind reads shape parameters from an action's parameter set. Names
	// absent from the set keep their current value.
	Bind(ps *assoc.Parameters) error
	// Publish writes the current shape parameters to ps.
	Publish(ps *assoc.Parameters)
	Items() ([]*Item, error)
	// All returns the current table, erased items included, without
	// recomputing it.
	All() []*Item
	Item(loc ItemLocator) *Item
	Purge()
}

// PathMethod selects how a path array spaces its items.
type PathMethod string

// Path methods.
const (
	Divide  PathMethod = "divide"
	Measure PathMethod = "measure"
)

// PathParameters are the parameters of an array that follows a curve.
type PathParameters interface {
	Parameters
	// SetPath sets the curve in the array frame.
	SetPath(c geom.Curve)
	Method() PathMethod
	FillPath() bool
	Spacing() float64
	Offsets() (start, end float64)
	ItemCount() int
	SetItemCount(n int)
}

// MeasureCount returns how many items fit on a curve of length l at the
// given spacing: floor(l/s)+1, one fewer on a closed curve where the last
// item would land on the first. The result is never below 1.
func MeasureCount(l, spacing float64, closed bool) int {
	if spacing <= 0 || l <= 0 {
		return 1
	}
	n := int(math.Floor(l/spacing+geom.Tolerance)) + 1
	if closed {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

// table gives a variant its item table.
type table struct {
	t *itemTable
}

func (b *table) tbl() *itemTable {
	if b.t == nil {
		b.t = newItemTable()
	}
	return b.t
}

// Item returns the item at loc, or nil.
func (b *table) Item(loc ItemLocator) *Item { return b.tbl().get(loc) }

// All returns every item in locator order.
func (b *table) All() []*Item { return b.tbl().sorted() }

// Purge drops erased items that no longer have an entity.
func (b *table) Purge() { b.tbl().purge() }

func bindInt(ps *assoc.Parameters, name string, dst *int) error {
	if !ps.Has(name) {
		return nil
	}
	v, err := ps.Int(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func bindFloat(ps *assoc.Parameters, name string, dst *float64) error {
	if !ps.Has(name) {
		return nil
	}
	v, err := ps.Float(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func bindBool(ps *assoc.Parameters, name string, dst *bool) error {
	if !ps.Has(name) {
		return nil
	}
	v, err := ps.Bool(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func bindString(ps *assoc.Parameters, name string, dst *string) error {
	if !ps.Has(name) {
		return nil
	}
	v, err := ps.String(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func bindVec(ps *assoc.Parameters, name string, dst *geom.Vec) error {
	if !ps.Has(name) {
		return nil
	}
	v, err := ps.Get(name)
	if err != nil {
		return err
	}
	vec, ok := v.(geom.Vec)
	if !ok {
		return fmt.Errorf("parameter %q is %T, not a vector", name, v)
	}
	*dst = vec
	return nil
}

func checkCount(name string, n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %s must be at least 1, got %d", ErrInvalidParameters, name, n)
	}
	return nil
}

// locators enumerates every locator of an items × rows × levels grid.
func locators(items, rows, levels int, fn func(ItemLocator)) {
	for k := 0; k < levels; k++ {
		for j := 0; j < rows; j++ {
			for i := 0; i < items; i++ {
				fn(ItemLocator{Item: int32(i), Row: int32(j), Level: int32(k)})
			}
		}
	}
}
