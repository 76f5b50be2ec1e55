package array

import (
	"errors"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/geom"
)

// Rectangular lays items out on a grid. Columns run along X, rows along Y
// (rising by RowElevation per row) and levels along Z.
type Rectangular struct {
	Columns       int
	Rows          int
	Levels        int
	ColumnSpacing float64
	RowSpacing    float64
	LevelSpacing  float64
	RowElevation  float64

	table
}

// NewRectangular returns a columns × rows grid on one level.
func NewRectangular(columns, rows int, columnSpacing, rowSpacing float64) *Rectangular {
	return &Rectangular{
		Columns:       columns,
		Rows:          rows,
		Levels:        1,
		ColumnSpacing: columnSpacing,
		RowSpacing:    rowSpacing,
	}
}

// Kind implements Parameters.
func (p *Rectangular) Kind() string { return KindRectangular }

// Offset returns the translation of the item at loc.
func (p *Rectangular) Offset(loc ItemLocator) geom.Vec {
	i, j, k := float64(loc.Item), float64(loc.Row), float64(loc.Level)
	return geom.Vec{
		X: i * p.ColumnSpacing,
		Y: j * p.RowSpacing,
		Z: j*p.RowElevation + k*p.LevelSpacing,
	}
}

// Items implements Parameters.
func (p *Rectangular) Items() ([]*Item, error) {
	if err := errors.Join(
		checkCount("columns", p.Columns),
		checkCount("rows", p.Rows),
		checkCount("levels", p.Levels),
	); err != nil {
		return nil, err
	}
	want := make(map[ItemLocator]geom.Matrix, p.Columns*p.Rows*p.Levels)
	locators(p.Columns, p.Rows, p.Levels, func(loc ItemLocator) {
		want[loc] = geom.Translation(p.Offset(loc))
	})
	return p.tbl().sync(want), nil
}

// Bind implements Parameters.
func (p *Rectangular) Bind(ps *assoc.Parameters) error {
	return errors.Join(
		bindInt(ps, "columns", &p.Columns),
		bindInt(ps, "rows", &p.Rows),
		bindInt(ps, "levels", &p.Levels),
		bindFloat(ps, "columnSpacing", &p.ColumnSpacing),
		bindFloat(ps, "rowSpacing", &p.RowSpacing),
		bindFloat(ps, "levelSpacing", &p.LevelSpacing),
		bindFloat(ps, "rowElevation", &p.RowElevation),
	)
}

// Publish implements Parameters.
func (p *Rectangular) Publish(ps *assoc.Parameters) {
	ps.Set("columns", p.Columns)
	ps.Set("rows", p.Rows)
	ps.Set("levels", p.Levels)
	ps.Set("columnSpacing", p.ColumnSpacing)
	ps.Set("rowSpacing", p.RowSpacing)
	ps.Set("levelSpacing", p.LevelSpacing)
	ps.Set("rowElevation", p.RowElevation)
}
