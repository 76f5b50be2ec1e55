// Package array implements parametric arrays: rectangular, polar and path
// item derivation, the array action body that keeps generated items in sync
// with their sources, and per-item modify overrides layered on top.
package array

import (
	"fmt"
	"sort"

	"github.com/papapumpkin/assoc/internal/assoc"
	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/geom"
)

// ItemLocator addresses one item of an array.
type ItemLocator struct {
	Item  int32 `toml:"item"`
	Row   int32 `toml:"row"`
	Level int32 `toml:"level"`
}

// Compare orders locators by level, then row, then item.
func (l ItemLocator) Compare(o ItemLocator) int {
	switch {
	case l.Level != o.Level:
		return cmp32(l.Level, o.Level)
	case l.Row != o.Row:
		return cmp32(l.Row, o.Row)
	default:
		return cmp32(l.Item, o.Item)
	}
}

// Less reports whether l sorts before o.
func (l ItemLocator) Less(o ItemLocator) bool { return l.Compare(o) < 0 }

func (l ItemLocator) String() string {
	return fmt.Sprintf("(%d,%d,%d)", l.Item, l.Row, l.Level)
}

func cmp32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Item is one generated instance. Transform is relative to the array's base
// frame.
type Item struct {
	Locator   ItemLocator
	Transform geom.Matrix
	Erased    bool
	// Entity is the block reference materializing the item, or drawing.Null.
	Entity drawing.ObjectID
	// Replaced is set while a modify action controls the item.
	Replaced bool
	Owner    assoc.ActionID
}

// itemTable keeps items by locator across recomputations so an item keeps
// its entity while only its transform changes.
type itemTable struct {
	items map[ItemLocator]*Item
}

func newItemTable() *itemTable {
	return &itemTable{items: make(map[ItemLocator]*Item)}
}

// sync makes the live items exactly the keys of want. Locators no longer
// wanted are marked erased; wanted locators that were erased are revived.
func (t *itemTable) sync(want map[ItemLocator]geom.Matrix) []*Item {
	for loc, it := range t.items {
		if _, ok := want[loc]; !ok {
			it.Erased = true
		}
	}
	for loc, m := range want {
		it, ok := t.items[loc]
		if !ok {
			it = &Item{Locator: loc}
			t.items[loc] = it
		}
		it.Erased = false
		it.Transform = m
	}
	return t.sorted()
}

func (t *itemTable) get(loc ItemLocator) *Item { return t.items[loc] }

func (t *itemTable) sorted() []*Item {
	out := make([]*Item, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Locator.Less(out[j].Locator) })
	return out
}

// purge drops erased items that are no longer materialized. Replaced items
// stay so a modify override survives the array shrinking and growing back.
func (t *itemTable) purge() {
	for loc, it := range t.items {
		if it.Erased && it.Entity == drawing.Null && !it.Replaced {
			delete(t.items, loc)
		}
	}
}
