package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/papapumpkin/assoc/internal/journal"
	"github.com/papapumpkin/assoc/internal/manifest"
)

// OrderRow is one action in an evaluation-order listing.
type OrderRow struct {
	Position  int
	Name      string
	Kind      string
	Status    string
	Track     int
	DependsOn []string
}

func newTable(w io.Writer, header []string, align []int) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment(align)
	return table
}

// ItemTable writes the items of every array in st, one row per item.
func ItemTable(w io.Writer, st *manifest.State) {
	table := newTable(w,
		[]string{"Array", "Item", "Position", "Override"},
		[]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT})
	total := 0
	for _, a := range st.Arrays {
		for _, it := range a.Items {
			pos := "?"
			if m, err := it.Matrix(); err == nil {
				o := m.Origin()
				pos = fmt.Sprintf("%.4g, %.4g, %.4g", o.X, o.Y, o.Z)
			}
			table.Append([]string{a.Name, it.ItemLocator.String(), pos, it.Override})
			total++
		}
	}
	table.SetFooter([]string{"", "", "Total", fmt.Sprintf("%d", total)})
	table.Render()
}

// ArrayTable writes one row per array in st.
func ArrayTable(w io.Writer, st *manifest.State) {
	table := newTable(w,
		[]string{"Array", "Kind", "Status", "Items"},
		[]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for _, a := range st.Arrays {
		table.Append([]string{a.Name, a.Kind, a.Status, fmt.Sprintf("%d", len(a.Items))})
	}
	table.Render()
}

// ActionTable writes the action outcomes of one run.
func ActionTable(w io.Writer, results []journal.ActionResult) {
	table := newTable(w,
		[]string{"Action", "Name", "Kind", "Status", "Error"},
		[]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	for _, r := range results {
		table.Append([]string{fmt.Sprintf("%d", r.ActionID), r.Name, r.Kind, r.Status, r.Error})
	}
	table.Render()
}

// RunTable writes a list of journal runs, newest first as given.
func RunTable(w io.Writer, runs []journal.Run) {
	table := newTable(w,
		[]string{"Run", "Manifest", "Started", "Evaluated", "Failed", "Mutations", "Error"},
		[]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT})
	for _, r := range runs {
		started := r.StartedAt.Local().Format(time.DateTime)
		errMsg := r.Error
		if r.FinishedAt.IsZero() && errMsg == "" {
			errMsg = "(running)"
		}
		table.Append([]string{
			r.ID, r.Manifest, started,
			fmt.Sprintf("%d", r.Evaluated), fmt.Sprintf("%d", r.Failed), fmt.Sprintf("%d", r.Mutations),
			errMsg,
		})
	}
	table.Render()
}

// OrderTable writes the evaluation order of a network with the track each
// action belongs to.
func OrderTable(w io.Writer, rows []OrderRow) {
	table := newTable(w,
		[]string{"#", "Action", "Kind", "Status", "Track", "Depends On"},
		[]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT})
	for _, r := range rows {
		table.Append([]string{
			fmt.Sprintf("%d", r.Position), r.Name, r.Kind, r.Status,
			fmt.Sprintf("%d", r.Track), strings.Join(r.DependsOn, ", "),
		})
	}
	table.Render()
}
