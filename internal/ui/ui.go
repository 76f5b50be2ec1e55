// Package ui prints human-oriented progress and results for the assoc CLI.
// Status lines go to stderr so stdout stays free for tables and JSON.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/papapumpkin/assoc/internal/manifest"
)

// ANSI color codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	yellow = "\033[33m"
	green  = "\033[32m"
	red    = "\033[31m"
	cyan   = "\033[36m"
)

// Printer writes colored status lines.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to stderr.
func New() *Printer {
	return &Printer{w: os.Stderr}
}

// NewWriter returns a Printer writing to w.
func NewWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.w, red+bold+"error: "+reset+"%s\n", msg)
}

func (p *Printer) Warn(msg string) {
	fmt.Fprintf(p.w, yellow+bold+"warning: "+reset+"%s\n", msg)
}

func (p *Printer) Info(msg string) {
	fmt.Fprintf(p.w, cyan+"%s"+reset+"\n", msg)
}

// UpdateDone reports the outcome of one update of a manifest.
func (p *Printer) UpdateDone(name string, res manifest.Result, d time.Duration) {
	if res.Failed > 0 {
		fmt.Fprintf(p.w, red+bold+"✗ %s"+reset+" %d evaluated, %d failed"+dim+" (%s, run %s)"+reset+"\n",
			name, res.Evaluated, res.Failed, d.Round(time.Millisecond), res.RunID)
		return
	}
	fmt.Fprintf(p.w, green+bold+"✓ %s"+reset+" %d evaluated, %d mutations"+dim+" (%s, run %s)"+reset+"\n",
		name, res.Evaluated, res.Mutations, d.Round(time.Millisecond), res.RunID)
}

// SyncDone reports what a manifest reload changed.
func (p *Printer) SyncDone(name string, st manifest.SyncStats) {
	if !st.Changed() {
		fmt.Fprintf(p.w, dim+"· %s unchanged"+reset+"\n", name)
		return
	}
	fmt.Fprintf(p.w, cyan+bold+"↻ %s"+reset+" entities +%d ~%d -%d, arrays +%d ~%d -%d, overrides +%d -%d\n",
		name,
		st.EntitiesAdded, st.EntitiesChanged, st.EntitiesRemoved,
		st.ArraysAdded, st.ArraysEdited, st.ArraysRemoved,
		st.OverridesAdded, st.OverridesRemoved)
}

// ValidateResult reports the outcome of validating one manifest.
func (p *Printer) ValidateResult(path string, m *manifest.Manifest, errs []manifest.ValidationError) {
	if len(errs) == 0 {
		fmt.Fprintf(p.w, green+bold+"✓ %s"+reset+" valid (%d entities, %d arrays, %d overrides)\n",
			path, len(m.Entities), len(m.Arrays), len(m.Overrides))
		return
	}
	fmt.Fprintf(p.w, red+bold+"✗ %s"+reset+" %d problem(s)\n", path, len(errs))
	for i := range errs {
		fmt.Fprintf(p.w, "  "+red+"•"+reset+" %s\n", errs[i].Error())
	}
}

// Watching announces that a manifest is being watched.
func (p *Printer) Watching(path string) {
	fmt.Fprintf(p.w, bold+cyan+"watching %s"+reset+dim+" (ctrl-c to stop)"+reset+"\n", path)
}
