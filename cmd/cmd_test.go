package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/papapumpkin/assoc/internal/array"
	"github.com/papapumpkin/assoc/internal/config"
	"github.com/papapumpkin/assoc/internal/journal"
	"github.com/papapumpkin/assoc/internal/manifest"
	"github.com/papapumpkin/assoc/internal/ui"
)

const plate = `
version = 1
name = "plate"

[[entities]]
name = "bolt"
kind = "circle"
center = [0, 0, 0]
radius = 1
at = [5, 5, 0]

[[arrays]]
name = "bolts"
kind = "rectangular"
sources = ["bolt"]
base = [5, 5, 0]
[arrays.params]
columns = 3
rows = 2
columnSpacing = 10.0
rowSpacing = 20.0
`

// testEnv returns an env journaling into dir and the path of a manifest
// written there.
func testEnv(t *testing.T, text string) (*env, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "plate.toml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	j, err := journal.Open(context.Background(), filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return &env{
		cfg:     config.Config{MaxPasses: 3, PathLossPolicy: "erase", LogLevel: "info"},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		printer: ui.NewWriter(io.Discard),
		journal: j,
	}, path
}

func TestEnvUpdate_JournalsAndSavesState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, path := testEnv(t, plate)

	s, rec, err := e.build(path)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ev, err := e.update(ctx, path, s, rec)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ev.Err != nil {
		t.Fatalf("evaluation failed: %v", ev.Err)
	}
	if ev.Result.Evaluated != 1 {
		t.Errorf("evaluated %d, want 1", ev.Result.Evaluated)
	}
	if len(ev.Actions) != 1 || ev.Actions[0].Name != "bolts" {
		t.Errorf("actions = %+v", ev.Actions)
	}

	st, err := manifest.LoadState(manifest.StatePath(path, ""))
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(st.Arrays) != 1 || len(st.Arrays[0].Items) != 6 {
		t.Fatalf("state = %+v", st)
	}
	if st.RunID != ev.Result.RunID {
		t.Errorf("state run %q, want %q", st.RunID, ev.Result.RunID)
	}

	runs, err := e.journal.Runs(ctx, "plate", 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != ev.Result.RunID || runs[0].FinishedAt.IsZero() {
		t.Fatalf("runs = %+v", runs)
	}
	actions, err := e.journal.Actions(ctx, ev.Result.RunID)
	if err != nil {
		t.Fatalf("Actions: %v", err)
	}
	if len(actions) != 1 || actions[0].Kind != array.KindRectangular {
		t.Errorf("journaled actions = %+v", actions)
	}
}

func TestEnvWriteMetrics(t *testing.T) {
	t.Parallel()
	e, path := testEnv(t, plate)
	e.cfg.MetricsPath = filepath.Join(filepath.Dir(path), "out", "assoc.prom")

	s, rec, err := e.build(path)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := e.update(context.Background(), path, s, rec); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := e.writeMetrics(); err != nil {
		t.Fatalf("writeMetrics: %v", err)
	}
	data, err := os.ReadFile(e.cfg.MetricsPath)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	for _, want := range []string{
		`assoc_action_evaluations_total{kind="array.rectangular",result="ok"}`,
		"assoc_action_evaluation_seconds_bucket",
		`assoc_items_materialized_total{op="create"}`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file missing %q", want)
		}
	}
}

func TestEnvResync_EvaluatesOnlyChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, path := testEnv(t, plate)

	s, rec, err := e.build(path)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := e.report(ctx, path, s, rec); err != nil {
		t.Fatalf("report: %v", err)
	}

	// Saving the same manifest again changes nothing.
	if err := e.resync(ctx, path, s, rec); err != nil {
		t.Fatalf("resync: %v", err)
	}
	runs, err := e.journal.Runs(ctx, "plate", 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("an unchanged manifest must not start a run, got %d runs", len(runs))
	}

	edited := strings.Replace(plate, "columns = 3", "columns = 4", 1)
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.resync(ctx, path, s, rec); err != nil {
		t.Fatalf("resync: %v", err)
	}
	st, err := manifest.LoadState(manifest.StatePath(path, ""))
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got := len(st.Arrays[0].Items); got != 8 {
		t.Errorf("items after edit = %d, want 8", got)
	}
	runs, err = e.journal.Runs(ctx, "plate", 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("runs after edit = %d, want 2", len(runs))
	}
}

func TestOrderRows(t *testing.T) {
	t.Parallel()
	e, path := testEnv(t, plate+`
[[arrays]]
name = "plates"
kind = "rectangular"
sources = ["bolts"]
[arrays.params]
columns = 2
columnSpacing = 100.0

[[entities]]
name = "pin"
kind = "circle"
center = [0, 0, 0]
radius = 0.5
at = [0, 50, 0]

[[arrays]]
name = "pins"
kind = "rectangular"
sources = ["pin"]
[arrays.params]
columns = 2
columnSpacing = 3.0
`)
	s, _, err := e.build(path)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	rows, err := orderRows(s)
	if err != nil {
		t.Fatalf("orderRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %+v", rows)
	}
	want := []string{"bolts", "plates", "pins"}
	for i, name := range want {
		if rows[i].Name != name || rows[i].Position != i+1 {
			t.Errorf("row %d = %+v, want %s", i, rows[i], name)
		}
	}
	if len(rows[1].DependsOn) != 1 || rows[1].DependsOn[0] != "bolts" {
		t.Errorf("plates depends on %v, want [bolts]", rows[1].DependsOn)
	}
	if rows[0].Track != rows[1].Track || rows[2].Track == rows[0].Track {
		t.Errorf("tracks = %d %d %d", rows[0].Track, rows[1].Track, rows[2].Track)
	}
}

func TestPrintEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		line  string
		runID string
		want  string
	}{
		{
			name: "with data",
			line: `{"ts":"2026-01-02T03:04:05Z","kind":"action_evaluated","run":"r1","action":7,"data":{"status":"UpToDate","kind":"array.polar"}}`,
			want: "[03:04:05] action_evaluated run=r1 action=7 kind=array.polar status=UpToDate\n",
		},
		{
			name: "undecodable",
			line: "not json",
			want: "??? not json\n",
		},
		{
			name:  "other run filtered",
			line:  `{"ts":"2026-01-02T03:04:05Z","kind":"run_start","run":"r2"}`,
			runID: "r1",
			want:  "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			printEvent(&buf, tt.line, tt.runID)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
