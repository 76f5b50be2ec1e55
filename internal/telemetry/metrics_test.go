package telemetry

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_items_total",
		Help: "Items seen by the test.",
	}, []string{"op"})
	reg.MustRegister(c)
	c.WithLabelValues("create").Add(3)
	return reg
}

func TestWriteMetrics_TextFormat(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := WriteMetrics(&buf, newTestRegistry(t)); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# HELP test_items_total Items seen by the test.",
		"# TYPE test_items_total counter",
		`test_items_total{op="create"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteMetricsFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteMetricsFile(path, newTestRegistry(t)); err != nil {
		t.Fatalf("WriteMetricsFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "stale") || !strings.Contains(string(data), "test_items_total") {
		t.Errorf("unexpected file content:\n%s", data)
	}

	if err := WriteMetricsFile(filepath.Join(t.TempDir(), "missing", "m.prom"), newTestRegistry(t)); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
