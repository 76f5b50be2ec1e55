package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/papapumpkin/assoc/internal/array"
	"github.com/papapumpkin/assoc/internal/config"
	"github.com/papapumpkin/assoc/internal/journal"
	"github.com/papapumpkin/assoc/internal/manifest"
	"github.com/papapumpkin/assoc/internal/telemetry"
	"github.com/papapumpkin/assoc/internal/ui"
)

// env bundles what every evaluating command needs: configuration, the
// logger, the telemetry emitter and the journal.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	printer *ui.Printer
	emitter *telemetry.Emitter
	journal *journal.Journal // nil when journal_path is empty
}

// openEnv loads configuration and opens the telemetry file and journal it
// names. The caller must Close the env.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	e := &env{cfg: cfg, logger: newLogger(cfg), printer: ui.New()}

	if cfg.TelemetryPath != "" {
		if err := ensureDir(cfg.TelemetryPath); err != nil {
			return nil, err
		}
		e.emitter, err = telemetry.NewEmitter(cfg.TelemetryPath)
		if err != nil {
			return nil, err
		}
	}
	if cfg.JournalPath != "" {
		if err := ensureDir(cfg.JournalPath); err != nil {
			e.Close()
			return nil, err
		}
		e.journal, err = journal.Open(ctx, cfg.JournalPath)
		if err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// Close releases the telemetry file and the journal.
func (e *env) Close() {
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			e.logger.Warn("closing journal", "error", err)
		}
	}
	if err := e.emitter.Close(); err != nil {
		e.logger.Warn("closing telemetry", "error", err)
	}
}

// writeMetrics replaces the metrics file named by metrics_path with the
// process's prometheus metrics. It does nothing when metrics_path is empty.
func (e *env) writeMetrics() error {
	if e.cfg.MetricsPath == "" {
		return nil
	}
	if err := ensureDir(e.cfg.MetricsPath); err != nil {
		return err
	}
	return telemetry.WriteMetricsFile(e.cfg.MetricsPath, prometheus.DefaultGatherer)
}

// options returns session options recording every action outcome in rec.
func (e *env) options(rec *journal.Recorder) manifest.Options {
	// config.Validate has already rejected unknown policies.
	policy, _ := array.ParsePathLossPolicy(e.cfg.PathLossPolicy)
	opts := manifest.Options{
		Logger:    e.logger,
		Emitter:   e.emitter,
		MaxPasses: e.cfg.MaxPasses,
		PathLoss:  policy,
	}
	if rec != nil {
		opts.OnAction = rec.OnAction
	}
	return opts
}

// evaluation is one update of a session together with its outcome.
type evaluation struct {
	Path    string
	Session *manifest.Session
	Result  manifest.Result
	Elapsed time.Duration
	Err     error
	// Actions holds the outcome of every action the update evaluated.
	Actions []journal.ActionResult
}

// update evaluates s, journals the run and saves the item-state file next
// to the manifest at path. Action failures are reported in the returned
// evaluation's Err; the returned error covers journal and state-file
// failures only.
func (e *env) update(ctx context.Context, path string, s *manifest.Session, rec *journal.Recorder) (evaluation, error) {
	start := time.Now()
	res, evalErr := s.Update()
	ev := evaluation{Path: path, Session: s, Result: res, Elapsed: time.Since(start), Err: evalErr}
	if rec != nil {
		ev.Actions = rec.Pending()
	}

	var errs []error
	switch {
	case e.journal != nil:
		errs = append(errs, e.record(ctx, s.Manifest().Name, ev, rec))
	case rec != nil:
		rec.Reset()
	}
	statePath := manifest.StatePath(path, e.cfg.StateDir)
	if err := manifest.SaveState(statePath, s.Snapshot(res.RunID)); err != nil {
		errs = append(errs, err)
	} else {
		e.logger.Debug("state saved", "path", statePath, "run", res.RunID)
	}
	return ev, errors.Join(errs...)
}

func (e *env) record(ctx context.Context, name string, ev evaluation, rec *journal.Recorder) error {
	if err := e.journal.BeginRun(ctx, ev.Result.RunID, name); err != nil {
		return err
	}
	if rec != nil {
		if err := rec.Flush(ctx, e.journal, ev.Result.RunID); err != nil {
			return err
		}
	}
	return e.journal.FinishRun(ctx, ev.Result.RunID, ev.Result.Evaluated, ev.Result.Failed, ev.Result.Mutations, ev.Err)
}

// build loads the manifest at path and builds its session. Outcomes of the
// evaluations Build needs internally are dropped so the journal only holds
// what the following update evaluates.
func (e *env) build(path string) (*manifest.Session, *journal.Recorder, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, nil, err
	}
	rec := &journal.Recorder{}
	s, err := manifest.Build(m, e.options(rec))
	if s == nil {
		return nil, nil, err
	}
	rec.Name = s.ActionName
	rec.Reset()
	if err != nil {
		e.printer.Warn(fmt.Sprintf("%s: %v", path, err))
	}
	return s, rec, nil
}
