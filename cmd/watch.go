package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/assoc/internal/journal"
	"github.com/papapumpkin/assoc/internal/manifest"
)

var watchCmd = &cobra.Command{
	Use:   "watch <manifest.toml>",
	Short: "Keep a manifest's drawing live and re-evaluate it on every save",
	Long: `Builds and evaluates the manifest once, then watches the file. Each save is
applied to the live drawing as edits (moved entities, changed parameters,
added or removed arrays) and only what the edits invalidated is evaluated
again. Every evaluation is journaled and refreshes the item-state file.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", 0, "quiet period after a save before re-evaluating (default watch.debounce_ms)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	debounce, _ := cmd.Flags().GetDuration("debounce")
	if debounce <= 0 {
		debounce = time.Duration(e.cfg.Watch.DebounceMS) * time.Millisecond
	}

	s, rec, err := e.build(path)
	if err != nil {
		return err
	}
	if err := e.report(ctx, path, s, rec); err != nil {
		return err
	}

	w, err := manifest.NewWatcher(path, debounce)
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	defer w.Stop()
	e.printer.Watching(w.File)

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			if change.Kind == manifest.ChangeRemoved {
				e.printer.Warn(fmt.Sprintf("%s removed; waiting for it to come back", path))
				continue
			}
			if err := e.resync(ctx, path, s, rec); err != nil {
				return err
			}
		}
	}
}

// resync applies the manifest on disk to the live session and evaluates
// what changed. Manifest errors are reported and leave the session as is.
func (e *env) resync(ctx context.Context, path string, s *manifest.Session, rec *journal.Recorder) error {
	next, err := manifest.Load(path)
	if err != nil {
		e.printer.Error(err.Error())
		return nil
	}
	st, err := s.Sync(next)
	e.printer.SyncDone(next.Name, st)
	if err != nil {
		e.printer.Error(err.Error())
	}
	if !st.Changed() {
		rec.Reset()
		return nil
	}
	return e.report(ctx, path, s, rec)
}

// report updates s and prints the outcome. Only journal and state-file
// failures are returned; action failures are printed.
func (e *env) report(ctx context.Context, path string, s *manifest.Session, rec *journal.Recorder) error {
	ev, err := e.update(ctx, path, s, rec)
	e.printer.UpdateDone(s.Manifest().Name, ev.Result, ev.Elapsed)
	if ev.Err != nil {
		e.printer.Error(ev.Err.Error())
	}
	if err != nil {
		return err
	}
	return e.writeMetrics()
}
