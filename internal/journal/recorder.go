package journal

import (
	"context"
	"sync"

	"github.com/papapumpkin/assoc/internal/assoc"
)

// Recorder collects action outcomes during an evaluation and writes them to
// the journal once the run id is known. OnAction fits
// assoc.EvaluationContext.OnAction.
type Recorder struct {
	// Name resolves a display name for an action; may be nil.
	Name func(assoc.ActionID) string

	mu      sync.Mutex
	pending []ActionResult
}

// OnAction records the outcome of one action evaluation.
func (r *Recorder) OnAction(a *assoc.Action, err error) {
	res := ActionResult{ActionID: uint64(a.ID()), Kind: a.Kind(), Status: a.Status().String()}
	if r.Name != nil {
		res.Name = r.Name(a.ID())
	}
	if err != nil {
		res.Error = err.Error()
	}
	r.mu.Lock()
	r.pending = append(r.pending, res)
	r.mu.Unlock()
}

// Pending returns the outcomes not yet flushed.
func (r *Recorder) Pending() []ActionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ActionResult(nil), r.pending...)
}

// Reset drops the outcomes not yet flushed.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
}

// Flush writes the pending outcomes under runID.
func (r *Recorder) Flush(ctx context.Context, j *Journal, runID string) error {
	r.mu.Lock()
	results := r.pending
	r.pending = nil
	r.mu.Unlock()
	for i := range results {
		results[i].RunID = runID
	}
	return j.RecordActions(ctx, results)
}
