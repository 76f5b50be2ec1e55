package assoc

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/papapumpkin/assoc/internal/telemetry"
)

// EvaluationContext carries the state of one evaluation run: its id, the
// action currently evaluating and a guard against nested network runs.
type EvaluationContext struct {
	// RunID tags telemetry and journal rows of the run.
	RunID string
	// OnAction, when set, is called after every action evaluation.
	OnAction func(a *Action, err error)

	g           *Graph
	logger      *slog.Logger
	active      bool
	network     *Network
	current     *Action
	evaluated   int
	failed      int
	startWrites int
}

func newContext(g *Graph) *EvaluationContext {
	return &EvaluationContext{
		RunID:       uuid.NewString(),
		g:           g,
		logger:      g.logger,
		startWrites: g.db.Writes(),
	}
}

// Graph returns the graph being evaluated.
func (ec *EvaluationContext) Graph() *Graph { return ec.g }

// Logger returns a logger tagged with the run id.
func (ec *EvaluationContext) Logger() *slog.Logger {
	return ec.logger.With("run", ec.RunID)
}

// Current returns the action whose body is running, or nil.
func (ec *EvaluationContext) Current() *Action { return ec.current }

// Network returns the network being evaluated, or nil outside Network.Evaluate.
func (ec *EvaluationContext) Network() *Network { return ec.network }

// Evaluated returns how many action evaluations ran in this context.
func (ec *EvaluationContext) Evaluated() int { return ec.evaluated }

// Failed returns how many of those evaluations returned an error.
func (ec *EvaluationContext) Failed() int { return ec.failed }

// Mutations returns the number of database writes since the context was created.
func (ec *EvaluationContext) Mutations() int {
	return ec.g.db.Writes() - ec.startWrites
}

func (ec *EvaluationContext) begin(n *Network) {
	ec.active = true
	ec.network = n
	_ = ec.g.emitter.Emit(telemetry.Event{
		Kind:    telemetry.KindRunStart,
		RunID:   ec.RunID,
		Network: uint64(n.owner),
		Data:    map[string]int{"actions": len(n.actions)},
	})
}

func (ec *EvaluationContext) end() {
	n := ec.network
	ec.active = false
	ec.network = nil
	if n == nil {
		return
	}
	_ = ec.g.emitter.Emit(telemetry.Event{
		Kind:    telemetry.KindRunDone,
		RunID:   ec.RunID,
		Network: uint64(n.owner),
		Data: map[string]int{
			"evaluated": ec.evaluated,
			"failed":    ec.failed,
			"mutations": ec.Mutations(),
		},
	})
}

// enter makes a the current action and returns the func restoring the
// previous one.
func (ec *EvaluationContext) enter(a *Action) func() {
	prev := ec.current
	ec.current = a
	return func() { ec.current = prev }
}

func (ec *EvaluationContext) actionDone(a *Action, err error) {
	ec.evaluated++
	result := "ok"
	if err != nil {
		ec.failed++
		result = "failed"
		ec.Logger().Warn("action evaluation failed", "action", uint64(a.id), "kind", a.kind, "error", err)
	} else {
		ec.Logger().Debug("action evaluated", "action", uint64(a.id), "kind", a.kind, "status", a.status.String())
	}
	var network uint64
	if a.network != nil {
		network = uint64(a.network.owner)
	}
	_ = ec.g.emitter.Emit(telemetry.Event{
		Kind:    telemetry.KindActionEvaluated,
		RunID:   ec.RunID,
		Network: network,
		Action:  uint64(a.id),
		Data: map[string]string{
			"kind":   a.kind,
			"result": result,
			"status": a.status.String(),
		},
	})
	if ec.OnAction != nil {
		ec.OnAction(a, err)
	}
}

// Recovered logs a local failure that a body handled by erasing its action,
// and records the erasure in telemetry.
func (ec *EvaluationContext) Recovered(a *Action, cause error) {
	reason := "erased"
	switch {
	case errors.Is(cause, ErrDanglingSource):
		reason = "dangling_source"
	case errors.Is(cause, ErrDegenerateGeometry):
		reason = "degenerate_geometry"
	}
	ec.Logger().Info("action erased itself", "action", uint64(a.id), "kind", a.kind, "reason", reason, "error", cause)
	var network uint64
	if a.network != nil {
		network = uint64(a.network.owner)
	}
	_ = ec.g.emitter.Emit(telemetry.Event{
		Kind:    telemetry.KindActionErased,
		RunID:   ec.RunID,
		Network: network,
		Action:  uint64(a.id),
		Data:    map[string]any{"reason": reason, "kept_products": a.keepOnRemove},
	})
}
