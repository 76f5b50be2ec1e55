package assoc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/papapumpkin/assoc/internal/drawing"
	"github.com/papapumpkin/assoc/internal/telemetry"
)

// Graph owns the arenas of records and actions for one drawing database and
// receives the database's change notifications.
type Graph struct {
	db        *drawing.Database
	logger    *slog.Logger
	emitter   *telemetry.Emitter
	registry  *Registry
	maxPasses int

	nextID   uint64
	records  map[RecordID]*Record
	actions  map[ActionID]*Action
	networks map[drawing.ObjectID]*Network
	watchers map[drawing.ReactorID]*Network
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithEmitter sets the telemetry emitter. A nil emitter is a no-op.
func WithEmitter(e *telemetry.Emitter) Option {
	return func(g *Graph) { g.emitter = e }
}

// WithRegistry sets the body registry used by NewActionOfKind.
func WithRegistry(r *Registry) Option {
	return func(g *Graph) {
		if r != nil {
			g.registry = r
		}
	}
}

// WithMaxPasses bounds the sweeps of Network.Evaluate.
func WithMaxPasses(n int) Option {
	return func(g *Graph) { g.maxPasses = n }
}

// NewGraph creates a graph over db and installs itself as db's reactor.
func NewGraph(db *drawing.Database, opts ...Option) *Graph {
	g := &Graph{
		db:        db,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		registry:  NewRegistry(),
		maxPasses: DefaultMaxPasses,
		records:   make(map[RecordID]*Record),
		actions:   make(map[ActionID]*Action),
		networks:  make(map[drawing.ObjectID]*Network),
		watchers:  make(map[drawing.ReactorID]*Network),
	}
	for _, opt := range opts {
		opt(g)
	}
	db.SetReactor(g)
	return g
}

// Database returns the drawing database the graph watches.
func (g *Graph) Database() *drawing.Database { return g.db }

// Logger returns the graph logger.
func (g *Graph) Logger() *slog.Logger { return g.logger }

// Registry returns the body registry.
func (g *Graph) Registry() *Registry { return g.registry }

func (g *Graph) alloc() uint64 {
	g.nextID++
	return g.nextID
}

func (g *Graph) allocRecord() RecordID { return RecordID(g.alloc()) }

// Network returns the network scoped to container, creating it on first use.
func (g *Graph) Network(container drawing.ObjectID) (*Network, error) {
	if n, ok := g.networks[container]; ok {
		return n, nil
	}
	n := &Network{g: g, reactor: drawing.ReactorID(g.alloc()), owner: container}
	if err := g.db.AttachReactor(container, n.reactor, 0); err != nil {
		return nil, err
	}
	g.networks[container] = n
	g.watchers[n.reactor] = n
	return n, nil
}

// Networks returns every live network ordered by owner id.
func (g *Graph) Networks() []*Network {
	out := make([]*Network, 0, len(g.networks))
	for _, n := range g.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].owner < out[j].owner })
	return out
}

// NewAction adds an action with the given body to n.
func (g *Graph) NewAction(n *Network, body Body) *Action {
	kind := ""
	if body != nil {
		kind = body.Kind()
	}
	a := &Action{
		g:      g,
		id:     ActionID(g.alloc()),
		kind:   kind,
		body:   body,
		params: NewParameters(),
		status: StatusChangedDirectly,
	}
	g.actions[a.id] = a
	n.add(a)
	return a
}

// NewActionOfKind adds an action whose body is built by the registry. The
// caller sets the action's parameters and then calls Action.Bind.
func (g *Graph) NewActionOfKind(n *Network, kind string) (*Action, error) {
	body, err := g.registry.New(kind)
	if err != nil {
		return nil, err
	}
	return g.NewAction(n, body), nil
}

// NewProxyAction adds a placeholder for an action that failed to decode. It
// keeps its place in the network but never evaluates. A kind the registry
// does not know is reported with the cause.
func (g *Graph) NewProxyAction(n *Network, kind string, cause error) *Action {
	if !g.registry.Has(kind) {
		cause = errors.Join(cause, fmt.Errorf("%w: %q", ErrUnknownKind, kind))
	}
	a := g.NewAction(n, nil)
	a.kind = kind
	a.proxy = cause
	return a
}

// Action returns the action with the given id, including erased ones.
func (g *Graph) Action(id ActionID) *Action { return g.actions[id] }

// Record returns the record with the given id, or nil once it has been removed.
func (g *Graph) Record(id RecordID) *Record { return g.records[id] }

// RemoveAction detaches every record of a and drops it from its network.
func (g *Graph) RemoveAction(a *Action) {
	if a == nil {
		return
	}
	a.erased = true
	a.status = StatusErased
	g.retire(a)
}

// retire detaches the records of an erased action and removes it from its
// network. The action itself stays addressable for inspection.
func (g *Graph) retire(a *Action) {
	for _, r := range a.Records() {
		r.Detach()
		delete(g.records, r.id)
	}
	a.records = nil
	if a.network != nil {
		a.network.remove(a)
	}
}

// NewContext returns an evaluation context carrying the graph's logger and
// emitter.
func (g *Graph) NewContext() *EvaluationContext {
	return newContext(g)
}

// Modified implements drawing.Reactor.
func (g *Graph) Modified(id drawing.ReactorID, _ drawing.ObjectID) {
	if r := g.records[id]; r != nil {
		r.modified()
	}
}

// Erased implements drawing.Reactor.
func (g *Graph) Erased(id drawing.ReactorID, obj drawing.ObjectID) {
	if r := g.records[id]; r != nil {
		r.erased()
		return
	}
	if n := g.watchers[id]; n != nil {
		g.destroyNetwork(n)
	}
}

// Copied implements drawing.Reactor.
func (g *Graph) Copied(id drawing.ReactorID, from, to drawing.ObjectID) {
	if r := g.records[id]; r != nil {
		g.logger.Debug("watched object copied", "record", uint64(id), "from", uint64(from), "to", uint64(to))
	}
}

func (g *Graph) destroyNetwork(n *Network) {
	for _, a := range n.Actions() {
		g.RemoveAction(a)
	}
	n.destroyed = true
	g.db.DetachReactor(n.owner, n.reactor)
	delete(g.networks, n.owner)
	delete(g.watchers, n.reactor)
	g.logger.Debug("network destroyed", "network", uint64(n.owner))
}

func (g *Graph) recordStatusChanged(r *Record, from Status) {
	if g.emitter == nil {
		return
	}
	_ = g.emitter.Emit(telemetry.Event{
		Kind:   telemetry.KindRecordStatus,
		Action: uint64(r.action),
		Data: map[string]string{
			"record": r.name,
			"from":   from.String(),
			"to":     r.status.String(),
		},
	})
}
