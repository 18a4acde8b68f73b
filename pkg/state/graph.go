package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Montabos/Projet/pkg/observability"
)

// DefaultMaxSteps bounds node executions per Execute or Resume call.
const DefaultMaxSteps = 50

// Status describes how an Execute or Resume call ended.
type Status string

const (
	// StatusSuspended means the run paused after an interrupt node.
	StatusSuspended Status = "suspended"
	// StatusCompleted means the run reached End.
	StatusCompleted Status = "completed"
)

// Config holds graph construction settings.
type Config struct {
	Name string

	// MaxSteps limits node executions within one call. Zero uses DefaultMaxSteps.
	MaxSteps int

	// InterruptAfter lists nodes after which execution suspends. The node's
	// outgoing transition is evaluated on the following Resume.
	InterruptAfter []string

	// StepKey, when set, names an integer value the engine increments in
	// every node's Update.
	StepKey string
}

// Result is the outcome of an Execute or Resume call that did not fail.
type Result struct {
	State  State
	Status Status
	Path   []string
}

type router struct {
	fn      Router
	targets []string
}

// Graph is a directed graph of nodes executed against a Store.
type Graph struct {
	name       string
	nodes      map[string]Node
	edges      map[string][]Edge
	routers    map[string]router
	entryPoint string
	interrupts map[string]bool
	maxSteps   int
	stepKey    string
	store      Store
	observer   observability.Observer
}

// NewGraph creates an empty graph persisting through store. A nil observer
// discards events.
func NewGraph(cfg Config, store Store, observer observability.Observer) (*Graph, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if observer == nil {
		observer = observability.NoOpObserver{}
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	interrupts := make(map[string]bool, len(cfg.InterruptAfter))
	for _, n := range cfg.InterruptAfter {
		interrupts[n] = true
	}

	return &Graph{
		name:       cfg.Name,
		nodes:      make(map[string]Node),
		edges:      make(map[string][]Edge),
		routers:    make(map[string]router),
		interrupts: interrupts,
		maxSteps:   maxSteps,
		stepKey:    cfg.StepKey,
		store:      store,
		observer:   observer,
	}, nil
}

// Name returns the graph identifier used as event source.
func (g *Graph) Name() string {
	return g.name
}

// Store returns the store the graph persists through.
func (g *Graph) Store() Store {
	return g.store
}

// AddNode registers a node under a unique name.
func (g *Graph) AddNode(name string, node Node) error {
	if name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	if name == End {
		return fmt.Errorf("node name %s is reserved", End)
	}
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("node %s already exists", name)
	}

	g.nodes[name] = node
	return nil
}

// AddEdge adds a transition from one node to another node or to End.
// A nil predicate makes the edge unconditional.
func (g *Graph) AddEdge(from, to string, predicate TransitionPredicate) error {
	if err := g.checkSource(from); err != nil {
		return err
	}
	if err := g.checkTarget(to); err != nil {
		return err
	}
	if _, exists := g.routers[from]; exists {
		return fmt.Errorf("node %s already has a router", from)
	}

	g.edges[from] = append(g.edges[from], Edge{
		From:      from,
		To:        to,
		Predicate: predicate,
	})
	return nil
}

// AddRouter attaches a router to a node. The router replaces edge
// evaluation for that node and may only select one of targets.
func (g *Graph) AddRouter(from string, fn Router, targets ...string) error {
	if err := g.checkSource(from); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("router cannot be nil")
	}
	if len(targets) == 0 {
		return fmt.Errorf("router from %s declares no targets", from)
	}
	if len(g.edges[from]) > 0 {
		return fmt.Errorf("node %s already has edges", from)
	}
	if _, exists := g.routers[from]; exists {
		return fmt.Errorf("node %s already has a router", from)
	}
	for _, to := range targets {
		if err := g.checkTarget(to); err != nil {
			return err
		}
	}

	g.routers[from] = router{fn: fn, targets: targets}
	return nil
}

// SetEntryPoint defines the first node of a new run.
func (g *Graph) SetEntryPoint(node string) error {
	if node == "" {
		return fmt.Errorf("entry point cannot be empty")
	}
	if g.entryPoint != "" {
		return fmt.Errorf("entry point already set to %s", g.entryPoint)
	}
	if _, exists := g.nodes[node]; !exists {
		return fmt.Errorf("entry point node %s does not exist", node)
	}

	g.entryPoint = node
	return nil
}

// Validate checks that the graph has an entry point, that every node has
// an outgoing transition, and that End is reachable from some node.
func (g *Graph) Validate() error {
	if len(g.nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}
	if g.entryPoint == "" {
		return fmt.Errorf("entry point not set")
	}

	reachesEnd := false
	for name := range g.nodes {
		r, routed := g.routers[name]
		edges := g.edges[name]
		if !routed && len(edges) == 0 {
			return fmt.Errorf("node %s has no outgoing transition", name)
		}
		if routed && slices.Contains(r.targets, End) {
			reachesEnd = true
		}
		for _, e := range edges {
			if e.To == End {
				reachesEnd = true
			}
		}
	}
	if !reachesEnd {
		return fmt.Errorf("no transition reaches %s", End)
	}

	for n := range g.interrupts {
		if _, exists := g.nodes[n]; !exists {
			return fmt.Errorf("interrupt node %s does not exist", n)
		}
	}
	return nil
}

// Execute merges initial into the run's persisted state and runs the graph
// from the entry point.
func (g *Graph) Execute(ctx context.Context, runID string, initial Update) (Result, error) {
	if err := g.Validate(); err != nil {
		return Result{}, fmt.Errorf("graph validation failed: %w", err)
	}

	s, err := g.store.Merge(ctx, runID, initial, "")
	if err != nil {
		return Result{}, &ExecutionError{
			NodeName: g.entryPoint,
			RunID:    runID,
			Err:      fmt.Errorf("persist initial state: %w", err),
		}
	}

	return g.run(ctx, g.entryPoint, s)
}

// Resume continues a run from its persisted state. A run that never
// executed starts at the entry point; a run at End is returned unchanged
// with StatusCompleted. Otherwise the transition out of the checkpoint node
// is evaluated against the persisted state and execution continues.
func (g *Graph) Resume(ctx context.Context, runID string) (Result, error) {
	if err := g.Validate(); err != nil {
		return Result{}, fmt.Errorf("graph validation failed: %w", err)
	}

	s, err := g.store.Load(ctx, runID)
	if err != nil {
		return Result{}, &ExecutionError{
			RunID: runID,
			Err:   fmt.Errorf("load checkpoint: %w", err),
		}
	}

	g.emit(ctx, EventCheckpointLoad, observability.LevelInfo, map[string]any{
		"node":   s.CheckpointNode,
		"run_id": runID,
	})

	switch s.CheckpointNode {
	case "":
		return g.run(ctx, g.entryPoint, s)
	case End:
		return Result{State: s, Status: StatusCompleted}, nil
	}

	next, err := g.next(ctx, s.CheckpointNode, s)
	if err != nil {
		return Result{}, g.fail(ctx, s.CheckpointNode, s, nil, err)
	}

	g.emit(ctx, EventCheckpointResume, observability.LevelInfo, map[string]any{
		"checkpoint_node": s.CheckpointNode,
		"resume_node":     next,
		"run_id":          runID,
	})

	if next == End {
		return g.finish(ctx, s, nil)
	}
	return g.run(ctx, next, s)
}

// RunNode executes a single node against the persisted state of runID and
// merges its update without moving the checkpoint.
func (g *Graph) RunNode(ctx context.Context, runID, name string) (State, error) {
	node, exists := g.nodes[name]
	if !exists {
		return State{}, &ExecutionError{NodeName: name, RunID: runID, Err: fmt.Errorf("node %s not found", name)}
	}

	s, err := g.store.Load(ctx, runID)
	if err != nil {
		return State{}, &ExecutionError{NodeName: name, RunID: runID, Err: fmt.Errorf("load state: %w", err)}
	}

	update, err := g.apply(ctx, name, node, s)
	if err != nil {
		return s, &ExecutionError{NodeName: name, RunID: runID, State: s, Err: err}
	}

	merged, err := g.store.Merge(ctx, runID, update, "")
	if err != nil {
		return s, &ExecutionError{NodeName: name, RunID: runID, State: s, Err: fmt.Errorf("persist state: %w", err)}
	}
	return merged, nil
}

func (g *Graph) run(ctx context.Context, start string, s State) (Result, error) {
	g.emit(ctx, EventGraphStart, observability.LevelInfo, map[string]any{
		"start_node": start,
		"run_id":     s.RunID,
	})

	current := start
	steps := 0
	visited := make(map[string]int)
	path := make([]string, 0, len(g.nodes))

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, g.fail(ctx, current, s, path, fmt.Errorf("execution cancelled: %w", err))
		}

		steps++
		if steps > g.maxSteps {
			return Result{}, g.fail(ctx, current, s, path, fmt.Errorf("max steps (%d) exceeded", g.maxSteps))
		}

		visited[current]++
		path = append(path, current)

		if visited[current] > 1 {
			g.emit(ctx, EventCycleDetected, observability.LevelWarning, map[string]any{
				"node":        current,
				"visit_count": visited[current],
				"run_id":      s.RunID,
			})
		}

		node, exists := g.nodes[current]
		if !exists {
			return Result{}, g.fail(ctx, current, s, path, fmt.Errorf("node %s not found", current))
		}

		update, err := g.apply(ctx, current, node, s)
		if err != nil {
			return Result{}, g.fail(ctx, current, s, path, err)
		}

		merged, err := g.store.Merge(ctx, s.RunID, update, current)
		if err != nil {
			return Result{}, g.fail(ctx, current, s, path, fmt.Errorf("checkpoint save failed: %w", err))
		}
		s = merged

		g.emit(ctx, EventCheckpointSave, observability.LevelVerbose, map[string]any{
			"node":   current,
			"run_id": s.RunID,
		})

		if g.interrupts[current] {
			g.emit(ctx, EventGraphComplete, observability.LevelInfo, map[string]any{
				"status": string(StatusSuspended),
				"node":   current,
				"run_id": s.RunID,
				"steps":  steps,
			})
			return Result{State: s, Status: StatusSuspended, Path: path}, nil
		}

		next, err := g.next(ctx, current, s)
		if err != nil {
			return Result{}, g.fail(ctx, current, s, path, err)
		}

		if next == End {
			return g.finish(ctx, s, path)
		}
		current = next
	}
}

func (g *Graph) apply(ctx context.Context, name string, node Node, s State) (Update, error) {
	g.emit(ctx, EventNodeStart, observability.LevelVerbose, map[string]any{
		"node":   name,
		"run_id": s.RunID,
	})

	began := time.Now()
	update, err := node.Execute(ctx, s)

	g.emit(ctx, EventNodeComplete, observability.LevelVerbose, map[string]any{
		"node":        name,
		"run_id":      s.RunID,
		"error":       err != nil,
		"duration_ms": float64(time.Since(began).Microseconds()) / 1000,
	})

	if err != nil {
		return nil, fmt.Errorf("node execution failed: %w", err)
	}

	if g.stepKey != "" {
		if update == nil {
			update = Update{}
		}
		update[g.stepKey] = s.Int(g.stepKey) + 1
	}
	return update, nil
}

func (g *Graph) next(ctx context.Context, from string, s State) (string, error) {
	if r, routed := g.routers[from]; routed {
		to := r.fn(s)
		if !slices.Contains(r.targets, to) {
			return "", fmt.Errorf("router from %s selected undeclared target %q", from, to)
		}
		g.emitTransition(ctx, from, to, s.RunID)
		return to, nil
	}

	edges, hasEdges := g.edges[from]
	if !hasEdges {
		return "", fmt.Errorf("node %s has no outgoing transition", from)
	}

	for _, edge := range edges {
		if edge.Predicate == nil || edge.Predicate(s) {
			g.emitTransition(ctx, from, edge.To, s.RunID)
			return edge.To, nil
		}
	}

	return "", fmt.Errorf("no valid transition from node %s", from)
}

func (g *Graph) finish(ctx context.Context, s State, path []string) (Result, error) {
	final, err := g.store.Merge(ctx, s.RunID, nil, End)
	if err != nil {
		return Result{}, g.fail(ctx, End, s, path, fmt.Errorf("persist completion: %w", err))
	}

	g.emit(ctx, EventGraphComplete, observability.LevelInfo, map[string]any{
		"status": string(StatusCompleted),
		"run_id": s.RunID,
		"steps":  len(path),
	})

	return Result{State: final, Status: StatusCompleted, Path: path}, nil
}

func (g *Graph) fail(ctx context.Context, node string, s State, path []string, err error) error {
	level := observability.LevelError
	if errors.Is(err, context.Canceled) {
		level = observability.LevelWarning
	}

	g.emit(ctx, EventGraphFail, level, map[string]any{
		"status": "failed",
		"node":   node,
		"run_id": s.RunID,
		"error":  err.Error(),
	})

	return &ExecutionError{
		NodeName: node,
		RunID:    s.RunID,
		State:    s,
		Path:     path,
		Err:      err,
	}
}

func (g *Graph) emitTransition(ctx context.Context, from, to, runID string) {
	g.emit(ctx, EventEdgeTransition, observability.LevelVerbose, map[string]any{
		"from":   from,
		"to":     to,
		"run_id": runID,
	})
}

func (g *Graph) emit(ctx context.Context, t observability.EventType, level observability.Level, data map[string]any) {
	g.observer.OnEvent(ctx, observability.Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    g.name,
		Data:      data,
	})
}

func (g *Graph) checkSource(from string) error {
	if from == "" {
		return fmt.Errorf("from node cannot be empty")
	}
	if _, exists := g.nodes[from]; !exists {
		return fmt.Errorf("from node %s does not exist", from)
	}
	return nil
}

func (g *Graph) checkTarget(to string) error {
	if to == "" {
		return fmt.Errorf("to node cannot be empty")
	}
	if to == End {
		return nil
	}
	if _, exists := g.nodes[to]; !exists {
		return fmt.Errorf("to node %s does not exist", to)
	}
	return nil
}
