package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Montabos/Projet/pkg/checkpoint"
	"github.com/Montabos/Projet/pkg/observability"
	"github.com/Montabos/Projet/pkg/state"
)

type eventLog struct {
	types []observability.EventType
}

func (l *eventLog) OnEvent(_ context.Context, e observability.Event) {
	l.types = append(l.types, e.Type)
}

func appendNode(key, value string) state.Node {
	return state.NewFunctionNode(func(_ context.Context, s state.State) (state.Update, error) {
		return state.Update{
			key:       value,
			"visited": append(s.Strings("visited"), value),
		}, nil
	})
}

// loopGraph builds: work -> check -(approved)-> End, check -(!approved)-> work,
// suspending after check.
func loopGraph(t *testing.T, store state.Store, obs observability.Observer) *state.Graph {
	t.Helper()

	g, err := state.NewGraph(state.Config{
		Name:           "loop",
		InterruptAfter: []string{"check"},
		StepKey:        "steps",
	}, store, obs)
	require.NoError(t, err)

	require.NoError(t, g.AddNode("work", appendNode("work_done", "work")))
	require.NoError(t, g.AddNode("check", appendNode("checked", "check")))
	require.NoError(t, g.AddEdge("work", "check", nil))
	require.NoError(t, g.AddRouter("check", func(s state.State) string {
		if s.Bool("approved") {
			return state.End
		}
		return "work"
	}, "work", state.End))
	require.NoError(t, g.SetEntryPoint("work"))
	return g
}

func TestExecuteSuspendsAfterInterruptNode(t *testing.T) {
	store := checkpoint.NewMemory()
	g := loopGraph(t, store, nil)

	res, err := g.Execute(context.Background(), "r1", state.Update{"input": "x"})
	require.NoError(t, err)

	assert.Equal(t, state.StatusSuspended, res.Status)
	assert.Equal(t, []string{"work", "check"}, res.Path)
	assert.Equal(t, "check", res.State.CheckpointNode)
	assert.Equal(t, []string{"work", "check"}, res.State.Strings("visited"))
	assert.Equal(t, 2, res.State.Int("steps"))
	assert.Equal(t, "x", res.State.String("input"))
}

func TestResumeHonoursExternalUpdates(t *testing.T) {
	store := checkpoint.NewMemory()
	g := loopGraph(t, store, nil)
	ctx := context.Background()

	_, err := g.Execute(ctx, "r1", nil)
	require.NoError(t, err)

	res, err := g.Resume(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusSuspended, res.Status)
	assert.Equal(t, []string{"work", "check"}, res.Path)
	assert.Len(t, res.State.Strings("visited"), 4)

	_, err = store.Merge(ctx, "r1", state.Update{"approved": true}, "")
	require.NoError(t, err)

	res, err = g.Resume(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, res.Status)
	assert.Empty(t, res.Path)
	assert.True(t, res.State.Terminal())
	assert.Len(t, res.State.Strings("visited"), 4)

	again, err := g.Resume(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, again.Status)
	assert.Equal(t, res.State.Data, again.State.Data)
}

func TestResumeUnknownRun(t *testing.T) {
	g := loopGraph(t, checkpoint.NewMemory(), nil)

	_, err := g.Resume(context.Background(), "missing")

	var execErr *state.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, state.ErrRunNotFound)
}

func TestResumeNeverExecutedRunStartsAtEntry(t *testing.T) {
	store := checkpoint.NewMemory()
	g := loopGraph(t, store, nil)
	ctx := context.Background()

	_, err := store.Merge(ctx, "fresh", state.Update{"input": "y"}, "")
	require.NoError(t, err)

	res, err := g.Resume(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "check"}, res.Path)
}

func TestNodeErrorIsExecutionError(t *testing.T) {
	store := checkpoint.NewMemory()
	boom := errors.New("boom")

	g, err := state.NewGraph(state.Config{Name: "fail"}, store, nil)
	require.NoError(t, err)
	require.NoError(t, g.AddNode("a", appendNode("a", "a")))
	require.NoError(t, g.AddNode("b", state.NewFunctionNode(func(context.Context, state.State) (state.Update, error) {
		return nil, boom
	})))
	require.NoError(t, g.AddEdge("a", "b", nil))
	require.NoError(t, g.AddEdge("b", state.End, nil))
	require.NoError(t, g.SetEntryPoint("a"))

	_, err = g.Execute(context.Background(), "r", nil)

	var execErr *state.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "b", execErr.NodeName)
	assert.Equal(t, []string{"a", "b"}, execErr.Path)
	assert.ErrorIs(t, err, boom)

	persisted, err := store.Load(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, "a", persisted.CheckpointNode, "state from completed nodes is kept")
}

func TestMaxStepsExceeded(t *testing.T) {
	g, err := state.NewGraph(state.Config{Name: "spin", MaxSteps: 5}, checkpoint.NewMemory(), nil)
	require.NoError(t, err)
	require.NoError(t, g.AddNode("a", appendNode("a", "a")))
	require.NoError(t, g.AddEdge("a", "a", state.AlwaysTransition()))
	require.NoError(t, g.AddEdge("a", state.End, nil))
	require.NoError(t, g.SetEntryPoint("a"))

	_, err = g.Execute(context.Background(), "r", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max steps (5) exceeded")
}

func TestCancelledContext(t *testing.T) {
	g := loopGraph(t, checkpoint.NewMemory(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Execute(ctx, "r", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouterUndeclaredTarget(t *testing.T) {
	g, err := state.NewGraph(state.Config{Name: "bad"}, checkpoint.NewMemory(), nil)
	require.NoError(t, err)
	require.NoError(t, g.AddNode("a", appendNode("a", "a")))
	require.NoError(t, g.AddRouter("a", func(state.State) string { return "nowhere" }, state.End))
	require.NoError(t, g.SetEntryPoint("a"))

	_, err = g.Execute(context.Background(), "r", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared target")
}

func TestRunNodeKeepsCheckpoint(t *testing.T) {
	store := checkpoint.NewMemory()
	g := loopGraph(t, store, nil)
	ctx := context.Background()

	_, err := g.Execute(ctx, "r", nil)
	require.NoError(t, err)

	s, err := g.RunNode(ctx, "r", "check")
	require.NoError(t, err)
	assert.Equal(t, "check", s.CheckpointNode)
	assert.Equal(t, []string{"work", "check", "check"}, s.Strings("visited"))
	assert.Equal(t, 3, s.Int("steps"))
}

func TestEventsEmitted(t *testing.T) {
	log := &eventLog{}
	g := loopGraph(t, checkpoint.NewMemory(), log)

	_, err := g.Execute(context.Background(), "r", nil)
	require.NoError(t, err)

	assert.Equal(t, state.EventGraphStart, log.types[0])
	assert.Contains(t, log.types, state.EventNodeStart)
	assert.Contains(t, log.types, state.EventNodeComplete)
	assert.Contains(t, log.types, state.EventCheckpointSave)
	assert.Equal(t, state.EventGraphComplete, log.types[len(log.types)-1])
}

func TestGraphBuildErrors(t *testing.T) {
	_, err := state.NewGraph(state.Config{}, nil, nil)
	assert.Error(t, err, "store is required")

	g, err := state.NewGraph(state.Config{}, checkpoint.NewMemory(), nil)
	require.NoError(t, err)

	assert.Error(t, g.AddNode("", appendNode("a", "a")))
	assert.Error(t, g.AddNode(state.End, appendNode("a", "a")))
	require.NoError(t, g.AddNode("a", appendNode("a", "a")))
	assert.Error(t, g.AddNode("a", appendNode("a", "a")))
	assert.Error(t, g.AddEdge("a", "missing", nil))
	assert.Error(t, g.SetEntryPoint("missing"))
	assert.Error(t, g.Validate(), "entry point not set")

	require.NoError(t, g.SetEntryPoint("a"))
	assert.Error(t, g.Validate(), "node without transition")

	require.NoError(t, g.AddEdge("a", state.End, nil))
	assert.Error(t, g.AddRouter("a", func(state.State) string { return state.End }, state.End))
	assert.NoError(t, g.Validate())
}
