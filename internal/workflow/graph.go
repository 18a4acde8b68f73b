package workflow

import (
	"github.com/Montabos/Projet/pkg/observability"
	"github.com/Montabos/Projet/pkg/state"
)

// GraphName identifies the workflow graph in events.
const GraphName = "mailflow"

// RouteAfterRetrieve selects web_search when needs_web_search is true and
// draft otherwise.
var RouteAfterRetrieve = state.Branch(state.KeyTrue(KeyNeedsWebSearch), NodeWebSearch, NodeDraft)

// RouteAfterReview ends the run when the review approved the draft and
// loops back to draft otherwise.
var RouteAfterReview = state.Branch(state.KeyTrue(KeyReviewApproved), state.End, NodeDraft)

// NewGraph builds classify → retrieve → (web_search) → draft → review with
// an interrupt after every review.
func NewGraph(rt *Runtime, store state.Store, observer observability.Observer) (*state.Graph, error) {
	graph, err := state.NewGraph(state.Config{
		Name:           GraphName,
		MaxSteps:       rt.Config.MaxSteps,
		InterruptAfter: []string{NodeReview},
		StepKey:        KeyStepCount,
	}, store, observer)
	if err != nil {
		return nil, err
	}

	nodes := []struct {
		name string
		node state.Node
	}{
		{NodeClassify, ClassifyNode(rt)},
		{NodeRetrieve, RetrieveNode(rt)},
		{NodeWebSearch, WebSearchNode(rt)},
		{NodeDraft, DraftNode(rt)},
		{NodeReview, ReviewNode(rt)},
	}
	for _, n := range nodes {
		if err := graph.AddNode(n.name, n.node); err != nil {
			return nil, err
		}
	}

	if err := graph.AddEdge(NodeClassify, NodeRetrieve, state.AlwaysTransition()); err != nil {
		return nil, err
	}

	// retrieve → web_search | draft
	if err := graph.AddRouter(NodeRetrieve, RouteAfterRetrieve, NodeWebSearch, NodeDraft); err != nil {
		return nil, err
	}

	if err := graph.AddEdge(NodeWebSearch, NodeDraft, state.AlwaysTransition()); err != nil {
		return nil, err
	}

	if err := graph.AddEdge(NodeDraft, NodeReview, state.AlwaysTransition()); err != nil {
		return nil, err
	}

	// review → end | draft
	if err := graph.AddRouter(NodeReview, RouteAfterReview, state.End, NodeDraft); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint(NodeClassify); err != nil {
		return nil, err
	}

	if err := graph.Validate(); err != nil {
		return nil, err
	}

	return graph, nil
}
