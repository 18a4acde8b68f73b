// Package state implements a resumable state-graph executor.
//
// A graph is a set of named nodes connected by predicate edges or routers.
// Nodes receive the current State and return a partial Update; the engine
// merges every Update into a Store keyed by run id before choosing the next
// node, so a run can be suspended after any node and resumed later from the
// persisted state, including changes merged by other callers in between.
//
//	g, _ := state.NewGraph(state.Config{Name: "review", InterruptAfter: []string{"review"}}, store, observer)
//	g.AddNode("draft", draftNode)
//	g.AddNode("review", reviewNode)
//	g.AddEdge("draft", "review", nil)
//	g.AddRouter("review", routeAfterReview, "draft", state.End)
//	g.SetEntryPoint("draft")
//	res, err := g.Execute(ctx, runID, state.Update{"instruction": "..."})
//
// A Graph is immutable once built and may execute many runs concurrently.
package state
