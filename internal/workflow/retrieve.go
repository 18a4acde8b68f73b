package workflow

import (
	"context"
	"strings"

	"github.com/Montabos/Projet/pkg/state"
)

const threadQualifier = " email thread conversation"

// RetrievalQuery builds the similarity search query for an instruction.
// Replies and summaries look for the surrounding thread.
func RetrievalQuery(intent Intent, instruction string) string {
	if intent == IntentReply || intent == IntentSummarize {
		return instruction + threadQualifier
	}
	return instruction
}

// RetrieveNode returns a node that gathers internal context and decides
// whether a web search is needed. Search failures yield empty context; a
// missing or failing decision model yields no web search.
func RetrieveNode(rt *Runtime) state.Node {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.Update, error) {
		instruction := s.String(KeyInstruction)
		query := RetrievalQuery(intentOf(s), instruction)

		var (
			contents []string
			sources  = []string{}
		)

		if rt.Retriever != nil {
			matches, err := rt.Retriever.Search(ctx, query, rt.Config.RetrievalK)
			if err != nil {
				if err := rt.degrade(ctx, NodeRetrieve, "retriever", err); err != nil {
					return nil, err
				}
			}
			for _, m := range matches {
				contents = append(contents, m.Content)
				sources = append(sources, m.Source)
			}
		}
		retrieved := strings.Join(contents, "\n\n")

		needsWebSearch := false
		if decider := rt.decider(); decider != nil {
			reply, err := decider.Complete(ctx, webSearchDecisionPrompt(instruction, len(retrieved)))
			if err != nil {
				if err := rt.degrade(ctx, NodeRetrieve, "decision model", err); err != nil {
					return nil, err
				}
			} else {
				needsWebSearch = ParseDecision(reply)
			}
		}

		rt.Logger.InfoContext(
			ctx, "retrieve node complete",
			"run_id", s.RunID,
			"matches", len(sources),
			"context_chars", len(retrieved),
			"needs_web_search", needsWebSearch,
		)

		return state.Update{
			KeyRetrievedContext: retrieved,
			KeyRetrievedSources: sources,
			KeyNeedsWebSearch:   needsWebSearch,
			KeyHistory:          appendHistory(s, "Retrieved context from vector DB"),
		}, nil
	})
}
