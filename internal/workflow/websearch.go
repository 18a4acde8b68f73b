package workflow

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Montabos/Projet/pkg/state"
	"github.com/Montabos/Projet/pkg/websearch"
)

const (
	maxWebResults  = 3
	maxContentSize = 800
)

// FormatResults renders up to three results as Source/Title/Content blocks
// separated by blank lines. Content is cut to 800 characters.
func FormatResults(results []websearch.Result) string {
	blocks := make([]string, 0, maxWebResults)
	for _, r := range results[:min(len(results), maxWebResults)] {
		blocks = append(blocks, fmt.Sprintf(
			"Source: %s\nTitle: %s\nContent: %s",
			orNA(r.URL), orNA(r.Title), truncate(r.Content, maxContentSize),
		))
	}
	return strings.Join(blocks, "\n\n")
}

// WebSearchNode returns a node that searches the web and appends the
// results to the retrieved context under ExternalMarker. The query comes
// from the model when available and falls back to the raw instruction.
func WebSearchNode(rt *Runtime) state.Node {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.Update, error) {
		instruction := s.String(KeyInstruction)
		query := instruction

		if rt.Model != nil {
			reply, err := rt.Model.Complete(ctx, searchQueryPrompt(instruction, rt.now()))
			if err != nil {
				if err := rt.degrade(ctx, NodeWebSearch, "model", err); err != nil {
					return nil, err
				}
			} else if q := CleanQuery(reply); q != "" {
				query = q
			}
		}

		results := []websearch.Result{}
		if rt.WebSearcher != nil {
			found, err := rt.WebSearcher.Search(ctx, query)
			if err != nil {
				if err := rt.degrade(ctx, NodeWebSearch, "web search", err); err != nil {
					return nil, err
				}
			} else if found != nil {
				results = found[:min(len(found), maxWebResults)]
			}
		}

		enhanced := s.String(KeyRetrievedContext) + "\n\n" + ExternalMarker + "\n" + FormatResults(results)

		rt.Logger.InfoContext(
			ctx, "web_search node complete",
			"run_id", s.RunID,
			"query", query,
			"results", len(results),
		)

		return state.Update{
			KeyWebResults:      results,
			KeyEnhancedContext: enhanced,
			KeyHistory:         appendHistory(s, "Performed web search"),
		}, nil
	})
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
