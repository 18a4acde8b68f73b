package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/Montabos/Projet/pkg/state"
)

// ReviewNode returns a node that reviews the current draft. An empty draft
// is rejected with NoDraftIssue without consuming a review pass. A missing
// or failing model is treated as an empty reply, which the anti-deadlock
// rule approves. When review_passes reaches the revision ceiling without
// approval, the revision policy either forces approval or fails the run
// with ErrRevisionLimit.
func ReviewNode(rt *Runtime) state.Node {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.Update, error) {
		if strings.TrimSpace(s.String(KeyDraft)) == "" {
			rt.Logger.WarnContext(ctx, "review skipped: empty draft", "run_id", s.RunID)
			return state.Update{
				KeyReviewApproved:    false,
				KeyReviewIssues:      []string{NoDraftIssue},
				KeyReviewSuggestions: []string{},
				KeyHistory:           appendHistory(s, "Review: Needs revision"),
			}, nil
		}

		var reply string
		if rt.Model != nil {
			out, err := rt.Model.Complete(ctx, reviewPrompt(s.String(KeyInstruction), intentOf(s), s.String(KeyDraft)))
			if err != nil {
				if err := rt.degrade(ctx, NodeReview, "model", err); err != nil {
					return nil, err
				}
			} else {
				reply = out
			}
		}

		r := ParseReview(reply)
		passes := s.Int(KeyReviewPasses) + 1

		if !r.Approved && passes >= rt.Config.MaxRevisions {
			if rt.Config.RevisionPolicy == PolicyFail {
				return nil, fmt.Errorf("%w: %d review passes", ErrRevisionLimit, passes)
			}
			r.Approved = true
			r.Issues = append(r.Issues, RevisionLimitIssue)
		}

		verdict := "Needs revision"
		if r.Approved {
			verdict = "Approved"
		}

		rt.Logger.InfoContext(
			ctx, "review node complete",
			"run_id", s.RunID,
			"approved", r.Approved,
			"issues", len(r.Issues),
			"pass", passes,
		)

		return state.Update{
			KeyReviewApproved:    r.Approved,
			KeyReviewIssues:      r.Issues,
			KeyReviewSuggestions: r.Suggestions,
			KeyReviewPasses:      passes,
			KeyHistory:           appendHistory(s, "Review: "+verdict),
		}, nil
	})
}
