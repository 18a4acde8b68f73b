package workflow

import (
	"context"
	"strings"

	"github.com/Montabos/Projet/pkg/state"
)

// hasExternalInfo reports whether web search results are available to the
// draft stage.
func hasExternalInfo(s state.State) bool {
	return strings.Contains(s.String(KeyEnhancedContext), ExternalMarker) || s.Len(KeyWebResults) > 0
}

// draftContext prefers the enhanced context over the retrieved one.
func draftContext(s state.State) string {
	if v := s.String(KeyEnhancedContext); v != "" {
		return v
	}
	return s.String(KeyRetrievedContext)
}

// pendingRevision reports whether the draft stage was reached from a
// rejected review.
func pendingRevision(s state.State) bool {
	return s.Int(KeyReviewPasses) > 0 && !s.Bool(KeyReviewApproved)
}

// DraftNode returns a node that writes the email for the classified
// intent. After a rejected review, the reviewer's issues and suggestions
// are included as revision notes. When the model is missing or fails, the
// previous draft is kept.
func DraftNode(rt *Runtime) state.Node {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.Update, error) {
		intent := intentOf(s)
		update := state.Update{
			KeyHistory: appendHistory(s, "Drafted "+string(intent)),
		}

		var notes string
		if pendingRevision(s) {
			notes = revisionNotes(s.Strings(KeyReviewIssues), s.Strings(KeyReviewSuggestions))
		}

		if rt.Model == nil {
			rt.Logger.WarnContext(ctx, "no model configured, draft unchanged", "run_id", s.RunID)
			return update, nil
		}

		prompt := draftPrompt(intent, s.String(KeyInstruction), draftContext(s), hasExternalInfo(s), notes)
		reply, err := rt.Model.Complete(ctx, prompt)
		if err != nil {
			if err := rt.degrade(ctx, NodeDraft, "model", err); err != nil {
				return nil, err
			}
			return update, nil
		}

		d := ParseDraft(reply)
		update[KeyDraft] = d.String()
		update[KeyDraftSubject] = d.Subject

		rt.Logger.InfoContext(
			ctx, "draft node complete",
			"run_id", s.RunID,
			"intent", intent,
			"revision", notes != "",
			"draft_chars", len(d.Raw),
		)

		return update, nil
	})
}
