package workflow

import (
	"context"

	"github.com/Montabos/Projet/pkg/state"
)

// ClassifyNode returns a node that classifies the instruction into an
// Intent. Without a model, or when the call fails, the run continues as
// NEW_EMAIL with the loose confidence.
func ClassifyNode(rt *Runtime) state.Node {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.Update, error) {
		intent, confidence := IntentNew, confidenceLoose

		if rt.Model != nil {
			reply, err := rt.Model.Complete(ctx, classifyPrompt(s.String(KeyInstruction)))
			if err != nil {
				if err := rt.degrade(ctx, NodeClassify, "model", err); err != nil {
					return nil, err
				}
			} else {
				intent, confidence = ParseIntent(reply)
			}
		}

		rt.Logger.InfoContext(
			ctx, "classify node complete",
			"run_id", s.RunID,
			"intent", intent,
			"confidence", confidence,
		)

		return state.Update{
			KeyIntent:           string(intent),
			KeyIntentConfidence: confidence,
			KeyHistory:          appendHistory(s, "Classified intent: "+string(intent)),
		}, nil
	})
}
