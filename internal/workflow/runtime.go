package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/Montabos/Projet/pkg/llm"
	"github.com/Montabos/Projet/pkg/retrieval"
	"github.com/Montabos/Projet/pkg/websearch"
)

// DecisionTemperature is used for the web search decision when no Decider
// is supplied.
const DecisionTemperature = 0.1

// Archiver stores approved emails outside the run store.
type Archiver interface {
	Archive(ctx context.Context, email Email) error
	Remove(ctx context.Context, runID string) error
}

// Email is an approved message handed to an Archiver.
type Email struct {
	RunID      string    `json:"run_id"`
	Intent     Intent    `json:"intent"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body"`
	ApprovedAt time.Time `json:"approved_at"`
}

// Runtime bundles the capabilities that workflow nodes require. Every
// capability is optional; a nil handle makes the dependent stage degrade.
type Runtime struct {
	Model       llm.Model
	Decider     llm.Model
	Retriever   retrieval.Searcher
	WebSearcher websearch.Searcher
	Archiver    Archiver
	Logger      *slog.Logger
	Config      Config

	// Now supplies the date given to the search query prompt.
	Now func() time.Time
}

func (rt *Runtime) decider() llm.Model {
	if rt.Decider != nil {
		return rt.Decider
	}
	return llm.Derive(rt.Model, DecisionTemperature)
}

func (rt *Runtime) now() time.Time {
	if rt.Now != nil {
		return rt.Now()
	}
	return time.Now()
}

// degrade logs a failed capability call and lets the stage continue with an
// empty result. A cancelled context is returned instead so the engine stops.
func (rt *Runtime) degrade(ctx context.Context, stage, capability string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	rt.Logger.WarnContext(
		ctx, "capability call failed, continuing without result",
		"stage", stage,
		"capability", capability,
		"error", err,
	)
	return nil
}
