package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Montabos/Projet/pkg/observability"
	"github.com/Montabos/Projet/pkg/state"
)

// EditFeedback is recorded as human_feedback when a human replaces the draft.
const EditFeedback = "User edited draft"

// protectedKeys cannot be set through ApplyExternalUpdate.
var protectedKeys = []string{KeyInstruction, KeyHistory, KeyStepCount, KeyReviewPasses}

// Workflow drives runs through the graph and exposes the out-of-band
// operations a human performs between segments.
type Workflow struct {
	rt     *Runtime
	graph  *state.Graph
	store  state.Store
	logger *slog.Logger
}

// New builds the workflow graph over store. A nil observer discards events.
func New(rt *Runtime, store state.Store, observer observability.Observer) (*Workflow, error) {
	if rt.Logger == nil {
		rt.Logger = slog.Default()
	}
	rt.Config.loadDefaults()

	graph, err := NewGraph(rt, store, observer)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	return &Workflow{
		rt:     rt,
		graph:  graph,
		store:  store,
		logger: rt.Logger.With("system", "workflow"),
	}, nil
}

// Start creates a run for instruction and executes it up to the first
// review. An empty runID is replaced with a new UUID. Starting an existing
// run returns ErrRunExists.
func (w *Workflow) Start(ctx context.Context, runID, instruction string) (state.Result, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return state.Result{}, ErrEmptyInstruction
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	_, err := w.store.Load(ctx, runID)
	switch {
	case err == nil:
		return state.Result{}, fmt.Errorf("%w: %s", ErrRunExists, runID)
	case !errors.Is(err, state.ErrRunNotFound):
		return state.Result{}, err
	}

	w.logger.InfoContext(ctx, "starting run", "run_id", runID)

	return w.graph.Execute(ctx, runID, state.Update{
		KeyInstruction: instruction,
		KeyHistory:     []string{},
		KeyStepCount:   0,
	})
}

// Resume continues a suspended run from its persisted state, including any
// external updates made since it paused. A completed run is returned as is.
func (w *Workflow) Resume(ctx context.Context, runID string) (state.Result, error) {
	if _, err := w.store.Load(ctx, runID); err != nil {
		return state.Result{}, err
	}

	w.logger.InfoContext(ctx, "resuming run", "run_id", runID)
	return w.graph.Resume(ctx, runID)
}

// GetState returns the persisted state of a run without modifying it.
func (w *Workflow) GetState(ctx context.Context, runID string) (state.State, error) {
	return w.store.Load(ctx, runID)
}

// List summarizes every stored run, most recently updated first.
func (w *Workflow) List(ctx context.Context) ([]state.Summary, error) {
	return w.store.List(ctx)
}

// Delete removes a run and its archived email.
func (w *Workflow) Delete(ctx context.Context, runID string) error {
	if err := w.store.Delete(ctx, runID); err != nil {
		return err
	}

	if w.rt.Archiver != nil {
		if err := w.rt.Archiver.Remove(ctx, runID); err != nil {
			w.logger.WarnContext(ctx, "archived email not removed", "run_id", runID, "error", err)
		}
	}

	w.logger.InfoContext(ctx, "run deleted", "run_id", runID)
	return nil
}

// ApplyExternalUpdate merges update into an existing run without running
// any stage. With rereview, the review stage then runs once against the
// merged state. Engine-owned keys are rejected with ErrProtectedKey.
func (w *Workflow) ApplyExternalUpdate(ctx context.Context, runID string, update state.Update, rereview bool) (state.State, error) {
	for _, key := range protectedKeys {
		if _, exists := update[key]; exists {
			return state.State{}, fmt.Errorf("%w: %s", ErrProtectedKey, key)
		}
	}
	return w.apply(ctx, runID, update, rereview)
}

// Approve records human approval with the current draft as the final
// email, then archives it when an Archiver is configured. Archive failures
// are logged and do not fail the approval.
func (w *Workflow) Approve(ctx context.Context, runID string) (state.State, error) {
	s, err := w.store.Load(ctx, runID)
	if err != nil {
		return state.State{}, err
	}

	draft := s.String(KeyDraft)
	if draft == "" {
		return state.State{}, fmt.Errorf("%w: %s", ErrNoDraft, runID)
	}

	merged, err := w.store.Merge(ctx, runID, state.Update{
		KeyHumanApproved: true,
		KeyFinalEmail:    draft,
	}, "")
	if err != nil {
		return state.State{}, err
	}

	w.logger.InfoContext(ctx, "run approved", "run_id", runID)

	if w.rt.Archiver != nil {
		email := Email{
			RunID:      runID,
			Intent:     intentOf(merged),
			Body:       draft,
			ApprovedAt: w.rt.now().UTC(),
		}
		if d := ParseDraft(draft); d.Subject != "" {
			email.Subject = d.Subject
			email.Body = d.Body
		}
		if err := w.rt.Archiver.Archive(ctx, email); err != nil {
			w.logger.WarnContext(ctx, "approved email not archived", "run_id", runID, "error", err)
		}
	}

	return merged, nil
}

// Edit replaces the draft with text written by a human and runs the review
// stage once on it. The revision count restarts so the ceiling applies to
// model revisions of the human draft.
func (w *Workflow) Edit(ctx context.Context, runID, text string) (state.State, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return state.State{}, ErrEmptyDraft
	}

	return w.apply(ctx, runID, state.Update{
		KeyDraft:         text,
		KeyDraftSubject:  ParseDraft(text).Subject,
		KeyHumanFeedback: EditFeedback,
		KeyReviewPasses:  0,
	}, true)
}

func (w *Workflow) apply(ctx context.Context, runID string, update state.Update, rereview bool) (state.State, error) {
	if _, err := w.store.Load(ctx, runID); err != nil {
		return state.State{}, err
	}

	merged, err := w.store.Merge(ctx, runID, update, "")
	if err != nil {
		return state.State{}, err
	}

	if !rereview {
		return merged, nil
	}
	if merged.String(KeyDraft) == "" {
		return merged, fmt.Errorf("%w: %s", ErrNoDraft, runID)
	}

	w.logger.InfoContext(ctx, "re-running review", "run_id", runID)
	return w.graph.RunNode(ctx, runID, NodeReview)
}
