// Package runs exposes email drafting runs over HTTP.
package runs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Montabos/Projet/internal/outbox"
	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/handlers"
	"github.com/Montabos/Projet/pkg/pagination"
	"github.com/Montabos/Projet/pkg/routes"
	"github.com/Montabos/Projet/pkg/state"
)

// Errors returned by the runs endpoints.
var (
	ErrEmptyUpdate     = errors.New("update must set values or request a review")
	ErrArchiveDisabled = errors.New("email archive is not configured")
)

// System is the set of workflow operations the handler drives.
type System interface {
	Start(ctx context.Context, runID, instruction string) (state.Result, error)
	Resume(ctx context.Context, runID string) (state.Result, error)
	GetState(ctx context.Context, runID string) (state.State, error)
	List(ctx context.Context) ([]state.Summary, error)
	Delete(ctx context.Context, runID string) error
	ApplyExternalUpdate(ctx context.Context, runID string, update state.Update, rereview bool) (state.State, error)
	Approve(ctx context.Context, runID string) (state.State, error)
	Edit(ctx context.Context, runID, text string) (state.State, error)
}

// EmailSource returns archived emails for approved runs.
type EmailSource interface {
	Fetch(ctx context.Context, runID string) (workflow.Email, error)
}

// StartRequest is the body of POST /runs.
type StartRequest struct {
	RunID       string `json:"run_id,omitempty"`
	Instruction string `json:"instruction"`
}

// UpdateRequest is the body of PATCH /runs/{id}.
type UpdateRequest struct {
	Values   map[string]any `json:"values"`
	Rereview bool           `json:"rereview"`
}

// EditRequest is the body of POST /runs/{id}/edit.
type EditRequest struct {
	Draft string `json:"draft"`
}

// RunResponse reports the outcome of a start or resume segment.
type RunResponse struct {
	Status state.Status `json:"status"`
	Path   []string     `json:"path"`
	Run    workflow.Run `json:"run"`
}

// FailureResponse reports an engine failure.
type FailureResponse struct {
	Error  string   `json:"error"`
	RunID  string   `json:"run_id"`
	Node   string   `json:"node"`
	Detail string   `json:"detail"`
	Path   []string `json:"path,omitempty"`
}

// Summary is a list entry for a stored run.
type Summary struct {
	RunID          string    `json:"run_id"`
	Status         string    `json:"status"`
	CheckpointNode string    `json:"checkpoint_node,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newSummary(s state.Summary) Summary {
	out := Summary{
		RunID:          s.RunID,
		Status:         workflow.StatusSuspended,
		CheckpointNode: s.CheckpointNode,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	switch s.CheckpointNode {
	case state.End:
		out.Status = workflow.StatusCompleted
		out.CheckpointNode = ""
	case "":
		out.Status = workflow.StatusPending
	}
	return out
}

// Handler provides HTTP endpoints for run operations.
type Handler struct {
	sys        System
	emails     EmailSource
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler. A nil emails source disables the email
// endpoint.
func NewHandler(sys System, emails EmailSource, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		emails:     emails,
		logger:     logger.With("handler", "runs"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for run endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Start},
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PATCH", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/resume", Handler: h.Resume},
			{Method: "POST", Pattern: "/{id}/approve", Handler: h.Approve},
			{Method: "POST", Pattern: "/{id}/edit", Handler: h.Edit},
			{Method: "GET", Pattern: "/{id}/email", Handler: h.Email},
		},
	}
}

// Start creates a run and executes it up to the first review.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := handlers.DecodeJSON(r, &req, false); err != nil {
		handlers.RespondError(w, h.logger, handlers.DecodeStatus(err), err)
		return
	}

	result, err := h.sys.Start(r.Context(), strings.TrimSpace(req.RunID), req.Instruction)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, newRunResponse(result))
}

// Resume continues a suspended run.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, newRunResponse(result))
}

// List returns a paginated list of stored runs. The search parameter
// matches run id substrings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	stored, err := h.sys.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	summaries := make([]Summary, len(stored))
	for i, s := range stored {
		summaries[i] = newSummary(s)
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := summaries[:0]
		for _, s := range summaries {
			if s.Status == status {
				filtered = append(filtered, s)
			}
		}
		summaries = filtered
	}

	result := pagination.Paginate(summaries, page, func(s Summary, search string) bool {
		return strings.Contains(strings.ToLower(s.RunID), strings.ToLower(search))
	})

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns the persisted state of a run.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	s, err := h.sys.GetState(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, workflow.NewRun(s))
}

// Update merges external values into a run, optionally re-running review.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := handlers.DecodeJSON(r, &req, false); err != nil {
		handlers.RespondError(w, h.logger, handlers.DecodeStatus(err), err)
		return
	}
	if len(req.Values) == 0 && !req.Rereview {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrEmptyUpdate)
		return
	}

	s, err := h.sys.ApplyExternalUpdate(r.Context(), r.PathValue("id"), state.Update(req.Values), req.Rereview)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, workflow.NewRun(s))
}

// Approve records human approval of the current draft.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	s, err := h.sys.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, workflow.NewRun(s))
}

// Edit replaces the draft with human text and reviews it once.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := handlers.DecodeJSON(r, &req, false); err != nil {
		handlers.RespondError(w, h.logger, handlers.DecodeStatus(err), err)
		return
	}

	s, err := h.sys.Edit(r.Context(), r.PathValue("id"), req.Draft)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, workflow.NewRun(s))
}

// Delete removes a run.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sys.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Email returns the archived email of an approved run, as JSON or, with
// format=eml, as an RFC 5322 message.
func (h *Handler) Email(w http.ResponseWriter, r *http.Request) {
	if h.emails == nil {
		handlers.RespondError(w, h.logger, http.StatusNotFound, ErrArchiveDisabled)
		return
	}

	email, err := h.emails.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, outbox.MapHTTPStatus(err), err)
		return
	}

	if r.URL.Query().Get("format") == "eml" {
		w.Header().Set("Content-Type", "message/rfc822")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(outbox.Message(email)))
		return
	}

	handlers.RespondJSON(w, http.StatusOK, email)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var execErr *state.ExecutionError
	if errors.As(err, &execErr) {
		h.logger.Error("run failed", "run_id", execErr.RunID, "node", execErr.NodeName, "error", execErr.Err)
		handlers.RespondJSON(w, http.StatusInternalServerError, FailureResponse{
			Error:  "run failed",
			RunID:  execErr.RunID,
			Node:   execErr.NodeName,
			Detail: execErr.Err.Error(),
			Path:   execErr.Path,
		})
		return
	}

	handlers.RespondError(w, h.logger, workflow.MapHTTPStatus(err), err)
}

func newRunResponse(result state.Result) RunResponse {
	path := result.Path
	if path == nil {
		path = []string{}
	}
	return RunResponse{
		Status: result.Status,
		Path:   path,
		Run:    workflow.NewRun(result.State),
	}
}
