package runs_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Montabos/Projet/internal/outbox"
	"github.com/Montabos/Projet/internal/runs"
	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/checkpoint"
	"github.com/Montabos/Projet/pkg/pagination"
	"github.com/Montabos/Projet/pkg/routes"
	"github.com/Montabos/Projet/pkg/state"
)

type mockSystem struct {
	startFn  func(ctx context.Context, runID, instruction string) (state.Result, error)
	resumeFn func(ctx context.Context, runID string) (state.Result, error)
	getFn    func(ctx context.Context, runID string) (state.State, error)
	listFn   func(ctx context.Context) ([]state.Summary, error)
	deleteFn func(ctx context.Context, runID string) error
	updateFn func(ctx context.Context, runID string, update state.Update, rereview bool) (state.State, error)
	approvFn func(ctx context.Context, runID string) (state.State, error)
	editFn   func(ctx context.Context, runID, text string) (state.State, error)
}

func (m *mockSystem) Start(ctx context.Context, runID, instruction string) (state.Result, error) {
	return m.startFn(ctx, runID, instruction)
}

func (m *mockSystem) Resume(ctx context.Context, runID string) (state.Result, error) {
	return m.resumeFn(ctx, runID)
}

func (m *mockSystem) GetState(ctx context.Context, runID string) (state.State, error) {
	return m.getFn(ctx, runID)
}

func (m *mockSystem) List(ctx context.Context) ([]state.Summary, error) {
	return m.listFn(ctx)
}

func (m *mockSystem) Delete(ctx context.Context, runID string) error {
	return m.deleteFn(ctx, runID)
}

func (m *mockSystem) ApplyExternalUpdate(ctx context.Context, runID string, update state.Update, rereview bool) (state.State, error) {
	return m.updateFn(ctx, runID, update, rereview)
}

func (m *mockSystem) Approve(ctx context.Context, runID string) (state.State, error) {
	return m.approvFn(ctx, runID)
}

func (m *mockSystem) Edit(ctx context.Context, runID, text string) (state.State, error) {
	return m.editFn(ctx, runID, text)
}

type mockEmails struct {
	emails map[string]workflow.Email
}

func (m *mockEmails) Fetch(_ context.Context, runID string) (workflow.Email, error) {
	email, ok := m.emails[runID]
	if !ok {
		return workflow.Email{}, outbox.ErrNotArchived
	}
	return email, nil
}

func setupMux(sys runs.System, emails runs.EmailSource) *http.ServeMux {
	h := runs.NewHandler(
		sys,
		emails,
		slog.New(slog.DiscardHandler),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
	mux := http.NewServeMux()
	routes.Mount(mux, "/api", h.Routes())
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func suspendedState(runID string) state.State {
	s := state.New(runID)
	s = s.Set(workflow.KeyInstruction, "Write to the team")
	s = s.Set(workflow.KeyDraft, "Subject: Hello\n\nHi team")
	s = s.Set(workflow.KeyReviewApproved, true)
	s.CheckpointNode = workflow.NodeReview
	return s
}

func TestStart(t *testing.T) {
	var gotID, gotInstruction string
	sys := &mockSystem{
		startFn: func(_ context.Context, runID, instruction string) (state.Result, error) {
			gotID, gotInstruction = runID, instruction
			return state.Result{
				State:  suspendedState("r1"),
				Status: state.StatusSuspended,
				Path:   []string{"classify", "retrieve", "draft", "review"},
			}, nil
		},
	}

	rec := do(setupMux(sys, nil), "POST", "/api/runs", `{"run_id":" r1 ","instruction":"Write to the team"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if gotID != "r1" || gotInstruction != "Write to the team" {
		t.Errorf("arguments: got %q %q", gotID, gotInstruction)
	}

	var res runs.RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if res.Status != state.StatusSuspended {
		t.Errorf("status: got %s", res.Status)
	}
	if len(res.Path) != 4 {
		t.Errorf("path: got %v", res.Path)
	}
	if res.Run.RunID != "r1" || res.Run.Status != workflow.StatusSuspended {
		t.Errorf("run: got %+v", res.Run)
	}
}

func TestStartErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed body", `{"instruction":`, nil, http.StatusBadRequest},
		{"unknown field", `{"prompt":"x"}`, nil, http.StatusBadRequest},
		{"empty instruction", `{"instruction":""}`, workflow.ErrEmptyInstruction, http.StatusBadRequest},
		{"duplicate run", `{"run_id":"r1","instruction":"x"}`, fmt.Errorf("%w: r1", workflow.ErrRunExists), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				startFn: func(context.Context, string, string) (state.Result, error) {
					return state.Result{}, tt.err
				},
			}

			rec := do(setupMux(sys, nil), "POST", "/api/runs", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestExecutionFailure(t *testing.T) {
	sys := &mockSystem{
		resumeFn: func(_ context.Context, runID string) (state.Result, error) {
			return state.Result{}, &state.ExecutionError{
				NodeName: workflow.NodeReview,
				RunID:    runID,
				Path:     []string{"draft", "review"},
				Err:      workflow.ErrRevisionLimit,
			}
		},
	}

	rec := do(setupMux(sys, nil), "POST", "/api/runs/r1/resume", "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rec.Code)
	}

	var res runs.FailureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if res.Error != "run failed" || res.Node != workflow.NodeReview || res.RunID != "r1" {
		t.Errorf("failure: got %+v", res)
	}
	if res.Detail != workflow.ErrRevisionLimit.Error() {
		t.Errorf("detail: got %s", res.Detail)
	}
}

func TestFindNotFound(t *testing.T) {
	sys := &mockSystem{
		getFn: func(_ context.Context, runID string) (state.State, error) {
			return state.State{}, fmt.Errorf("%w: %s", state.ErrRunNotFound, runID)
		},
	}

	rec := do(setupMux(sys, nil), "GET", "/api/runs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestList(t *testing.T) {
	base := time.Date(2025, 11, 14, 9, 0, 0, 0, time.UTC)
	sys := &mockSystem{
		listFn: func(context.Context) ([]state.Summary, error) {
			return []state.Summary{
				{RunID: "alpha-1", CheckpointNode: workflow.NodeReview, UpdatedAt: base.Add(3 * time.Minute)},
				{RunID: "beta-1", CheckpointNode: state.End, UpdatedAt: base.Add(2 * time.Minute)},
				{RunID: "alpha-2", CheckpointNode: "", UpdatedAt: base.Add(time.Minute)},
			}, nil
		},
	}
	mux := setupMux(sys, nil)

	tests := []struct {
		name  string
		query string
		want  []string
		total int
	}{
		{"all", "", []string{"alpha-1", "beta-1", "alpha-2"}, 3},
		{"search", "?search=ALPHA", []string{"alpha-1", "alpha-2"}, 2},
		{"status", "?status=completed", []string{"beta-1"}, 1},
		{"page", "?page=2&page_size=2", []string{"alpha-2"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, "GET", "/api/runs"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200", rec.Code)
			}

			var res pagination.PageResult[runs.Summary]
			if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if res.Total != tt.total {
				t.Errorf("total: got %d, want %d", res.Total, tt.total)
			}

			var ids []string
			for _, s := range res.Data {
				ids = append(ids, s.RunID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ids: got %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestListStatuses(t *testing.T) {
	sys := &mockSystem{
		listFn: func(context.Context) ([]state.Summary, error) {
			return []state.Summary{
				{RunID: "a", CheckpointNode: state.End},
				{RunID: "b", CheckpointNode: ""},
				{RunID: "c", CheckpointNode: workflow.NodeReview},
			}, nil
		},
	}

	rec := do(setupMux(sys, nil), "GET", "/api/runs", "")

	var res pagination.PageResult[runs.Summary]
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	want := map[string]runs.Summary{
		"a": {RunID: "a", Status: workflow.StatusCompleted},
		"b": {RunID: "b", Status: workflow.StatusPending},
		"c": {RunID: "c", Status: workflow.StatusSuspended, CheckpointNode: workflow.NodeReview},
	}
	for _, s := range res.Data {
		w := want[s.RunID]
		if s.Status != w.Status || s.CheckpointNode != w.CheckpointNode {
			t.Errorf("%s: got %s/%q, want %s/%q", s.RunID, s.Status, s.CheckpointNode, w.Status, w.CheckpointNode)
		}
	}
}

func TestUpdate(t *testing.T) {
	var gotUpdate state.Update
	var gotRereview bool
	sys := &mockSystem{
		updateFn: func(_ context.Context, runID string, update state.Update, rereview bool) (state.State, error) {
			gotUpdate, gotRereview = update, rereview
			for _, key := range []string{workflow.KeyHistory, workflow.KeyStepCount} {
				if _, ok := update[key]; ok {
					return state.State{}, fmt.Errorf("%w: %s", workflow.ErrProtectedKey, key)
				}
			}
			return suspendedState(runID), nil
		},
	}
	mux := setupMux(sys, nil)

	rec := do(mux, "PATCH", "/api/runs/r1", `{"values":{"draft":"New text"},"rereview":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if gotUpdate["draft"] != "New text" || !gotRereview {
		t.Errorf("update: got %v rereview=%v", gotUpdate, gotRereview)
	}

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"protected key", `{"values":{"history":[]}}`, http.StatusBadRequest},
		{"empty update", `{"values":{}}`, http.StatusBadRequest},
		{"missing body", ``, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, "PATCH", "/api/runs/r1", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestApproveWithoutDraft(t *testing.T) {
	sys := &mockSystem{
		approvFn: func(_ context.Context, runID string) (state.State, error) {
			return state.State{}, fmt.Errorf("%w: %s", workflow.ErrNoDraft, runID)
		},
	}

	rec := do(setupMux(sys, nil), "POST", "/api/runs/r1/approve", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	var deleted string
	sys := &mockSystem{
		deleteFn: func(_ context.Context, runID string) error {
			if runID == "missing" {
				return state.ErrRunNotFound
			}
			deleted = runID
			return nil
		},
	}
	mux := setupMux(sys, nil)

	rec := do(mux, "DELETE", "/api/runs/r1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", rec.Code)
	}
	if deleted != "r1" {
		t.Errorf("deleted: got %q", deleted)
	}

	rec = do(mux, "DELETE", "/api/runs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestEmail(t *testing.T) {
	emails := &mockEmails{emails: map[string]workflow.Email{
		"r1": {
			RunID:      "r1",
			Intent:     workflow.IntentNew,
			Subject:    "Hello",
			Body:       "Hi team",
			ApprovedAt: time.Date(2025, 11, 14, 9, 0, 0, 0, time.UTC),
		},
	}}
	mux := setupMux(&mockSystem{}, emails)

	rec := do(mux, "GET", "/api/runs/r1/email", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var got workflow.Email
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Subject != "Hello" || got.Body != "Hi team" {
		t.Errorf("email: got %+v", got)
	}

	rec = do(mux, "GET", "/api/runs/r1/email?format=eml", "")
	if ct := rec.Header().Get("Content-Type"); ct != "message/rfc822" {
		t.Errorf("content-type: got %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "Subject: Hello\r\n") {
		t.Errorf("message: got %q", rec.Body.String())
	}

	rec = do(mux, "GET", "/api/runs/r2/email", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestEmailDisabled(t *testing.T) {
	rec := do(setupMux(&mockSystem{}, nil), "GET", "/api/runs/r1/email", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), runs.ErrArchiveDisabled.Error()) {
		t.Errorf("body: got %s", rec.Body.String())
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	store := checkpoint.NewMemory()
	t.Cleanup(func() { store.Close() })

	wf, err := workflow.New(&workflow.Runtime{Logger: slog.New(slog.DiscardHandler)}, store, nil)
	if err != nil {
		t.Fatalf("workflow init failed: %v", err)
	}
	mux := setupMux(wf, nil)

	rec := do(mux, "POST", "/api/runs", `{"run_id":"r1","instruction":"Write to the team about Friday"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(mux, "POST", "/api/runs/r1/approve", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("approve without draft: got %d, want 409", rec.Code)
	}

	rec = do(mux, "POST", "/api/runs/r1/edit", `{"draft":"Subject: Friday\n\nSee you Friday."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(mux, "POST", "/api/runs/r1/approve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: got %d: %s", rec.Code, rec.Body.String())
	}

	var run workflow.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !run.HumanApproved || run.FinalEmail != "Subject: Friday\n\nSee you Friday." {
		t.Errorf("run: got approved=%v final=%q", run.HumanApproved, run.FinalEmail)
	}

	rec = do(mux, "POST", "/api/runs", `{"run_id":"r1","instruction":"again"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate start: got %d, want 409", rec.Code)
	}

	rec = do(mux, "DELETE", "/api/runs/r1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: got %d, want 204", rec.Code)
	}

	_, err = store.Load(context.Background(), "r1")
	if !errors.Is(err, state.ErrRunNotFound) {
		t.Errorf("load after delete: got %v", err)
	}
}
