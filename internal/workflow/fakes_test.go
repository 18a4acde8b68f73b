package workflow_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/checkpoint"
	"github.com/Montabos/Projet/pkg/retrieval"
	"github.com/Montabos/Projet/pkg/websearch"
)

var errUnavailable = errors.New("service unavailable")

// scriptedModel answers each prompt with the first rule whose marker the
// prompt contains. Calls are recorded per rule name.
type scriptedModel struct {
	mu    sync.Mutex
	rules []rule
	calls map[string]int
	seen  []string
}

type rule struct {
	name    string
	marker  string
	replies []string
	err     error
}

func newModel(rules ...rule) *scriptedModel {
	return &scriptedModel{rules: rules, calls: make(map[string]int)}
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rules {
		if !strings.Contains(prompt, r.marker) {
			continue
		}
		n := m.calls[r.name]
		m.calls[r.name]++
		m.seen = append(m.seen, prompt)
		if r.err != nil {
			return "", r.err
		}
		if len(r.replies) == 0 {
			return "", nil
		}
		return r.replies[min(n, len(r.replies)-1)], nil
	}
	return "", errors.New("unscripted prompt")
}

func (m *scriptedModel) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *scriptedModel) lastPrompt(marker string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.seen) - 1; i >= 0; i-- {
		if strings.Contains(m.seen[i], marker) {
			return m.seen[i]
		}
	}
	return ""
}

// Prompt markers, one per stage prompt.
const (
	markClassify = "Classify the following request"
	markDecision = "decide whether drafting an email requires a web search"
	markQuery    = "Write a web search query"
	markDraft    = "Write a professional"
	markSummary  = "Summarize the email conversation"
	markReview   = "Review this email draft"
)

func classifyRule(reply string) rule {
	return rule{name: "classify", marker: markClassify, replies: []string{reply}}
}

func decisionRule(reply string) rule {
	return rule{name: "decision", marker: markDecision, replies: []string{reply}}
}

func draftRule(replies ...string) rule {
	return rule{name: "draft", marker: markDraft, replies: replies}
}

func reviewRule(replies ...string) rule {
	return rule{name: "review", marker: markReview, replies: replies}
}

type fakeRetriever struct {
	matches []retrieval.Match
	err     error
	queries []string
	ks      []int
}

func (f *fakeRetriever) Search(_ context.Context, query string, k int) ([]retrieval.Match, error) {
	f.queries = append(f.queries, query)
	f.ks = append(f.ks, k)
	if f.err != nil {
		return nil, f.err
	}
	return f.matches[:min(k, len(f.matches))], nil
}

type fakeWebSearcher struct {
	results []websearch.Result
	err     error
	queries []string
}

func (f *fakeWebSearcher) Search(_ context.Context, query string) ([]websearch.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived []workflow.Email
	removed  []string
	err      error
}

func (f *fakeArchiver) Archive(_ context.Context, email workflow.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, email)
	return nil
}

func (f *fakeArchiver) Remove(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, runID)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fixedNow() time.Time {
	return time.Date(2025, time.November, 14, 9, 0, 0, 0, time.UTC)
}

// newWorkflow builds a workflow over a memory store.
func newWorkflow(t *testing.T, rt *workflow.Runtime) (*workflow.Workflow, *checkpoint.Memory) {
	t.Helper()
	if rt.Logger == nil {
		rt.Logger = discardLogger()
	}
	if rt.Now == nil {
		rt.Now = fixedNow
	}

	store := checkpoint.NewMemory()
	t.Cleanup(func() { store.Close() })

	wf, err := workflow.New(rt, store, nil)
	require.NoError(t, err)
	return wf, store
}
