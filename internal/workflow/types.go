// Package workflow implements the email drafting workflow: five stages
// (classify, retrieve, web_search, draft, review) wired into a state graph
// that pauses for a human after every review.
package workflow

import (
	"encoding/json"
	"time"

	"github.com/Montabos/Projet/pkg/state"
	"github.com/Montabos/Projet/pkg/websearch"
)

// State keys.
const (
	KeyInstruction       = "input_instruction"
	KeyIntent            = "intent"
	KeyIntentConfidence  = "intent_confidence"
	KeyRetrievedContext  = "retrieved_context"
	KeyRetrievedSources  = "retrieved_sources"
	KeyNeedsWebSearch    = "needs_web_search"
	KeyWebResults        = "web_results"
	KeyEnhancedContext   = "enhanced_context"
	KeyDraft             = "draft"
	KeyDraftSubject      = "draft_subject"
	KeyReviewApproved    = "review_approved"
	KeyReviewIssues      = "review_issues"
	KeyReviewSuggestions = "review_suggestions"
	KeyReviewPasses      = "review_passes"
	KeyHumanFeedback     = "human_feedback"
	KeyHumanApproved     = "human_approved"
	KeyFinalEmail        = "final_email"
	KeyHistory           = "history"
	KeyStepCount         = "step_count"
)

// Node names.
const (
	NodeClassify  = "classify"
	NodeRetrieve  = "retrieve"
	NodeWebSearch = "web_search"
	NodeDraft     = "draft"
	NodeReview    = "review"
)

// ExternalMarker separates retrieved context from web search results in
// enhanced_context.
const ExternalMarker = "--- External Information ---"

// Intent is the classified purpose of an instruction.
type Intent string

// Supported intents.
const (
	IntentReply     Intent = "REPLY_EMAIL"
	IntentNew       Intent = "NEW_EMAIL"
	IntentSummarize Intent = "SUMMARIZE_THREAD"
)

// Run statuses reported by NewRun.
const (
	StatusPending   = "pending"
	StatusSuspended = "suspended"
	StatusCompleted = "completed"
)

// Run is a typed view of a run's state for API and CLI output.
type Run struct {
	RunID             string             `json:"run_id"`
	Status            string             `json:"status"`
	CheckpointNode    string             `json:"checkpoint_node,omitempty"`
	Instruction       string             `json:"input_instruction"`
	Intent            Intent             `json:"intent,omitempty"`
	IntentConfidence  float64            `json:"intent_confidence,omitempty"`
	RetrievedSources  []string           `json:"retrieved_sources,omitempty"`
	NeedsWebSearch    bool               `json:"needs_web_search"`
	WebResults        []websearch.Result `json:"web_results,omitempty"`
	Draft             string             `json:"draft,omitempty"`
	DraftSubject      string             `json:"draft_subject,omitempty"`
	ReviewApproved    bool               `json:"review_approved"`
	ReviewIssues      []string           `json:"review_issues,omitempty"`
	ReviewSuggestions []string           `json:"review_suggestions,omitempty"`
	ReviewPasses      int                `json:"review_passes"`
	HumanFeedback     string             `json:"human_feedback,omitempty"`
	HumanApproved     bool               `json:"human_approved"`
	FinalEmail        string             `json:"final_email,omitempty"`
	History           []string           `json:"history"`
	StepCount         int                `json:"step_count"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// NewRun builds a Run from persisted state.
func NewRun(s state.State) Run {
	status := StatusSuspended
	switch {
	case s.Terminal():
		status = StatusCompleted
	case s.CheckpointNode == "":
		status = StatusPending
	}

	checkpoint := s.CheckpointNode
	if s.Terminal() {
		checkpoint = ""
	}

	history := s.Strings(KeyHistory)
	if history == nil {
		history = []string{}
	}

	return Run{
		RunID:             s.RunID,
		Status:            status,
		CheckpointNode:    checkpoint,
		Instruction:       s.String(KeyInstruction),
		Intent:            Intent(s.String(KeyIntent)),
		IntentConfidence:  s.Float(KeyIntentConfidence),
		RetrievedSources:  s.Strings(KeyRetrievedSources),
		NeedsWebSearch:    s.Bool(KeyNeedsWebSearch),
		WebResults:        webResults(s),
		Draft:             s.String(KeyDraft),
		DraftSubject:      s.String(KeyDraftSubject),
		ReviewApproved:    s.Bool(KeyReviewApproved),
		ReviewIssues:      s.Strings(KeyReviewIssues),
		ReviewSuggestions: s.Strings(KeyReviewSuggestions),
		ReviewPasses:      s.Int(KeyReviewPasses),
		HumanFeedback:     s.String(KeyHumanFeedback),
		HumanApproved:     s.Bool(KeyHumanApproved),
		FinalEmail:        s.String(KeyFinalEmail),
		History:           history,
		StepCount:         s.Int(KeyStepCount),
		UpdatedAt:         s.Timestamp,
	}
}

func intentOf(s state.State) Intent {
	if v := Intent(s.String(KeyIntent)); v != "" {
		return v
	}
	return IntentNew
}

func appendHistory(s state.State, entry string) []string {
	return append(s.Strings(KeyHistory), entry)
}

func webResults(s state.State) []websearch.Result {
	switch v := s.Data[KeyWebResults].(type) {
	case nil:
		return nil
	case []websearch.Result:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var out []websearch.Result
		if err := json.Unmarshal(b, &out); err != nil {
			return nil
		}
		return out
	}
}
