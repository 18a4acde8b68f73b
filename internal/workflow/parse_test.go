package workflow_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/websearch"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		reply      string
		intent     workflow.Intent
		confidence float64
	}{
		{"REPLY_EMAIL", workflow.IntentReply, 0.9},
		{"reply", workflow.IntentReply, 0.7},
		{"SUMMARIZE_THREAD", workflow.IntentSummarize, 0.9},
		{"A summary is needed", workflow.IntentSummarize, 0.7},
		{"NEW_EMAIL", workflow.IntentNew, 0.9},
		{"new message", workflow.IntentNew, 0.7},
		{"I cannot tell", workflow.IntentNew, 0.7},
		{"", workflow.IntentNew, 0.7},
		{"REPLY_EMAIL or NEW_EMAIL", workflow.IntentReply, 0.9},
		{"summarize, not a new one", workflow.IntentSummarize, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			intent, confidence := workflow.ParseIntent(tt.reply)
			assert.Equal(t, tt.intent, intent)
			assert.Equal(t, tt.confidence, confidence)
		})
	}
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"YES", true},
		{" yes.\n", true},
		{"Oui", true},
		{"NO", false},
		{"non", false},
		{"YES and NO", false},
		{"maybe", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, workflow.ParseDecision(tt.reply), "reply %q", tt.reply)
	}
}

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{`"Microsoft latest news"`, "Microsoft latest news"},
		{"'Meta  earnings 2025 results'", "Meta earnings results"},
		{"AI trends 2030s 20250", "AI trends 2030s 20250"},
		{"  chip\tshortage\n2024 ", "chip shortage"},
		{`""`, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, workflow.CleanQuery(tt.reply), "reply %q", tt.reply)
	}
}

func TestParseDraft(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		subject string
		out     string
	}{
		{
			name:    "subject and body",
			reply:   "Subject: Meeting confirmed\n\nHello team,\nSee you Monday.",
			subject: "Meeting confirmed",
			out:     "Subject: Meeting confirmed\n\nHello team,\nSee you Monday.",
		},
		{
			name:    "no blank line",
			reply:   "  Subject:Quarterly update\nHi all\n",
			subject: "Quarterly update",
			out:     "Subject: Quarterly update\n\nHi all",
		},
		{
			name:    "preamble dropped",
			reply:   "Here is your email:\nSubject: Hello\n\nBody",
			subject: "Hello",
			out:     "Subject: Hello\n\nBody",
		},
		{
			name:  "verbatim without subject",
			reply: "Dear Client,\nThank you.",
			out:   "Dear Client,\nThank you.",
		},
		{
			name:  "empty subject kept verbatim",
			reply: "Subject:\nBody only",
			out:   "Subject:\nBody only",
		},
		{
			name:    "subject without body",
			reply:   "Subject: Only a subject",
			subject: "Only a subject",
			out:     "Subject: Only a subject\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := workflow.ParseDraft(tt.reply)
			assert.Equal(t, tt.subject, d.Subject)
			assert.Equal(t, tt.out, d.String())
		})
	}
}

func TestParseReview(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		approved    bool
		issues      []string
		suggestions []string
	}{
		{
			name:        "approved with none",
			reply:       "APPROVED: yes\nISSUES: none\nSUGGESTIONS: none",
			approved:    true,
			issues:      []string{},
			suggestions: []string{},
		},
		{
			name:        "true variant",
			reply:       "approved:true\nISSUES: None\nSUGGESTIONS:\n- shorter closing",
			approved:    true,
			issues:      []string{},
			suggestions: []string{"- shorter closing"},
		},
		{
			name:        "rejected with issues",
			reply:       "APPROVED: no\nISSUES:\n- tone too casual\n\n- missing date\nSUGGESTIONS: add the meeting date",
			approved:    false,
			issues:      []string{"- tone too casual", "- missing date"},
			suggestions: []string{"add the meeting date"},
		},
		{
			name:        "rejected without issues triggers anti-deadlock",
			reply:       "APPROVED: no\nISSUES: none\nSUGGESTIONS: be warmer",
			approved:    true,
			issues:      []string{workflow.AntiDeadlockIssue},
			suggestions: []string{"be warmer"},
		},
		{
			name:        "empty ISSUES section triggers anti-deadlock",
			reply:       "APPROVED: no\nISSUES:\nSUGGESTIONS: none",
			approved:    true,
			issues:      []string{workflow.AntiDeadlockIssue},
			suggestions: []string{},
		},
		{
			name:        "unparseable reply",
			reply:       "Looks fine to me",
			approved:    true,
			issues:      []string{workflow.AntiDeadlockIssue},
			suggestions: []string{},
		},
		{
			name:        "empty reply",
			reply:       "",
			approved:    true,
			issues:      []string{workflow.AntiDeadlockIssue},
			suggestions: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := workflow.ParseReview(tt.reply)
			assert.Equal(t, tt.approved, r.Approved)
			assert.Equal(t, tt.issues, r.Issues)
			assert.Equal(t, tt.suggestions, r.Suggestions)
		})
	}
}

func TestParseReviewNeverRejectsWithoutIssues(t *testing.T) {
	replies := []string{
		"APPROVED: no",
		"APPROVED: no\nISSUES:   \n",
		"approved: NO\nSUGGESTIONS: x",
		"ISSUES: none",
	}
	for _, reply := range replies {
		r := workflow.ParseReview(reply)
		assert.True(t, r.Approved || len(r.Issues) > 0, "reply %q", reply)
		assert.True(t, r.Approved, "reply %q", reply)
	}
}

func TestFormatResults(t *testing.T) {
	results := []websearch.Result{
		{URL: "https://a", Title: "A", Content: "alpha"},
		{Title: "B", Content: strings.Repeat("é", 1000)},
		{URL: "https://c", Title: "C", Content: "gamma"},
		{URL: "https://d", Title: "D", Content: "delta"},
	}

	out := workflow.FormatResults(results)
	blocks := strings.Split(out, "\n\n")
	assert.Len(t, blocks, 3)
	assert.Equal(t, "Source: https://a\nTitle: A\nContent: alpha", blocks[0])
	assert.True(t, strings.HasPrefix(blocks[1], "Source: N/A\nTitle: B\nContent: "))

	content := strings.TrimPrefix(blocks[1], "Source: N/A\nTitle: B\nContent: ")
	assert.Equal(t, 800, utf8.RuneCountInString(content))
	assert.True(t, utf8.ValidString(content))
	assert.NotContains(t, out, "delta")

	assert.Empty(t, workflow.FormatResults(nil))
}

func TestFormatResultsCountsCharacters(t *testing.T) {
	accented := strings.Repeat("é", 500)
	out := workflow.FormatResults([]websearch.Result{{URL: "https://e", Title: "E", Content: accented}})
	assert.Equal(t, "Source: https://e\nTitle: E\nContent: "+accented, out)

	exact := strings.Repeat("x", 800)
	out = workflow.FormatResults([]websearch.Result{{URL: "https://f", Title: "F", Content: exact + "y"}})
	assert.Equal(t, "Source: https://f\nTitle: F\nContent: "+exact, out)
}
