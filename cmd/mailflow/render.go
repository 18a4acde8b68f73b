package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/state"
)

const historyTail = 5

// printState renders a run the way the chat /show command does.
func printState(w io.Writer, s state.State) {
	run := workflow.NewRun(s)

	if run.Intent != "" {
		fmt.Fprintf(w, "\n[INTENT] %s\n", run.Intent)
	}

	if run.Draft != "" {
		if d := workflow.ParseDraft(run.Draft); d.Subject != "" {
			fmt.Fprintf(w, "\n[SUBJECT]\n%s\n", d.Subject)
			fmt.Fprintf(w, "\n[BODY]\n%s\n", d.Body)
		} else {
			fmt.Fprintf(w, "\n[DRAFT]\n%s\n", run.Draft)
		}
	}

	if _, reviewed := s.Data[workflow.KeyReviewApproved]; reviewed {
		verdict := "Needs revision"
		if run.ReviewApproved {
			verdict = "Approved"
		}
		fmt.Fprintf(w, "\n[REVIEW STATUS] %s\n", verdict)
		if len(run.ReviewIssues) > 0 {
			fmt.Fprintf(w, "Issues: %s\n", strings.Join(run.ReviewIssues, ", "))
		}
		if len(run.ReviewSuggestions) > 0 {
			fmt.Fprintf(w, "Suggestions: %s\n", strings.Join(run.ReviewSuggestions, ", "))
		}
	}

	if run.HumanApproved {
		fmt.Fprintln(w, "\n[HUMAN] Approved")
	}

	if len(run.History) > 0 {
		tail := run.History[max(0, len(run.History)-historyTail):]
		fmt.Fprintf(w, "\n[HISTORY]\n%s\n", strings.Join(tail, " -> "))
	}

	fmt.Fprintln(w, "\n[AVAILABLE ACTIONS]")
	switch {
	case run.Status == workflow.StatusCompleted:
		fmt.Fprintln(w, "  /approve             Approve and finalize the email")
	case run.Draft != "" && run.ReviewApproved:
		fmt.Fprintln(w, "  /approve             Approve and finalize the email")
		fmt.Fprintln(w, "  /edit <text>         Edit the draft before approving")
	case run.Draft != "":
		fmt.Fprintln(w, "  /resume              Continue processing (review will run)")
		fmt.Fprintln(w, "  /edit <text>         Edit the draft")
	default:
		fmt.Fprintln(w, "  /resume              Continue processing")
	}
	fmt.Fprintln(w, "  /new <instruction>   Start a new email task")
	fmt.Fprintln(w, "  /show                Show current state again")
	fmt.Fprintln(w, "  /id                  Show run id")
	fmt.Fprintln(w, "  /help                Show all commands")
	fmt.Fprintln(w, "  /exit                Quit")
}

// printFinal renders an approved run's final email.
func printFinal(w io.Writer, s state.State) {
	fmt.Fprintln(w, "\nDraft approved!")
	fmt.Fprintf(w, "\n[FINAL EMAIL]\n%s\n", s.String(workflow.KeyFinalEmail))
}
