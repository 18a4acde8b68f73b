package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/checkpoint"
	"github.com/Montabos/Projet/pkg/state"
)

const chatHelp = `Commands:
  /new <instruction>    Start a new email task (e.g. "Reply to this email")
  /resume               Resume from the last checkpoint
  /show                 Show current progress and draft
  /approve              Approve the current draft
  /edit <text>          Replace the draft with new text
  /id                   Show the current run id
  /intent               Show the detected intent
  /help                 Show this help
  /exit                 Quit`

func chatCmd(opts *options) *cobra.Command {
	var (
		fresh bool
		runID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive drafting session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if fresh {
				removed, err := removeStore(&cfg.Store)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(out, "Removed old run store: %s\n", cfg.Store.Path)
				}
			}

			a, err := openApp(cmd.Context(), cfg, out)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Email drafting agent ready.")
			fmt.Fprintf(out, "Run store: %s\n", a.infra.Store.Backend())
			if cfg.Store.Backend == checkpoint.BackendSQLite {
				fmt.Fprintf(out, "Persistence DB: %s\n", cfg.Store.Path)
			}
			fmt.Fprintln(out, chatHelp)

			s := newSession(a.workflow(), out)
			if runID != "" {
				s.runID = runID
			}
			fmt.Fprintf(out, "\nCurrent run id: %s\n", s.runID)

			return errors.Join(s.run(cmd.Context(), cmd.InOrStdin()), a.Close())
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "Delete the SQLite run store before starting")
	cmd.Flags().StringVar(&runID, "run", "", "Continue an existing run")
	return cmd
}

// session is one interactive chat bound to a current run.
type session struct {
	wf    *workflow.Workflow
	out   io.Writer
	runID string
	newID func() string
}

func newSession(wf *workflow.Workflow, out io.Writer) *session {
	return &session{
		wf:    wf,
		out:   out,
		runID: uuid.NewString(),
		newID: uuid.NewString,
	}
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out, "\nBye!")
			return scanner.Err()
		}
		if done := s.handle(ctx, strings.TrimSpace(scanner.Text())); done {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// handle executes one input line and reports whether the session ends.
func (s *session) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
	case "/exit":
		return true
	case "/help":
		fmt.Fprintln(s.out, chatHelp)
	case "/id":
		fmt.Fprintf(s.out, "run id: %s\n", s.runID)
	case "/intent":
		s.intent(ctx)
	case "/show":
		s.show(ctx)
	case "/new":
		s.start(ctx, arg)
	case "/resume":
		s.resume(ctx)
	case "/approve":
		s.approve(ctx)
	case "/edit":
		s.edit(ctx, arg)
	default:
		fmt.Fprintln(s.out, "Unknown command. Type /help for help.")
	}
	return false
}

func (s *session) load(ctx context.Context) (state.State, bool) {
	st, err := s.wf.GetState(ctx, s.runID)
	if err != nil {
		if !errors.Is(err, state.ErrRunNotFound) {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		return state.State{}, false
	}
	return st, true
}

func (s *session) intent(ctx context.Context) {
	st, ok := s.load(ctx)
	if !ok {
		fmt.Fprintln(s.out, "No state yet. Start with /new")
		return
	}
	intent := st.String(workflow.KeyIntent)
	if intent == "" {
		intent = "Not classified yet"
	}
	fmt.Fprintf(s.out, "Intent: %s (confidence: %.2f)\n", intent, st.Float(workflow.KeyIntentConfidence))
}

func (s *session) show(ctx context.Context) {
	st, ok := s.load(ctx)
	if !ok {
		fmt.Fprintln(s.out, "No saved state yet for this run.")
		return
	}
	printState(s.out, st)
}

func (s *session) start(ctx context.Context, instruction string) {
	if instruction == "" {
		fmt.Fprintln(s.out, "Usage: /new <instruction>")
		fmt.Fprintln(s.out, "Example: /new Reply to this email confirming the meeting")
		return
	}

	s.runID = s.newID()
	fmt.Fprintf(s.out, "New run started (%s)\n", s.runID)
	fmt.Fprintf(s.out, "Processing: %s\n", instruction)

	if _, err := s.wf.Start(ctx, s.runID, instruction); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "\nPaused for human review. Use /show to see the draft, then /approve or /edit")
}

func (s *session) resume(ctx context.Context) {
	res, err := s.wf.Resume(ctx, s.runID)
	switch {
	case errors.Is(err, state.ErrRunNotFound):
		fmt.Fprintln(s.out, "No state to resume. Start with /new")
		return
	case err != nil:
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	switch {
	case res.Status == state.StatusCompleted:
		fmt.Fprintln(s.out, "\nDraft approved! Use /show to see the final email.")
	case res.State.String(workflow.KeyDraft) != "":
		fmt.Fprintln(s.out, "\nStill paused. Use /show to see the draft, then /approve or /edit")
	default:
		fmt.Fprintln(s.out, "\nProcessing... Use /show to see progress.")
	}
}

func (s *session) approve(ctx context.Context) {
	st, err := s.wf.Approve(ctx, s.runID)
	switch {
	case errors.Is(err, state.ErrRunNotFound):
		fmt.Fprintln(s.out, "No draft to approve. Start with /new")
		return
	case errors.Is(err, workflow.ErrNoDraft):
		fmt.Fprintln(s.out, "No draft available. Use /show to check status.")
		return
	case err != nil:
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	printFinal(s.out, st)
}

func (s *session) edit(ctx context.Context, text string) {
	if text == "" {
		fmt.Fprintln(s.out, "Usage: /edit <new draft text>")
		return
	}

	_, err := s.wf.Edit(ctx, s.runID, text)
	switch {
	case errors.Is(err, state.ErrRunNotFound):
		fmt.Fprintln(s.out, "No draft to edit. Start with /new")
		return
	case err != nil:
		fmt.Fprintf(s.out, "Error updating draft or review: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "Draft updated and reviewed again. Use /show to see the new [REVIEW STATUS].")
}
