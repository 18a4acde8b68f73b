package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/state"
)

func startCmd(opts *options) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "start <instruction>",
		Short: "Start a run and execute it up to the first review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := a.workflow().Start(ctx, runID, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "run %s %s after %s\n", res.State.RunID, res.Status, strings.Join(res.Path, " -> "))
				printState(a.out, res.State)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&runID, "id", "", "Run id (defaults to a new UUID)")
	return cmd
}

func resumeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Resume a suspended run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := a.workflow().Resume(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "run %s %s\n", res.State.RunID, res.Status)
				printState(a.out, res.State)
				return nil
			})
		},
	}
}

func showCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the persisted state of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				s, err := a.workflow().GetState(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(a.out)
					enc.SetIndent("", "  ")
					return enc.Encode(workflow.NewRun(s))
				}
				printState(a.out, s)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run as JSON")
	return cmd
}

func approveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <run-id>",
		Short: "Approve the current draft as the final email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				s, err := a.workflow().Approve(ctx, args[0])
				if err != nil {
					return err
				}
				printFinal(a.out, s)
				return nil
			})
		},
	}
}

func editCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <run-id> <draft>",
		Short: "Replace the draft and review it again",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				s, err := a.workflow().Edit(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				printState(a.out, s)
				return nil
			})
		},
	}
}

func runsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				summaries, err := a.workflow().List(ctx)
				if err != nil {
					return err
				}
				printSummaries(a.out, summaries)
				return nil
			})
		},
	}
}

func deleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its archived email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.workflow().Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func printSummaries(w io.Writer, summaries []state.Summary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "no runs")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tCHECKPOINT\tUPDATED")
	for _, s := range summaries {
		status, node := workflow.StatusSuspended, s.CheckpointNode
		switch node {
		case state.End:
			status, node = workflow.StatusCompleted, "-"
		case "":
			status, node = workflow.StatusPending, "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.RunID, status, node, s.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}
