package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/app"
	"github.com/ent0n29/aide/internal/config"
	"github.com/ent0n29/aide/internal/reminders"
	"github.com/ent0n29/aide/internal/store"
	"github.com/ent0n29/aide/internal/tasks"
)

func newSayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "say <text...>",
		Short: "Answer one request and exit",
		Long: `Dispatches a single utterance through the same intents as the live
session and prints the reply. Tasks and reminders it creates are stored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// One-shot runs never serve the bridge or the operator API.
			cfg.Input = config.InputConsole
			cfg.HTTPAddr = ""

			built, err := app.Build(cmd.Context(), cfg, app.Options{
				Logger: logger,
				Stdin:  strings.NewReader(""),
				Stdout: cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			reply := built.Dispatcher.Dispatch(cmd.Context(), strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			return built.Cleanup()
		},
	}
}

func newTasksCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List pending tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(ctx context.Context, st store.Store, logger *zap.Logger) error {
				pending, err := tasks.NewManager(st, logger, nil).Pending(ctx)
				if err != nil {
					return fmt.Errorf("list tasks: %w", err)
				}
				printTasks(cmd.OutOrStdout(), pending)
				return nil
			})
		},
	}
}

func newRemindersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reminders",
		Short: "List reminders that have not fired yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(ctx context.Context, st store.Store, logger *zap.Logger) error {
				pending, err := reminders.NewManager(st, logger, nil).Pending(ctx)
				if err != nil {
					return fmt.Errorf("list reminders: %w", err)
				}
				printReminders(cmd.OutOrStdout(), pending)
				return nil
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent conversation turns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("-n must be positive")
			}
			return withStore(cmd.Context(), opts, func(ctx context.Context, st store.Store, _ *zap.Logger) error {
				turns, err := st.RecentTurns(ctx, limit)
				if err != nil {
					return fmt.Errorf("recent turns: %w", err)
				}
				printHistory(cmd.OutOrStdout(), turns)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of turns to show")
	return cmd
}

func withStore(ctx context.Context, opts *rootOptions, fn func(context.Context, store.Store, *zap.Logger) error) error {
	cfg, logger, err := opts.setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.NewStore(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("store init failed: %w", err)
	}
	defer st.Close()
	return fn(ctx, st, logger)
}

func printTasks(w io.Writer, pending []store.Task) {
	if len(pending) == 0 {
		fmt.Fprintln(w, "No pending tasks")
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	for _, t := range pending {
		fmt.Fprintf(w, "%s  %s  (priority %d, due %s)\n",
			bold(fmt.Sprintf("#%d", t.ID)), t.Description, t.Priority, t.DueAt.Local().Format(reminders.ConfirmLayout))
	}
}

func printReminders(w io.Writer, pending []store.Reminder) {
	if len(pending) == 0 {
		fmt.Fprintln(w, "No pending reminders")
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	for _, r := range pending {
		fmt.Fprintf(w, "%s  %s  %s\n", bold(fmt.Sprintf("#%d", r.ID)), r.FireAt.Local().Format(reminders.ConfirmLayout), r.Text)
	}
}

func printHistory(w io.Writer, turns []store.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(w, "No conversation history")
		return
	}
	user := color.New(color.FgGreen).SprintFunc()
	assistant := color.New(color.FgCyan, color.Bold).SprintFunc()
	for _, t := range turns {
		stamp := t.CreatedAt.Local().Format("2006-01-02 15:04:05")
		if t.UserInput != "" {
			fmt.Fprintf(w, "[%s] %s %s\n", stamp, user("You:"), t.UserInput)
		}
		if t.Replied {
			fmt.Fprintf(w, "[%s] %s %s\n", stamp, assistant("Assistant:"), t.Reply)
		}
	}
}
