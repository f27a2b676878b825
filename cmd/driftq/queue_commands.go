package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"driftq/internal/daemonctl"
	"driftq/internal/offline"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the offline write queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueSyncCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				list, err := client.Queue(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list.Operations) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(list.Operations))
				for _, op := range list.Operations {
					rows = append(rows, []string{
						op.ID,
						op.Descriptor,
						string(op.Priority),
						op.Category,
						fmt.Sprintf("%d/%d", op.RetryCount, op.MaxRetries),
						op.EnqueuedAt.Local().Format("2006-01-02 15:04:05"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Operation", "Priority", "Category", "Retries", "Enqueued"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output operations as JSON")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				list, err := client.Queue(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, list.Stats)
				}
				printQueueStats(cmd, list.Stats)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output stats as JSON")
	return cmd
}

func printQueueStats(cmd *cobra.Command, stats offline.Stats) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"Total enqueued", fmt.Sprintf("%d", stats.TotalEnqueued)},
		{"Pending", fmt.Sprintf("%d", stats.Pending)},
		{"Succeeded", fmt.Sprintf("%d", stats.Succeeded)},
		{"Failed", fmt.Sprintf("%d", stats.Failed)},
	}
	lastSync := "never"
	if stats.LastSyncAt != nil {
		lastSync = stats.LastSyncAt.Local().Format("2006-01-02 15:04:05")
	}
	rows = append(rows, []string{"Last sync", lastSync})
	fmt.Fprintln(out, renderTable(
		[]string{"Counter", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		variablesJSON string
		priority      string
		category      string
		maxRetries    int
		sideEffect    string
	)

	cmd := &cobra.Command{
		Use:   "add <descriptor>",
		Short: "Enqueue a write operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptor := strings.TrimSpace(args[0])
			if descriptor == "" {
				return fmt.Errorf("descriptor is required")
			}

			var variables map[string]any
			if trimmed := strings.TrimSpace(variablesJSON); trimmed != "" {
				if err := json.Unmarshal([]byte(trimmed), &variables); err != nil {
					return fmt.Errorf("parse --variables: %w", err)
				}
			}

			req := daemonctl.EnqueueRequest{
				Descriptor: descriptor,
				Variables:  variables,
				Priority:   priority,
				Category:   category,
				SideEffect: sideEffect,
			}
			if cmd.Flags().Changed("max-retries") {
				req.MaxRetries = &maxRetries
			}

			return ctx.withClient(func(client *daemonctl.Client) error {
				id, err := client.Enqueue(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued operation %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&variablesJSON, "variables", "", "Operation variables as a JSON object")
	cmd.Flags().StringVar(&priority, "priority", "", "Operation priority (high, medium, low)")
	cmd.Flags().StringVar(&category, "category", "", "Operation category label")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Override the configured retry budget")
	cmd.Flags().StringVar(&sideEffect, "side-effect", "", "Side effect identifier invoked on commit")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove pending operations by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					id := strings.TrimSpace(arg)
					if id == "" {
						continue
					}
					if err := client.Remove(cmd.Context(), id); err != nil {
						fmt.Fprintf(out, "Operation %s: %v\n", id, err)
						continue
					}
					fmt.Fprintf(out, "Operation %s removed\n", id)
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop all pending operations and reset counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("queue clear discards pending writes; pass --yes to confirm")
			}
			return ctx.withClient(func(client *daemonctl.Client) error {
				if err := client.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue cleared")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm discarding all pending operations")
	return cmd
}

func newQueueSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Flush the queue immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				start := time.Now()
				if err := client.Sync(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sync completed in %s\n", time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
}
