package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"driftq/internal/daemonctl"
)

func newNetCommand(ctx *commandContext) *cobra.Command {
	netCmd := &cobra.Command{
		Use:   "net",
		Short: "Inspect network quality and connectivity history",
	}

	netCmd.AddCommand(newNetStatusCommand(ctx))
	netCmd.AddCommand(newNetTestCommand(ctx))
	netCmd.AddCommand(newNetEventsCommand(ctx))

	return netCmd
}

func newNetStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current connection quality and probe statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				report, err := client.Network(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				if report.Quality == nil {
					fmt.Fprintln(out, "No connectivity observed yet")
				} else {
					q := report.Quality
					rows := [][]string{
						{"Type", string(q.Type)},
						{"Connected", yesNo(q.Connected)},
						{"Internet", yesNo(q.InternetReachable)},
						{"Strength", string(q.Strength)},
						{"Speed", string(q.Speed)},
						{"Latency", fmt.Sprintf("%d ms", q.LatencyMs)},
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Field", "Value"},
						rows,
						[]columnAlignment{alignLeft, alignLeft},
					))
				}
				fmt.Fprintf(out, "Probes: %d total, %d failed, avg latency %d ms\n",
					report.Stats.TotalTests, report.Stats.FailedTests, report.Stats.AverageLatencyMs)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the report as JSON")
	return cmd
}

func newNetTestCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run an immediate connectivity probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				sample, err := client.TestConnection(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, sample)
				}
				out := cmd.OutOrStdout()
				if sample.Success {
					fmt.Fprintf(out, "Probe succeeded: %d ms\n", sample.LatencyMs)
				} else {
					fmt.Fprintf(out, "Probe failed: %s\n", sample.Error)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the probe sample as JSON")
	return cmd
}

func newNetEventsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent connectivity transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				report, err := client.Network(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, report.Events)
				}
				out := cmd.OutOrStdout()
				if len(report.Events) == 0 {
					fmt.Fprintln(out, "No connectivity events recorded")
					return nil
				}
				rows := make([][]string, 0, len(report.Events))
				for _, event := range report.Events {
					duration := ""
					if event.DurationMs > 0 {
						duration = fmt.Sprintf("%d ms", event.DurationMs)
					}
					rows = append(rows, []string{
						event.Timestamp.Local().Format("2006-01-02 15:04:05"),
						string(event.Kind),
						string(event.Current.Type),
						string(event.Current.Strength),
						duration,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Time", "Event", "Type", "Strength", "Offline for"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output events as JSON")
	return cmd
}
