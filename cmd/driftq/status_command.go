package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"driftq/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and network status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonctl.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, status)
				}
				printStatus(cmd, status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output status as JSON")
	return cmd
}

func printStatus(cmd *cobra.Command, status *daemonctl.Status) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	lines = append(lines,
		renderStatusLine("Running", boolKind(status.Running), yesNo(status.Running), colorize),
		renderStatusLine("PID", statusInfo, fmt.Sprintf("%d", status.PID), colorize),
		renderStatusLine("Store", statusInfo, status.StoreDBPath, colorize),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Network", colorize)...)
	lines = append(lines, renderStatusLine("Online", boolKind(status.Online), yesNo(status.Online), colorize))
	if q := status.Network; q != nil {
		lines = append(lines,
			renderStatusLine("Type", statusInfo, string(q.Type), colorize),
			renderStatusLine("Strength", statusInfo, string(q.Strength), colorize),
			renderStatusLine("Speed", statusInfo, string(q.Speed), colorize),
		)
		if q.LatencyMs > 0 {
			lines = append(lines, renderStatusLine("Latency", statusInfo, fmt.Sprintf("%d ms", q.LatencyMs), colorize))
		}
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Queue", colorize)...)
	pendingKind := statusOK
	if status.Queue.Pending > 0 {
		pendingKind = statusWarn
	}
	lines = append(lines,
		renderStatusLine("Pending", pendingKind, fmt.Sprintf("%d", status.Queue.Pending), colorize),
		renderStatusLine("Succeeded", statusInfo, fmt.Sprintf("%d", status.Queue.Succeeded), colorize),
		renderStatusLine("Failed", failedKind(status.Queue.Failed), fmt.Sprintf("%d", status.Queue.Failed), colorize),
	)
	if status.Queue.LastSyncAt != nil {
		lines = append(lines, renderStatusLine("Last sync", statusInfo, status.Queue.LastSyncAt.Local().Format("2006-01-02 15:04:05"), colorize))
	}

	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func boolKind(value bool) statusKind {
	if value {
		return statusOK
	}
	return statusWarn
}

func failedKind(failed int) statusKind {
	if failed > 0 {
		return statusError
	}
	return statusOK
}
