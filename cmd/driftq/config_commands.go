package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"driftq/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, redacted(cfg))
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"paths.data_dir", cfg.Paths.DataDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"paths.api_bind", cfg.Paths.APIBind},
				{"queue.max_size", fmt.Sprintf("%d", cfg.Queue.MaxSize)},
				{"queue.batch_size", fmt.Sprintf("%d", cfg.Queue.BatchSize)},
				{"queue.batching_enabled", yesNo(cfg.Queue.BatchingEnabled)},
				{"queue.max_retries", fmt.Sprintf("%d", cfg.Queue.MaxRetries)},
				{"queue.base_delay_ms", fmt.Sprintf("%d", cfg.Queue.BaseDelayMs)},
				{"network.probe_url", cfg.Network.ProbeURL},
				{"network.probe_timeout", fmt.Sprintf("%ds", cfg.Network.ProbeTimeout)},
				{"network.probe_interval", fmt.Sprintf("%ds", cfg.Network.ProbeInterval)},
				{"network.type_change_debounce_ms", fmt.Sprintf("%d", cfg.Network.TypeChangeDebounceMs)},
				{"remote.endpoint", cfg.Remote.Endpoint},
				{"remote.token", redactToken(cfg.Remote.Token)},
				{"remote.timeout", fmt.Sprintf("%ds", cfg.Remote.Timeout)},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output configuration as JSON")
	return cmd
}

func redacted(cfg *config.Config) config.Config {
	clone := *cfg
	clone.Remote.Token = redactToken(clone.Remote.Token)
	return clone
}

func redactToken(token string) string {
	if strings.TrimSpace(token) == "" {
		return ""
	}
	return "(set)"
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := config.WriteSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set remote.endpoint (and DRIFTQ_REMOTE_TOKEN if the backend needs auth) before running the daemon.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}
