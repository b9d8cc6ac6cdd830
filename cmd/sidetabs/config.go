package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/sidetabs/internal/appconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var path string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := appconfig.WriteDefault(path, force)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", written)
			return err
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "config file path (default ~/.sidetabs/config.yaml)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective engine settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(path)
			if err != nil {
				return err
			}
			engine := cfg.Engine.ToEngineConfig()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cursor_sync: %t\n", engine.CursorSync)
			fmt.Fprintf(out, "gc_interval: %s\n", engine.GCInterval)
			fmt.Fprintf(out, "inactivity_threshold: %s\n", engine.InactivityThreshold)
			fmt.Fprintf(out, "version_max_age: %s\n", engine.VersionMaxAge)
			fmt.Fprintf(out, "activate_attempts: %d\n", engine.ActivateAttempts)
			fmt.Fprintf(out, "activate_retry_delay: %s\n", engine.ActivateRetryDelay)
			fmt.Fprintf(out, "git: enabled=%t root=%s\n", cfg.Git.Enabled, cfg.Git.RepoRoot)
			_, err = fmt.Fprintf(out, "logging.level: %s\n", cfg.Logging.Level)
			return err
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "config file path (default ~/.sidetabs/config.yaml)")
	return cmd
}
