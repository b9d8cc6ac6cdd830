package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/core"
	"pkt.systems/sidetabs/internal/appconfig"
	"pkt.systems/sidetabs/internal/format"
	"pkt.systems/sidetabs/internal/gitstatus"
	"pkt.systems/sidetabs/internal/hostsim"
)

func newReplayCmd() *cobra.Command {
	var configPath string
	var noGit bool
	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Drive a simulated editor with a script and print the tab tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(configPath)
			if err != nil {
				return err
			}
			logger := pslog.LoggerFromEnv(
				pslog.WithEnvWriter(cmd.ErrOrStderr()),
				pslog.WithEnvOptions(cfg.Logging.Options(pslog.Options{Mode: pslog.ModeConsole})),
			)
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			script, err := hostsim.LoadScript(args[0])
			if err != nil {
				return err
			}
			host := hostsim.NewForScript(script, logger)
			deps := core.EngineDeps{Host: host, Diagnostics: host, Logger: logger}
			if cfg.Git.Enabled && !noGit {
				provider, err := gitstatus.Open(cfg.Git.RepoRoot, logger)
				if err != nil {
					logger.Warn("replay git status unavailable", "root", cfg.Git.RepoRoot, "err", err)
				} else {
					deps.Git = provider
				}
			}
			engine, err := core.NewEngine(cfg.Engine.ToEngineConfig(), deps)
			if err != nil {
				return err
			}
			engine.SyncAll(ctx)
			if err := hostsim.Run(ctx, host, engine, script); err != nil {
				return fmt.Errorf("replay %s: %w", args[0], err)
			}
			logger.Info("replay finished", "steps", len(script.Steps), "tabs", len(engine.GetAllTabs()))
			out := cmd.OutOrStdout()
			return format.NewTreeRenderer(out).Render(out, engine)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default ~/.sidetabs/config.yaml)")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "skip git status decoration")
	return cmd
}
