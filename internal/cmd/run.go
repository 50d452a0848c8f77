package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andrewkhoh/farmhand/internal/config"
	"github.com/andrewkhoh/farmhand/internal/logging"
	"github.com/andrewkhoh/farmhand/internal/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the supervisor loop for one agent",
	Long: `Run drives the convergence loop for a single agent: wait for upstream
dependency sentinels, invoke the agent CLI with current test context,
re-run the test suite, and repeat until the pass-rate target is met or
the restart budget runs out.

Examples:
  # Run the builder agent against the default state directory
  farmhand run --agent builder

  # Container entrypoint style, one cycle per process
  AGENT_NAME=builder DEPENDS_ON=schema,services farmhand run --once

  # Resolve dependencies and prompts from a fleet manifest
  farmhand run --agent builder --manifest agents.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("agent", "", "agent identity (required unless AGENT_NAME is set)")
	runCmd.Flags().StringSlice("depends-on", nil, "upstream agents to wait for")
	runCmd.Flags().String("prompt-file", "", "path to the agent's task prompt")
	runCmd.Flags().String("manifest", "", "agents.yaml fleet manifest")
	runCmd.Flags().Bool("once", false, "exit after one cycle instead of looping")
	runCmd.Flags().Int("max-restarts", 0, "restart cycle budget")
	runCmd.Flags().Int("target", 0, "pass-rate percentage that counts as success")
	runCmd.Flags().String("test-command", "", "shell command that runs the test suite")

	_ = viper.BindPFlag("agent.name", runCmd.Flags().Lookup("agent"))
	_ = viper.BindPFlag("agent.depends_on", runCmd.Flags().Lookup("depends-on"))
	_ = viper.BindPFlag("agent.prompt_file", runCmd.Flags().Lookup("prompt-file"))
	_ = viper.BindPFlag("agent.manifest", runCmd.Flags().Lookup("manifest"))
	_ = viper.BindPFlag("run.once", runCmd.Flags().Lookup("once"))
	_ = viper.BindPFlag("run.max_restarts", runCmd.Flags().Lookup("max-restarts"))
	_ = viper.BindPFlag("run.target_pass_rate", runCmd.Flags().Lookup("target"))
	_ = viper.BindPFlag("test.command", runCmd.Flags().Lookup("test-command"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	logDir := ""
	if cfg.Logging.Enabled {
		logDir = cfg.Paths.ResolveStateDir(cwd)
	}
	logger, err := logging.New(logDir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	sup, err := supervisor.New(cfg, cwd, os.Stdout, logger)
	if err != nil {
		return err
	}

	// Signal-driven termination flows through context cancellation so the
	// deferred shutdown (heartbeat join, final status write) always runs.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sup.Run(ctx)
}
