package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andrewkhoh/farmhand/internal/config"
	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/testrun"
)

var logsCmd = &cobra.Command{
	Use:   "logs <agent>",
	Short: "View an agent's captured output",
	Long: `Logs prints the tail of an agent's raw output log, the timestamped
capture of everything the agent CLI emitted.

Examples:
  # Last 50 lines of the builder agent's output
  farmhand logs builder

  # Full progress log instead of the raw capture
  farmhand logs builder --progress

  # Latest raw test output
  farmhand logs builder --tests`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

var (
	logsTail     int
	logsProgress bool
	logsTests    bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "number of lines to show (0 for all)")
	logsCmd.Flags().BoolVar(&logsProgress, "progress", false, "show the human-readable progress log")
	logsCmd.Flags().BoolVar(&logsTests, "tests", false, "show the latest raw test output")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	paths := layout.New(cfg.Paths.ResolveStateDir(cwd))
	agent := args[0]

	var path string
	switch {
	case logsProgress:
		path = paths.ProgressFile(agent)
	case logsTests:
		path = paths.ResultsFile(agent)
	default:
		path = paths.RawLogFile(agent)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no log at %s; has the %q supervisor run yet?", path, agent)
		}
		return err
	}

	text := string(data)
	if logsTail > 0 {
		text = testrun.TailLines(text, logsTail)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
