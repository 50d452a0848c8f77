package cmd

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/andrewkhoh/farmhand/internal/config"
	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live terminal dashboard for the agent fleet",
	Long: `Dashboard shows every agent's status document in a live table:
lifecycle state, cycle progress, pass rate and heartbeat age. It polls
the shared state directory and never writes to it.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	paths := layout.New(cfg.Paths.ResolveStateDir(cwd))

	p := tea.NewProgram(tui.NewModel(paths), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
