package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andrewkhoh/farmhand/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "farmhand",
	Short: "Restart/convergence supervisor for CLI coding agents",
	Long: `Farmhand supervises one coding agent per process: it gates on upstream
dependencies, invokes the agent CLI with test-state context, measures the
test suite after each cycle, and converges via a bounded restart budget.
Sibling agents coordinate through a shared state directory of status
documents and completion sentinels.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/farmhand/config.yaml)")
	rootCmd.PersistentFlags().String("state-dir", "", "shared state directory (default .farmhand)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("paths.state_dir", rootCmd.PersistentFlags().Lookup("state-dir"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/farmhand")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FARMHAND")
	// Replace dots with underscores for nested keys in env vars
	// e.g., FARMHAND_RUN_MAX_RESTARTS for run.max_restarts
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()

	// The container entrypoint contract (AGENT_NAME, MAX_RESTARTS,
	// DEPENDS_ON) wins over config file values.
	config.BindLegacyEnv()
}
