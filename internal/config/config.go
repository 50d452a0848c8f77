package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete farmhand configuration
type Config struct {
	Agent   AgentConfig   `mapstructure:"agent"`
	Run     RunConfig     `mapstructure:"run"`
	Gate    GateConfig    `mapstructure:"gate"`
	Test    TestConfig    `mapstructure:"test"`
	Backend BackendConfig `mapstructure:"backend"`
	Logging LoggingConfig `mapstructure:"logging"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

// AgentConfig identifies which agent this supervisor drives
type AgentConfig struct {
	// Name is the agent identity. It namespaces every file the supervisor
	// touches (status, counter, logs, sentinels). Required.
	Name string `mapstructure:"name"`
	// DependsOn lists upstream agents whose completion sentinels must exist
	// before this agent's main work starts
	DependsOn []string `mapstructure:"depends_on"`
	// PromptFile is the path to the agent-specific task prompt
	PromptFile string `mapstructure:"prompt_file"`
	// Manifest is an optional agents.yaml path; when set, agent name,
	// dependencies, prompt, test command and target are resolved from it
	Manifest string `mapstructure:"manifest"`
}

// RunConfig controls the convergence loop
type RunConfig struct {
	// MaxRestarts is the restart cycle budget (default: 5)
	MaxRestarts int `mapstructure:"max_restarts"`
	// TargetPassRate is the pass-rate percentage that counts as success (default: 85)
	TargetPassRate int `mapstructure:"target_pass_rate"`
	// Once exits with code 0 after a single cycle instead of looping,
	// for container-restart-policy driven deployments
	Once bool `mapstructure:"once"`
	// HeartbeatIntervalSeconds is how often the heartbeat timestamp is
	// refreshed in the status document (default: 60)
	HeartbeatIntervalSeconds int `mapstructure:"heartbeat_interval_seconds"`
}

// GateConfig controls dependency sentinel waiting
type GateConfig struct {
	// PollIntervalSeconds is the sentinel existence-check interval (default: 30)
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	// TimeoutMinutes bounds the wait per dependency; 0 waits forever (default: 0)
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
	// Watch enables filesystem notification on the handoffs directory so
	// sentinel creation is noticed between polls (default: true)
	Watch bool `mapstructure:"watch"`
}

// TestConfig controls the test cycle
type TestConfig struct {
	// Type is a label for the test suite, folded into prompts and logs (default: "unit")
	Type string `mapstructure:"type"`
	// Command is the shell command that runs the suite (default: "npm test")
	Command string `mapstructure:"command"`
	// Workspace is the working directory for the test command (default: ".")
	Workspace string `mapstructure:"workspace"`
	// TailLines is how many trailing lines of raw test output are included
	// in the agent prompt (default: 50)
	TailLines int `mapstructure:"tail_lines"`
}

// BackendConfig controls the external agent CLI
type BackendConfig struct {
	// Name selects the backend: "claude" (default)
	Name string `mapstructure:"name"`
	// Command overrides the backend binary name
	Command string `mapstructure:"command"`
	// SkipPermissions passes the backend's permission-bypass flag (default: true)
	SkipPermissions bool `mapstructure:"skip_permissions"`
	// AuthPollSeconds is the re-probe interval while authentication is
	// missing (default: 30)
	AuthPollSeconds int `mapstructure:"auth_poll_seconds"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// PathsConfig controls where farmhand stores shared state
type PathsConfig struct {
	// StateDir is the root of the shared state tree (status/, handoffs/,
	// restart_counters/, ...). All sibling agents must point at the same
	// directory for dependency signaling to work. Supports ~ expansion.
	// Defaults to ".farmhand" relative to the working directory.
	StateDir string `mapstructure:"state_dir"`
}

// HeartbeatInterval returns the heartbeat interval as a time.Duration
func (r *RunConfig) HeartbeatInterval() time.Duration {
	return time.Duration(r.HeartbeatIntervalSeconds) * time.Second
}

// PollInterval returns the gate poll interval as a time.Duration
func (g *GateConfig) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalSeconds) * time.Second
}

// Timeout returns the per-dependency wait bound (0 means unbounded)
func (g *GateConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMinutes) * time.Minute
}

// AuthPollInterval returns the auth re-probe interval as a time.Duration
func (b *BackendConfig) AuthPollInterval() time.Duration {
	return time.Duration(b.AuthPollSeconds) * time.Second
}

// ResolveStateDir returns the resolved state directory path.
// If StateDir is empty it returns the default relative to baseDir.
// A leading ~ expands to the user's home directory.
func (p *PathsConfig) ResolveStateDir(baseDir string) string {
	if p.StateDir == "" {
		return filepath.Join(baseDir, ".farmhand")
	}

	path := p.StateDir

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:       "",
			DependsOn:  []string{},
			PromptFile: "",
			Manifest:   "",
		},
		Run: RunConfig{
			MaxRestarts:              5,
			TargetPassRate:           85,
			Once:                     false,
			HeartbeatIntervalSeconds: 60,
		},
		Gate: GateConfig{
			PollIntervalSeconds: 30,
			TimeoutMinutes:      0, // Unbounded wait by default
			Watch:               true,
		},
		Test: TestConfig{
			Type:      "unit",
			Command:   "npm test",
			Workspace: ".",
			TailLines: 50,
		},
		Backend: BackendConfig{
			Name:            "claude",
			Command:         "",
			SkipPermissions: true,
			AuthPollSeconds: 30,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Paths: PathsConfig{
			StateDir: "", // Empty means use default: .farmhand
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Agent defaults
	viper.SetDefault("agent.name", defaults.Agent.Name)
	viper.SetDefault("agent.depends_on", defaults.Agent.DependsOn)
	viper.SetDefault("agent.prompt_file", defaults.Agent.PromptFile)
	viper.SetDefault("agent.manifest", defaults.Agent.Manifest)

	// Run defaults
	viper.SetDefault("run.max_restarts", defaults.Run.MaxRestarts)
	viper.SetDefault("run.target_pass_rate", defaults.Run.TargetPassRate)
	viper.SetDefault("run.once", defaults.Run.Once)
	viper.SetDefault("run.heartbeat_interval_seconds", defaults.Run.HeartbeatIntervalSeconds)

	// Gate defaults
	viper.SetDefault("gate.poll_interval_seconds", defaults.Gate.PollIntervalSeconds)
	viper.SetDefault("gate.timeout_minutes", defaults.Gate.TimeoutMinutes)
	viper.SetDefault("gate.watch", defaults.Gate.Watch)

	// Test defaults
	viper.SetDefault("test.type", defaults.Test.Type)
	viper.SetDefault("test.command", defaults.Test.Command)
	viper.SetDefault("test.workspace", defaults.Test.Workspace)
	viper.SetDefault("test.tail_lines", defaults.Test.TailLines)

	// Backend defaults
	viper.SetDefault("backend.name", defaults.Backend.Name)
	viper.SetDefault("backend.command", defaults.Backend.Command)
	viper.SetDefault("backend.skip_permissions", defaults.Backend.SkipPermissions)
	viper.SetDefault("backend.auth_poll_seconds", defaults.Backend.AuthPollSeconds)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Paths defaults
	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
}

// BindLegacyEnv maps the container entrypoint's environment contract onto
// viper keys: AGENT_NAME, MAX_RESTARTS, and DEPENDS_ON (comma-separated).
// These predate the FARMHAND_* prefix and are kept for compatibility with
// existing compose files.
func BindLegacyEnv() {
	if v := os.Getenv("AGENT_NAME"); v != "" {
		viper.Set("agent.name", v)
	}
	if v := os.Getenv("MAX_RESTARTS"); v != "" {
		viper.Set("run.max_restarts", v)
	}
	if v := os.Getenv("DEPENDS_ON"); v != "" {
		deps := strings.Split(v, ",")
		for i := range deps {
			deps[i] = strings.TrimSpace(deps[i])
		}
		viper.Set("agent.depends_on", deps)
	}
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "farmhand")
	}
	// Fall back to ~/.config/farmhand
	home, err := os.UserHomeDir()
	if err != nil {
		return ".farmhand"
	}
	return filepath.Join(home, ".config", "farmhand")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
