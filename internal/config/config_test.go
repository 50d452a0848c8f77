package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("Default() config is invalid: %v", ValidationErrors(errs))
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.Run.MaxRestarts != 5 {
		t.Errorf("Run.MaxRestarts = %d, want 5", cfg.Run.MaxRestarts)
	}
	if cfg.Run.TargetPassRate != 85 {
		t.Errorf("Run.TargetPassRate = %d, want 85", cfg.Run.TargetPassRate)
	}
	if cfg.Gate.PollIntervalSeconds != 30 {
		t.Errorf("Gate.PollIntervalSeconds = %d, want 30", cfg.Gate.PollIntervalSeconds)
	}
	if cfg.Gate.TimeoutMinutes != 0 {
		t.Errorf("Gate.TimeoutMinutes = %d, want 0 (unbounded)", cfg.Gate.TimeoutMinutes)
	}
	if cfg.Run.HeartbeatIntervalSeconds != 60 {
		t.Errorf("Run.HeartbeatIntervalSeconds = %d, want 60", cfg.Run.HeartbeatIntervalSeconds)
	}
	if cfg.Backend.Name != "claude" {
		t.Errorf("Backend.Name = %q, want %q", cfg.Backend.Name, "claude")
	}
}

func TestResolveStateDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir() error: %v", err)
	}

	tests := []struct {
		name     string
		stateDir string
		baseDir  string
		want     string
	}{
		{
			name:     "empty uses default",
			stateDir: "",
			baseDir:  "/srv/app",
			want:     "/srv/app/.farmhand",
		},
		{
			name:     "absolute path kept",
			stateDir: "/shared",
			baseDir:  "/srv/app",
			want:     "/shared",
		},
		{
			name:     "relative resolved against base",
			stateDir: "state",
			baseDir:  "/srv/app",
			want:     "/srv/app/state",
		},
		{
			name:     "tilde expands to home",
			stateDir: "~/farm-state",
			baseDir:  "/srv/app",
			want:     filepath.Join(home, "farm-state"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PathsConfig{StateDir: tt.stateDir}
			if got := p.ResolveStateDir(tt.baseDir); got != tt.want {
				t.Errorf("ResolveStateDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "bad agent name",
			mutate:    func(c *Config) { c.Agent.Name = "9lives" },
			wantField: "agent.name",
		},
		{
			name:      "agent name with path separator",
			mutate:    func(c *Config) { c.Agent.Name = "cart/../etc" },
			wantField: "agent.name",
		},
		{
			name:      "bad dependency name",
			mutate:    func(c *Config) { c.Agent.DependsOn = []string{"schema", "bad name"} },
			wantField: "agent.depends_on",
		},
		{
			name:      "zero max restarts",
			mutate:    func(c *Config) { c.Run.MaxRestarts = 0 },
			wantField: "run.max_restarts",
		},
		{
			name:      "pass rate over 100",
			mutate:    func(c *Config) { c.Run.TargetPassRate = 120 },
			wantField: "run.target_pass_rate",
		},
		{
			name:      "empty test command",
			mutate:    func(c *Config) { c.Test.Command = "" },
			wantField: "test.command",
		},
		{
			name:      "unknown backend",
			mutate:    func(c *Config) { c.Backend.Name = "hal9000" },
			wantField: "backend.name",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantField: "logging.level",
		},
		{
			name:      "negative gate timeout",
			mutate:    func(c *Config) { c.Gate.TimeoutMinutes = -1 },
			wantField: "gate.timeout_minutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("Validate() found no errors, want at least one")
			}

			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() errors %v, want one for field %q", errs, tt.wantField)
			}
		})
	}
}

func TestValidAgentNames(t *testing.T) {
	valid := []string{"cart", "orders-v2", "inventory_sync", "Auth"}
	for _, name := range valid {
		cfg := Default()
		cfg.Agent.Name = name
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("Validate() rejected valid agent name %q: %v", name, errs)
		}
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "run.max_restarts", Value: 0, Message: "must be at least 1"},
		{Field: "test.command", Value: "", Message: "must not be empty"},
	}

	msg := errs.Error()
	if msg == "" {
		t.Fatal("Error() returned empty string")
	}
	for _, want := range []string{"run.max_restarts", "test.command", "2 validation errors"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
