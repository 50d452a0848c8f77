// Package manifest loads the agents.yaml fleet description. A manifest is
// optional; it lets one file define every agent's dependencies, prompt and
// test target so compose files only need to pass AGENT_NAME.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Agent describes one agent entry in the manifest.
type Agent struct {
	// Name is the agent identity. Required, unique within the manifest.
	Name string `yaml:"name"`
	// DependsOn lists upstream agents whose completion must precede this
	// agent's work.
	DependsOn []string `yaml:"depends_on,omitempty"`
	// PromptFile points at the agent's task prompt.
	PromptFile string `yaml:"prompt_file,omitempty"`
	// TestCommand overrides the configured test command for this agent.
	TestCommand string `yaml:"test_command,omitempty"`
	// TargetPassRate overrides the configured pass-rate target; 0 means
	// use the global value.
	TargetPassRate int `yaml:"target_pass_rate,omitempty"`
}

// Manifest is the parsed agents.yaml.
type Manifest struct {
	Agents []Agent `yaml:"agents"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural rules: unique non-empty names, every
// dependency resolvable within the manifest, target rates in range, and
// no dependency cycles.
func (m *Manifest) Validate() error {
	if len(m.Agents) == 0 {
		return fmt.Errorf("manifest defines no agents")
	}

	byName := make(map[string]bool, len(m.Agents))
	for _, a := range m.Agents {
		if a.Name == "" {
			return fmt.Errorf("manifest agent with empty name")
		}
		if byName[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		byName[a.Name] = true
		if a.TargetPassRate < 0 || a.TargetPassRate > 100 {
			return fmt.Errorf("agent %q: target_pass_rate must be 0-100, got %d", a.Name, a.TargetPassRate)
		}
	}

	for _, a := range m.Agents {
		for _, dep := range a.DependsOn {
			if !byName[dep] {
				return fmt.Errorf("agent %q depends on unknown agent %q", a.Name, dep)
			}
			if dep == a.Name {
				return fmt.Errorf("agent %q depends on itself", a.Name)
			}
		}
	}

	if cycle := m.findCycle(); len(cycle) > 0 {
		return fmt.Errorf("dependency cycle: %v", cycle)
	}
	return nil
}

// Lookup returns the entry for an agent name.
func (m *Manifest) Lookup(name string) (Agent, bool) {
	for _, a := range m.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// Names returns every agent name in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Agents))
	for _, a := range m.Agents {
		names = append(names, a.Name)
	}
	return names
}

// findCycle returns the agents involved in a dependency cycle, or nil.
func (m *Manifest) findCycle() []string {
	deps := make(map[string][]string, len(m.Agents))
	for _, a := range m.Agents {
		deps[a.Name] = a.DependsOn
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(deps))

	var cycle []string
	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			cycle = append(cycle, name)
			return true
		case done:
			return false
		}
		state[name] = visiting
		for _, dep := range deps[name] {
			if visit(dep) {
				cycle = append(cycle, name)
				return true
			}
		}
		state[name] = done
		return false
	}

	for _, a := range m.Agents {
		if visit(a.Name) {
			return cycle
		}
	}
	return nil
}
