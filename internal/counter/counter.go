// Package counter persists the per-agent restart counter as plain decimal
// text. The counter is read at process start, incremented exactly once per
// cycle, and written back before any other side effect so a polling
// dashboard never sees a stale counter paired with fresh status.
package counter

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andrewkhoh/farmhand/internal/layout"
)

// Store reads and writes restart counters under a shared state root.
type Store struct {
	paths layout.Layout
}

// NewStore creates a counter store over the given layout.
func NewStore(paths layout.Layout) *Store {
	return &Store{paths: paths}
}

// Load returns the current restart count for an agent. A missing or
// unreadable counter file yields 0; Load never fails. Read-then-save is not
// atomic across a process crash, which can repeat a cycle - acceptable since
// cycles are designed to be idempotent.
func (s *Store) Load(agent string) int {
	data, err := os.ReadFile(s.paths.CounterFile(agent))
	if err != nil {
		return 0
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Save overwrites the counter file with the decimal representation of n.
func (s *Store) Save(agent string, n int) error {
	path := s.paths.CounterFile(agent)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create counter directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(n)), 0644); err != nil {
		return fmt.Errorf("failed to write counter file: %w", err)
	}
	return nil
}

// Bump loads the counter, increments it, and saves it back. It returns the
// incremented value. Called once per process cycle, before any output side
// effects.
func (s *Store) Bump(agent string) (int, error) {
	n := s.Load(agent) + 1
	if err := s.Save(agent, n); err != nil {
		return n, err
	}
	return n, nil
}
