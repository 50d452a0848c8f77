package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andrewkhoh/farmhand/internal/config"
	"github.com/andrewkhoh/farmhand/internal/counter"
	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/logging"
	"github.com/andrewkhoh/farmhand/internal/status"
)

// fakeCLI writes a shell script that stands in for the agent CLI. It
// prints classifiable output regardless of arguments and exits zero.
func fakeCLI(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-agent")
	script := `#!/bin/sh
echo "OK"
echo "● Edit(src/App.tsx)"
echo "Wrote src/App.tsx"
`
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T, stateDir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Agent.Name = "builder"
	cfg.Paths.StateDir = stateDir
	cfg.Gate.PollIntervalSeconds = 1
	cfg.Backend.Command = fakeCLI(t)
	cfg.Backend.AuthPollSeconds = 1
	return cfg
}

func passCommand(pass, fail int) string {
	return fmt.Sprintf("echo 'Tests: %d failed, %d passed'", fail, pass)
}

func readDoc(t *testing.T, paths layout.Layout) *status.Document {
	t.Helper()
	doc, err := status.ReadDocument(paths.StatusFile("builder"))
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	return doc
}

// waitForTerminal polls the status file until the document reaches a
// terminal state or the deadline passes.
func waitForTerminal(t *testing.T, paths layout.Layout) *status.Document {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if doc, err := status.ReadDocument(paths.StatusFile("builder")); err == nil && doc.Status.IsTerminal() {
			return doc
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("status never reached a terminal state")
	return nil
}

func TestBudgetExhaustedWritesBlocker(t *testing.T) {
	stateDir := t.TempDir()
	cfg := testConfig(t, stateDir)
	cfg.Run.MaxRestarts = 3
	cfg.Test.Command = passCommand(1, 4) // 20%, below target

	paths := layout.New(stateDir)
	if err := paths.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	if err := counter.NewStore(paths).Save("builder", 3); err != nil {
		t.Fatal(err)
	}

	s, err := New(cfg, t.TempDir(), nil, logging.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	doc := waitForTerminal(t, paths)
	if doc.Status != status.StateFailed {
		t.Errorf("status = %s, want %s", doc.Status, status.StateFailed)
	}
	if !doc.ExperimentComplete {
		t.Error("ExperimentComplete not set")
	}

	if _, err := os.Stat(paths.BlockerFile("builder")); err != nil {
		t.Errorf("blocker sentinel missing: %v", err)
	}
	if _, err := os.Stat(paths.HandoffFile("builder")); !os.IsNotExist(err) {
		t.Error("completion sentinel must not exist when target is missed")
	}

	// Counter must not grow past the budget.
	if got := counter.NewStore(paths).Load("builder"); got != 3 {
		t.Errorf("counter = %d, want 3", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestBudgetExhaustedWithTargetMetWritesCompletion(t *testing.T) {
	stateDir := t.TempDir()
	cfg := testConfig(t, stateDir)
	cfg.Run.MaxRestarts = 3
	cfg.Test.Command = passCommand(9, 0) // 100%

	paths := layout.New(stateDir)
	if err := paths.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	if err := counter.NewStore(paths).Save("builder", 3); err != nil {
		t.Fatal(err)
	}

	s, err := New(cfg, t.TempDir(), nil, logging.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	doc := waitForTerminal(t, paths)
	if doc.Status != status.StateCompleted {
		t.Errorf("status = %s, want %s", doc.Status, status.StateCompleted)
	}
	if _, err := os.Stat(paths.HandoffFile("builder")); err != nil {
		t.Errorf("completion sentinel missing: %v", err)
	}

	cancel()
	<-done
}

func TestShortCircuitWhenTargetAlreadyMet(t *testing.T) {
	stateDir := t.TempDir()
	cfg := testConfig(t, stateDir)
	cfg.Test.Command = passCommand(9, 0) // 100% on the pre-invocation run
	// A backend that cannot exist proves invocation is skipped.
	cfg.Backend.Command = "/nonexistent/agent-cli"

	paths := layout.New(stateDir)

	s, err := New(cfg, t.TempDir(), nil, logging.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	doc := waitForTerminal(t, paths)
	if doc.Status != status.StateCompleted {
		t.Errorf("status = %s, want %s", doc.Status, status.StateCompleted)
	}
	if doc.RestartCycle != 1 {
		t.Errorf("RestartCycle = %d, want 1", doc.RestartCycle)
	}
	if got := counter.NewStore(paths).Load("builder"); got != 1 {
		t.Errorf("counter = %d, want 1", got)
	}
	if _, err := os.Stat(paths.HandoffFile("builder")); err != nil {
		t.Errorf("completion sentinel missing: %v", err)
	}

	cancel()
	<-done
}

func TestSingleCycleInvokesAgentAndExits(t *testing.T) {
	stateDir := t.TempDir()
	cfg := testConfig(t, stateDir)
	cfg.Run.Once = true
	cfg.Run.TargetPassRate = 100
	cfg.Test.Command = passCommand(1, 1) // 50%, below target

	paths := layout.New(stateDir)

	s, err := New(cfg, t.TempDir(), nil, logging.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	doc := readDoc(t, paths)
	if doc.Status != status.StateStopped {
		t.Errorf("status = %s, want %s", doc.Status, status.StateStopped)
	}
	if doc.RestartCycle != 1 {
		t.Errorf("RestartCycle = %d, want 1", doc.RestartCycle)
	}
	if doc.LastTool != "Edit" {
		t.Errorf("LastTool = %q, want Edit from classified output", doc.LastTool)
	}
	if len(doc.FilesModified) == 0 || doc.FilesModified[0] != "src/App.tsx" {
		t.Errorf("FilesModified = %v", doc.FilesModified)
	}
	if doc.WorkSummary == nil || !strings.Contains(*doc.WorkSummary, "cycle 1") {
		t.Errorf("WorkSummary = %v", doc.WorkSummary)
	}
	if got := counter.NewStore(paths).Load("builder"); got != 1 {
		t.Errorf("counter = %d, want 1", got)
	}

	// A second single-cycle run continues the counter from disk.
	s2, err := New(cfg, t.TempDir(), nil, logging.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s2.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := counter.NewStore(paths).Load("builder"); got != 2 {
		t.Errorf("counter after second run = %d, want 2", got)
	}
	if doc := readDoc(t, paths); doc.RestartCycle != 2 {
		t.Errorf("RestartCycle after second run = %d, want 2", doc.RestartCycle)
	}
}

func TestFeedbackConsumedIntoProgressLog(t *testing.T) {
	stateDir := t.TempDir()
	cfg := testConfig(t, stateDir)
	cfg.Run.Once = true
	cfg.Run.TargetPassRate = 100
	cfg.Test.Command = passCommand(1, 1)

	paths := layout.New(stateDir)
	if err := paths.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	feedback := "Please use the shared theme tokens.\n"
	if err := os.WriteFile(paths.FeedbackFile("builder"), []byte(feedback), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := New(cfg, t.TempDir(), nil, logging.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(paths.ProgressFile("builder"))
	if err != nil {
		t.Fatalf("read progress log: %v", err)
	}
	if !strings.Contains(string(data), "shared theme tokens") {
		t.Error("feedback content not folded into progress log")
	}

	// The feedback file is left in place for its author.
	if _, err := os.Stat(paths.FeedbackFile("builder")); err != nil {
		t.Errorf("feedback file removed: %v", err)
	}
}

func TestNewRequiresAgentName(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	if _, err := New(cfg, t.TempDir(), nil, logging.NopLogger()); err == nil {
		t.Error("expected error for missing agent name")
	}
}

func TestManifestOverrides(t *testing.T) {
	stateDir := t.TempDir()
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "agents.yaml")
	content := `
agents:
  - name: schema
  - name: builder
    depends_on: [schema]
    test_command: "echo 'Tests: 0 failed, 5 passed'"
    target_pass_rate: 90
`
	if err := os.WriteFile(manifestPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, stateDir)
	cfg.Agent.Manifest = manifestPath

	s, err := New(cfg, dir, nil, logging.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(s.deps) != 1 || s.deps[0] != "schema" {
		t.Errorf("deps = %v, want [schema]", s.deps)
	}
	if s.target != 90 {
		t.Errorf("target = %d, want 90", s.target)
	}
}

func TestManifestUnknownAgent(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "agents.yaml")
	if err := os.WriteFile(manifestPath, []byte("agents:\n  - name: other\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, t.TempDir())
	cfg.Agent.Manifest = manifestPath
	if _, err := New(cfg, dir, nil, logging.NopLogger()); err == nil {
		t.Error("expected error for agent missing from manifest")
	}
}

func TestSentinelNotOverwritten(t *testing.T) {
	paths := layout.New(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	original := "# builder: complete\noriginal content\n"
	if err := os.WriteFile(paths.HandoffFile("builder"), []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := WriteCompletionSentinel(paths, Outcome{Agent: "builder"}); err != nil {
		t.Fatalf("WriteCompletionSentinel: %v", err)
	}

	data, err := os.ReadFile(paths.HandoffFile("builder"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != original {
		t.Error("existing sentinel was overwritten")
	}
}
