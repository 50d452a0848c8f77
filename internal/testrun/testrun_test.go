package testrun

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/andrewkhoh/farmhand/internal/config"
	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/logging"
)

func newTestRunner(t *testing.T, command string) (*Runner, layout.Layout) {
	t.Helper()
	paths := layout.New(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	cfg := config.TestConfig{
		Type:      "unit",
		Command:   command,
		Workspace: t.TempDir(),
		TailLines: 50,
	}
	return NewRunner(paths, "builder", cfg, nil, logging.NopLogger()), paths
}

func TestRunParsesSummary(t *testing.T) {
	r, _ := newTestRunner(t, `echo "Tests: 3 failed, 17 passed, 20 total"`)

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Pass != 17 || result.Fail != 3 || result.Total != 20 {
		t.Errorf("counts = %d/%d/%d, want 17/3/20", result.Pass, result.Fail, result.Total)
	}
	if result.PassRate != 85 {
		t.Errorf("PassRate = %d, want 85", result.PassRate)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
}

func TestRunNoMatchesYieldsZero(t *testing.T) {
	r, _ := newTestRunner(t, `echo "so long and thanks for all the fish"`)

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Pass != 0 || result.Fail != 0 || result.Total != 0 {
		t.Errorf("counts = %d/%d/%d, want all zero", result.Pass, result.Fail, result.Total)
	}
	if result.PassRate != 0 {
		t.Errorf("PassRate = %d, want 0", result.PassRate)
	}
}

func TestRunFailingCommandIsNotAnError(t *testing.T) {
	r, _ := newTestRunner(t, `echo "Tests: 5 failed, 0 passed, 5 total"; exit 1`)

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error for failing test command: %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
	if result.Fail != 5 {
		t.Errorf("Fail = %d, want 5", result.Fail)
	}
}

func TestRunPersistsRawOutput(t *testing.T) {
	r, paths := newTestRunner(t, `echo "first run: 1 passed"`)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(paths.ResultsFile("builder"))
	if err != nil {
		t.Fatalf("read results file: %v", err)
	}
	if !strings.Contains(string(data), "first run") {
		t.Errorf("results file missing output, got %q", data)
	}

	// A second run fully overwrites the file.
	r.command = `echo "second run: 2 passed"`
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err = os.ReadFile(paths.ResultsFile("builder"))
	if err != nil {
		t.Fatalf("read results file: %v", err)
	}
	if strings.Contains(string(data), "first run") {
		t.Error("results file still contains previous run's output")
	}
}

func TestResultsTail(t *testing.T) {
	r, paths := newTestRunner(t, "true")

	content := "line1\nline2\nline3\nline4\n"
	if err := os.WriteFile(paths.ResultsFile("builder"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if got := r.ResultsTail(2); got != "line3\nline4" {
		t.Errorf("ResultsTail(2) = %q", got)
	}
	if got := r.ResultsTail(10); got != "line1\nline2\nline3\nline4" {
		t.Errorf("ResultsTail(10) = %q", got)
	}
	if got := r.ResultsTail(0); got != "" {
		t.Errorf("ResultsTail(0) = %q", got)
	}
}

func TestJestSummaryParser(t *testing.T) {
	tests := []struct {
		name   string
		output string
		pass   int
		fail   int
	}{
		{
			name:   "jest summary line",
			output: "Tests: 3 failed, 17 passed, 20 total",
			pass:   17,
			fail:   3,
		},
		{
			name:   "pass only",
			output: "Tests: 12 passed, 12 total",
			pass:   12,
			fail:   0,
		},
		{
			name:   "no summary",
			output: "error: cannot find module 'react'",
			pass:   0,
			fail:   0,
		},
		{
			name:   "empty output",
			output: "",
			pass:   0,
			fail:   0,
		},
		{
			name:   "last match wins",
			output: "Suite A: 4 passed\nSuite B: 6 passed\nTests: 10 passed, 10 total",
			pass:   10,
			fail:   0,
		},
		{
			name:   "multiline with noise",
			output: "PASS src/app.test.ts\nFAIL src/cart.test.ts\nTests: 2 failed, 8 passed, 10 total\nSnapshots: 0 total",
			pass:   8,
			fail:   2,
		},
	}

	parser := JestSummaryParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass, fail := parser.Parse(tt.output)
			if pass != tt.pass || fail != tt.fail {
				t.Errorf("Parse() = %d/%d, want %d/%d", pass, fail, tt.pass, tt.fail)
			}
		})
	}
}

func TestPassRateFloor(t *testing.T) {
	tests := []struct {
		pass, total, want int
	}{
		{17, 20, 85},
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 66},
		{10, 10, 100},
		{0, 5, 0},
	}
	for _, tt := range tests {
		if got := passRate(tt.pass, tt.total); got != tt.want {
			t.Errorf("passRate(%d, %d) = %d, want %d", tt.pass, tt.total, got, tt.want)
		}
	}
}

func TestTailLines(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"empty", "", 5, ""},
		{"fewer lines than n", "a\nb", 5, "a\nb"},
		{"exact", "a\nb\nc", 3, "a\nb\nc"},
		{"truncates", "a\nb\nc\nd", 2, "c\nd"},
		{"trailing newline", "a\nb\nc\n", 2, "b\nc"},
		{"zero", "a\nb", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TailLines(tt.text, tt.n); got != tt.want {
				t.Errorf("TailLines(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
			}
		})
	}
}
