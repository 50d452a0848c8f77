// Package testrun executes the external test command and derives pass/fail
// metrics from its free-text output. A non-zero exit from the test command
// is a normal outcome, not a runner error.
package testrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/andrewkhoh/farmhand/internal/config"
	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/logging"
)

// Result holds the metrics of one test cycle. It is recomputed fresh each
// cycle and folded into the status document; no history is kept here.
type Result struct {
	Pass     int
	Fail     int
	Total    int
	PassRate int // floor(pass * 100 / total), 0 when total is 0
	ExitCode int
	Duration time.Duration
}

// Summary returns a one-line human-readable form for prompts and logs.
func (r Result) Summary() string {
	return fmt.Sprintf("%d passed, %d failed (%d%% pass rate)", r.Pass, r.Fail, r.PassRate)
}

// Runner executes the configured test command and persists its raw output.
type Runner struct {
	paths     layout.Layout
	agent     string
	command   string
	workspace string
	testType  string
	parser    SummaryParser
	logger    *logging.Logger
}

// NewRunner creates a Runner for the given agent. A nil parser selects the
// default jest-style summary parser.
func NewRunner(paths layout.Layout, agent string, cfg config.TestConfig, parser SummaryParser, logger *logging.Logger) *Runner {
	if parser == nil {
		parser = JestSummaryParser{}
	}
	return &Runner{
		paths:     paths,
		agent:     agent,
		command:   cfg.Command,
		workspace: cfg.Workspace,
		testType:  cfg.Type,
		parser:    parser,
		logger:    logger,
	}
}

// Run executes the test command through the shell, capturing combined
// stdout and stderr. The captured output is written (full overwrite) to the
// agent's results file and parsed into a Result. The only error conditions
// are failures to start the shell or persist the output; the test command
// itself failing is reflected in Result.ExitCode.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.logger.Info("running tests", "type", r.testType, "command", r.command)

	start := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", r.command)
	cmd.Dir = r.workspace

	output, err := cmd.CombinedOutput()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// The shell itself could not be started.
			return Result{}, fmt.Errorf("failed to run test command: %w", err)
		}
	}

	if err := r.persistOutput(output); err != nil {
		r.logger.Warn("failed to persist test output", "error", err)
	}

	pass, fail := r.parser.Parse(string(output))
	result := Result{
		Pass:     pass,
		Fail:     fail,
		Total:    pass + fail,
		PassRate: passRate(pass, pass+fail),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}

	r.logger.Info("test cycle complete",
		"pass", result.Pass,
		"fail", result.Fail,
		"pass_rate", result.PassRate,
		"exit_code", result.ExitCode,
		"duration", result.Duration.Round(time.Millisecond).String())

	return result, nil
}

// ResultsTail returns the last n lines of the persisted test output, for
// inclusion in the agent prompt. Returns "" when the file is missing or n
// is not positive.
func (r *Runner) ResultsTail(n int) string {
	if n <= 0 {
		return ""
	}
	data, err := os.ReadFile(r.paths.ResultsFile(r.agent))
	if err != nil {
		return ""
	}
	return TailLines(string(data), n)
}

func (r *Runner) persistOutput(output []byte) error {
	path := r.paths.ResultsFile(r.agent)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, output, 0644)
}

func passRate(pass, total int) int {
	if total <= 0 {
		return 0
	}
	return pass * 100 / total
}
