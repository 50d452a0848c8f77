package agent

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"time"

	"github.com/andrewkhoh/farmhand/internal/classify"
	"github.com/andrewkhoh/farmhand/internal/logging"
	"github.com/andrewkhoh/farmhand/internal/status"
)

// Invoker runs the agent CLI non-interactively and streams its combined
// output through a classifier. A non-zero exit from the CLI is data, not
// an error; the only error conditions are start failures and cancellation.
type Invoker struct {
	backend  Backend
	pub      *status.Publisher
	authPoll time.Duration
	logger   *logging.Logger
}

// NewInvoker creates an Invoker.
func NewInvoker(backend Backend, pub *status.Publisher, authPoll time.Duration, logger *logging.Logger) *Invoker {
	return &Invoker{
		backend:  backend,
		pub:      pub,
		authPoll: authPoll,
		logger:   logger,
	}
}

// EnsureAuth probes the backend CLI and, if authentication is missing,
// polls until it appears. The wait is unbounded; only context cancellation
// breaks it. Status moves to waiting_for_auth while blocked and to
// authenticated once the probe succeeds.
func (i *Invoker) EnsureAuth(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		output, err := i.probe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A missing binary or probe failure is treated like missing
			// auth: report it and keep polling rather than crash.
			i.logger.Warn("auth probe failed", "error", err, "attempt", attempt)
		} else if !i.backend.NeedsAuth(output) {
			i.pub.Patch(func(doc *status.Document) {
				doc.Status = status.StateAuthenticated
			})
			i.logger.Info("backend authenticated", "backend", i.backend.Name())
			return nil
		}

		if attempt == 1 {
			i.logger.Info("waiting for backend authentication",
				"backend", i.backend.Name(), "poll_interval", i.authPoll.String())
		}
		i.pub.Patch(func(doc *status.Document) {
			doc.Status = status.StateWaitingForAuth
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(i.authPoll):
		}
	}
}

func (i *Invoker) probe(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, i.backend.Command(), i.backend.ProbeArgs()...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// A failing probe still produced output worth matching.
			return string(output), nil
		}
		return "", err
	}
	return string(output), nil
}

// Invoke runs the backend with the composed prompt, streaming combined
// stdout and stderr through the classifier as it arrives. It returns the
// CLI's exit code; err is non-nil only when the process could not be
// started or the context was cancelled.
func (i *Invoker) Invoke(ctx context.Context, prompt string, classifier *classify.Classifier) (int, error) {
	cmd := exec.CommandContext(ctx, i.backend.Command(), i.backend.InvokeArgs(prompt)...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	consumed := make(chan error, 1)
	go func() {
		consumed <- classifier.Consume(pr)
	}()

	i.logger.Info("invoking backend", "backend", i.backend.Name())
	start := time.Now()

	if err := cmd.Start(); err != nil {
		pw.Close()
		<-consumed
		return 0, err
	}

	waitErr := cmd.Wait()
	pw.Close()
	if err := <-consumed; err != nil {
		i.logger.Warn("output stream error", "error", err)
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return 0, waitErr
		}
	}
	if ctx.Err() != nil {
		return exitCode, ctx.Err()
	}

	i.logger.Info("backend finished",
		"exit_code", exitCode,
		"duration", time.Since(start).Round(time.Second).String())
	return exitCode, nil
}
