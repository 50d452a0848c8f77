// Package supervisor drives the restart/convergence loop for one agent:
// budget check, dependency gate, agent invocation, test cycle, and the
// terminal sentinel decision. One supervisor process owns exactly one
// agent identity; sibling agents run their own process against the same
// state directory.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/andrewkhoh/farmhand/internal/agent"
	"github.com/andrewkhoh/farmhand/internal/classify"
	"github.com/andrewkhoh/farmhand/internal/config"
	"github.com/andrewkhoh/farmhand/internal/counter"
	"github.com/andrewkhoh/farmhand/internal/event"
	"github.com/andrewkhoh/farmhand/internal/gate"
	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/logging"
	"github.com/andrewkhoh/farmhand/internal/manifest"
	"github.com/andrewkhoh/farmhand/internal/progress"
	"github.com/andrewkhoh/farmhand/internal/status"
	"github.com/andrewkhoh/farmhand/internal/testrun"
)

// Phase labels surfaced through the status document while a cycle runs.
const (
	phaseStarting     = "starting"
	phaseTesting      = "testing"
	phaseDependencies = "waiting_dependencies"
	phaseAuth         = "checking_auth"
	phaseWorking      = "working"
	phaseFinalizing   = "finalizing"
	phaseIdle         = "idle"
)

// Supervisor owns the convergence loop for one agent.
type Supervisor struct {
	cfg        *config.Config
	agent      string
	deps       []string
	promptFile string
	target     int

	paths      layout.Layout
	counters   *counter.Store
	pub        *status.Publisher
	gate       *gate.Gate
	runner     *testrun.Runner
	invoker    *agent.Invoker
	classifier *classify.Classifier
	progress   *progress.Log
	bus        *event.Bus
	logger     *logging.Logger
	stdout     io.Writer
}

// New wires a Supervisor from configuration. Manifest entries, when
// configured, override the agent's dependencies, prompt file, test command
// and pass-rate target.
func New(cfg *config.Config, baseDir string, stdout io.Writer, logger *logging.Logger) (*Supervisor, error) {
	if cfg.Agent.Name == "" {
		return nil, fmt.Errorf("agent name is required (set agent.name or AGENT_NAME)")
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	name := cfg.Agent.Name
	deps := cfg.Agent.DependsOn
	promptFile := cfg.Agent.PromptFile
	target := cfg.Run.TargetPassRate
	testCfg := cfg.Test

	if cfg.Agent.Manifest != "" {
		m, err := manifest.Load(cfg.Agent.Manifest)
		if err != nil {
			return nil, err
		}
		entry, ok := m.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("agent %q not found in manifest %s", name, cfg.Agent.Manifest)
		}
		if len(entry.DependsOn) > 0 {
			deps = entry.DependsOn
		}
		if entry.PromptFile != "" {
			promptFile = entry.PromptFile
		}
		if entry.TestCommand != "" {
			testCfg.Command = entry.TestCommand
		}
		if entry.TargetPassRate > 0 {
			target = entry.TargetPassRate
		}
	}

	paths := layout.New(cfg.Paths.ResolveStateDir(baseDir))
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	log := logger.WithAgent(name)
	pub := status.NewPublisher(paths, name, log)
	prog, err := progress.Open(paths, name)
	if err != nil {
		return nil, err
	}

	backend, err := agent.NewBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus()
	return &Supervisor{
		cfg:        cfg,
		agent:      name,
		deps:       deps,
		promptFile: promptFile,
		target:     target,
		paths:      paths,
		counters:   counter.NewStore(paths),
		pub:        pub,
		gate:       gate.New(paths, name, cfg.Gate, log, bus),
		runner:     testrun.NewRunner(paths, name, testCfg, nil, log),
		invoker:    agent.NewInvoker(backend, pub, cfg.Backend.AuthPollInterval(), log),
		classifier: classify.New(paths, name, nil, pub, prog, bus, stdout, log),
		progress:   prog,
		bus:        bus,
		logger:     log,
		stdout:     stdout,
	}, nil
}

// Run executes the convergence loop until a terminal outcome or context
// cancellation. With run.once set, it returns after a single cycle so an
// external restart policy can drive the next one; otherwise cycles loop
// in-process. On a terminal outcome it idles, heartbeat only, until the
// context is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	count := s.counters.Load(s.agent)
	s.publishInitial(count)

	hb := status.NewHeartbeat(s.pub, s.cfg.Run.HeartbeatInterval(), s.logger)
	hb.Start(ctx)
	defer s.shutdown(hb)

	s.progress.Heading("supervisor start, counter=%d, budget=%d", count, s.cfg.Run.MaxRestarts)

	for {
		terminal, err := s.cycle(ctx)
		if err != nil {
			return err
		}
		if terminal {
			return s.idle(ctx)
		}
		if s.cfg.Run.Once {
			s.logger.Info("single-cycle mode, exiting for external restart")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// cycle runs one pass of the state machine. It returns true when the
// outcome is terminal (budget exhausted or target met).
func (s *Supervisor) cycle(ctx context.Context) (bool, error) {
	count := s.counters.Load(s.agent)

	if count >= s.cfg.Run.MaxRestarts {
		return true, s.finalCycle(ctx, count)
	}

	cycleNum, err := s.counters.Bump(s.agent)
	if err != nil {
		// A counter that cannot be persisted would make the budget
		// unenforceable across restarts; this is a startup-class failure.
		return false, fmt.Errorf("failed to persist restart counter: %w", err)
	}

	s.logger.WithCycle(cycleNum).Info("cycle starting", "budget", s.cfg.Run.MaxRestarts)
	s.bus.Publish(event.NewCycleStartedEvent(s.agent, cycleNum, s.cfg.Run.MaxRestarts))
	s.progress.Heading("cycle %d of %d", cycleNum, s.cfg.Run.MaxRestarts)

	s.pub.Patch(func(doc *status.Document) {
		doc.Status = status.StateActive
		doc.Phase = phaseStarting
		doc.RestartCycle = cycleNum
		doc.MaxRestarts = s.cfg.Run.MaxRestarts
		doc.TargetPassRate = s.target
	})

	feedback := s.consumeFeedback()

	// Pre-invocation test run gives the agent current-state context and
	// catches the case where the target is already met.
	s.setPhase(phaseTesting)
	preResult, err := s.runTests(ctx)
	if err != nil {
		return false, err
	}
	if preResult.PassRate >= s.target {
		s.logger.Info("target already met before invocation",
			"pass_rate", preResult.PassRate, "target", s.target)
		s.progress.Append("target met before invocation (%s), finishing early", preResult.Summary())
		s.finalize(cycleNum, preResult)
		return true, nil
	}

	s.setPhase(phaseDependencies)
	if err := s.gate.Await(ctx, s.deps); err != nil {
		return false, err
	}

	s.setPhase(phaseAuth)
	if err := s.invoker.EnsureAuth(ctx); err != nil {
		return false, err
	}

	s.setPhase(phaseWorking)
	s.pub.Patch(func(doc *status.Document) {
		doc.Status = status.StateActive
	})

	prompt := agent.BuildPrompt(agent.PromptInput{
		Agent:       s.agent,
		Cycle:       cycleNum,
		MaxRestarts: s.cfg.Run.MaxRestarts,
		TestType:    s.cfg.Test.Type,
		TestSummary: preResult.Summary(),
		ResultsTail: s.runner.ResultsTail(s.cfg.Test.TailLines),
		TaskPrompt:  s.loadTaskPrompt(),
		Feedback:    feedback,
	})

	exitCode, err := s.invoker.Invoke(ctx, prompt, s.classifier)
	if err != nil {
		return false, err
	}
	if exitCode != 0 {
		// Exit code is data; note it and move on to the post-run tests.
		s.progress.Append("agent exited with code %d", exitCode)
		s.pub.Patch(func(doc *status.Document) {
			doc.RecordError(fmt.Sprintf("agent exited with code %d", exitCode))
		})
	}

	s.setPhase(phaseTesting)
	postResult, err := s.runTests(ctx)
	if err != nil {
		return false, err
	}

	summary := fmt.Sprintf("cycle %d: %s", cycleNum, postResult.Summary())
	s.pub.Patch(func(doc *status.Document) {
		doc.WorkSummary = &summary
	})
	s.progress.Append("%s", summary)
	s.bus.Publish(event.NewCycleCompletedEvent(s.agent, cycleNum, postResult.PassRate))
	s.logger.WithCycle(cycleNum).Info("cycle complete", "pass_rate", postResult.PassRate)

	if postResult.PassRate >= s.target {
		s.finalize(cycleNum, postResult)
		return true, nil
	}
	return false, nil
}

// finalCycle handles budget exhaustion: one last test run to measure where
// things stand, then a terminal document and the appropriate sentinel.
func (s *Supervisor) finalCycle(ctx context.Context, count int) error {
	s.logger.Info("restart budget exhausted", "counter", count, "budget", s.cfg.Run.MaxRestarts)
	s.progress.Heading("budget exhausted after %d cycles, final verification", count)

	s.pub.Patch(func(doc *status.Document) {
		doc.Status = status.StateActive
		doc.Phase = phaseFinalizing
		doc.RestartCycle = count
		doc.MaxRestarts = s.cfg.Run.MaxRestarts
		doc.TargetPassRate = s.target
	})

	result, err := s.runTests(ctx)
	if err != nil {
		return err
	}
	s.finalize(count, result)
	return nil
}

// finalize writes the terminal status document and the completion or
// blocker sentinel. After this, only heartbeats touch the document.
func (s *Supervisor) finalize(cycles int, result testrun.Result) {
	met := result.PassRate >= s.target
	outcome := Outcome{
		Agent:          s.agent,
		Cycles:         cycles,
		MaxRestarts:    s.cfg.Run.MaxRestarts,
		Result:         result,
		TargetPassRate: s.target,
	}

	summary := fmt.Sprintf("finished after %d cycles: %s", cycles, result.Summary())
	s.pub.Patch(func(doc *status.Document) {
		if met {
			doc.Status = status.StateCompleted
		} else {
			doc.Status = status.StateFailed
		}
		doc.Phase = phaseIdle
		doc.ExperimentComplete = true
		doc.WorkSummary = &summary
		outcome.FilesModified = doc.FilesModified
	})

	var (
		path string
		err  error
	)
	if met {
		path, err = WriteCompletionSentinel(s.paths, outcome)
		s.progress.Append("target met (%s), completion sentinel written", result.Summary())
	} else {
		path, err = WriteBlockerSentinel(s.paths, outcome)
		s.progress.Append("target missed (%s), blocker sentinel written", result.Summary())
	}
	if err != nil {
		s.logger.Error("failed to write sentinel", "error", err)
		return
	}
	s.bus.Publish(event.NewSentinelWrittenEvent(s.agent, path, met))
	s.logger.Info("terminal outcome recorded", "complete", met, "sentinel", path)
}

// idle blocks until cancellation while the heartbeat keeps proving
// liveness. No further task work happens in this state.
func (s *Supervisor) idle(ctx context.Context) error {
	s.logger.Info("entering idle heartbeat loop")
	<-ctx.Done()
	return nil
}

func (s *Supervisor) runTests(ctx context.Context) (testrun.Result, error) {
	result, err := s.runner.Run(ctx)
	if err != nil {
		return result, err
	}
	s.pub.Patch(func(doc *status.Document) {
		doc.TestsPass = result.Pass
		doc.TestsFail = result.Fail
		doc.TestPassRate = result.PassRate
	})
	return result, nil
}

func (s *Supervisor) setPhase(phase string) {
	s.logger.WithPhase(phase).Debug("phase change")
	s.pub.Patch(func(doc *status.Document) {
		doc.Phase = phase
	})
}

// publishInitial writes the initializing document so dashboards see the
// agent the moment the process starts.
func (s *Supervisor) publishInitial(count int) {
	doc := status.NewDocument(s.agent)
	doc.RestartCycle = count + 1
	doc.MaxRestarts = s.cfg.Run.MaxRestarts
	doc.TargetPassRate = s.target
	s.pub.Write(doc)
}

// consumeFeedback reads the externally-authored improvements file, folding
// it into the progress log. The file is left in place for its author to
// amend or remove.
func (s *Supervisor) consumeFeedback() string {
	data, err := os.ReadFile(s.paths.FeedbackFile(s.agent))
	if err != nil {
		return ""
	}
	text := string(data)
	s.progress.Append("feedback file consumed (%d bytes)", len(data))
	s.progress.AppendRaw(text)
	s.logger.Info("feedback file consumed", "bytes", len(data))
	return text
}

func (s *Supervisor) loadTaskPrompt() string {
	if s.promptFile == "" {
		return ""
	}
	data, err := os.ReadFile(s.promptFile)
	if err != nil {
		s.logger.Warn("failed to read task prompt", "path", s.promptFile, "error", err)
		return ""
	}
	return string(data)
}

// shutdown joins the heartbeat and records the stop, on every exit path.
// Terminal states are preserved; stopped only replaces a live status.
func (s *Supervisor) shutdown(hb *status.Heartbeat) {
	hb.Stop()
	s.pub.Patch(func(doc *status.Document) {
		if !doc.Status.IsTerminal() {
			doc.Status = status.StateStopped
		}
	})
	s.logger.Info("supervisor stopped")
}
