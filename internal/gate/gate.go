// Package gate blocks an agent's main work until the completion sentinels
// of its upstream dependencies exist. Sentinels are ordinary files in the
// shared handoffs directory; detection combines periodic polling with
// filesystem notification so waiters wake promptly when an upstream agent
// finishes.
package gate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/andrewkhoh/farmhand/internal/config"
	"github.com/andrewkhoh/farmhand/internal/event"
	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/logging"
)

// ErrTimeout is returned when a dependency wait exceeds the configured bound.
// It is distinguishable from context cancellation so callers can report
// "dependency never arrived" separately from "supervisor shutting down".
var ErrTimeout = fmt.Errorf("dependency wait timed out")

// Gate waits for upstream completion sentinels.
type Gate struct {
	paths  layout.Layout
	agent  string
	poll   time.Duration
	bound  time.Duration // 0 means wait forever
	watch  bool
	logger *logging.Logger
	bus    *event.Bus
}

// New creates a Gate for the given agent.
func New(paths layout.Layout, agent string, cfg config.GateConfig, logger *logging.Logger, bus *event.Bus) *Gate {
	return &Gate{
		paths:  paths,
		agent:  agent,
		poll:   cfg.PollInterval(),
		bound:  cfg.Timeout(),
		watch:  cfg.Watch,
		logger: logger,
		bus:    bus,
	}
}

// Await blocks until every dependency's completion sentinel exists, in the
// order given. It returns nil immediately when deps is empty. It returns
// ctx.Err() on cancellation and an error wrapping ErrTimeout when the
// configured bound elapses for a dependency.
func (g *Gate) Await(ctx context.Context, deps []string) error {
	if len(deps) == 0 {
		return nil
	}

	// The handoffs directory must exist before a watcher can attach to it.
	if err := os.MkdirAll(g.paths.HandoffsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create handoffs directory: %w", err)
	}

	var notify <-chan fsnotify.Event
	if g.watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			g.logger.Warn("filesystem watch unavailable, falling back to polling", "error", err)
		} else {
			defer watcher.Close()
			if err := watcher.Add(g.paths.HandoffsDir()); err != nil {
				g.logger.Warn("failed to watch handoffs directory, falling back to polling", "error", err)
			} else {
				notify = watcher.Events
			}
		}
	}

	for _, dep := range deps {
		if err := g.awaitOne(ctx, dep, notify); err != nil {
			return err
		}
	}

	g.logger.Info("all dependencies satisfied", "dependencies", deps)
	return nil
}

func (g *Gate) awaitOne(ctx context.Context, dep string, notify <-chan fsnotify.Event) error {
	sentinel := g.paths.HandoffFile(dep)

	if fileExists(sentinel) {
		g.logger.Debug("dependency already complete", "dependency", dep)
		return nil
	}

	g.logger.Info("waiting for dependency", "dependency", dep, "sentinel", sentinel)

	var deadline <-chan time.Time
	if g.bound > 0 {
		timer := time.NewTimer(g.bound)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline:
			return fmt.Errorf("%w: %s did not complete within %s", ErrTimeout, dep, g.bound)

		case ev, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// Any event in the handoffs directory is cheap to re-check,
			// but match the path to avoid a stat storm on busy roots.
			if filepath.Clean(ev.Name) != filepath.Clean(sentinel) {
				continue
			}
			if fileExists(sentinel) {
				g.logger.Info("dependency complete", "dependency", dep)
				return nil
			}

		case <-ticker.C:
			if g.bus != nil {
				g.bus.Publish(event.NewGateWaitingEvent(g.agent, dep))
			}
			if fileExists(sentinel) {
				g.logger.Info("dependency complete", "dependency", dep)
				return nil
			}
			g.logger.Debug("dependency still pending", "dependency", dep)
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
