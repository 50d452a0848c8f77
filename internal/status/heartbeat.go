package status

import (
	"context"
	"time"

	"github.com/andrewkhoh/farmhand/internal/logging"
)

// Heartbeat periodically refreshes the liveness timestamp in the status
// document, independent of main-task progress. It keeps firing while the
// main task is blocked on the dependency gate or a long external
// invocation.
type Heartbeat struct {
	pub      *Publisher
	interval time.Duration
	logger   *logging.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHeartbeat creates a heartbeat emitter over the given publisher.
func NewHeartbeat(pub *Publisher, interval time.Duration, logger *logging.Logger) *Heartbeat {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Heartbeat{
		pub:      pub,
		interval: interval,
		logger:   logger.WithPhase("heartbeat"),
	}
}

// Start launches the background emitter. It runs until Stop is called or
// the parent context is cancelled. Starting an already-started heartbeat is
// a no-op.
func (h *Heartbeat) Start(ctx context.Context) {
	if h.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.pub.Touch()
				h.logger.Debug("heartbeat refreshed")
			}
		}
	}()
}

// Stop cancels the emitter and waits for the background goroutine to exit.
// Safe to call multiple times and before Start.
func (h *Heartbeat) Stop() {
	if h.done == nil {
		return
	}
	h.cancel()
	<-h.done
	h.done = nil
	h.cancel = nil
}
