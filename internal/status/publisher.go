package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/logging"
)

// Publisher owns the status document for a single agent. Status reporting
// is best-effort: write failures are logged and swallowed so the main cycle
// never aborts over a reporting problem. A missing or corrupt document is
// self-healing - the next Patch recreates a valid default.
type Publisher struct {
	mu     sync.Mutex
	paths  layout.Layout
	agent  string
	logger *logging.Logger
}

// NewPublisher creates a publisher for the given agent.
func NewPublisher(paths layout.Layout, agent string, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Publisher{
		paths:  paths,
		agent:  agent,
		logger: logger.WithAgent(agent),
	}
}

// Write replaces the status document wholesale. lastUpdate is stamped.
func (p *Publisher) Write(doc *Document) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc.LastUpdate = time.Now().UTC()
	p.flush(doc)
}

// Patch applies a mutation to the current document and rewrites it. If the
// document is missing or unreadable a default one is synthesized first, so
// Patch always succeeds from the caller's point of view.
func (p *Publisher) Patch(mutate func(*Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc := p.readOrDefault()
	mutate(doc)
	doc.LastUpdate = time.Now().UTC()
	p.flush(doc)
}

// Touch refreshes only the heartbeat timestamp. Used by the heartbeat
// emitter to prove liveness independent of task progress.
func (p *Publisher) Touch() {
	p.Patch(func(doc *Document) {
		doc.Heartbeat = time.Now().UTC()
	})
}

// Current returns the document as persisted, or a fresh default if none
// exists. The returned document is a private copy.
func (p *Publisher) Current() *Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readOrDefault()
}

// readOrDefault loads the document from disk, synthesizing a default on any
// failure. The caller must hold the mutex.
func (p *Publisher) readOrDefault() *Document {
	doc, err := ReadDocument(p.paths.StatusFile(p.agent))
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn("status document unreadable, recreating", "error", err)
		}
		return NewDocument(p.agent)
	}
	return doc
}

// flush writes the document via temp-file-then-rename. Failures are logged,
// never propagated. The caller must hold the mutex.
func (p *Publisher) flush(doc *Document) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		p.logger.Warn("failed to marshal status document", "error", err)
		return
	}

	path := p.paths.StatusFile(p.agent)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		p.logger.Warn("failed to create status directory", "error", err)
		return
	}

	if err := atomicWriteFile(path, data, 0644); err != nil {
		p.logger.Warn("failed to write status document", "error", err)
	}
}

// ReadDocument reads and parses a status document from a path.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse status JSON: %w", err)
	}
	if doc.FilesModified == nil {
		doc.FilesModified = []string{}
	}
	if doc.Errors == nil {
		doc.Errors = []string{}
	}
	return &doc, nil
}

// atomicWriteFile writes data to a file atomically by writing to a
// temporary file first, then renaming. This ensures the target file is
// never observed in a partially-written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
