// Package progress maintains the append-only human-readable log that
// operators tail to follow an agent's work. Entries are markdown bullets
// with UTC timestamps; the file survives restarts and is never truncated.
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/andrewkhoh/farmhand/internal/layout"
)

// Log appends timestamped entries to an agent's progress file.
// Safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	path string
}

// Open creates a Log for the given agent, ensuring the parent directory
// exists. The file itself is created lazily on first append.
func Open(paths layout.Layout, agent string) (*Log, error) {
	path := paths.ProgressFile(agent)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory: %w", err)
	}
	return &Log{path: path}, nil
}

// Append writes one timestamped bullet entry. Errors are returned but
// callers typically log and continue; progress reporting is best-effort.
func (l *Log) Append(format string, args ...any) error {
	entry := fmt.Sprintf("- [%s] %s\n",
		time.Now().UTC().Format(time.RFC3339),
		fmt.Sprintf(format, args...))
	return l.write(entry)
}

// Heading writes a markdown heading, used at cycle boundaries.
func (l *Log) Heading(format string, args ...any) error {
	entry := fmt.Sprintf("\n## %s (%s)\n\n",
		fmt.Sprintf(format, args...),
		time.Now().UTC().Format(time.RFC3339))
	return l.write(entry)
}

// AppendRaw writes text verbatim, used to fold in externally-authored
// content such as feedback files.
func (l *Log) AppendRaw(text string) error {
	return l.write(text)
}

// Path returns the underlying file path.
func (l *Log) Path() string {
	return l.path
}

// write opens, appends and closes per call so a crash never leaves the
// file handle dangling and concurrent processes interleave whole entries.
func (l *Log) write(entry string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(entry)
	return err
}
