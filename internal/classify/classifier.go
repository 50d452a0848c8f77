package classify

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/andrewkhoh/farmhand/internal/event"
	"github.com/andrewkhoh/farmhand/internal/layout"
	"github.com/andrewkhoh/farmhand/internal/logging"
	"github.com/andrewkhoh/farmhand/internal/progress"
	"github.com/andrewkhoh/farmhand/internal/status"
)

// maxLineSize bounds how long a single output line can be before the
// scanner gives up. Agent CLIs occasionally emit very long JSON lines.
const maxLineSize = 1024 * 1024

// Classifier consumes an agent CLI's output stream line by line. Every
// line is appended to the raw log and echoed to the configured writer;
// lines that match a pattern additionally mutate the status document,
// note the signal in the progress log, and publish an event.
type Classifier struct {
	agent    string
	patterns *PatternSet
	pub      *status.Publisher
	progress *progress.Log
	bus      *event.Bus
	echo     io.Writer
	rawPath  string
	logger   *logging.Logger
}

// New creates a Classifier. A nil patterns argument selects the default
// pattern set; bus and progress may be nil.
func New(paths layout.Layout, agent string, patterns *PatternSet, pub *status.Publisher, prog *progress.Log, bus *event.Bus, echo io.Writer, logger *logging.Logger) *Classifier {
	if patterns == nil {
		patterns = DefaultPatternSet()
	}
	if echo == nil {
		echo = io.Discard
	}
	return &Classifier{
		agent:    agent,
		patterns: patterns,
		pub:      pub,
		progress: prog,
		bus:      bus,
		echo:     echo,
		rawPath:  paths.RawLogFile(agent),
		logger:   logger,
	}
}

// Consume reads r to EOF, processing each line. Classification failures
// never interrupt the stream; the only returned errors are scanner errors
// from the underlying reader.
func (c *Classifier) Consume(r io.Reader) error {
	raw, err := c.openRawLog()
	if err != nil {
		c.logger.Warn("raw log unavailable", "error", err)
	}
	if raw != nil {
		defer raw.Close()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		c.processLine(scanner.Text(), raw)
	}
	return scanner.Err()
}

func (c *Classifier) processLine(line string, raw io.Writer) {
	// Echo first so the container log aggregator sees the line unmodified
	// even if classification panics somewhere downstream.
	fmt.Fprintln(c.echo, line)

	if raw != nil {
		fmt.Fprintf(raw, "[%s] %s\n", time.Now().UTC().Format(time.RFC3339), line)
	}

	match := c.patterns.Classify(line)
	switch match.Kind {
	case KindToolUse:
		c.pub.Patch(func(doc *status.Document) {
			doc.LastTool = match.Detail
		})
		c.note("tool use: %s", match.Detail)
		c.publish(event.NewToolUseEvent(c.agent, match.Detail, line))

	case KindFileModified:
		c.pub.Patch(func(doc *status.Document) {
			doc.RecordFileModified(match.Detail)
		})
		c.note("modified %s", match.Detail)
		c.publish(event.NewFileModifiedEvent(c.agent, match.Detail))

	case KindTestPass:
		c.pub.Patch(func(doc *status.Document) {
			doc.TestsPass++
		})
		c.publish(event.NewTestPassEvent(c.agent, line))

	case KindError:
		c.pub.Patch(func(doc *status.Document) {
			doc.RecordError(StripAnsi(line))
		})
		c.note("error: %s", StripAnsi(line))
		c.publish(event.NewErrorLineEvent(c.agent, line))
	}
}

func (c *Classifier) note(format string, args ...any) {
	if c.progress == nil {
		return
	}
	if err := c.progress.Append(format, args...); err != nil {
		c.logger.Warn("failed to append progress entry", "error", err)
	}
}

func (c *Classifier) publish(e event.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

func (c *Classifier) openRawLog() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(c.rawPath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(c.rawPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}
