package agent

import (
	"fmt"
	"strings"
)

// PromptInput carries everything folded into the composed prompt for one
// invocation. Empty optional fields drop their sections entirely.
type PromptInput struct {
	Agent       string
	Cycle       int
	MaxRestarts int
	TestType    string
	TestSummary string // One-line pass/fail summary of the latest cycle
	ResultsTail string // Trailing lines of the raw test output
	TaskPrompt  string // Agent-specific task description
	Feedback    string // Externally-authored improvement notes, if any
}

// BuildPrompt composes the final prompt text: role preamble, cycle context,
// test state, then the task itself. Section order matters; the task prompt
// comes last so it reads as the current instruction.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the %q agent, one worker in a multi-agent build. ", in.Agent)
	b.WriteString("Work autonomously toward making the test suite pass. ")
	b.WriteString("Fix failing tests before adding anything new.\n\n")

	fmt.Fprintf(&b, "This is improvement cycle %d of %d.\n", in.Cycle, in.MaxRestarts)

	if in.TestSummary != "" {
		fmt.Fprintf(&b, "\nLatest %s test results: %s\n", in.TestType, in.TestSummary)
	}

	if in.ResultsTail != "" {
		b.WriteString("\nRecent test output:\n```\n")
		b.WriteString(in.ResultsTail)
		b.WriteString("\n```\n")
	}

	if in.Feedback != "" {
		b.WriteString("\nReviewer feedback to address this cycle:\n")
		b.WriteString(strings.TrimSpace(in.Feedback))
		b.WriteString("\n")
	}

	if in.TaskPrompt != "" {
		b.WriteString("\nYour task:\n")
		b.WriteString(strings.TrimSpace(in.TaskPrompt))
		b.WriteString("\n")
	}

	return b.String()
}
