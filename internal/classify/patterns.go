// Package classify turns the agent CLI's free-form output lines into
// structured signals for the status document and progress log. Matching is
// best-effort keyword and substring detection, not a grammar; lines that
// match nothing pass through unclassified.
package classify

import "regexp"

// Kind labels the classification of a single output line.
type Kind int

const (
	// KindUnclassified means no pattern matched. The line still flows to
	// the raw log and stdout, it just triggers no status mutation.
	KindUnclassified Kind = iota

	// KindToolUse means the line announces a tool invocation.
	KindToolUse

	// KindFileModified means the line reports a file write, edit or create.
	KindFileModified

	// KindTestPass means the line reports passing tests.
	KindTestPass

	// KindError means the line reports an error.
	KindError
)

// String returns a human-readable label for the kind.
func (k Kind) String() string {
	switch k {
	case KindToolUse:
		return "tool_use"
	case KindFileModified:
		return "file_modified"
	case KindTestPass:
		return "test_pass"
	case KindError:
		return "error"
	default:
		return "unclassified"
	}
}

// Pattern categories for line classification. Each pattern may carry one
// capture group: the extracted detail (tool name or file name).
var (
	// ToolUsePatterns detect tool invocation markers in agent output.
	ToolUsePatterns = []string{
		`^[●⏺]\s*(\w+)\(`,              // ● Edit(src/app.ts)
		`(?i)^using tool:?\s*(\S+)`,     // Using tool: Bash
		`(?i)^\s*tool(?: use)?:\s*(\S+)`, // Tool: Read
	}

	// FileModifiedPatterns detect file write/edit/create reports.
	FileModifiedPatterns = []string{
		`(?i)^\s*(?:wrote|created|updated|modified)\s+(?:file\s+)?([\w./-]+\.\w+)`,
		`(?i)file (?:modified|updated|created):?\s*([\w./-]+)`,
		`(?i)^\s*[+M]\s+([\w./-]+\.\w+)\s*$`, // diff-style status lines
	}

	// TestPassPatterns detect passing-test signals.
	TestPassPatterns = []string{
		`(?i)\d+\s+(?:tests? )?pass(?:ed|ing)`,
		`^\s*(?:✓|✔)`,
		`^\s*PASS\b`,
		`(?i)all tests pass`,
	}

	// ErrorPatterns detect error reports. Scoped to line-leading markers so
	// prose that merely mentions the word "error" is not flagged.
	ErrorPatterns = []string{
		`(?i)^\s*(?:error|fatal|panic)[:\s]`,
		`^\s*(?:✗|✖)`,
		`^\s*FAIL\b`,
		`(?i)command failed`,
		`(?i)unhandled (?:exception|rejection)`,
	}
)

// Match is the result of classifying one line.
type Match struct {
	Kind   Kind
	Detail string // Tool or file name when the pattern captured one
}

// PatternSet holds compiled classification patterns. Patterns are injected
// at construction so the matching strategy can be swapped per backend
// without touching the classifier.
type PatternSet struct {
	toolUse      []*regexp.Regexp
	fileModified []*regexp.Regexp
	testPass     []*regexp.Regexp
	errors       []*regexp.Regexp
}

// DefaultPatternSet compiles the package-level pattern categories.
func DefaultPatternSet() *PatternSet {
	return NewPatternSet(ToolUsePatterns, FileModifiedPatterns, TestPassPatterns, ErrorPatterns)
}

// NewPatternSet compiles the given pattern categories.
// Invalid patterns are silently skipped.
func NewPatternSet(toolUse, fileModified, testPass, errors []string) *PatternSet {
	return &PatternSet{
		toolUse:      compilePatterns(toolUse),
		fileModified: compilePatterns(fileModified),
		testPass:     compilePatterns(testPass),
		errors:       compilePatterns(errors),
	}
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}

// Classify matches a single line against the pattern categories.
// ANSI escape codes are stripped before matching. Priority order: tool use,
// file modified, test pass, error; first category to match wins.
func (p *PatternSet) Classify(line string) Match {
	text := StripAnsi(line)

	if detail, ok := firstMatch(text, p.toolUse); ok {
		return Match{Kind: KindToolUse, Detail: detail}
	}
	if detail, ok := firstMatch(text, p.fileModified); ok {
		return Match{Kind: KindFileModified, Detail: detail}
	}
	if _, ok := firstMatch(text, p.testPass); ok {
		return Match{Kind: KindTestPass}
	}
	if _, ok := firstMatch(text, p.errors); ok {
		return Match{Kind: KindError}
	}
	return Match{Kind: KindUnclassified}
}

// firstMatch returns the first capture group of the first matching pattern.
func firstMatch(text string, patterns []*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if len(m) > 1 {
				return m[1], true
			}
			return "", true
		}
	}
	return "", false
}

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\][^\x07]*\x07`)

// StripAnsi removes ANSI escape codes from text.
// This handles both CSI sequences (ESC[...letter) and OSC sequences (ESC]...BEL).
func StripAnsi(text string) string {
	return ansiRegex.ReplaceAllString(text, "")
}
