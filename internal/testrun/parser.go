package testrun

import (
	"regexp"
	"strconv"
	"strings"
)

// SummaryParser extracts pass and fail counts from raw test output.
// Parsing free-form runner summaries is fragile to format drift, so the
// strategy lives behind this interface where it can be swapped per project.
type SummaryParser interface {
	// Parse returns the pass and fail counts found in the output.
	// When nothing matches, both counts are 0.
	Parse(output string) (pass, fail int)
}

// JestSummaryParser matches the summary lines printed by jest and
// compatible runners, e.g. "Tests: 3 failed, 17 passed, 20 total".
// It takes the last match of each kind so intermediate per-suite summaries
// do not shadow the final totals.
type JestSummaryParser struct{}

var (
	passedRe = regexp.MustCompile(`(\d+) passed`)
	failedRe = regexp.MustCompile(`(\d+) failed`)
)

// Parse implements SummaryParser.
func (JestSummaryParser) Parse(output string) (pass, fail int) {
	return lastCount(passedRe, output), lastCount(failedRe, output)
}

func lastCount(re *regexp.Regexp, output string) int {
	matches := re.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0
	}
	return n
}

// TailLines returns the last n lines of text, preserving the original line
// endings except for a single trailing newline which is trimmed first.
func TailLines(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	trimmed := strings.TrimSuffix(text, "\n")
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= n {
		return trimmed
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
