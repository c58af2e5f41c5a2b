package logparser

import (
	"regexp"
	"strings"
)

// DefaultNarrowSlack is the default for Options.NarrowSlack.
const DefaultNarrowSlack = 50

// maxCrashLines caps the filtered lines kept for a case that never completed.
const maxCrashLines = 20

var (
	// diagnosticLineRegex matches a source location such as
	// "test/syscalls/linux/open.cc:42:" or "foo_test.go:12:". The location must
	// start a line or follow whitespace.
	diagnosticLineRegex = regexp.MustCompile(`(?m)(?:^|\s)((?:[\w.\-]+/)*[\w\-]+\.[A-Za-z]\w*|(?:[\w.\-]+/)+[\w.\-]+):\d+:`)

	// logLevelLineRegex matches lines that only carry debug/info log chatter.
	logLevelLineRegex = regexp.MustCompile(`^\[(?:DEBUG|INFO)\]`)
)

// diagnosticBlock locates the first diagnostic line in window and extends it
// over every following line that does not start with '['. It returns the
// block's byte range within window.
func diagnosticBlock(window string) (start, end int, ok bool) {
	loc := diagnosticLineRegex.FindStringSubmatchIndex(window)
	if loc == nil {
		return 0, 0, false
	}
	start = loc[2]
	end = lineEnd(window, start)
	for end < len(window) {
		next := end + 1
		if next < len(window) && window[next] == '[' {
			break
		}
		end = lineEnd(window, next)
	}
	return start, end, true
}

// ExtractExcerpt derives the diagnostic text for a failed test from the text
// between its start and failure markers.
//
// A diagnostic block (a source location line and its continuation lines) is
// preferred, unless more than narrowSlack characters of the window follow it,
// in which case the whole window is used. The result is trimmed and cut to
// MaxErrorLogLen characters.
func ExtractExcerpt(window string, narrowSlack int) string {
	start, end, ok := diagnosticBlock(window)
	if !ok || end < len(window)-narrowSlack {
		return truncate(strings.TrimSpace(window))
	}
	return truncate(strings.TrimSpace(window[start:end]))
}

// crashExcerpt derives the diagnostic text for a test that never reported
// completion. window runs from its start marker to the next start marker or the
// end of the log.
func crashExcerpt(window string) string {
	if start, _, ok := diagnosticBlock(window); ok {
		return truncate(strings.TrimSpace(window[start:]))
	}

	var kept []string
	for _, line := range strings.Split(window, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || logLevelLineRegex.MatchString(line) {
			continue
		}
		kept = append(kept, line)
		if len(kept) == maxCrashLines {
			break
		}
	}
	return truncate(strings.Join(kept, "\n"))
}
