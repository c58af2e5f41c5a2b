package logparser

import "regexp"

// GoogleTest markers. None are anchored to the start of a line: concurrently
// running tests write log output that can precede a marker on the same line.
var (
	gtestRunRegex    = regexp.MustCompile(`\[ RUN\s+\][ \t]+(\S+)`)
	gtestOKRegex     = regexp.MustCompile(`\[\s+OK\s+\][ \t]+(\S+)\s+\((\d+)\s+ms\)`)
	gtestFailedRegex = regexp.MustCompile(`\[\s+FAILED\s+\][ \t]+(\S+)\s+\((\d+)\s+ms\)`)
	// GTEST_SKIP() closes a test with SKIPPED instead of OK. Without this rule
	// a skipped test has no completion and would be reported as a crash.
	gtestSkippedRegex = regexp.MustCompile(`\[\s+SKIPPED\s+\][ \t]+(\S+)\s+\((\d+)\s+ms\)`)
)

// GTestParser parses GoogleTest output, including output of tests that run
// concurrently or crash before reporting a result:
//
//	[ RUN      ] Suite.Case
//	[       OK ] Suite.Case (4 ms)
//	[  FAILED  ] Suite.Case (9 ms)
type GTestParser struct {
	narrowSlack int
}

// Dialect returns DialectGTest.
func (p *GTestParser) Dialect() Dialect {
	return DialectGTest
}

// Parse extracts one test case per RUN marker, in the order the markers appear.
//
// Each RUN marker is paired with the first unclaimed OK/FAILED/SKIPPED marker of
// the same name that follows it, so interleaved tests are attributed by name
// rather than by position. A RUN marker without such a completion is a crashed
// test and is reported as failed.
func (p *GTestParser) Parse(content string) []TestCase {
	runs := scanMarkers(gtestRunRegex, content, "", nil)
	if len(runs) == 0 {
		return nil
	}

	completions := newCompletionIndex(mergeMarkers(
		scanMarkers(gtestOKRegex, content, StatusPassed, parseMillis),
		scanMarkers(gtestFailedRegex, content, StatusFailed, parseMillis),
		scanMarkers(gtestSkippedRegex, content, StatusSkipped, parseMillis),
	))

	cases := make([]TestCase, 0, len(runs))
	for i, run := range runs {
		tc := TestCase{Name: run.name, Status: StatusFailed}

		done, ok := completions.claim(run.name, run.start)
		if ok {
			tc.Status = done.status
			tc.DurationMs = done.durationMs
			if done.status == StatusFailed && done.start > run.end {
				tc.ErrorLog = ExtractExcerpt(content[run.end:done.start], p.narrowSlack)
			}
		} else {
			next := len(content)
			if i+1 < len(runs) {
				next = runs[i+1].start
			}
			tc.ErrorLog = crashExcerpt(content[run.end:next])
		}

		cases = append(cases, tc)
	}
	return cases
}
