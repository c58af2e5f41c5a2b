package logparser

import (
	"regexp"
	"strings"
)

var (
	// Start of a test: === RUN   TestName
	goRunPattern = regexp.MustCompile(`(?m)^[ \t]*=== RUN[ \t]+(\S+)[ \t\r]*$`)

	// Terminal line: --- PASS: TestName (0.01s). Subtest results are indented.
	goResultPattern = regexp.MustCompile(`(?m)^[ \t]*--- (PASS|FAIL|SKIP):[ \t]+(\S+)[ \t]+\(([\d.]+)s\)[ \t\r]*$`)

	// Any line that starts or ends a test; diagnostic blocks stop here.
	goBoundaryPattern = regexp.MustCompile(`^[ \t]*(?:=== [A-Z]+[ \t]|--- (?:PASS|FAIL|SKIP):)`)
)

// GoTestParser parses verbose go test output:
//
//	=== RUN   TestFoo
//	--- PASS: TestFoo (0.01s)
//	--- FAIL: TestBar (0.02s)
//	    bar_test.go:12: expected 1, got 2
type GoTestParser struct{}

// Dialect returns DialectGoTest.
func (p *GoTestParser) Dialect() Dialect {
	return DialectGoTest
}

type goResult struct {
	status     Status
	durationMs int64
	end        int // offset just past the terminal line
}

// Parse emits one test case per distinct RUN name, in order of first appearance.
// Each is matched to the first terminal line carrying the same name anywhere in
// the log. A RUN without any terminal line is reported as failed.
func (p *GoTestParser) Parse(content string) []TestCase {
	runs := goRunPattern.FindAllStringSubmatchIndex(content, -1)
	if len(runs) == 0 {
		return nil
	}

	results := make(map[string]goResult)
	for _, loc := range goResultPattern.FindAllStringSubmatchIndex(content, -1) {
		name := content[loc[4]:loc[5]]
		if _, seen := results[name]; seen {
			continue
		}
		results[name] = goResult{
			status:     goStatus(content[loc[2]:loc[3]]),
			durationMs: parseSeconds(content[loc[6]:loc[7]]),
			end:        loc[1],
		}
	}

	var cases []TestCase
	processed := make(map[string]bool)
	for _, loc := range runs {
		name := content[loc[2]:loc[3]]
		if processed[name] {
			continue
		}
		processed[name] = true

		res, ok := results[name]
		if !ok {
			// The test never reported back, most likely a panic or timeout.
			cases = append(cases, TestCase{
				Name:     name,
				Status:   StatusFailed,
				ErrorLog: goFollowingBlock(content, loc[1]),
			})
			continue
		}

		tc := TestCase{
			Name:       name,
			Status:     res.status,
			DurationMs: res.durationMs,
		}
		if res.status == StatusFailed {
			tc.ErrorLog = goFollowingBlock(content, res.end)
		}
		cases = append(cases, tc)
	}
	return cases
}

// goFollowingBlock returns the lines after the line ending at pos, up to the
// next start or terminal line, trimmed and truncated.
func goFollowingBlock(content string, pos int) string {
	pos = lineEnd(content, pos)
	if pos >= len(content) {
		return ""
	}
	start := pos + 1
	end := start
	for end < len(content) {
		eol := lineEnd(content, end)
		if goBoundaryPattern.MatchString(content[end:eol]) {
			break
		}
		if eol == len(content) {
			end = eol
			break
		}
		end = eol + 1
	}
	return truncate(strings.TrimSpace(content[start:end]))
}

func goStatus(word string) Status {
	switch word {
	case "PASS":
		return StatusPassed
	case "SKIP":
		return StatusSkipped
	default:
		return StatusFailed
	}
}
