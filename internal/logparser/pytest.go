package logparser

import (
	"context"
	"regexp"
	"strings"

	"github.com/newhook/testrun/internal/cachemanager"
)

var (
	// Result line: tests/test_x.py::test_y PASSED [ 50%] [0.12s]
	pytestLinePattern = regexp.MustCompile(`(?m)^(.+?)::(.+?)[ \t]+(PASSED|FAILED|SKIPPED|ERROR)(?:[ \t]+\([^)\n]*\))?(?:[ \t]+\[[ \t]*\d+%\])?(?:[ \t]+\[([\d.]+)s\])?[ \t\r]*$`)

	// A line that begins a new file-qualified entry.
	pytestEntryPattern = regexp.MustCompile(`^\S+::`)
)

// defaultPatternCache holds the per-case failure header patterns. Patterns are
// immutable once compiled, so sharing them across parses is safe. A hit
// extends the entry's lifetime, so names seen in every run stay compiled.
var defaultPatternCache cachemanager.CacheManager[string, *regexp.Regexp] = cachemanager.NewInMemoryCacheManager[string, *regexp.Regexp](
	cachemanager.DefaultExpiration,
	cachemanager.DefaultCleanupInterval,
)

// PytestParser parses verbose pytest output, one self-contained line per test:
//
//	tests/test_math.py::test_add PASSED [ 50%]
//	tests/test_math.py::test_div FAILED [100%]
type PytestParser struct {
	patterns cachemanager.CacheManager[string, *regexp.Regexp]
}

// Dialect returns DialectPytest.
func (p *PytestParser) Dialect() Dialect {
	return DialectPytest
}

// Parse emits one test case per result line, in line order.
func (p *PytestParser) Parse(content string) []TestCase {
	var cases []TestCase
	for _, loc := range pytestLinePattern.FindAllStringSubmatchIndex(content, -1) {
		name := content[loc[2]:loc[3]] + "::" + content[loc[4]:loc[5]]
		tc := TestCase{
			Name:   name,
			Status: pytestStatus(content[loc[6]:loc[7]]),
		}
		if loc[8] >= 0 {
			tc.DurationMs = parseSeconds(content[loc[8]:loc[9]])
		}
		if tc.Status == StatusFailed {
			tc.ErrorLog = p.failureBlock(content, name, loc[1])
		}
		cases = append(cases, tc)
	}
	return cases
}

// failureBlock looks after pos for a "FAILED <name>" (or "ERROR <name>") header
// and returns its inline message together with the indented lines below it.
// It returns "" when there is no such header.
func (p *PytestParser) failureBlock(content, name string, pos int) string {
	loc := p.headerPattern(name).FindStringIndex(content[pos:])
	if loc == nil {
		return ""
	}
	start := pos + loc[1]
	end := lineEnd(content, start)
	for end < len(content) {
		next := end + 1
		eol := lineEnd(content, next)
		line := content[next:eol]
		if line != "" && line != "\r" && !startsWithSpace(line) {
			break
		}
		if pytestEntryPattern.MatchString(strings.TrimSpace(line)) {
			break
		}
		end = eol
	}
	return truncate(strings.TrimSpace(content[start:end]))
}

func (p *PytestParser) headerPattern(name string) *regexp.Regexp {
	ctx := context.Background()
	if p.patterns != nil {
		if re, ok := p.patterns.GetWithRefresh(ctx, name, cachemanager.DefaultExpiration); ok {
			return re
		}
	}
	re := regexp.MustCompile(`(?m)(?:FAILED|ERROR)[ \t]+` + regexp.QuoteMeta(name) + `(?:[ \t]+-[ \t]+|[ \t\r]*$)`)
	if p.patterns != nil {
		p.patterns.Set(ctx, name, re, cachemanager.DefaultExpiration)
	}
	return re
}

func startsWithSpace(line string) bool {
	return line[0] == ' ' || line[0] == '\t'
}

func pytestStatus(word string) Status {
	switch word {
	case "PASSED":
		return StatusPassed
	case "SKIPPED":
		return StatusSkipped
	default:
		// FAILED, and ERROR for failures in fixtures or collection.
		return StatusFailed
	}
}
