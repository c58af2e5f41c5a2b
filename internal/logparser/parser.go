// Package logparser turns raw test-runner console output into normalized test case records.
//
// Three dialects are understood: GoogleTest-style output (whose markers may interleave when
// tests run concurrently), go test verbose output, and pytest verbose output.
package logparser

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the normalized outcome of a test case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// MaxErrorLogLen is the maximum number of characters kept in TestCase.ErrorLog.
const MaxErrorLogLen = 2048

// TestCase is a single normalized test result.
type TestCase struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	ErrorLog   string `json:"error_log,omitempty"`
	DebugLog   string `json:"debug_log,omitempty"`
}

// Dialect identifies a supported log format.
type Dialect string

const (
	DialectGTest  Dialect = "gtest"
	DialectGoTest Dialect = "gotest"
	DialectPytest Dialect = "pytest"
)

// ErrUnknownDialect is returned when a dialect hint names no known parser.
var ErrUnknownDialect = errors.New("unknown log dialect")

// Parser interface for dialect-specific implementations.
type Parser interface {
	// Dialect returns the dialect handled by this parser.
	Dialect() Dialect
	// Parse extracts test cases from the log content. It never fails; content
	// without recognizable markers yields an empty slice.
	Parse(content string) []TestCase
}

// Options tunes the parsers.
type Options struct {
	// NarrowSlack is how many characters of a failure window may remain after a
	// diagnostic block before the block is discarded in favour of the whole window.
	NarrowSlack int
}

// DefaultOptions returns the options used by the package-level Parse.
func DefaultOptions() Options {
	return Options{NarrowSlack: DefaultNarrowSlack}
}

// Result is the outcome of a dispatch.
type Result struct {
	// Dialect is the dialect that produced Cases, empty when nothing was recognized.
	Dialect Dialect    `json:"dialect"`
	Cases   []TestCase `json:"test_cases"`
}

// Engine tries its parsers in a fixed priority order.
type Engine struct {
	parsers []Parser
}

// New creates an Engine with the GoogleTest, go test and pytest parsers, in that order.
func New(opts Options) *Engine {
	if opts.NarrowSlack < 0 {
		opts.NarrowSlack = DefaultNarrowSlack
	}
	return &Engine{
		parsers: []Parser{
			&GTestParser{narrowSlack: opts.NarrowSlack},
			&GoTestParser{},
			&PytestParser{patterns: defaultPatternCache},
		},
	}
}

var defaultEngine = New(DefaultOptions())

// Parse runs the default engine over content. See Engine.Parse.
func Parse(content string, dialect Dialect) (Result, error) {
	return defaultEngine.Parse(content, dialect)
}

// Parse extracts test cases from content.
//
// With an empty dialect the parsers are tried in priority order and the first
// non-empty result wins. With a dialect only that parser runs. An empty result
// is not an error.
func (e *Engine) Parse(content string, dialect Dialect) (Result, error) {
	if dialect != "" {
		p, err := e.parser(dialect)
		if err != nil {
			return Result{}, err
		}
		if strings.TrimSpace(content) == "" {
			return Result{Cases: []TestCase{}}, nil
		}
		cases := p.Parse(content)
		if len(cases) == 0 {
			return Result{Cases: []TestCase{}}, nil
		}
		return Result{Dialect: dialect, Cases: cases}, nil
	}

	if strings.TrimSpace(content) == "" {
		return Result{Cases: []TestCase{}}, nil
	}
	for _, p := range e.parsers {
		if cases := p.Parse(content); len(cases) > 0 {
			return Result{Dialect: p.Dialect(), Cases: cases}, nil
		}
	}
	return Result{Cases: []TestCase{}}, nil
}

// Dialects returns the dialects known to the engine in priority order.
func (e *Engine) Dialects() []Dialect {
	out := make([]Dialect, 0, len(e.parsers))
	for _, p := range e.parsers {
		out = append(out, p.Dialect())
	}
	return out
}

func (e *Engine) parser(dialect Dialect) (Parser, error) {
	for _, p := range e.parsers {
		if p.Dialect() == dialect {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
}

// ParseDialect validates a user-supplied dialect name. The empty string means auto-detect.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case "", DialectGTest, DialectGoTest, DialectPytest:
		return d, nil
	case "googletest":
		return DialectGTest, nil
	case "go":
		return DialectGoTest, nil
	default:
		known := make([]string, 0, 3)
		for _, d := range defaultEngine.Dialects() {
			known = append(known, string(d))
		}
		return "", fmt.Errorf("%w: %q (known: %s)", ErrUnknownDialect, s, strings.Join(known, ", "))
	}
}
