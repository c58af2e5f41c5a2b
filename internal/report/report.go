// Package report builds run reports from parsed test cases and uploads them
// to the results-collection service.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/newhook/testrun/internal/logparser"
)

// DefaultTestType is the test type recorded when none is given.
const DefaultTestType = "gvisor"

// MinCommitLen is the shortest accepted commit id.
const MinCommitLen = 8

var (
	// ErrNoTestCases is returned when a report would carry no test cases.
	ErrNoTestCases = errors.New("no test cases found")
	// ErrShortCommit is returned for commit ids shorter than MinCommitLen.
	ErrShortCommit = fmt.Errorf("commit id must be at least %d characters", MinCommitLen)
)

// RunReport is the payload sent for one test run.
type RunReport struct {
	BranchName string               `json:"branch_name"`
	CommitID   string               `json:"commit_id"`
	TestType   string               `json:"test_type"`
	Status     logparser.Status     `json:"status"`
	TestCases  []logparser.TestCase `json:"test_cases"`
}

// NewRunReport assembles a report. The overall status is failed if any case failed.
func NewRunReport(branch, commit, testType string, cases []logparser.TestCase) (*RunReport, error) {
	if err := ValidateCommit(commit); err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, ErrNoTestCases
	}
	if testType == "" {
		testType = DefaultTestType
	}
	return &RunReport{
		BranchName: branch,
		CommitID:   commit,
		TestType:   testType,
		Status:     OverallStatus(cases),
		TestCases:  cases,
	}, nil
}

// ValidateCommit checks the commit id length.
func ValidateCommit(commit string) error {
	if len(strings.TrimSpace(commit)) < MinCommitLen {
		return fmt.Errorf("%w: got %q", ErrShortCommit, commit)
	}
	return nil
}

// OverallStatus returns failed if any case failed, passed otherwise.
func OverallStatus(cases []logparser.TestCase) logparser.Status {
	for _, tc := range cases {
		if tc.Status == logparser.StatusFailed {
			return logparser.StatusFailed
		}
	}
	return logparser.StatusPassed
}

// StatusCount is the number of cases with one status.
type StatusCount struct {
	Status logparser.Status
	Count  int
}

// CountByStatus tallies cases per status, sorted by status name.
func CountByStatus(cases []logparser.TestCase) []StatusCount {
	counts := make(map[logparser.Status]int)
	for _, tc := range cases {
		counts[tc.Status]++
	}
	out := make([]StatusCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, StatusCount{Status: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}
