package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/testrun/internal/logparser"
)

func sampleCases() []logparser.TestCase {
	return []logparser.TestCase{
		{Name: "Suite.A", Status: logparser.StatusPassed, DurationMs: 4},
		{Name: "Suite.B", Status: logparser.StatusFailed, DurationMs: 9, ErrorLog: "test/b.cc:1: Failure"},
		{Name: "Suite.C", Status: logparser.StatusSkipped},
	}
}

func TestNewRunReport(t *testing.T) {
	r, err := NewRunReport("main", "0123456789abcdef", "", sampleCases())
	require.NoError(t, err)

	assert.Equal(t, "main", r.BranchName)
	assert.Equal(t, DefaultTestType, r.TestType)
	assert.Equal(t, logparser.StatusFailed, r.Status)
	assert.Len(t, r.TestCases, 3)
}

func TestNewRunReport_Errors(t *testing.T) {
	_, err := NewRunReport("main", "abc", "unit", sampleCases())
	require.ErrorIs(t, err, ErrShortCommit)

	_, err = NewRunReport("main", "0123456789", "unit", nil)
	require.ErrorIs(t, err, ErrNoTestCases)
}

func TestOverallStatus(t *testing.T) {
	assert.Equal(t, logparser.StatusPassed, OverallStatus([]logparser.TestCase{
		{Name: "a", Status: logparser.StatusPassed},
		{Name: "b", Status: logparser.StatusSkipped},
	}))
	assert.Equal(t, logparser.StatusFailed, OverallStatus(sampleCases()))
}

func TestCountByStatus(t *testing.T) {
	cases := append(sampleCases(), logparser.TestCase{Name: "Suite.D", Status: logparser.StatusPassed})

	assert.Equal(t, []StatusCount{
		{Status: logparser.StatusFailed, Count: 1},
		{Status: logparser.StatusPassed, Count: 2},
		{Status: logparser.StatusSkipped, Count: 1},
	}, CountByStatus(cases))
}

func TestRunReport_JSONShape(t *testing.T) {
	r, err := NewRunReport("dev", "deadbeefcafe", "gvisor", sampleCases())
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "dev", decoded["branch_name"])
	assert.Equal(t, "deadbeefcafe", decoded["commit_id"])
	assert.Equal(t, "gvisor", decoded["test_type"])
	assert.Equal(t, "failed", decoded["status"])

	tcs := decoded["test_cases"].([]any)
	first := tcs[0].(map[string]any)
	assert.NotContains(t, first, "error_log")
	assert.NotContains(t, first, "debug_log")
	assert.Equal(t, float64(4), first["duration_ms"])
	assert.Equal(t, "test/b.cc:1: Failure", tcs[1].(map[string]any)["error_log"])
}
