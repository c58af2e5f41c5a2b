package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/testrun/internal/db"
	"github.com/newhook/testrun/internal/logparser"
	"github.com/newhook/testrun/internal/report"
)

func newTestRenderer() (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(&buf, Options{NoColor: true, Width: 60}), &buf
}

func TestSummary(t *testing.T) {
	r, buf := newTestRenderer()
	r.Summary(logparser.Result{
		Dialect: logparser.DialectGTest,
		Cases: []logparser.TestCase{
			{Name: "A", Status: logparser.StatusPassed},
			{Name: "B", Status: logparser.StatusFailed},
			{Name: "C", Status: logparser.StatusPassed},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Found 3 test cases (gtest)")
	assert.Contains(t, out, "  failed: 1\n  passed: 2\n")
	assert.Contains(t, out, "Overall status: failed")
	assert.NotContains(t, out, "\x1b[")
}

func TestCases_TruncatesLongLogs(t *testing.T) {
	r, buf := newTestRenderer()
	long := strings.Repeat("x", MaxPreviewLen+25)

	r.Cases([]logparser.TestCase{
		{Name: "Suite.Short", Status: logparser.StatusFailed, DurationMs: 3, ErrorLog: "test/a.cc:1: boom"},
		{Name: "Suite.Long", Status: logparser.StatusFailed, ErrorLog: long},
	})

	out := buf.String()
	assert.Contains(t, out, "[1/2] Suite.Short")
	assert.Contains(t, out, "  duration: 3 ms")
	assert.Contains(t, out, "    test/a.cc:1: boom")
	assert.Contains(t, out, "[2/2] Suite.Long")
	assert.Contains(t, out, "(525 characters total)")
	assert.NotContains(t, out, long)
}

func TestPreview(t *testing.T) {
	got, cut := Preview("héllo", 10)
	assert.Equal(t, "héllo", got)
	assert.False(t, cut)

	got, cut = Preview("héllo", 2)
	assert.Equal(t, "hé", got)
	assert.True(t, cut)
}

func TestPayload(t *testing.T) {
	r, buf := newTestRenderer()
	rep, err := report.NewRunReport("main", "0123456789", "", []logparser.TestCase{
		{Name: "A", Status: logparser.StatusPassed, DurationMs: 1},
	})
	require.NoError(t, err)

	require.NoError(t, r.Payload(rep))

	out := buf.String()
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	require.True(t, start >= 0 && end > start)

	var decoded report.RunReport
	require.NoError(t, json.Unmarshal([]byte(out[start:end+1]), &decoded))
	assert.Equal(t, *rep, decoded)
}

func TestTarget(t *testing.T) {
	r, buf := newTestRenderer()
	r.Target("https://ci.example.com/test-runs")

	out := buf.String()
	assert.Contains(t, out, "URL:          https://ci.example.com/test-runs")
	assert.Contains(t, out, "Method:       POST")
}

func TestUploaded(t *testing.T) {
	r, buf := newTestRenderer()
	r.Uploaded(&report.UploadResult{ID: "17", BranchName: "main", CommitShortID: "01234567", Status: "passed"})

	out := buf.String()
	assert.Contains(t, out, "run id: 17")
	assert.Contains(t, out, "commit: 01234567")
}

func TestHistory(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		r, buf := newTestRenderer()
		r.History(nil)
		assert.Equal(t, "No runs recorded\n", buf.String())
	})

	t.Run("rows", func(t *testing.T) {
		r, buf := newTestRenderer()
		r.History([]db.Run{
			{
				ID:        "0f1e2d3c-aaaa-bbbb-cccc-000000000000",
				Branch:    "feature/a-very-long-branch-name-indeed",
				CommitID:  "0123456789abcdef",
				Status:    "failed",
				Passed:    3,
				Failed:    1,
				Uploaded:  true,
				RemoteID:  "42",
				CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			},
			{
				ID:          "short",
				Branch:      "main",
				CommitID:    "abcdef01",
				Status:      "passed",
				UploadError: "upload failed (HTTP 502): bad gateway",
				CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			},
		})

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "ID"))
		assert.True(t, strings.HasPrefix(lines[1], "0f1e2d3c "))
		assert.Contains(t, lines[1], "0123456789 ")
		assert.NotContains(t, lines[1], "indeed")
		assert.Contains(t, lines[1], "ok 42")
		assert.Contains(t, lines[2], "error: upload failed")
	})
}
