// Package render prints parse results, dry-run payloads and run history for
// the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"github.com/newhook/testrun/internal/db"
	"github.com/newhook/testrun/internal/logparser"
	"github.com/newhook/testrun/internal/report"
)

const (
	// MaxPreviewLen caps how many characters of a log are shown per case.
	MaxPreviewLen = 500

	defaultWidth = 100
	ruleWidth    = 80
)

// Renderer writes styled output to w.
type Renderer struct {
	w     io.Writer
	width int

	header  lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	skipped lipgloss.Style
	dim     lipgloss.Style
}

// Options configures a Renderer.
type Options struct {
	// NoColor disables ANSI styling regardless of the terminal.
	NoColor bool
	// Width is the wrap width for logs. Zero uses 100.
	Width int
}

// New creates a Renderer for w.
func New(w io.Writer, opts Options) *Renderer {
	var r *lipgloss.Renderer
	if opts.NoColor {
		r = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.Ascii))
	} else {
		r = lipgloss.NewRenderer(w)
	}
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	return &Renderer{
		w:       w,
		width:   width,
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		passed:  r.NewStyle().Foreground(lipgloss.Color("42")),
		failed:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		skipped: r.NewStyle().Foreground(lipgloss.Color("247")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (r *Renderer) status(s logparser.Status) string {
	switch s {
	case logparser.StatusPassed:
		return r.passed.Render(string(s))
	case logparser.StatusFailed:
		return r.failed.Render(string(s))
	default:
		return r.skipped.Render(string(s))
	}
}

func (r *Renderer) rule() {
	fmt.Fprintln(r.w, r.dim.Render(strings.Repeat("=", ruleWidth)))
}

// Section prints a title between two rules.
func (r *Renderer) Section(title string) {
	fmt.Fprintln(r.w)
	r.rule()
	fmt.Fprintln(r.w, r.header.Render(title))
	r.rule()
}

// Summary prints how many cases were found, the per-status counts and the
// overall status.
func (r *Renderer) Summary(res logparser.Result) {
	fmt.Fprintf(r.w, "Found %d test cases", len(res.Cases))
	if res.Dialect != "" {
		fmt.Fprintf(r.w, " (%s)", res.Dialect)
	}
	fmt.Fprintln(r.w)

	fmt.Fprintln(r.w, "\nStatus counts:")
	for _, c := range report.CountByStatus(res.Cases) {
		fmt.Fprintf(r.w, "  %s: %d\n", r.status(c.Status), c.Count)
	}
	fmt.Fprintf(r.w, "\nOverall status: %s\n", r.status(report.OverallStatus(res.Cases)))
}

// Cases prints every case with its diagnostic logs. Logs longer than
// MaxPreviewLen are cut and annotated with their full length.
func (r *Renderer) Cases(cases []logparser.TestCase) {
	r.Section("Test case details")
	for i, tc := range cases {
		fmt.Fprintf(r.w, "\n[%d/%d] %s\n", i+1, len(cases), tc.Name)
		fmt.Fprintf(r.w, "  status:   %s\n", r.status(tc.Status))
		fmt.Fprintf(r.w, "  duration: %d ms\n", tc.DurationMs)
		if tc.ErrorLog != "" {
			fmt.Fprintln(r.w, "  error log:")
			fmt.Fprintln(r.w, r.logBlock(tc.ErrorLog))
		}
		if tc.DebugLog != "" {
			fmt.Fprintln(r.w, "  debug log:")
			fmt.Fprintln(r.w, r.logBlock(tc.DebugLog))
		}
	}
	fmt.Fprintln(r.w)
	r.rule()
}

func (r *Renderer) logBlock(s string) string {
	preview, cut := Preview(s, MaxPreviewLen)
	body := indent.String(wordwrap.String(preview, r.width-4), 4)
	if cut {
		body += "\n" + r.dim.Render(fmt.Sprintf("    ... (%d characters total)", len([]rune(s))))
	}
	return body
}

// Preview returns at most n characters of s and whether anything was cut.
func Preview(s string, n int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= n {
		return s, false
	}
	return string(runes[:n]), true
}

// Payload prints the report as indented JSON.
func (r *Renderer) Payload(rep *report.RunReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}
	r.Section("Payload")
	fmt.Fprintln(r.w, string(data))
	return nil
}

// Target prints where a real upload would have gone.
func (r *Renderer) Target(url string) {
	r.Section("Upload target")
	fmt.Fprintf(r.w, "URL:          %s\n", url)
	fmt.Fprintln(r.w, "Method:       POST")
	fmt.Fprintln(r.w, "Content-Type: application/json")
	r.rule()
}

// Uploaded prints the server's acknowledgement.
func (r *Renderer) Uploaded(res *report.UploadResult) {
	fmt.Fprintln(r.w, r.passed.Render("\n✓ Upload succeeded"))
	fmt.Fprintf(r.w, "  run id: %s\n", res.ID)
	fmt.Fprintf(r.w, "  branch: %s\n", res.BranchName)
	fmt.Fprintf(r.w, "  commit: %s\n", res.CommitShortID)
	fmt.Fprintf(r.w, "  status: %s\n", res.Status)
}

// History prints stored runs as a table.
func (r *Renderer) History(runs []db.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(r.w, "No runs recorded")
		return
	}

	fmt.Fprintf(r.w, "%-8s %-19s %-20s %-10s %-7s %5s %5s %5s  %s\n",
		"ID", "CREATED", "BRANCH", "COMMIT", "STATUS", "PASS", "FAIL", "SKIP", "UPLOAD")
	for _, run := range runs {
		upload := "-"
		switch {
		case run.Uploaded:
			upload = "ok " + run.RemoteID
		case run.UploadError != "":
			upload = "error: " + ansi.Truncate(run.UploadError, 40, "...")
		}
		fmt.Fprintf(r.w, "%-8s %-19s %-20s %-10s %-7s %5d %5d %5d  %s\n",
			shortID(run.ID),
			run.CreatedAt.Local().Format(time.DateTime),
			ansi.Truncate(run.Branch, 20, "..."),
			ansi.Truncate(run.CommitID, 10, ""),
			run.Status,
			run.Passed, run.Failed, run.Skipped,
			upload)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
