package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/newhook/testrun/internal/config"
	"github.com/newhook/testrun/internal/db"
	"github.com/newhook/testrun/internal/git"
	"github.com/newhook/testrun/internal/logfile"
	"github.com/newhook/testrun/internal/logging"
	"github.com/newhook/testrun/internal/logparser"
	"github.com/newhook/testrun/internal/render"
	"github.com/newhook/testrun/internal/report"
)

// submission describes one log file to parse and report.
type submission struct {
	LogPath   string
	APIURL    string
	Branch    string
	Commit    string
	TestType  string
	Dialect   string
	DryRun    bool
	NoHistory bool
}

// newRenderer returns a renderer for out honoring --no-color.
func newRenderer(out io.Writer) *render.Renderer {
	return render.New(out, render.Options{NoColor: flagNoColor})
}

// resolveRevision fills a missing branch or commit from the git checkout in
// the working directory.
func resolveRevision(ctx context.Context, s *submission) error {
	if s.Branch != "" && s.Commit != "" {
		return nil
	}
	rev, err := git.Resolve(ctx, "", git.Revision{Branch: s.Branch, Commit: s.Commit})
	if errors.Is(err, git.ErrDetachedHead) {
		return fmt.Errorf("cannot infer the branch, pass --branch: %w", err)
	}
	if err != nil {
		return fmt.Errorf("--branch and --commit are required outside a git checkout: %w", err)
	}
	logging.Debug("resolved revision from git", "branch", rev.Branch, "commit", rev.Commit)
	s.Branch, s.Commit = rev.Branch, rev.Commit
	return nil
}

// parseLog reads path and parses it with the configured engine. An empty
// dialect falls back to the config and then to auto-detection.
func parseLog(c *config.Config, path, dialect string) (logparser.Result, error) {
	if dialect == "" {
		dialect = c.Parser.Dialect
	}
	d, err := logparser.ParseDialect(dialect)
	if err != nil {
		return logparser.Result{}, err
	}

	content, enc, err := logfile.Read(path)
	if err != nil {
		return logparser.Result{}, err
	}

	engine := logparser.New(logparser.Options{NarrowSlack: c.Parser.GetNarrowSlack()})
	res, err := engine.Parse(content, d)
	if err != nil {
		return logparser.Result{}, err
	}
	logging.Info("parsed log file",
		"path", path,
		"encoding", string(enc),
		"dialect", string(res.Dialect),
		"cases", len(res.Cases))
	return res, nil
}

// openHistory opens the run history, or returns nil when it is disabled.
func openHistory(ctx context.Context, c *config.Config, disabled bool) (*db.DB, error) {
	if disabled || !c.History.IsEnabled() {
		return nil, nil
	}
	h, err := db.OpenPath(ctx, c.History.GetPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return h, nil
}

// submit parses one log file, records it and uploads or previews it.
// Output goes to out; warnings and upload failures to errOut.
func submit(ctx context.Context, c *config.Config, s submission, out, errOut io.Writer) error {
	if err := report.ValidateCommit(s.Commit); err != nil {
		return err
	}
	if s.APIURL == "" {
		s.APIURL = c.Upload.APIURL
	}
	if s.APIURL == "" {
		return fmt.Errorf("no API URL given and upload.api_url is not configured")
	}
	if s.TestType == "" {
		s.TestType = c.Upload.GetTestType()
	}

	var client *report.Client
	if !s.DryRun {
		apiKey, err := report.APIKeyFromEnv(c.Upload.GetAPIKeyEnv())
		if err != nil {
			return err
		}
		client, err = report.NewClient(s.APIURL, apiKey, c.Upload.GetTimeout())
		if err != nil {
			return err
		}
	}

	r := newRenderer(out)
	if s.DryRun {
		r.Section("DRY-RUN: parsing only, nothing will be uploaded")
	}

	fmt.Fprintf(out, "\nParsing log file: %s\n", s.LogPath)
	res, err := parseLog(c, s.LogPath, s.Dialect)
	if err != nil {
		return err
	}
	if len(res.Cases) == 0 {
		fmt.Fprintln(errOut, "Warning: no test cases found")
		return report.ErrNoTestCases
	}
	r.Summary(res)

	rep, err := report.NewRunReport(s.Branch, s.Commit, s.TestType, res.Cases)
	if err != nil {
		return err
	}

	history, err := openHistory(ctx, c, s.NoHistory)
	if err != nil {
		// A broken history database does not block the upload.
		fmt.Fprintf(errOut, "Warning: %v\n", err)
	}
	if history != nil {
		defer history.Close()
	}

	run := &db.Run{
		LogPath:  s.LogPath,
		Dialect:  string(res.Dialect),
		Branch:   rep.BranchName,
		CommitID: rep.CommitID,
		TestType: rep.TestType,
		Status:   string(rep.Status),
	}
	if history != nil {
		if err := history.SaveRun(ctx, run, rep.TestCases); err != nil {
			fmt.Fprintf(errOut, "Warning: failed to record run: %v\n", err)
			history = nil
		}
	}

	if s.DryRun {
		r.Cases(rep.TestCases)
		if err := r.Payload(rep); err != nil {
			return err
		}
		r.Target(report.RunsURL(s.APIURL))
		fmt.Fprintln(out, "\n✓ Dry-run complete, nothing was uploaded")
		return nil
	}

	fmt.Fprintf(out, "\nUploading to: %s\n", client.Endpoint())
	result, uploadErr := client.Upload(ctx, rep)
	if history != nil {
		var err error
		if uploadErr != nil {
			err = history.MarkUploadFailed(ctx, run.ID, uploadErr)
		} else {
			err = history.MarkUploaded(ctx, run.ID, string(result.ID))
		}
		if err != nil {
			logging.Warn("failed to record upload outcome", "run", run.ID, "error", err)
		}
	}
	if uploadErr != nil {
		var ue *report.UploadError
		if errors.As(uploadErr, &ue) {
			fmt.Fprintf(errOut, "\n✗ Upload failed: %s\n", ue.Message)
			return reported(uploadErr)
		}
		return uploadErr
	}

	r.Uploaded(result)
	return nil
}
