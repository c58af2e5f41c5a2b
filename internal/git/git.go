// Package git reads the branch and commit of a working tree.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrDetachedHead is returned by CurrentBranch when HEAD is not on a branch.
var ErrDetachedHead = errors.New("HEAD is detached")

// Revision identifies what a test run was built from.
type Revision struct {
	Branch string
	Commit string
}

func output(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CurrentBranch returns the branch checked out in dir.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	branch, err := output(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	if branch == "HEAD" {
		return "", ErrDetachedHead
	}
	return branch, nil
}

// HeadCommit returns the full hash of HEAD in dir.
func HeadCommit(ctx context.Context, dir string) (string, error) {
	commit, err := output(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	return commit, nil
}

// Resolve fills the empty fields of rev from the working tree in dir.
// Fields that are already set are left alone and git is not consulted for them.
func Resolve(ctx context.Context, dir string, rev Revision) (Revision, error) {
	if rev.Branch == "" {
		branch, err := CurrentBranch(ctx, dir)
		if err != nil {
			return rev, err
		}
		rev.Branch = branch
	}
	if rev.Commit == "" {
		commit, err := HeadCommit(ctx, dir)
		if err != nil {
			return rev, err
		}
		rev.Commit = commit
	}
	return rev, nil
}
