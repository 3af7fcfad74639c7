package builder

import (
	"context"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/fuzzkit/repro/internal/shell"
	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// Checkout wraps the git working tree of a source checkout. Reads and
// worktree operations go through go-git; fetching is delegated to the git
// binary because the chromium mirrors only serve SHA fetches to it.
type Checkout struct {
	dir    string
	repo   *git.Repository
	runner shell.Runner
}

// OpenCheckout opens the repository rooted at dir.
func OpenCheckout(dir string, runner shell.Runner) (*Checkout, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, reproerrors.NewValidationError(
			"source", dir+" is not a git checkout", err)
	}
	return &Checkout{dir: dir, repo: repo, runner: runner}, nil
}

// Dir reports the checkout root.
func (c *Checkout) Dir() string {
	return c.dir
}

// HeadSHA returns the SHA the working tree currently sits on.
func (c *Checkout) HeadSHA() (string, error) {
	head, err := c.repo.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}

// HasCommit reports whether the commit is already present locally.
func (c *Checkout) HasCommit(sha string) bool {
	_, err := c.repo.CommitObject(plumbing.NewHash(sha))
	return err == nil
}

// IsDirty reports whether the working tree has uncommitted changes.
func (c *Checkout) IsDirty() (bool, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	return !status.IsClean(), nil
}

// Fetch pulls a single commit from origin.
func (c *Checkout) Fetch(ctx context.Context, sha string) error {
	_, err := c.runner.Run(ctx, shell.Command{
		Binary: "git",
		Args:   []string{"fetch", "origin", sha},
		Dir:    c.dir,
	})
	return err
}

// CheckoutSHA moves the working tree to the given commit. The tree must be
// clean; a dirty tree fails with a DirtyCheckoutError so the caller can tell
// the user to commit or stash.
func (c *Checkout) CheckoutSHA(ctx context.Context, sha string) error {
	dirty, err := c.IsDirty()
	if err != nil {
		return err
	}
	if dirty {
		return reproerrors.NewDirtyCheckoutError(c.dir)
	}

	if !c.HasCommit(sha) {
		if err := c.Fetch(ctx, sha); err != nil {
			return err
		}
	}

	wt, err := c.repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(sha)})
}

// ResetHard discards all local modifications and untracked files. The watch
// daemon calls this between testcases so stale build edits never leak into
// the next run.
func (c *Checkout) ResetHard() error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return err
	}
	return wt.Clean(&git.CleanOptions{Dir: true})
}
