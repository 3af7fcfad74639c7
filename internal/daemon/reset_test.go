package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuzzkit/repro/internal/shell"
)

type fakeRunner struct{}

func (fakeRunner) Run(ctx context.Context, cmd shell.Command) (shell.Result, error) {
	return shell.Result{}, nil
}

// initCheckout creates a single-commit repository holding version.cc.
func initCheckout(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "version.cc"), []byte("v1"), 0o644))
	_, err = wt.Add("version.cc")
	require.NoError(t, err)
	_, err = wt.Commit("v1", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "FuzzKit",
			Email: "fuzzkit@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
	return dir
}

func TestNewCheckoutReset_RestoresCleanTreeAndDropsOutDir(t *testing.T) {
	t.Parallel()

	dir := initCheckout(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "version.cc"), []byte("local edit"), 0o644))

	outDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "Debug"), 0o755))

	reset := NewCheckoutReset(dir, outDir, fakeRunner{}, testLogger(t))
	require.NoError(t, reset(context.Background()))

	content, err := os.ReadFile(filepath.Join(dir, "version.cc"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))

	_, err = os.Stat(outDir)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewCheckoutReset_RejectsNonCheckout(t *testing.T) {
	t.Parallel()

	reset := NewCheckoutReset(t.TempDir(), "", fakeRunner{}, testLogger(t))
	require.Error(t, reset(context.Background()))
}

func TestNewCheckoutReset_HonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reset := NewCheckoutReset(initCheckout(t), "", fakeRunner{}, testLogger(t))
	require.ErrorIs(t, reset(ctx), context.Canceled)
}
