package shell

import (
	"bytes"
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell assumptions do not hold on Windows")
	}
}

func TestRun_CapturesAndStreamsStdout(t *testing.T) {
	skipOnWindows(t)

	var stdout, stderr bytes.Buffer
	runner := NewWithWriters(nil, &stdout, &stderr)

	result, err := runner.Run(context.Background(), Command{
		Binary: "echo",
		Args:   []string{"hello", "world"},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Stdout)
	assert.Equal(t, "hello world\n", stdout.String())
	assert.Equal(t, 0, result.ExitCode)
}

func TestRun_SilentDoesNotStream(t *testing.T) {
	skipOnWindows(t)

	var stdout, stderr bytes.Buffer
	runner := NewWithWriters(nil, &stdout, &stderr)

	result, err := runner.Run(context.Background(), Command{
		Binary: "echo",
		Args:   []string{"quiet value"},
		Silent: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "quiet value", result.Stdout)
	assert.Empty(t, stdout.String())
}

func TestRun_NonZeroExitReturnsCommandError(t *testing.T) {
	skipOnWindows(t)

	var stdout, stderr bytes.Buffer
	runner := NewWithWriters(nil, &stdout, &stderr)

	result, err := runner.Run(context.Background(), Command{
		Binary: "sh",
		Args:   []string{"-c", "echo 'no such revision' >&2; exit 128"},
		Silent: true,
	})

	var cmdErr *reproerrors.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 128, cmdErr.ExitCode)
	assert.Equal(t, 128, result.ExitCode)
	assert.Equal(t, "no such revision", result.Stderr)
	assert.Equal(t, "no such revision", result.Output())
}

func TestRun_EnvOverlayReachesChild(t *testing.T) {
	skipOnWindows(t)

	var stdout, stderr bytes.Buffer
	runner := NewWithWriters(nil, &stdout, &stderr)

	result, err := runner.Run(context.Background(), Command{
		Binary: "sh",
		Args:   []string{"-c", "printf '%s' \"$REPRO_TEST_MARKER\""},
		Env:    map[string]string{"REPRO_TEST_MARKER": "overlay-works"},
		Silent: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "overlay-works", result.Stdout)
}

func TestRun_WorkingDirectoryApplies(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	runner := NewWithWriters(nil, &bytes.Buffer{}, &bytes.Buffer{})

	result, err := runner.Run(context.Background(), Command{
		Binary: "pwd",
		Dir:    dir,
		Silent: true,
	})

	require.NoError(t, err)
	// The temp dir may sit behind a symlink, so compare the leaf only.
	assert.Equal(t, filepath.Base(dir), filepath.Base(result.Stdout))
}

func TestCommand_StringRendersShellForm(t *testing.T) {
	t.Parallel()

	cmd := Command{Binary: "git", Args: []string{"checkout", "abc123"}}
	assert.Equal(t, "git checkout abc123", cmd.String())
	assert.Equal(t, "gn", Command{Binary: "gn"}.String())
}
