package checks

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

func TestBinary_ResolvesFromPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fixture script is a shell file")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "xdotool")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	path, err := Binary("xdotool")

	require.NoError(t, err)
	assert.Equal(t, script, path)
}

func TestBinary_MissingToolIsTyped(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := Binary("definitely-not-installed")

	var notFound *reproerrors.BinaryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "definitely-not-installed", notFound.Binary)
}

func TestSourceDir_ReadsEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("V8_SRC", dir)

	got, err := SourceDir("V8_SRC")

	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestSourceDir_UnsetVariableFails(t *testing.T) {
	t.Setenv("PDFIUM_SRC", "")

	_, err := SourceDir("PDFIUM_SRC")

	var valErr *reproerrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "PDFIUM_SRC", valErr.Field)
}

func TestSourceDir_MissingDirectoryFails(t *testing.T) {
	t.Setenv("V8_SRC", filepath.Join(t.TempDir(), "nope"))

	_, err := SourceDir("V8_SRC")

	var valErr *reproerrors.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestGomaDir_HonorsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, gomaCtl), []byte("#"), 0o644))
	t.Setenv("GOMA_DIR", dir)

	got, err := GomaDir()

	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestGomaDir_MissingCtlScriptFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GOMA_DIR", dir)

	_, err := GomaDir()

	var notInstalled *reproerrors.GomaNotInstalledError
	require.ErrorAs(t, err, &notInstalled)
	assert.Equal(t, dir, notInstalled.Dir)
}
