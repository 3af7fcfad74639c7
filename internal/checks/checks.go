// Package checks verifies the host environment before a reproduction starts:
// the external tools a build needs and the directories they run in.
package checks

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"

	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// gomaCtl is the script the goma distribution ships; its presence is how a
// goma installation is recognized.
const gomaCtl = "goma_ctl.py"

// Binary resolves an executable on PATH and returns its absolute path.
func Binary(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", reproerrors.NewBinaryNotFoundError(name, err)
	}
	return path, nil
}

// SourceDir resolves the checkout directory named by an environment
// variable, expanding a leading ~.
func SourceDir(envVar string) (string, error) {
	value := os.Getenv(envVar)
	if value == "" {
		return "", reproerrors.NewValidationError(
			envVar, "environment variable is not set; point it at the source checkout", nil)
	}

	dir, err := homedir.Expand(value)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", reproerrors.NewValidationError(envVar, "directory "+dir+" does not exist", err)
		}
		return "", err
	}
	if !info.IsDir() {
		return "", reproerrors.NewValidationError(envVar, dir+" is not a directory", nil)
	}

	return dir, nil
}

// GomaDir locates the goma installation: $GOMA_DIR when set, ~/goma
// otherwise. The directory must contain goma_ctl.py.
func GomaDir() (string, error) {
	dir := os.Getenv("GOMA_DIR")
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "goma")
	}

	if _, err := os.Stat(filepath.Join(dir, gomaCtl)); err != nil {
		return "", reproerrors.NewGomaNotInstalledError(dir)
	}
	return dir, nil
}
