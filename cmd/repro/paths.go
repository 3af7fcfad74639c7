package main

import (
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

// toolDirName is the per-user root holding the auth cache, downloaded
// builds and testcases, logs, and the run history.
const toolDirName = ".fuzzkit"

func toolDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, toolDirName), nil
}

func defaultCacheDir() (string, error) {
	dir, err := toolDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}

func defaultTestcaseDir() (string, error) {
	dir, err := toolDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "testcases"), nil
}

func defaultHistoryPath() (string, error) {
	dir, err := toolDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runs.json"), nil
}
