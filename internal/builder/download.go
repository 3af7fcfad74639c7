package builder

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fuzzkit/repro/internal/archive"
	"github.com/fuzzkit/repro/internal/logger"
	"github.com/fuzzkit/repro/internal/shell"
	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// DownloadedBinary serves the exact build FuzzKit crashed with, pulled from
// cloud storage and unpacked into the build cache. No compilation happens.
type DownloadedBinary struct {
	testcaseID string
	buildURL   string
	binaryName string
	cacheDir   string
	runner     shell.Runner
	log        *logger.Logger

	buildDir string
}

// NewDownloadedBinary creates a provider for the prebuilt archive at
// buildURL.
func NewDownloadedBinary(testcaseID, buildURL, binaryName string, opts Options) *DownloadedBinary {
	return &DownloadedBinary{
		testcaseID: testcaseID,
		buildURL:   buildURL,
		binaryName: binaryName,
		cacheDir:   opts.CacheDir,
		runner:     opts.Runner,
		log:        opts.Log,
	}
}

// BuildDirectory downloads and unpacks the build archive on first use.
// An already-unpacked build is reused as is.
func (d *DownloadedBinary) BuildDirectory(ctx context.Context) (string, error) {
	if d.buildDir != "" {
		return d.buildDir, nil
	}

	buildDir := d.buildDirName()
	if _, err := os.Stat(buildDir); err == nil {
		d.buildDir = buildDir
		return buildDir, nil
	}

	d.log.Infof("downloading build for testcase %s", d.testcaseID)

	buildsDir := filepath.Dir(buildDir)
	if err := os.MkdirAll(buildsDir, 0o755); err != nil {
		return "", err
	}

	// The web UI hands out browser URLs; gsutil wants the gs:// form.
	gsURL := strings.Replace(d.buildURL, "https://storage.cloud.google.com/", "gs://", 1)
	if _, err := d.runner.Run(ctx, shell.Command{
		Binary: "gsutil",
		Args:   []string{"cp", gsURL, "."},
		Dir:    d.cacheDir,
	}); err != nil {
		return "", err
	}

	filename := path.Base(gsURL)
	saved := filepath.Join(d.cacheDir, filename)
	if err := archive.Extract(saved, buildsDir); err != nil {
		return "", err
	}
	if err := os.Remove(saved); err != nil {
		return "", err
	}

	unpacked := filepath.Join(buildsDir, strings.TrimSuffix(filename, path.Ext(filename)))
	if err := os.Rename(unpacked, buildDir); err != nil {
		return "", err
	}

	binary := filepath.Join(buildDir, d.binaryName)
	info, err := os.Stat(binary)
	if err != nil {
		return "", reproerrors.NewBinaryNotFoundError(d.binaryName, err)
	}
	if err := os.Chmod(binary, info.Mode()|0o111); err != nil {
		return "", err
	}

	d.buildDir = buildDir
	return buildDir, nil
}

// BinaryPath returns the crashing binary inside the unpacked build.
func (d *DownloadedBinary) BinaryPath(ctx context.Context) (string, error) {
	dir, err := d.BuildDirectory(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, d.binaryName), nil
}

func (d *DownloadedBinary) buildDirName() string {
	return filepath.Join(d.cacheDir, "builds", d.testcaseID+"_build")
}
