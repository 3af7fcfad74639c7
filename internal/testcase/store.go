package testcase

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fuzzkit/repro/internal/archive"
	"github.com/fuzzkit/repro/internal/logger"
)

// Downloader fetches a testcase file into a directory and returns the saved
// path. The api client satisfies this.
type Downloader interface {
	DownloadTestcase(ctx context.Context, testcaseID, destDir string) (string, error)
}

// Store caches downloaded testcase files under <dir>/<id>_testcase.
type Store struct {
	dir string
	dl  Downloader
	log *logger.Logger
}

// NewStore creates a testcase file store rooted at dir.
func NewStore(dir string, dl Downloader, log *logger.Logger) *Store {
	return &Store{dir: dir, dl: dl, log: log}
}

// Dir returns the cache directory for one testcase.
func (s *Store) Dir(tc *Testcase) string {
	return filepath.Join(s.dir, tc.ID+"_testcase")
}

// Path returns the local path of the testcase file, downloading and
// unpacking it on first use. The file is normalized to testcase<ext> so
// reproduction commands stay stable across runs.
func (s *Store) Path(ctx context.Context, tc *Testcase) (string, error) {
	testcaseDir := s.Dir(tc)
	target := filepath.Join(testcaseDir, "testcase"+tc.FileExtension)

	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	s.log.WithFields(map[string]any{"testcase": tc.ID}).Info("downloading testcase data")

	if err := os.MkdirAll(testcaseDir, 0o755); err != nil {
		return "", err
	}

	downloaded, err := s.dl.DownloadTestcase(ctx, tc.ID, testcaseDir)
	if err != nil {
		return "", err
	}

	if strings.HasSuffix(downloaded, ".zip") {
		if err := archive.Extract(downloaded, testcaseDir); err != nil {
			return "", err
		}
		// The archive holds the original file tree; the testcase itself is
		// the leaf of the recorded absolute path.
		downloaded = filepath.Join(testcaseDir, leafName(tc.AbsolutePath))
	}

	if err := os.Rename(downloaded, target); err != nil {
		return "", err
	}
	return target, nil
}

func leafName(absolutePath string) string {
	parts := strings.Split(absolutePath, "/")
	return parts[len(parts)-1]
}
