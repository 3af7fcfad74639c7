package testcase

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDownloader drops a fixed file into the destination directory.
type fakeDownloader struct {
	filename string
	content  []byte
	calls    int
}

func (f *fakeDownloader) DownloadTestcase(_ context.Context, _ string, destDir string) (string, error) {
	f.calls++
	path := filepath.Join(destDir, f.filename)
	if err := os.WriteFile(path, f.content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func TestStorePath_DownloadsAndNormalizesName(t *testing.T) {
	t.Parallel()

	dl := &fakeDownloader{filename: "crash-poc.js", content: []byte("crash()")}
	store := NewStore(t.TempDir(), dl, nil)

	tc := &Testcase{ID: "595467", FileExtension: ".js", AbsolutePath: "/b/crash-poc.js"}
	path, err := store.Path(context.Background(), tc)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(tc), "testcase.js"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "crash()", string(data))
}

func TestStorePath_SecondCallUsesCache(t *testing.T) {
	t.Parallel()

	dl := &fakeDownloader{filename: "poc.html", content: []byte("<html/>")}
	store := NewStore(t.TempDir(), dl, nil)

	tc := &Testcase{ID: "11", FileExtension: ".html", AbsolutePath: "/b/poc.html"}

	_, err := store.Path(context.Background(), tc)
	require.NoError(t, err)
	_, err = store.Path(context.Background(), tc)
	require.NoError(t, err)

	assert.Equal(t, 1, dl.calls)
}

// zipDownloader wraps the payload in a zip archive the way the service
// serves multi-file testcases.
type zipDownloader struct {
	entryName string
	content   []byte
}

func (z *zipDownloader) DownloadTestcase(_ context.Context, _ string, destDir string) (string, error) {
	path := filepath.Join(destDir, "testcase.zip")
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := zip.NewWriter(out)
	entry, err := w.Create(z.entryName)
	if err != nil {
		return "", err
	}
	if _, err := entry.Write(z.content); err != nil {
		return "", err
	}
	return path, w.Close()
}

func TestStorePath_UnpacksZippedTestcase(t *testing.T) {
	t.Parallel()

	dl := &zipDownloader{entryName: "poc.js", content: []byte("zipped crash")}
	store := NewStore(t.TempDir(), dl, nil)

	tc := &Testcase{ID: "42", FileExtension: ".js", AbsolutePath: "/fuzz/inputs/poc.js"}
	path, err := store.Path(context.Background(), tc)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(tc), "testcase.js"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "zipped crash", string(data))
}
