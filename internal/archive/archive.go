// Package archive unpacks the zip files FuzzKit serves: multi-file testcase
// bundles and prebuilt build archives.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extract unpacks archivePath into dir, refusing entries that would land
// outside it.
func Extract(archivePath, dir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	root := filepath.Clean(dir) + string(os.PathSeparator)
	for _, file := range reader.File {
		path := filepath.Join(dir, file.Name)
		if !strings.HasPrefix(filepath.Clean(path)+string(os.PathSeparator), root) {
			return fmt.Errorf("archive entry %q escapes %s", file.Name, dir)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := extractFile(file, path); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, path string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, file.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
