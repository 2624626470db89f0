// Package fsutil holds filesystem housekeeping for generated artifacts.
package fsutil

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Rotate removes (or, with archive, gzips in place) files under dir that
// match the glob pattern and were last modified before the retention
// period. Returns how many files were rotated. A missing directory is not
// an error: the first run has nothing to rotate.
func Rotate(dir, pattern string, olderThan time.Duration, archive bool) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("bad rotation pattern %q: %w", pattern, err)
	}

	cutoff := time.Now().Add(-olderThan)
	rotated := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if strings.HasSuffix(path, ".gz") || !info.ModTime().Before(cutoff) {
			continue
		}

		if archive {
			if err := gzipFile(path); err != nil {
				return rotated, fmt.Errorf("archiving %s: %w", path, err)
			}
		}
		if err := os.Remove(path); err != nil {
			return rotated, fmt.Errorf("removing %s: %w", path, err)
		}
		rotated++
	}
	return rotated, nil
}

func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer dst.Close()

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
