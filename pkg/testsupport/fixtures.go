package testsupport

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// ListFiles returns the slash-separated paths of every regular file under
// root, relative to root and sorted.
func ListFiles(tb testing.TB, root string) []string {
	tb.Helper()

	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		tb.Fatalf("walk %s: %v", root, err)
	}
	slices.Sort(out)
	return out
}

// FilesWithPrefix filters paths to those starting with prefix.
func FilesWithPrefix(paths []string, prefix string) []string {
	var out []string
	for _, p := range paths {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}
