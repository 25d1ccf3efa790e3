package ci

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	documentsDir = "cms.document"
	aclsDir      = "cms.acl"
	rootSegment  = "@root"
	unitExt      = ".xml"
	tempPrefix   = ".tmp-"
)

// FileSystemStore keeps repository units as files beneath a root
// directory. Locations are slash separated and relative to the root.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore returns a store writing beneath root.
func NewFileSystemStore(root string) *FileSystemStore {
	return &FileSystemStore{root: filepath.Clean(root)}
}

// Root returns the repository directory.
func (s *FileSystemStore) Root() string { return s.root }

// DocumentLocation returns where the culture version of the node at
// aliasPath is stored.
func DocumentLocation(siteName, aliasPath, culture string) string {
	return path.Join(documentsDir, siteName, nodeDir(aliasPath), culture+unitExt)
}

// ACLLocation returns where the ACL owned by the node at aliasPath is stored.
func ACLLocation(siteName, aliasPath string) string {
	return path.Join(aclsDir, siteName, nodeDir(aliasPath), "acl"+unitExt)
}

func nodeDir(aliasPath string) string {
	trimmed := strings.Trim(aliasPath, "/")
	if trimmed == "" {
		return rootSegment
	}
	return trimmed
}

// Write replaces the unit at location. The content goes to a temporary
// file first so readers never see a partial unit.
func (s *FileSystemStore) Write(ctx context.Context, location string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(location)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ci: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("ci: temp file for %s: %w", location, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ci: write %s: %w", location, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ci: close %s: %w", location, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ci: replace %s: %w", location, err)
	}
	return nil
}

// Read returns the content of the unit at location.
func (s *FileSystemStore) Read(_ context.Context, location string) ([]byte, error) {
	target, err := s.resolve(location)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

// Remove deletes the unit at location and the directories it leaves
// empty. Removing a missing unit is not an error.
func (s *FileSystemStore) Remove(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(location)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ci: remove %s: %w", location, err)
	}
	s.prune(filepath.Dir(target))
	return nil
}

// List returns the locations of every unit beneath prefix, or beneath the
// root for an empty prefix.
func (s *FileSystemStore) List(ctx context.Context, prefix string) ([]string, error) {
	start := s.root
	if prefix != "" {
		resolved, err := s.resolve(prefix)
		if err != nil {
			return nil, err
		}
		start = resolved
	}
	var out []string
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !IsUnitFile(p) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ci: list %s: %w", start, err)
	}
	return out, nil
}

// IsUnitFile reports whether name is a repository unit rather than a
// temporary file.
func IsUnitFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, unitExt) && !strings.HasPrefix(base, tempPrefix)
}

// Location converts an absolute file name beneath the root to a location.
func (s *FileSystemStore) Location(name string) (string, bool) {
	rel, err := filepath.Rel(s.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (s *FileSystemStore) resolve(location string) (string, error) {
	clean := path.Clean("/" + location)
	if clean == "/" {
		return "", fmt.Errorf("ci: invalid location %q", location)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

func (s *FileSystemStore) prune(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
