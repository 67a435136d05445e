package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrFileNotFound is matched by errors returned from a SourceRepository when
// a logical path exists under none of its roots.
var ErrFileNotFound = errors.New("schema: file not found")

// SourceRepository maps logical schema paths (as written in import
// statements) to file contents.
type SourceRepository interface {
	FindFile(logicalPath string) ([]byte, error)
}

// notFound wraps ErrFileNotFound with the logical path.
func notFound(p string) error { return fmt.Errorf("%w: %s", ErrFileNotFound, p) }

// cleanLogical normalizes a logical path and rejects paths that would
// escape a root.
func cleanLogical(p string) (string, bool) {
	if p == "" || strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return "", false
	}
	c := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", false
	}
	return c, true
}

// DiskSourceTree resolves logical paths against an ordered list of root
// directories. The first root holding the file wins. No roots means the
// current directory.
type DiskSourceTree struct {
	Roots []string
}

func (t DiskSourceTree) FindFile(logicalPath string) ([]byte, error) {
	rel, ok := cleanLogical(logicalPath)
	if !ok {
		return nil, notFound(logicalPath)
	}
	roots := t.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	for _, root := range roots {
		b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("schema: read %s: %w", logicalPath, err)
		}
	}
	return nil, notFound(logicalPath)
}

// FSSource resolves logical paths inside an fs.FS, such as an embed.FS.
type FSSource struct {
	FS fs.FS
}

func (s FSSource) FindFile(logicalPath string) ([]byte, error) {
	rel, ok := cleanLogical(logicalPath)
	if !ok {
		return nil, notFound(logicalPath)
	}
	b, err := fs.ReadFile(s.FS, rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(logicalPath)
	}
	return b, err
}

// MapSource holds schema text in memory, keyed by logical path.
type MapSource map[string]string

func (m MapSource) FindFile(logicalPath string) ([]byte, error) {
	rel, ok := cleanLogical(logicalPath)
	if !ok {
		return nil, notFound(logicalPath)
	}
	text, ok := m[rel]
	if !ok {
		return nil, notFound(logicalPath)
	}
	return []byte(text), nil
}
