package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathGuard keeps file access inside the storage root.
type PathGuard struct {
	root string
}

// NewPathGuard creates a guard for root.
func NewPathGuard(root string) (*PathGuard, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	return &PathGuard{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute storage root.
func (g *PathGuard) Root() string {
	return g.root
}

// Resolve maps path onto the file system. Relative paths, and paths with a
// leading slash such as stored document URLs, are taken relative to the
// root. The result must stay inside the root.
func (g *PathGuard) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	candidate := path
	if !filepath.IsAbs(candidate) || !strings.HasPrefix(filepath.Clean(candidate), g.root) {
		candidate = filepath.Join(g.root, strings.TrimPrefix(filepath.ToSlash(path), "/"))
	}
	candidate = filepath.Clean(candidate)

	ok, err := g.Within(candidate)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("path is outside storage root: %s", path)
	}
	return candidate, nil
}

// Within reports whether path lies inside the root, following symlinks on
// both sides.
func (g *PathGuard) Within(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	cleanPath := filepath.Clean(abs)

	realPath := cleanPath
	if info, err := os.Lstat(cleanPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil {
			realPath = resolved
		}
	}

	realRoot := g.root
	if resolved, err := filepath.EvalSymlinks(g.root); err == nil {
		realRoot = resolved
	}

	inside := func(p string) bool {
		return isUnder(p, g.root) || isUnder(p, realRoot)
	}
	return inside(cleanPath) && inside(realPath), nil
}

func isUnder(path, dir string) bool {
	if path == dir {
		return true
	}
	withSep := dir
	if !strings.HasSuffix(withSep, string(filepath.Separator)) {
		withSep += string(filepath.Separator)
	}
	return strings.HasPrefix(path, withSep)
}
